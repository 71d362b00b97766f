package repository

import (
	"context"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/checkin-server/internal/models"
)

const (
	settingSimulationEnabled = "simulation_enabled"
	settingSimulationOffset  = "simulation_date_offset"
)

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// GetSimulationSetting reads the persisted simulation setting. Missing or
// malformed rows read as disabled with a zero offset.
func (r *SQLRepository) GetSimulationSetting(ctx context.Context) (models.SimulationSetting, error) {
	query := `SELECT key, value FROM settings WHERE key IN (?, ?)`

	var rows []settingRow
	err := r.db.SelectContext(ctx, &rows, r.q(query), settingSimulationEnabled, settingSimulationOffset)
	if err != nil {
		return models.SimulationSetting{}, err
	}

	var s models.SimulationSetting
	for _, row := range rows {
		switch row.Key {
		case settingSimulationEnabled:
			s.Enabled, _ = strconv.ParseBool(row.Value)
		case settingSimulationOffset:
			s.OffsetDays, _ = strconv.Atoi(row.Value)
		}
	}

	return s, nil
}

func (r *SQLRepository) SaveSimulationSetting(ctx context.Context, setting models.SimulationSetting) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if err = saveSimulationSettingTx(ctx, tx, setting); err != nil {
		return err
	}

	return tx.Commit()
}

func saveSimulationSettingTx(ctx context.Context, tx *sqlx.Tx, setting models.SimulationSetting) error {
	upsert := tx.Rebind(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`)

	values := map[string]string{
		settingSimulationEnabled: strconv.FormatBool(setting.Enabled),
		settingSimulationOffset:  strconv.Itoa(setting.OffsetDays),
	}
	for key, value := range values {
		if _, err := tx.ExecContext(ctx, upsert, key, value); err != nil {
			return err
		}
	}
	return nil
}
