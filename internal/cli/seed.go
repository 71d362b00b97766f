package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rongwang/checkin-server/internal/models"
	"github.com/rongwang/checkin-server/internal/repository"
	"github.com/rongwang/checkin-server/internal/utils"
)

// SeedFile is a YAML fixture of events and registrants. Registrants name
// the events they attend by key, and may pin their credential so printed
// badges stay valid across reseeds.
//
//	events:
//	  - key: summit
//	    name: Annual Summit
//	    start_date: 2024-06-01
//	    end_date: 2024-06-02
//	registrations:
//	  - full_name: Ada Lovelace
//	    email: ada@example.com
//	    qr_code: Zx9Q=
//	    events: [summit]
type SeedFile struct {
	Events        []SeedEvent        `yaml:"events"`
	Registrations []SeedRegistration `yaml:"registrations"`
}

// SeedEvent is one event in a fixture
type SeedEvent struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Location    string `yaml:"location"`
	StartDate   string `yaml:"start_date"`
	EndDate     string `yaml:"end_date"`
}

// SeedRegistration is one registrant in a fixture
type SeedRegistration struct {
	FullName    string   `yaml:"full_name"`
	Email       string   `yaml:"email"`
	Company     string   `yaml:"company"`
	Roles       []string `yaml:"roles"`
	TableNumber string   `yaml:"table_number"`
	QRCode      string   `yaml:"qr_code"`
	Events      []string `yaml:"events"`
}

// SeedResult counts what a seed run did.
type SeedResult struct {
	Events        int
	Registrations int
	Skipped       int
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Load events and registrants from a YAML fixture",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := LoadSeedFile(file)
			if err != nil {
				return err
			}

			cfg := loadConfig(rootOpts)
			logger := newLogger(rootOpts)

			a, err := openApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.db.Close()

			res, err := ApplySeed(cmd.Context(), a.repo, seed, logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d event(s), %d registration(s), skipped %d\n",
				res.Events, res.Registrations, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// LoadSeedFile reads and validates a fixture.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	keys := make(map[string]bool, len(seed.Events))
	for i, e := range seed.Events {
		if e.Key == "" || e.Name == "" {
			return nil, fmt.Errorf("event %d: key and name are required", i)
		}
		if keys[e.Key] {
			return nil, fmt.Errorf("event %d: duplicate key %q", i, e.Key)
		}
		keys[e.Key] = true
	}
	for i, r := range seed.Registrations {
		if r.FullName == "" || r.Email == "" {
			return nil, fmt.Errorf("registration %d: full_name and email are required", i)
		}
		for _, k := range r.Events {
			if !keys[k] {
				return nil, fmt.Errorf("registration %d: unknown event %q", i, k)
			}
		}
	}

	return &seed, nil
}

// ApplySeed stores the fixture. Registrants whose email or credential
// already exists are skipped, so a fixture can be applied more than once.
func ApplySeed(ctx context.Context, repo repository.Repository, seed *SeedFile, logger *utils.Logger) (SeedResult, error) {
	var res SeedResult
	ids := make(map[string]int64, len(seed.Events))

	for _, e := range seed.Events {
		start, err := parseSeedDate(e.StartDate)
		if err != nil {
			return res, fmt.Errorf("event %s: %w", e.Key, err)
		}
		end, err := parseSeedDate(e.EndDate)
		if err != nil {
			return res, fmt.Errorf("event %s: %w", e.Key, err)
		}

		event := &models.Event{
			Name:        e.Name,
			Description: e.Description,
			Location:    e.Location,
			StartDate:   start,
			EndDate:     end,
		}
		if err := repo.CreateEvent(ctx, event); err != nil {
			return res, fmt.Errorf("event %s: %w", e.Key, err)
		}

		ids[e.Key] = event.ID
		res.Events++
		logger.Debug("seeded event", "key", e.Key, "event_id", event.ID)
	}

	for _, r := range seed.Registrations {
		eventIDs := make([]int64, 0, len(r.Events))
		for _, k := range r.Events {
			eventIDs = append(eventIDs, ids[k])
		}

		reg := &models.Registration{
			FullName:    r.FullName,
			Email:       strings.ToLower(strings.TrimSpace(r.Email)),
			Company:     r.Company,
			Roles:       strings.Join(r.Roles, ","),
			TableNumber: r.TableNumber,
			QRCode:      r.QRCode,
		}
		if reg.QRCode == "" {
			reg.QRCode = reg.Email
		}

		err := repo.CreateRegistration(ctx, reg, eventIDs)
		if errors.Is(err, repository.ErrDuplicateEmail) || errors.Is(err, repository.ErrDuplicateQRCode) {
			res.Skipped++
			logger.Warn("seed registration skipped", "email", reg.Email, "error", err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("registration %s: %w", reg.Email, err)
		}
		res.Registrations++
	}

	logger.Info("seed applied", "events", res.Events, "registrations", res.Registrations, "skipped", res.Skipped)
	return res, nil
}

func parseSeedDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return time.Parse("2006-01-02", s)
}
