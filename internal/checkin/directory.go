package checkin

import (
	"context"
	"strings"

	"github.com/rongwang/checkin-server/internal/models"
)

// RegistrantStore is the read side of the registrant roll.
type RegistrantStore interface {
	GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error)
	GetRegistrationByQRCode(ctx context.Context, qrCode string) (*models.Registration, error)
	GetRegistrationByQRCodeFold(ctx context.Context, qrCode string) (*models.Registration, error)
}

// LookupStrategy is one way of matching a raw scanned credential.
// Normalize returns the value to query with and false if the strategy
// does not apply to raw.
type LookupStrategy struct {
	Name      string
	Normalize func(raw string) (string, bool)
	Find      func(ctx context.Context, store RegistrantStore, credential string) (*models.Registration, error)
}

// DefaultStrategies absorb scanner and keyboard noise: exact match, then
// surrounding whitespace removed, then case folded.
func DefaultStrategies() []LookupStrategy {
	return []LookupStrategy{
		{
			Name:      "exact",
			Normalize: func(raw string) (string, bool) { return raw, raw != "" },
			Find:      findExact,
		},
		{
			Name: "trimmed",
			Normalize: func(raw string) (string, bool) {
				t := strings.TrimSpace(raw)
				return t, t != "" && t != raw
			},
			Find: findExact,
		},
		{
			Name: "case_insensitive",
			Normalize: func(raw string) (string, bool) {
				t := strings.TrimSpace(raw)
				return t, t != ""
			},
			Find: func(ctx context.Context, store RegistrantStore, credential string) (*models.Registration, error) {
				return store.GetRegistrationByQRCodeFold(ctx, credential)
			},
		},
	}
}

func findExact(ctx context.Context, store RegistrantStore, credential string) (*models.Registration, error) {
	return store.GetRegistrationByQRCode(ctx, credential)
}

// Directory resolves registrants by credential or id. It never writes.
type Directory struct {
	store      RegistrantStore
	strategies []LookupStrategy
}

// NewDirectory builds a directory. With no strategies the defaults apply.
func NewDirectory(store RegistrantStore, strategies ...LookupStrategy) *Directory {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Directory{store: store, strategies: strategies}
}

// FindByCredential runs the strategies in order and returns the first
// match with the name of the strategy that found it. A nil registration
// with a nil error means nothing matched.
func (d *Directory) FindByCredential(ctx context.Context, raw string) (*models.Registration, string, error) {
	for _, s := range d.strategies {
		credential, ok := s.Normalize(raw)
		if !ok {
			continue
		}
		reg, err := s.Find(ctx, d.store, credential)
		if err != nil {
			return nil, s.Name, err
		}
		if reg != nil {
			return reg, s.Name, nil
		}
	}
	return nil, "", nil
}

// FindByID looks a registrant up by primary key.
func (d *Directory) FindByID(ctx context.Context, id int64) (*models.Registration, error) {
	if id <= 0 {
		return nil, nil
	}
	return d.store.GetRegistrationByID(ctx, id)
}
