// Package memory holds in-memory implementations of the check-in stores.
// They are intended for use in tests and dev environments.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rongwang/checkin-server/internal/models"
	"github.com/rongwang/checkin-server/internal/repository"
)

type ledgerKey struct {
	registrationID int64
	eventID        int64
	day            string
}

// Store keeps registrations, events, ledger entries and the simulation
// setting in memory. It enforces the same one-entry-per-day rule as the
// SQL schema.
type Store struct {
	mu            sync.RWMutex
	registrations map[int64]models.Registration
	events        map[int64]models.Event
	entries       []models.CheckInLog
	index         map[ledgerKey]struct{}
	setting       models.SimulationSetting
	nextID        int64
	err           error
}

func New() *Store {
	return &Store{
		registrations: make(map[int64]models.Registration),
		events:        make(map[int64]models.Event),
		index:         make(map[ledgerKey]struct{}),
	}
}

// SetErr makes every store call fail with err until cleared with nil.
// Test-only helper.
func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// AddEvent stores an event and assigns its id.
func (s *Store) AddEvent(ev models.Event) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ev.ID = s.nextID
	s.events[ev.ID] = ev
	return ev
}

// AddRegistration stores a registration and assigns its id.
func (s *Store) AddRegistration(reg models.Registration) models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	reg.ID = s.nextID
	s.registrations[reg.ID] = reg
	return reg
}

func (s *Store) EventExists(_ context.Context, eventID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.events[eventID]
	return ok, nil
}

func (s *Store) GetRegistrationByID(_ context.Context, id int64) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	reg, ok := s.registrations[id]
	if !ok {
		return nil, nil
	}
	return &reg, nil
}

func (s *Store) GetRegistrationByQRCode(_ context.Context, qrCode string) (*models.Registration, error) {
	return s.findRegistration(func(r models.Registration) bool { return r.QRCode == qrCode })
}

func (s *Store) GetRegistrationByQRCodeFold(_ context.Context, qrCode string) (*models.Registration, error) {
	return s.findRegistration(func(r models.Registration) bool { return strings.EqualFold(r.QRCode, qrCode) })
}

// findRegistration returns the lowest-id match, like the SQL lookup.
func (s *Store) findRegistration(match func(models.Registration) bool) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var found *models.Registration
	for _, reg := range s.registrations {
		if !match(reg) {
			continue
		}
		if found == nil || reg.ID < found.ID {
			r := reg
			found = &r
		}
	}
	return found, nil
}

func (s *Store) HasCheckInForDay(_ context.Context, registrationID, eventID int64, day string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.index[ledgerKey{registrationID, eventID, day}]
	return ok, nil
}

func (s *Store) RecordCheckIn(_ context.Context, entry *models.CheckInLog) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}

	key := ledgerKey{entry.RegistrationID, entry.EventID, entry.CheckInDate}
	if _, ok := s.index[key]; ok {
		return false, repository.ErrDuplicateCheckIn
	}

	if entry.CheckInTime.IsZero() {
		entry.CheckInTime = time.Now().UTC()
	}
	s.nextID++
	entry.ID = s.nextID
	s.index[key] = struct{}{}
	s.entries = append(s.entries, *entry)

	reg, ok := s.registrations[entry.RegistrationID]
	if !ok || reg.CheckedIn {
		return false, nil
	}
	t := entry.CheckInTime
	reg.CheckedIn = true
	reg.CheckInTime = &t
	s.registrations[reg.ID] = reg
	return true, nil
}

// Entries returns a copy of all recorded ledger entries. Test-only helper.
func (s *Store) Entries() []models.CheckInLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CheckInLog, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) GetSimulationSetting(context.Context) (models.SimulationSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return models.SimulationSetting{}, s.err
	}
	return s.setting, nil
}

func (s *Store) SaveSimulationSetting(_ context.Context, setting models.SimulationSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.setting = setting
	return nil
}
