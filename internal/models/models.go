package models

import (
	"strings"
	"time"
)

// User represents a staff account that can log in and operate check-in
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	Role      string    `db:"role" json:"role"`  // "admin" or "staff"
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// User roles
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Event represents a named happening registrants can check into
type Event struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Location    string    `db:"location" json:"location"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Registration represents one attendee on the registrant roll.
// QRCode is the check-in credential; CheckedIn and CheckInTime record the
// first successful check-in and are never reset.
type Registration struct {
	ID          int64      `db:"id" json:"id"`
	FullName    string     `db:"full_name" json:"full_name"`
	Email       string     `db:"email" json:"email"`
	Company     string     `db:"company" json:"company"`
	Roles       string     `db:"roles" json:"roles"` // comma separated tags
	TableNumber string     `db:"table_number" json:"table_number"`
	QRCode      string     `db:"qr_code" json:"qr_code"`
	CheckedIn   bool       `db:"checked_in" json:"checked_in"`
	CheckInTime *time.Time `db:"check_in_time" json:"check_in_time"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// RoleTags splits the stored role string into trimmed tags.
func (r *Registration) RoleTags() []string {
	var tags []string
	for _, tag := range strings.Split(r.Roles, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Check-in methods
const (
	MethodQR     = "qr"
	MethodManual = "manual"
)

// CheckInLog is one accepted check-in. CheckInDate is the calendar day the
// attempt was bucketed into (possibly simulated); CheckInTime is the real
// server time of the insert.
type CheckInLog struct {
	ID             int64     `db:"id" json:"id"`
	RegistrationID int64     `db:"registration_id" json:"registration_id"`
	EventID        int64     `db:"event_id" json:"event_id"`
	CheckInDate    string    `db:"check_in_date" json:"check_in_date"`
	CheckInTime    time.Time `db:"check_in_time" json:"check_in_time"`
	CheckedInBy    *string   `db:"checked_in_by" json:"checked_in_by"`
	Method         string    `db:"method" json:"method"`
	Notes          string    `db:"notes" json:"notes"`
}

// RecentCheckIn is a ledger row joined with display names
type RecentCheckIn struct {
	ID              int64     `db:"id" json:"id"`
	CheckInTime     time.Time `db:"check_in_time" json:"check_in_time"`
	CheckInDate     string    `db:"check_in_date" json:"check_in_date"`
	Method          string    `db:"method" json:"method"`
	FullName        string    `db:"full_name" json:"full_name"`
	Email           string    `db:"email" json:"email"`
	Company         string    `db:"company" json:"company"`
	TableNumber     string    `db:"table_number" json:"table_number"`
	EventName       string    `db:"event_name" json:"event_name"`
	CheckedInByName *string   `db:"checked_in_by_name" json:"checked_in_by_name"`
}

// CheckInStats holds simple attendance counts
type CheckInStats struct {
	TotalRegistrations int64 `db:"total_registrations"`
	CheckedIn          int64 `db:"checked_in_count"`
}

// Simulation offset bounds, in days
const (
	MinSimulationOffset = -365
	MaxSimulationOffset = 365
)

// SimulationSetting shifts the check-in calendar for testing multi-day events
type SimulationSetting struct {
	Enabled    bool `json:"enabled"`
	OffsetDays int  `json:"dateOffset"`
}
