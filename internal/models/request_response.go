package models

// Request models
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CheckInRequest struct {
	QRCode  string `json:"qr_code" binding:"required"`
	EventID *int64 `json:"event_id" binding:"omitempty,gt=0"`
}

type ManualCheckInRequest struct {
	RegistrationID int64  `json:"registration_id" binding:"required,gt=0"`
	EventID        *int64 `json:"event_id" binding:"omitempty,gt=0"`
	Notes          string `json:"notes"`
}

type SimulationSettingsRequest struct {
	Enabled    *bool `json:"enabled" binding:"required"`
	DateOffset *int  `json:"dateOffset" binding:"required,min=-365,max=365"`
}

type CreateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartDate   string `json:"start_date" binding:"required"` // YYYY-MM-DD or RFC3339
	EndDate     string `json:"end_date" binding:"required"`
}

type CreateRegistrationRequest struct {
	FullName    string  `json:"full_name" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	Company     string  `json:"company"`
	Roles       string  `json:"roles"`
	TableNumber string  `json:"table_number"`
	EventIDs    []int64 `json:"event_ids"`
}

type UpdateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartDate   string `json:"start_date" binding:"required"`
	EndDate     string `json:"end_date" binding:"required"`
}

// UpdateRegistrationRequest edits a registrant. An empty qr_code keeps the
// current credential.
type UpdateRegistrationRequest struct {
	FullName    string `json:"full_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Company     string `json:"company"`
	Roles       string `json:"roles"`
	TableNumber string `json:"table_number"`
	QRCode      string `json:"qr_code"`
}

type PurgeRequest struct {
	Type    string `json:"type" binding:"required,oneof=full event"`
	EventID int64  `json:"event_id"`
}

// Response models

// RegistrationSummary carries the display fields shown after a scan
type RegistrationSummary struct {
	FullName    string `json:"full_name"`
	Company     string `json:"company,omitempty"`
	TableNumber string `json:"table_number,omitempty"`
}

type CheckInResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Registration *RegistrationSummary `json:"registration,omitempty"`
}

type SimulationSettingsResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	Settings    SimulationSetting `json:"settings"`
	CurrentDate string            `json:"currentDate"`
	ActualDate  string            `json:"actualDate"`
}

type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type EventResponse struct {
	Status string `json:"status"`
	Event  *Event `json:"event"`
}

type EventListResponse struct {
	Status string  `json:"status"`
	Events []Event `json:"events"`
}

type RegistrationResponse struct {
	Status       string        `json:"status"`
	Registration *Registration `json:"registration"`
	EventIDs     []int64       `json:"event_ids"`
}

type RegistrationListResponse struct {
	Status        string         `json:"status"`
	Registrations []Registration `json:"registrations"`
	Page          int            `json:"page,omitempty"`
	Limit         int            `json:"limit,omitempty"`
	Total         int64          `json:"total,omitempty"`
	TotalPages    int            `json:"totalPages,omitempty"`
}

// QRCodeResponse carries a printable badge image for one registrant
type QRCodeResponse struct {
	Status         string               `json:"status"`
	RegistrationID int64                `json:"registration_id"`
	Registration   *RegistrationSummary `json:"registration"`
	QRCodeDataURL  string               `json:"qrCodeDataUrl"`
}

type RecentCheckInsResponse struct {
	Success  bool            `json:"success"`
	CheckIns []RecentCheckIn `json:"checkIns"`
}

type StatsBody struct {
	TotalRegistrations int64  `json:"totalRegistrations"`
	CheckedIn          int64  `json:"checkedIn"`
	PendingCheckIn     int64  `json:"pendingCheckIn"`
	CheckInRate        string `json:"checkInRate"`
}

type CheckInStatsResponse struct {
	Success bool      `json:"success"`
	Stats   StatsBody `json:"stats"`
}

type PurgeResponse struct {
	Status               string `json:"status"`
	DeletedCheckIns      int64  `json:"deletedCheckIns"`
	DeletedRegistrations int64  `json:"deletedRegistrations"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
