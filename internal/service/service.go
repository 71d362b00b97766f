package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rongwang/checkin-server/internal/checkin"
	"github.com/rongwang/checkin-server/internal/clock"
	"github.com/rongwang/checkin-server/internal/models"
	"github.com/rongwang/checkin-server/internal/repository"
	"github.com/rongwang/checkin-server/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrEmailTaken           = errors.New("email already registered")
	ErrQRCodeTaken          = errors.New("qr code already assigned")
	// ErrInvalidInput is wrapped by every request validation failure.
	ErrInvalidInput = errors.New("invalid input")
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	CreateStaffUser(ctx context.Context, email, name, password, role string) (*models.User, error)

	// Check-in
	CheckIn(ctx context.Context, req models.CheckInRequest) (*models.CheckInResponse, error)
	ManualCheckIn(ctx context.Context, operatorID string, req models.ManualCheckInRequest) (*models.CheckInResponse, error)

	// Simulation settings
	GetSimulationSettings(ctx context.Context) (*models.SimulationSettingsResponse, error)
	UpdateSimulationSettings(ctx context.Context, req models.SimulationSettingsRequest) (*models.SimulationSettingsResponse, error)
	ResetSimulationSettings(ctx context.Context) (*models.SimulationSettingsResponse, error)

	// Events
	CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.EventResponse, error)
	GetEvent(ctx context.Context, eventID int64) (*models.EventResponse, error)
	ListEvents(ctx context.Context) (*models.EventListResponse, error)
	UpdateEvent(ctx context.Context, eventID int64, req models.UpdateEventRequest) (*models.EventResponse, error)
	DeleteEvent(ctx context.Context, eventID int64) error

	// Registrations
	CreateRegistration(ctx context.Context, req models.CreateRegistrationRequest) (*models.RegistrationResponse, error)
	GetRegistration(ctx context.Context, id int64) (*models.RegistrationResponse, error)
	ListRegistrations(ctx context.Context, page, limit int) (*models.RegistrationListResponse, error)
	SearchRegistrations(ctx context.Context, query string) (*models.RegistrationListResponse, error)
	UpdateRegistration(ctx context.Context, id int64, req models.UpdateRegistrationRequest) (*models.RegistrationResponse, error)
	DeleteRegistration(ctx context.Context, id int64) error
	GenerateQRCode(ctx context.Context, id int64) (*models.QRCodeResponse, error)

	// Reports and administration
	RecentCheckIns(ctx context.Context, limit int) (*models.RecentCheckInsResponse, error)
	CheckInStats(ctx context.Context, eventID *int64) (*models.CheckInStatsResponse, error)
	Purge(ctx context.Context, req models.PurgeRequest) (*models.PurgeResponse, error)
}

// Options holds the tunables of DefaultService
type Options struct {
	JWTSecret      string
	TokenDuration  time.Duration
	DefaultEventID int64
	Logger         *utils.Logger
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo           repository.Repository
	engine         *checkin.Engine
	clock          clock.Provider
	jwtSecret      []byte
	tokenDuration  time.Duration
	defaultEventID int64
	logger         *utils.Logger
}

// NewDefaultService creates a new DefaultService. The check-in engine is
// built over repo, so repo is the only store the service touches.
func NewDefaultService(repo repository.Repository, c clock.Provider, opts Options) Service {
	if opts.TokenDuration <= 0 {
		opts.TokenDuration = 24 * time.Hour // 24 hours token validity
	}
	if opts.Logger == nil {
		opts.Logger = utils.NopLogger()
	}

	engine := checkin.NewEngine(c, checkin.NewDirectory(repo), repo, opts.Logger.With("component", "checkin"))

	return &DefaultService{
		repo:           repo,
		engine:         engine,
		clock:          c,
		jwtSecret:      []byte(opts.JWTSecret),
		tokenDuration:  opts.TokenDuration,
		defaultEventID: opts.DefaultEventID,
		logger:         opts.Logger,
	}
}

// Authentication methods
func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	// Get the user
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// CreateStaffUser adds a login for front-desk staff or an administrator
func (s *DefaultService) CreateStaffUser(ctx context.Context, email, name, password, role string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(name) == "" || len(password) < 8 {
		return nil, fmt.Errorf("%w: email, name and a password of at least 8 characters are required", ErrInvalidInput)
	}
	if role != models.RoleAdmin && role != models.RoleStaff {
		return nil, fmt.Errorf("%w: role must be %q or %q", ErrInvalidInput, models.RoleAdmin, models.RoleStaff)
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    email,
		Name:     strings.TrimSpace(name),
		Password: string(hashedPassword),
		Role:     role,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return user, nil
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub":  user.ID, // subject
		"role": user.Role,
		"exp":  expirationTime.Unix(),
		"iat":  time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
