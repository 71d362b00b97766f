package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rongwang/checkin-server/internal/checkin"
	"github.com/rongwang/checkin-server/internal/models"
	"github.com/rongwang/checkin-server/internal/service"
	"github.com/rongwang/checkin-server/internal/utils"
)

const (
	msgInternalError  = "Internal server error"
	msgInvalidEventID = "Invalid event ID"
)

// Handler handles HTTP requests
type Handler struct {
	service service.Service
	logger  *utils.Logger
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Handler{service: svc, logger: logger}
}

// SetupRoutes configures the API routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Kiosk and counter endpoints
	router.POST("/check-in", h.CheckIn)
	router.POST("/manual-check-in", OptionalAuthMiddleware(), h.ManualCheckIn)
	router.POST("/login", h.Login)

	// Staff endpoints
	staff := router.Group("/")
	staff.Use(AuthMiddleware())
	{
		staff.GET("/events", h.ListEvents)
		staff.POST("/events", h.CreateEvent)
		staff.GET("/events/:id", h.GetEvent)
		staff.PUT("/events/:id", h.UpdateEvent)
		staff.DELETE("/events/:id", h.DeleteEvent)

		staff.GET("/registrations", h.ListRegistrations)
		staff.POST("/registrations", h.CreateRegistration)
		staff.GET("/registrations/search", h.SearchRegistrations)
		staff.GET("/registrations/:id", h.GetRegistration)
		staff.PUT("/registrations/:id", h.UpdateRegistration)
		staff.DELETE("/registrations/:id", h.DeleteRegistration)
		staff.GET("/generate-qr/:id", h.GenerateQRCode)

		staff.GET("/recent-check-ins", h.RecentCheckIns)
		staff.GET("/check-in-stats", h.CheckInStats)
	}

	// Admin endpoints
	admin := router.Group("/")
	admin.Use(AuthMiddleware(), RequireRole(models.RoleAdmin))
	{
		admin.GET("/settings/simulation", h.GetSimulationSettings)
		admin.POST("/settings/simulation", h.UpdateSimulationSettings)
		admin.DELETE("/settings/simulation", h.ResetSimulationSettings)
		admin.POST("/admin/purge", h.Purge)
	}
}

// Check-in handlers

// CheckIn handles a QR scan
func (h *Handler) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.CheckInResponse{
			Success: false,
			Message: bindFailure(err, "QR code is required"),
		})
		return
	}

	resp, err := h.service.CheckIn(c.Request.Context(), req)
	h.writeCheckIn(c, resp, err)
}

// ManualCheckIn handles a staff check-in by registration id
func (h *Handler) ManualCheckIn(c *gin.Context) {
	var req models.ManualCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.CheckInResponse{
			Success: false,
			Message: bindFailure(err, "Registration ID is required"),
		})
		return
	}

	resp, err := h.service.ManualCheckIn(c.Request.Context(), c.GetString(ctxUserID), req)
	h.writeCheckIn(c, resp, err)
}

// writeCheckIn renders a check-in result. Duplicates are a normal outcome
// and share the 200 status with successful check-ins.
func (h *Handler) writeCheckIn(c *gin.Context, resp *models.CheckInResponse, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, service.ErrRegistrationNotFound):
		c.JSON(http.StatusNotFound, resp)
	case errors.Is(err, service.ErrEventNotFound):
		c.JSON(http.StatusNotFound, models.CheckInResponse{Success: false, Message: "Event not found"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, models.CheckInResponse{Success: false, Message: err.Error()})
	default:
		h.logger.Error("check-in request failed",
			"path", c.FullPath(), "retryable", checkin.IsStorageError(err), "error", err)
		c.JSON(http.StatusInternalServerError, models.CheckInResponse{Success: false, Message: msgInternalError})
	}
}

// Auth handlers

// Login handles staff login
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    "INVALID_CREDENTIALS",
				Message: "Invalid email or password",
			})
			return
		}
		h.internalError(c, "login failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Simulation settings handlers

func (h *Handler) GetSimulationSettings(c *gin.Context) {
	resp, err := h.service.GetSimulationSettings(c.Request.Context())
	if err != nil {
		h.internalError(c, "get simulation settings failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateSimulationSettings(c *gin.Context) {
	var req models.SimulationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: "Invalid settings. Date offset must be a number between -365 and 365.",
		})
		return
	}

	resp, err := h.service.UpdateSimulationSettings(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "update simulation settings failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ResetSimulationSettings(c *gin.Context) {
	resp, err := h.service.ResetSimulationSettings(c.Request.Context())
	if err != nil {
		h.internalError(c, "reset simulation settings failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Event handlers

func (h *Handler) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.CreateEvent(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "create event failed", err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListEvents(c *gin.Context) {
	resp, err := h.service.ListEvents(c.Request.Context())
	if err != nil {
		h.internalError(c, "list events failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetEvent(c *gin.Context) {
	eventID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		h.writeError(c, "get event failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	eventID, ok := pathID(c)
	if !ok {
		return
	}

	var req models.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.UpdateEvent(c.Request.Context(), eventID, req)
	if err != nil {
		h.writeError(c, "update event failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	eventID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteEvent(c.Request.Context(), eventID); err != nil {
		h.writeError(c, "delete event failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Registration handlers

func (h *Handler) CreateRegistration(c *gin.Context) {
	var req models.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.CreateRegistration(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "create registration failed", err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetRegistration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetRegistration(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get registration failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListRegistrations pages through the roll with ?page= and ?limit=
func (h *Handler) ListRegistrations(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: "Invalid page",
		})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: "Invalid limit",
		})
		return
	}

	resp, err := h.service.ListRegistrations(c.Request.Context(), page, limit)
	if err != nil {
		h.writeError(c, "list registrations failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SearchRegistrations(c *gin.Context) {
	resp, err := h.service.SearchRegistrations(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.writeError(c, "search registrations failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateRegistration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req models.UpdateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.UpdateRegistration(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, "update registration failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteRegistration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteRegistration(c.Request.Context(), id); err != nil {
		h.writeError(c, "delete registration failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GenerateQRCode renders a registrant's credential as a PNG data URL
func (h *Handler) GenerateQRCode(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.service.GenerateQRCode(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "generate qr code failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Report handlers

func (h *Handler) RecentCheckIns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	resp, err := h.service.RecentCheckIns(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "recent check-ins failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CheckInStats(c *gin.Context) {
	var eventID *int64
	if raw := c.Query("event_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Status:  "error",
				Code:    "INVALID_REQUEST",
				Message: msgInvalidEventID,
			})
			return
		}
		eventID = &id
	}

	resp, err := h.service.CheckInStats(c.Request.Context(), eventID)
	if err != nil {
		h.internalError(c, "check-in stats failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Admin handlers

func (h *Handler) Purge(c *gin.Context) {
	var req models.PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.Purge(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "purge failed", err)
		return
	}

	h.logger.Warn("purge requested", "type", req.Type, "event_id", req.EventID, "user_id", c.GetString(ctxUserID))
	c.JSON(http.StatusOK, resp)
}

// Helpers

// writeError maps service errors onto the error envelope
func (h *Handler) writeError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		badRequest(c, err)
	case errors.Is(err, service.ErrEventNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_FOUND",
			Message: "Event not found",
		})
	case errors.Is(err, service.ErrRegistrationNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_FOUND",
			Message: "Registration not found",
		})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "EMAIL_TAKEN",
			Message: "Email already registered",
		})
	case errors.Is(err, service.ErrQRCodeTaken):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "QR_CODE_TAKEN",
			Message: "QR code already assigned to another registration",
		})
	default:
		h.internalError(c, msg, err)
	}
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Status:  "error",
		Code:    "INTERNAL_ERROR",
		Message: msgInternalError,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "INVALID_REQUEST",
		Message: err.Error(),
	})
}

// bindFailure picks the check-in message for a rejected body. An invalid
// event_id is reported as such; anything else falls back to missing.
func bindFailure(err error, missing string) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == "event_id" {
		return msgInvalidEventID
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "EventID" {
		return msgInvalidEventID
	}

	return missing
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: "Invalid ID",
		})
		return 0, false
	}
	return id, true
}
