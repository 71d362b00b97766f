package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rongwang/checkin-server/internal/models"
	"github.com/rongwang/checkin-server/internal/utils"
)

// Context keys set by the auth middlewares
const (
	ctxUserID = "userId"
	ctxRole   = "role"
)

var (
	errNoToken      = errors.New("Authentication required")
	errTokenFormat  = errors.New("Invalid token format")
	errTokenInvalid = errors.New("Invalid token")
	errTokenClaims  = errors.New("Invalid token claims")
	errTokenSubject = errors.New("Invalid user ID in token")
)

// RequestLogger writes one record per request. Server errors log at error
// level and client errors at warn.
func RequestLogger(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", args...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	}
}

// AuthMiddleware returns a Gin middleware for authentication
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, err := parseBearer(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    "UNAUTHORIZED",
				Message: err.Error(),
			})
			return
		}

		// Set user ID in the context
		c.Set(ctxUserID, userID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies staff when a valid token is sent and
// lets anonymous requests through. Kiosk and counter devices may run
// without a session.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if userID, role, err := parseBearer(c); err == nil {
				c.Set(ctxUserID, userID)
				c.Set(ctxRole, role)
			}
		}
		c.Next()
	}
}

// RequireRole rejects authenticated users without the given role.
// Must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Status:  "error",
				Code:    "FORBIDDEN",
				Message: "Insufficient permissions",
			})
			return
		}
		c.Next()
	}
}

// CORSMiddleware lets browser-based scanners on other origins call the API
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// parseBearer validates the Authorization header and returns the subject
// and role claims.
func parseBearer(c *gin.Context) (string, string, error) {
	// Get the JWT token from the Authorization header
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "", errNoToken
	}

	// Check if the Authorization header starts with "Bearer "
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "", errTokenFormat
	}

	tokenString := parts[1]

	// Parse the JWT token
	jwtSecret := c.MustGet("jwtSecret").([]byte)
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return jwtSecret, nil
	})

	if err != nil || !token.Valid {
		return "", "", errTokenInvalid
	}

	// Extract claims from the token
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errTokenClaims
	}

	// Get user ID from the token claims
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", "", errTokenSubject
	}

	role, _ := claims["role"].(string)
	return userID, role, nil
}
