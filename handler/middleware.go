package handler

import (
	"net/http"
	"strings"

	"greengate/entity"
	"greengate/pkg/logger"
	"greengate/service"

	"github.com/labstack/echo/v4"
)

// StaffAuthMiddleware creates a session authentication middleware for the
// admin routes. Everything outside /api/v1/admin is public; admin routes
// require a valid session token carrying the staff role.
func StaffAuthMiddleware(sessionService service.SessionService, logger *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !strings.HasPrefix(path, "/api/v1/admin") {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				logger.Warnw("Missing Authorization header", "path", path)
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error":   "AUTH_TOKEN_INVALID",
					"details": "Missing Authorization header",
				})
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				logger.Warnw("Invalid Authorization header format", "path", path)
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error":   "AUTH_TOKEN_INVALID",
					"details": "Invalid Authorization header format",
				})
			}

			tokenString := authHeader[7:] // Remove "Bearer " prefix

			claims, err := sessionService.Validate(tokenString)
			if err != nil {
				logger.Warnw("Invalid session token", "path", path, "error", err)
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error":   "AUTH_TOKEN_INVALID",
					"details": "Invalid or expired token",
				})
			}

			if claims.Role != entity.RoleStaff {
				logger.Warnw("Non-staff session on admin route",
					"path", path,
					"subscriber_id", claims.SubscriberID)
				return c.JSON(http.StatusForbidden, map[string]interface{}{
					"error":   "STAFF_ONLY",
					"details": "Staff role required",
				})
			}

			// Store session claims in context
			c.Set("session", claims)

			logger.Debugw("Staff session authenticated", "subscriber_id", claims.SubscriberID, "path", path)
			return next(c)
		}
	}
}

// CORSMiddleware creates a CORS middleware
func CORSMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Access-Control-Allow-Origin", "*")
			c.Response().Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Response().Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

			if c.Request().Method == "OPTIONS" {
				return c.NoContent(http.StatusNoContent)
			}

			return next(c)
		}
	}
}

// RequestLoggerMiddleware creates a request logging middleware
func RequestLoggerMiddleware(logger *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			logger.Infow("HTTP Request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"remote_addr", c.RealIP(),
				"user_agent", c.Request().UserAgent(),
			)

			err := next(c)

			logger.Infow("HTTP Response",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
			)

			return err
		}
	}
}
