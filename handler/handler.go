package handler

import (
	"greengate/config"
	"greengate/controller"
	_ "greengate/docs" // Import for swagger docs
	"greengate/pkg/logger"
	"greengate/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// RegisterRoutes registers all HTTP routes and middleware
func RegisterRoutes(
	e *echo.Echo,
	otpController *controller.OTPController,
	regController *controller.RegistrationController,
	adminController *controller.AdminController,
	healthController *controller.HealthController,
	sessionService service.SessionService,
	cfg *config.Config,
	logger *logger.Logger,
) {
	// Add common middleware
	e.Use(middleware.Recover())
	e.Use(CORSMiddleware())
	e.Use(RequestLoggerMiddleware(logger))
	e.Use(StaffAuthMiddleware(sessionService, logger))

	// System endpoints
	e.GET("/health", healthController.HealthCheck)
	e.GET("/", healthController.ServiceInfo)

	// Swagger documentation
	if cfg.Swagger.Enabled {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
		e.GET("/docs/*", echoSwagger.WrapHandler)
	}

	// API v1 group
	v1 := e.Group("/api/v1")

	// Login OTP routes (public)
	otpGroup := v1.Group("/otp")
	otpGroup.POST("/send", otpController.SendOTP)
	otpGroup.POST("/verify", otpController.VerifyOTP)

	// Self-service registration routes (public)
	regGroup := v1.Group("/registration")
	regGroup.POST("/identity", regController.SubmitIdentity)
	regGroup.POST("/:id/personal-info", regController.SubmitPersonalInfo)
	regGroup.POST("/:id/verify-mobile", regController.VerifyMobile)
	regGroup.POST("/:id/resend-code", regController.ResendCode)
	regGroup.POST("/:id/terms", regController.AcceptTerms)
	regGroup.POST("/:id/finalize", regController.Finalize)

	// Assisted registration routes (staff only)
	adminGroup := v1.Group("/admin")
	adminGroup.POST("/registrations", adminController.Initiate)
	adminGroup.GET("/registrations/:id/status", adminController.Status)
	adminGroup.POST("/registrations/:id/finalize", adminController.Finalize)
}
