package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"greengate/entity"
	"greengate/pkg/logger"
	"greengate/service"
	"greengate/validator"
)

// OTPController handles the login OTP HTTP endpoints
type OTPController struct {
	otpService     service.OTPService
	sessionService service.SessionService
	validator      *validator.Validator
	logger         *logger.Logger
}

// NewOTPController creates a new OTP controller instance
func NewOTPController(otpService service.OTPService, sessionService service.SessionService, validator *validator.Validator, logger *logger.Logger) *OTPController {
	return &OTPController{
		otpService:     otpService,
		sessionService: sessionService,
		validator:      validator,
		logger:         logger,
	}
}

// SendOTP handles login code generation and sending
// @Summary Send login OTP
// @Description Generate and send a login code to the provided phone number
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body entity.SendOTPRequest true "Send OTP Request"
// @Success 200 {object} entity.OTPResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /otp/send [post]
func (c *OTPController) SendOTP(ctx echo.Context) error {
	var req entity.SendOTPRequest

	if err := ctx.Bind(&req); err != nil {
		c.logger.Errorw("Failed to bind request", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "INVALID_REQUEST",
			"details": "Invalid request format",
		})
	}

	if err := c.validator.ValidateStruct(&req); err != nil {
		c.logger.Warnw("Validation failed", "phone_number", req.PhoneNumber, "error", err)
		return respondError(ctx, c.logger, err)
	}

	response, err := c.otpService.Issue(req.PhoneNumber, entity.PurposeLogin, req.Channel)
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusOK, response)
}

// VerifyOTP handles login code verification and session issuance
// @Summary Verify login OTP
// @Description Verify a login code and issue a session token
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body entity.VerifyOTPRequest true "Verify OTP Request"
// @Success 200 {object} entity.AuthResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /otp/verify [post]
func (c *OTPController) VerifyOTP(ctx echo.Context) error {
	var req entity.VerifyOTPRequest

	if err := ctx.Bind(&req); err != nil {
		c.logger.Errorw("Failed to bind request", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "INVALID_REQUEST",
			"details": "Invalid request format",
		})
	}

	if err := c.validator.ValidateStruct(&req); err != nil {
		c.logger.Warnw("Validation failed", "phone_number", req.PhoneNumber, "error", err)
		return respondError(ctx, c.logger, err)
	}

	subscriber, err := c.otpService.VerifyLogin(req.PhoneNumber, req.Code)
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	auth, err := c.sessionService.Issue(subscriber)
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusOK, auth)
}
