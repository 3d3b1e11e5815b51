package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"greengate/entity"
	"greengate/pkg/logger"
	"greengate/service"
	"greengate/validator"
)

// RegistrationController handles the self-service registration flow
type RegistrationController struct {
	regService service.RegistrationService
	validator  *validator.Validator
	logger     *logger.Logger
}

// NewRegistrationController creates a new registration controller instance
func NewRegistrationController(regService service.RegistrationService, validator *validator.Validator, logger *logger.Logger) *RegistrationController {
	return &RegistrationController{
		regService: regService,
		validator:  validator,
		logger:     logger,
	}
}

// SubmitIdentity handles the first registration step
// @Summary Submit identity
// @Description Validate the national ID number and age attestation, opening a pending registration
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body entity.IdentityRequest true "Identity Request"
// @Success 201 {object} entity.RegistrationResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /registration/identity [post]
func (c *RegistrationController) SubmitIdentity(ctx echo.Context) error {
	var req entity.IdentityRequest

	if err := ctx.Bind(&req); err != nil {
		c.logger.Errorw("Failed to bind request", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "INVALID_REQUEST",
			"details": "Invalid request format",
		})
	}

	if err := c.validator.ValidateStruct(&req); err != nil {
		return respondError(ctx, c.logger, err)
	}

	clientID := service.ClientFingerprint(ctx.RealIP(), ctx.Request().UserAgent())

	response, err := c.regService.SubmitIdentity(&req, clientID)
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusCreated, response)
}

// SubmitPersonalInfo handles the second registration step
// @Summary Submit personal info
// @Description Store name and contact details and send the verification code
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param request body entity.PersonalInfoRequest true "Personal Info Request"
// @Success 200 {object} entity.RegistrationResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /registration/{id}/personal-info [post]
func (c *RegistrationController) SubmitPersonalInfo(ctx echo.Context) error {
	var req entity.PersonalInfoRequest

	if err := ctx.Bind(&req); err != nil {
		c.logger.Errorw("Failed to bind request", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "INVALID_REQUEST",
			"details": "Invalid request format",
		})
	}

	if err := c.validator.ValidateStruct(&req); err != nil {
		return respondError(ctx, c.logger, err)
	}

	response, err := c.regService.SubmitPersonalInfo(ctx.Param("id"), &req)
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusOK, response)
}

// VerifyMobile handles the mobile verification step
// @Summary Verify mobile number
// @Description Check the code the subscriber received and record phone possession
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param request body entity.VerifyMobileRequest true "Verify Mobile Request"
// @Success 200 {object} entity.VerifyMobileResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /registration/{id}/verify-mobile [post]
func (c *RegistrationController) VerifyMobile(ctx echo.Context) error {
	var req entity.VerifyMobileRequest

	if err := ctx.Bind(&req); err != nil {
		c.logger.Errorw("Failed to bind request", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "INVALID_REQUEST",
			"details": "Invalid request format",
		})
	}

	if err := c.validator.ValidateStruct(&req); err != nil {
		return respondError(ctx, c.logger, err)
	}

	response, err := c.regService.VerifyMobile(ctx.Param("id"), req.Code)
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusOK, response)
}

// ResendCode re-issues the verification code
// @Summary Resend verification code
// @Description Issue a fresh code for a registration waiting on mobile verification
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param request body entity.ResendCodeRequest false "Resend Code Request"
// @Success 200 {object} entity.RegistrationResponse
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /registration/{id}/resend-code [post]
func (c *RegistrationController) ResendCode(ctx echo.Context) error {
	var req entity.ResendCodeRequest

	if err := ctx.Bind(&req); err != nil {
		c.logger.Errorw("Failed to bind request", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "INVALID_REQUEST",
			"details": "Invalid request format",
		})
	}

	response, err := c.regService.ResendCode(ctx.Param("id"), req.Channel)
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusOK, response)
}

// AcceptTerms handles the consent step
// @Summary Accept terms
// @Description Record terms of service and privacy policy consents
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param request body entity.TermsRequest true "Terms Request"
// @Success 200 {object} entity.RegistrationResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /registration/{id}/terms [post]
func (c *RegistrationController) AcceptTerms(ctx echo.Context) error {
	var req entity.TermsRequest

	if err := ctx.Bind(&req); err != nil {
		c.logger.Errorw("Failed to bind request", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "INVALID_REQUEST",
			"details": "Invalid request format",
		})
	}

	response, err := c.regService.AcceptTerms(ctx.Param("id"), &req)
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusOK, response)
}

// Finalize completes the registration and creates the account
// @Summary Finalize registration
// @Description Create the durable account and issue a session token
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Success 201 {object} entity.AuthResponse
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /registration/{id}/finalize [post]
func (c *RegistrationController) Finalize(ctx echo.Context) error {
	auth, err := c.regService.Finalize(ctx.Param("id"))
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusCreated, auth)
}
