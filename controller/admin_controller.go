package controller

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"greengate/entity"
	"greengate/pkg/logger"
	"greengate/service"
	"greengate/validator"
)

// AdminController handles the staff-assisted registration endpoints
type AdminController struct {
	adminService service.AdminService
	regService   service.RegistrationService
	validator    *validator.Validator
	logger       *logger.Logger
}

// NewAdminController creates a new admin controller instance
func NewAdminController(adminService service.AdminService, regService service.RegistrationService, validator *validator.Validator, logger *logger.Logger) *AdminController {
	return &AdminController{
		adminService: adminService,
		regService:   regService,
		validator:    validator,
		logger:       logger,
	}
}

// staffID derives the rate-limit identity of the authenticated staff
// member from the session claims the middleware stored.
func staffID(ctx echo.Context) string {
	claims, ok := ctx.Get("session").(*service.SessionClaims)
	if !ok {
		return "unknown-staff"
	}
	return fmt.Sprintf("staff:%d", claims.SubscriberID)
}

// Initiate starts an assisted registration on behalf of a customer
// @Summary Initiate assisted registration
// @Description Submit identity and personal details in one call and send the code to the customer's phone
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body entity.AdminInitiateRequest true "Assisted Registration Request"
// @Success 201 {object} entity.RegistrationResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /admin/registrations [post]
func (c *AdminController) Initiate(ctx echo.Context) error {
	var req entity.AdminInitiateRequest

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

	response, err := c.adminService.Initiate(&req, staffID(ctx))
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusCreated, response)
}

// Status reports the verification state of an assisted registration
// @Summary Poll assisted registration status
// @Description Report whether the customer has verified their phone; the code is never included
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Registration ID"
// @Success 200 {object} entity.AdminStatusResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /admin/registrations/{id}/status [get]
func (c *AdminController) Status(ctx echo.Context) error {
	response, err := c.adminService.Poll(ctx.Param("id"))
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusOK, response)
}

// Finalize completes an assisted registration
// @Summary Finalize assisted registration
// @Description Create the customer's account once the phone is verified
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Registration ID"
// @Success 201 {object} entity.AuthResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /admin/registrations/{id}/finalize [post]
func (c *AdminController) Finalize(ctx echo.Context) error {
	auth, err := c.regService.Finalize(ctx.Param("id"))
	if err != nil {
		return respondError(ctx, c.logger, err)
	}

	return ctx.JSON(http.StatusCreated, auth)
}
