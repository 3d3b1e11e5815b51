package service

import (
	"fmt"
	"time"

	"greengate/config"
	"greengate/entity"
	"greengate/pkg/apperr"
	"greengate/pkg/crypto"
	"greengate/pkg/logger"
	"greengate/repository"
)

// AdminService interface defines the staff-assisted registration
// workflow: the staff member supplies identity and contact data in one
// call, the customer proves phone possession on their own device, and
// the staff UI polls status until it may finalize.
type AdminService interface {
	Initiate(req *entity.AdminInitiateRequest, staffID string) (*entity.RegistrationResponse, error)
	Poll(id string) (*entity.AdminStatusResponse, error)
}

// adminService implements AdminService interface
type adminService struct {
	regRepo        repository.RegistrationRepository
	subscriberRepo repository.SubscriberRepository
	otpService     OTPService
	rateLimiter    RateLimitService
	cipher         *crypto.Cipher
	cfg            *config.Config
	logger         *logger.Logger
}

// NewAdminService creates a new admin service instance
func NewAdminService(
	regRepo repository.RegistrationRepository,
	subscriberRepo repository.SubscriberRepository,
	otpService OTPService,
	rateLimiter RateLimitService,
	cipher *crypto.Cipher,
	cfg *config.Config,
	logger *logger.Logger,
) AdminService {
	return &adminService{
		regRepo:        regRepo,
		subscriberRepo: subscriberRepo,
		otpService:     otpService,
		rateLimiter:    rateLimiter,
		cipher:         cipher,
		cfg:            cfg,
		logger:         logger,
	}
}

// Initiate runs the identity and personal-info steps in one call and
// immediately issues an OTP to the customer's phone. The returned
// registration starts at mobile verification, waiting on the customer.
func (s *adminService) Initiate(req *entity.AdminInitiateRequest, staffID string) (*entity.RegistrationResponse, error) {
	result, err := s.rateLimiter.Check(ActionAdminInitiate, staffID,
		s.cfg.RateLimit.AdminMaxPerHour, time.Hour)
	if err != nil {
		s.logger.Errorw("Failed to check rate limit", "staff_id", staffID, "error", err)
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !result.Allowed {
		return nil, apperr.RateLimited("ADMIN_INITIATE_LIMITED",
			"too many assisted registrations, wait before starting another", result.ResetAt)
	}

	existing, err := s.subscriberRepo.GetByPhoneNumber(req.PhoneNumber)
	if err != nil {
		s.logger.Errorw("Failed to check for existing account", "error", err)
		return nil, fmt.Errorf("failed to check for existing account: %w", err)
	}
	if existing != nil {
		return nil, apperr.DuplicateAccount("an account already exists for this number")
	}

	staged, err := stageIdentity(s.cipher, s.cfg, req.IDNumber, req.AgeAttested)
	if err != nil {
		return nil, err
	}

	staged.FirstName = req.FirstName
	staged.LastName = req.LastName
	staged.PhoneNumber = req.PhoneNumber
	staged.Email = optionalEmail(req.Email)
	staged.OTPPurpose = entity.PurposeAdminProxyRegistration
	staged.CurrentStep = entity.StepMobileVerification

	created, err := s.regRepo.Create(staged)
	if err != nil {
		s.logger.Errorw("Failed to create assisted registration", "error", err)
		return nil, fmt.Errorf("failed to create assisted registration: %w", err)
	}

	if _, err := s.otpService.Issue(req.PhoneNumber, entity.PurposeAdminProxyRegistration, req.Channel); err != nil {
		if _, ok := apperr.AsError(err); ok {
			return nil, err
		}
		s.logger.Errorw("Failed to issue assisted-registration OTP", "registration_id", created.ID, "error", err)
		return nil, fmt.Errorf("failed to issue assisted-registration OTP: %w", err)
	}

	s.logger.Infow("Assisted registration started",
		"registration_id", created.ID,
		"staff_id", staffID)

	return &entity.RegistrationResponse{
		ID:          created.ID,
		CurrentStep: created.CurrentStep,
		ExpiresAt:   created.ExpiresAt,
		Message:     "Verification code sent to the customer's phone",
	}, nil
}

// Poll reports the verification status of an assisted registration.
// The response carries status flags only; the OTP code never appears
// here. The staff UI stops polling once otp_verified is true or the
// registration has expired.
func (s *adminService) Poll(id string) (*entity.AdminStatusResponse, error) {
	reg, err := s.regRepo.GetByID(id)
	if err != nil {
		s.logger.Errorw("Failed to load registration", "registration_id", id, "error", err)
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	if reg == nil {
		return nil, apperr.NotFound("REGISTRATION_NOT_FOUND", "registration not found or expired")
	}

	attempts := 0
	if reg.OTPVerified {
		// The live token was consumed on success; attempts no longer matter.
	} else {
		used, _, err := s.otpService.AttemptsUsed(reg.PhoneNumber, reg.OTPPurpose)
		if err != nil {
			s.logger.Errorw("Failed to load OTP attempts", "registration_id", id, "error", err)
			return nil, fmt.Errorf("failed to load OTP attempts: %w", err)
		}
		attempts = used
	}

	return &entity.AdminStatusResponse{
		ID:           reg.ID,
		CurrentStep:  reg.CurrentStep,
		OTPSent:      true,
		OTPVerified:  reg.OTPVerified,
		AttemptsUsed: attempts,
		ExpiresAt:    reg.ExpiresAt,
	}, nil
}
