package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"greengate/config"
	"greengate/entity"
	"greengate/pkg/apperr"
	"greengate/pkg/crypto"
	"greengate/pkg/logger"
	"greengate/pkg/said"
	"greengate/repository"
)

// RegistrationService interface drives a subscriber through the ordered
// registration steps: identity, personal info, mobile verification,
// terms, finalize. Steps are linear; out-of-order submissions are
// rejected, already-validated steps are never mutated backwards.
type RegistrationService interface {
	SubmitIdentity(req *entity.IdentityRequest, clientID string) (*entity.RegistrationResponse, error)
	SubmitPersonalInfo(id string, req *entity.PersonalInfoRequest) (*entity.RegistrationResponse, error)
	VerifyMobile(id, code string) (*entity.VerifyMobileResponse, error)
	ResendCode(id string, channel entity.MessageChannel) (*entity.RegistrationResponse, error)
	AcceptTerms(id string, req *entity.TermsRequest) (*entity.RegistrationResponse, error)
	Finalize(id string) (*entity.AuthResponse, error)
}

// registrationService implements RegistrationService interface
type registrationService struct {
	regRepo        repository.RegistrationRepository
	subscriberRepo repository.SubscriberRepository
	otpService     OTPService
	sessionService SessionService
	rateLimiter    RateLimitService
	cipher         *crypto.Cipher
	cfg            *config.Config
	logger         *logger.Logger
}

// NewRegistrationService creates a new registration service instance
func NewRegistrationService(
	regRepo repository.RegistrationRepository,
	subscriberRepo repository.SubscriberRepository,
	otpService OTPService,
	sessionService SessionService,
	rateLimiter RateLimitService,
	cipher *crypto.Cipher,
	cfg *config.Config,
	logger *logger.Logger,
) RegistrationService {
	return &registrationService{
		regRepo:        regRepo,
		subscriberRepo: subscriberRepo,
		otpService:     otpService,
		sessionService: sessionService,
		rateLimiter:    rateLimiter,
		cipher:         cipher,
		cfg:            cfg,
		logger:         logger,
	}
}

// SubmitIdentity validates the national ID number and age attestation,
// and opens a pending registration. No account exists yet; the record
// holds the encrypted ID and derived birth date for the later steps.
func (s *registrationService) SubmitIdentity(req *entity.IdentityRequest, clientID string) (*entity.RegistrationResponse, error) {
	result, err := s.rateLimiter.Check(ActionRegister, clientID,
		s.cfg.RateLimit.RegisterMaxPerHour, time.Hour)
	if err != nil {
		s.logger.Errorw("Failed to check rate limit", "client_id", clientID, "error", err)
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !result.Allowed {
		return nil, apperr.RateLimited("REGISTER_LIMITED",
			"too many registration attempts, wait before trying again", result.ResetAt)
	}

	reg, err := stageIdentity(s.cipher, s.cfg, req.IDNumber, req.AgeAttested)
	if err != nil {
		return nil, err
	}

	reg.OTPPurpose = entity.PurposeRegistration
	reg.CurrentStep = entity.StepIdentity.Next()

	created, err := s.regRepo.Create(reg)
	if err != nil {
		s.logger.Errorw("Failed to create pending registration", "error", err)
		return nil, fmt.Errorf("failed to create pending registration: %w", err)
	}

	s.logger.Infow("Registration started", "registration_id", created.ID)

	return &entity.RegistrationResponse{
		ID:          created.ID,
		CurrentStep: created.CurrentStep,
		ExpiresAt:   created.ExpiresAt,
		Message:     "Identity verified, continue with personal details",
	}, nil
}

// SubmitPersonalInfo stores name and contact details, rejects phone
// numbers that already map to an account, and issues the registration
// OTP. On success the flow advances to mobile verification.
func (s *registrationService) SubmitPersonalInfo(id string, req *entity.PersonalInfoRequest) (*entity.RegistrationResponse, error) {
	reg, err := s.loadLive(id)
	if err != nil {
		return nil, err
	}
	if reg.CurrentStep != entity.StepPersonalInfo {
		return nil, apperr.Conflict("INVALID_STEP",
			fmt.Sprintf("registration expects step %s", reg.CurrentStep))
	}

	existing, err := s.subscriberRepo.GetByPhoneNumber(req.PhoneNumber)
	if err != nil {
		s.logger.Errorw("Failed to check for existing account", "error", err)
		return nil, fmt.Errorf("failed to check for existing account: %w", err)
	}
	if existing != nil {
		return nil, apperr.DuplicateAccount("an account already exists for this number, sign in instead")
	}

	reg.FirstName = req.FirstName
	reg.LastName = req.LastName
	reg.PhoneNumber = req.PhoneNumber
	reg.Email = optionalEmail(req.Email)
	reg.CurrentStep = entity.StepPersonalInfo.Next()

	if err := s.regRepo.SetPersonalInfo(reg); err != nil {
		s.logger.Errorw("Failed to store personal info", "registration_id", id, "error", err)
		return nil, apperr.Conflict("INVALID_STEP", "registration step already completed")
	}

	if _, err := s.otpService.Issue(req.PhoneNumber, entity.PurposeRegistration, req.Channel); err != nil {
		// The step already advanced; the subscriber can request a
		// resend once the limiter allows it.
		if _, ok := apperr.AsError(err); ok {
			return nil, err
		}
		s.logger.Errorw("Failed to issue registration OTP", "registration_id", id, "error", err)
		return nil, fmt.Errorf("failed to issue registration OTP: %w", err)
	}

	s.logger.Infow("Personal info accepted", "registration_id", id)

	return &entity.RegistrationResponse{
		ID:          reg.ID,
		CurrentStep: entity.StepPersonalInfo.Next(),
		ExpiresAt:   reg.ExpiresAt,
		Message:     "Verification code sent to your phone",
	}, nil
}

// VerifyMobile checks the submitted OTP for the registration's purpose
// and, on success, records the possession proof and advances to terms.
func (s *registrationService) VerifyMobile(id, code string) (*entity.VerifyMobileResponse, error) {
	reg, err := s.loadLive(id)
	if err != nil {
		return nil, err
	}
	if reg.CurrentStep != entity.StepMobileVerification {
		return nil, apperr.Conflict("INVALID_STEP",
			fmt.Sprintf("registration expects step %s", reg.CurrentStep))
	}

	if err := s.otpService.Verify(reg.PhoneNumber, reg.OTPPurpose, code); err != nil {
		return nil, err
	}

	if err := s.regRepo.MarkOTPVerified(id); err != nil {
		s.logger.Errorw("Failed to mark OTP verified", "registration_id", id, "error", err)
		return nil, apperr.Conflict("INVALID_STEP", "registration step already completed")
	}

	s.logger.Infow("Mobile verified", "registration_id", id)

	return &entity.VerifyMobileResponse{
		ID:          id,
		CurrentStep: entity.StepMobileVerification.Next(),
		Verified:    true,
		Message:     "Phone number verified",
	}, nil
}

// ResendCode issues a fresh OTP for a registration waiting on mobile
// verification. The limiter's resend cooldown applies.
func (s *registrationService) ResendCode(id string, channel entity.MessageChannel) (*entity.RegistrationResponse, error) {
	reg, err := s.loadLive(id)
	if err != nil {
		return nil, err
	}
	if reg.CurrentStep != entity.StepMobileVerification {
		return nil, apperr.Conflict("INVALID_STEP",
			fmt.Sprintf("registration expects step %s", reg.CurrentStep))
	}

	if _, err := s.otpService.Issue(reg.PhoneNumber, reg.OTPPurpose, channel); err != nil {
		return nil, err
	}

	return &entity.RegistrationResponse{
		ID:          reg.ID,
		CurrentStep: reg.CurrentStep,
		ExpiresAt:   reg.ExpiresAt,
		Message:     "New verification code sent",
	}, nil
}

// AcceptTerms requires both consents before the flow may finalize.
func (s *registrationService) AcceptTerms(id string, req *entity.TermsRequest) (*entity.RegistrationResponse, error) {
	reg, err := s.loadLive(id)
	if err != nil {
		return nil, err
	}
	if reg.CurrentStep != entity.StepTerms {
		return nil, apperr.Conflict("INVALID_STEP",
			fmt.Sprintf("registration expects step %s", reg.CurrentStep))
	}

	if !req.TermsAccepted || !req.PrivacyAccepted {
		return nil, apperr.Validation("CONSENT_REQUIRED",
			"terms of service and privacy policy must both be accepted")
	}

	if err := s.regRepo.AdvanceStep(id, entity.StepTerms, entity.StepTerms.Next()); err != nil {
		s.logger.Errorw("Failed to advance to complete", "registration_id", id, "error", err)
		return nil, apperr.Conflict("INVALID_STEP", "registration step already completed")
	}

	s.logger.Infow("Terms accepted", "registration_id", id)

	return &entity.RegistrationResponse{
		ID:          reg.ID,
		CurrentStep: entity.StepTerms.Next(),
		ExpiresAt:   reg.ExpiresAt,
		Message:     "Consents recorded, registration ready to finalize",
	}, nil
}

// Finalize re-checks the gating invariants, claims the registration
// exactly once, creates the durable account, and issues a session token.
// A second call for the same id reports ALREADY_FINALIZED, never a
// second account.
func (s *registrationService) Finalize(id string) (*entity.AuthResponse, error) {
	reg, err := s.regRepo.GetByID(id)
	if err != nil {
		s.logger.Errorw("Failed to load registration", "registration_id", id, "error", err)
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	if reg == nil {
		return nil, apperr.NotFound("REGISTRATION_NOT_FOUND", "registration not found or expired")
	}
	if reg.Finalized {
		return nil, apperr.Conflict("ALREADY_FINALIZED", "registration has already been finalized")
	}
	if reg.Expired(time.Now()) {
		return nil, apperr.Expired("REGISTRATION_EXPIRED", "registration window closed, start over")
	}
	if !reg.OTPVerified {
		return nil, apperr.Conflict("OTP_NOT_VERIFIED", "phone number has not been verified")
	}
	if reg.CurrentStep != entity.StepComplete {
		return nil, apperr.Conflict("INVALID_STEP",
			fmt.Sprintf("registration expects step %s", reg.CurrentStep))
	}

	claimed, err := s.regRepo.ClaimFinalize(id, time.Now())
	if err != nil {
		s.logger.Errorw("Failed to claim finalize", "registration_id", id, "error", err)
		return nil, fmt.Errorf("failed to claim finalize: %w", err)
	}
	if !claimed {
		// Lost the claim to a concurrent finalize, or expired between
		// the check above and the claim.
		current, err := s.regRepo.GetByID(id)
		if err == nil && current != nil && current.Finalized {
			return nil, apperr.Conflict("ALREADY_FINALIZED", "registration has already been finalized")
		}
		return nil, apperr.Expired("REGISTRATION_EXPIRED", "registration window closed, start over")
	}

	subscriber := &entity.Subscriber{
		FirstName:     reg.FirstName,
		LastName:      reg.LastName,
		PhoneNumber:   reg.PhoneNumber,
		Email:         reg.Email,
		NationalIDEnc: reg.NationalIDEnc,
		BirthDate:     reg.BirthDate,
		Role:          reg.Role,
	}

	created, err := s.subscriberRepo.Create(subscriber)
	if err != nil {
		s.logger.Errorw("Failed to create subscriber", "registration_id", id, "error", err)
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	auth, err := s.sessionService.Issue(created)
	if err != nil {
		return nil, err
	}

	// The finalized row stays until its TTL; cleanup purges it later.

	s.logger.Infow("Registration finalized",
		"registration_id", id,
		"subscriber_id", created.ID)

	return auth, nil
}

// stageIdentity validates the ID number and age gate and builds the
// initial pending registration record. Shared by the self-service and
// staff-assisted entry points.
func stageIdentity(cipher *crypto.Cipher, cfg *config.Config, idNumber string, ageAttested bool) (*entity.PendingRegistration, error) {
	if !ageAttested {
		return nil, apperr.Validation("AGE_NOT_ATTESTED", "age attestation is required")
	}

	identity, err := said.Parse(idNumber)
	if err != nil {
		return nil, apperr.Validation("INVALID_ID_NUMBER", err.Error())
	}

	if identity.AgeAt(time.Now()) < cfg.Registration.MinimumAge {
		return nil, &apperr.Error{
			Kind:    apperr.KindValidation,
			Code:    "AGE_RESTRICTED",
			Message: fmt.Sprintf("you must be at least %d years old", cfg.Registration.MinimumAge),
		}
	}

	encrypted, err := cipher.Encrypt(identity.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt ID number: %w", err)
	}

	return &entity.PendingRegistration{
		ID:            uuid.NewString(),
		NationalIDEnc: encrypted,
		BirthDate:     identity.BirthDate,
		Role:          entity.RoleCustomer,
		ExpiresAt:     time.Now().Add(cfg.Registration.TTL),
	}, nil
}

// loadLive loads a registration and rejects missing or expired records.
func (s *registrationService) loadLive(id string) (*entity.PendingRegistration, error) {
	reg, err := s.regRepo.GetByID(id)
	if err != nil {
		s.logger.Errorw("Failed to load registration", "registration_id", id, "error", err)
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	if reg == nil {
		return nil, apperr.NotFound("REGISTRATION_NOT_FOUND", "registration not found or expired")
	}
	if reg.Finalized {
		return nil, apperr.Conflict("ALREADY_FINALIZED", "registration has already been finalized")
	}
	if reg.Expired(time.Now()) {
		return nil, apperr.Expired("REGISTRATION_EXPIRED", "registration window closed, start over")
	}
	return reg, nil
}

// optionalEmail maps an empty form value to NULL.
func optionalEmail(email string) *string {
	if email == "" {
		return nil
	}
	return &email
}
