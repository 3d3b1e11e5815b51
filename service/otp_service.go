package service

import (
	"errors"
	"fmt"
	"time"

	"greengate/config"
	"greengate/entity"
	"greengate/messaging"
	"greengate/pkg/apperr"
	"greengate/pkg/crypto"
	"greengate/pkg/logger"
	"greengate/repository"
)

// OTPService interface defines the OTP token manager: issuance and
// verification of short-lived codes bound to a phone number and purpose.
type OTPService interface {
	Issue(phoneNumber string, purpose entity.OTPPurpose, channel entity.MessageChannel) (*entity.OTPResponse, error)
	Verify(phoneNumber string, purpose entity.OTPPurpose, code string) error
	VerifyLogin(phoneNumber, code string) (*entity.Subscriber, error)
	AttemptsUsed(phoneNumber string, purpose entity.OTPPurpose) (int, bool, error)
	CleanupExpired() error
}

// otpService implements OTPService interface
type otpService struct {
	otpRepo        repository.OTPRepository
	subscriberRepo repository.SubscriberRepository
	regRepo        repository.RegistrationRepository
	rateLimiter    RateLimitService
	sender         messaging.Sender
	cfg            *config.Config
	logger         *logger.Logger
}

// NewOTPService creates a new OTP service instance
func NewOTPService(
	otpRepo repository.OTPRepository,
	subscriberRepo repository.SubscriberRepository,
	regRepo repository.RegistrationRepository,
	rateLimiter RateLimitService,
	sender messaging.Sender,
	cfg *config.Config,
	logger *logger.Logger,
) OTPService {
	return &otpService{
		otpRepo:        otpRepo,
		subscriberRepo: subscriberRepo,
		regRepo:        regRepo,
		rateLimiter:    rateLimiter,
		sender:         sender,
		cfg:            cfg,
		logger:         logger,
	}
}

// Issue generates a fresh code for (phone, purpose), invalidating any
// prior live token for the pair, and dispatches it on the requested
// channel. Dispatch is fire-and-forget: the token is verifiable as soon
// as this returns, even if the outbound message is still in flight.
func (s *otpService) Issue(phoneNumber string, purpose entity.OTPPurpose, channel entity.MessageChannel) (*entity.OTPResponse, error) {
	if !purpose.Valid() {
		return nil, apperr.Validation("INVALID_PURPOSE", fmt.Sprintf("unknown OTP purpose %q", purpose))
	}
	if channel == "" {
		channel = entity.ChannelSMS
	}

	// Send ceiling plus resend cooldown, both keyed by phone. The
	// cooldown is enforced here, server-side, not left to client pacing.
	result, err := s.rateLimiter.CheckTiers(phoneNumber, []Tier{
		{Action: ActionOTPSend, Limit: s.cfg.RateLimit.SendMaxRequests, Window: s.cfg.RateLimit.SendWindow},
		{Action: ActionOTPResend, Limit: 1, Window: s.cfg.RateLimit.ResendCooldown},
	})
	if err != nil {
		s.logger.Errorw("Failed to check rate limit", "phone_number", phoneNumber, "error", err)
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !result.Allowed {
		return nil, apperr.RateLimited("OTP_SEND_LIMITED",
			"too many code requests, wait before requesting another", result.ResetAt)
	}

	code, err := crypto.GenerateOTP(s.cfg.OTP.Length)
	if err != nil {
		s.logger.Errorw("Failed to generate OTP code", "error", err)
		return nil, fmt.Errorf("failed to generate OTP code: %w", err)
	}

	// Opaque issuance receipt for support correlation. Unlike the code it
	// is safe to log and return.
	reference, err := crypto.GenerateToken(16)
	if err != nil {
		s.logger.Errorw("Failed to generate issuance reference", "error", err)
		return nil, fmt.Errorf("failed to generate issuance reference: %w", err)
	}

	token := &entity.OTPToken{
		PhoneNumber: phoneNumber,
		Purpose:     purpose,
		Code:        code,
		ExpiresAt:   time.Now().Add(s.cfg.OTP.ExpirationTime),
	}

	created, err := s.otpRepo.IssueReplacing(token)
	if err != nil {
		s.logger.Errorw("Failed to store OTP token", "phone_number", phoneNumber, "error", err)
		return nil, fmt.Errorf("failed to store OTP token: %w", err)
	}

	go s.dispatch(phoneNumber, code, channel)

	s.logger.Infow("OTP issued",
		"phone_number", phoneNumber,
		"purpose", purpose,
		"reference", reference,
		"expires_at", created.ExpiresAt)

	return &entity.OTPResponse{
		Message:     "Verification code sent",
		PhoneNumber: phoneNumber,
		Reference:   reference,
		ExpiresAt:   created.ExpiresAt,
	}, nil
}

// Verify checks a submitted code against the live token for
// (phone, purpose). Every failure is a typed reason: no active token,
// expired, attempt cap hit, or mismatch with the remaining budget.
func (s *otpService) Verify(phoneNumber string, purpose entity.OTPPurpose, code string) error {
	result, err := s.rateLimiter.Check(ActionOTPVerify, phoneNumber,
		s.cfg.RateLimit.VerifyMaxRequests, s.cfg.RateLimit.VerifyWindow)
	if err != nil {
		s.logger.Errorw("Failed to check rate limit", "phone_number", phoneNumber, "error", err)
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !result.Allowed {
		return apperr.RateLimited("OTP_VERIFY_LIMITED",
			"too many verification attempts, wait before trying again", result.ResetAt)
	}

	token, err := s.otpRepo.GetActive(phoneNumber, purpose)
	if err != nil {
		s.logger.Errorw("Failed to load OTP token", "phone_number", phoneNumber, "error", err)
		return fmt.Errorf("failed to load OTP token: %w", err)
	}
	if token == nil {
		return apperr.NotFound("NO_ACTIVE_TOKEN", "no active code for this number, request a new one")
	}

	if time.Now().After(token.ExpiresAt) {
		return apperr.Expired("OTP_EXPIRED", "code expired, request a new one")
	}

	if token.AttemptsUsed >= s.cfg.OTP.MaxAttempts {
		// Kill the token so a fresh issue is required, not a retry.
		if err := s.otpRepo.Invalidate(token.ID); err != nil {
			s.logger.Errorw("Failed to invalidate exhausted OTP token", "otp_id", token.ID, "error", err)
		}
		return apperr.AttemptsExceeded("TOO_MANY_ATTEMPTS", "too many attempts, request a new code")
	}

	if !crypto.ConstantTimeEquals(code, token.Code) {
		attempts, err := s.otpRepo.IncrementAttempts(token.ID)
		if err != nil {
			// The token was superseded or consumed between the load and
			// the update; same outcome as having no live token at all.
			if errors.Is(err, repository.ErrTokenConsumed) {
				return apperr.NotFound("NO_ACTIVE_TOKEN", "no active code for this number, request a new one")
			}
			s.logger.Errorw("Failed to record failed attempt", "otp_id", token.ID, "error", err)
			return fmt.Errorf("failed to record failed attempt: %w", err)
		}

		if attempts >= s.cfg.OTP.MaxAttempts {
			if err := s.otpRepo.Invalidate(token.ID); err != nil {
				s.logger.Errorw("Failed to invalidate exhausted OTP token", "otp_id", token.ID, "error", err)
			}
			return apperr.AttemptsExceeded("TOO_MANY_ATTEMPTS", "too many attempts, request a new code")
		}

		return &apperr.Error{
			Kind:      apperr.KindValidation,
			Code:      "CODE_MISMATCH",
			Message:   "wrong code",
			Remaining: s.cfg.OTP.MaxAttempts - attempts,
		}
	}

	// One-shot claim; a concurrent verify or a racing re-issue loses here.
	if err := s.otpRepo.MarkConsumed(token.ID); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) {
			s.logger.Warnw("OTP token consumed concurrently", "otp_id", token.ID)
			return apperr.NotFound("NO_ACTIVE_TOKEN", "no active code for this number, request a new one")
		}
		s.logger.Errorw("Failed to consume OTP token", "otp_id", token.ID, "error", err)
		return fmt.Errorf("failed to consume OTP token: %w", err)
	}

	s.logger.Infow("OTP verified", "phone_number", phoneNumber, "purpose", purpose)
	return nil
}

// VerifyLogin verifies a LOGIN-purpose code and returns the subscriber
// account it authenticates.
func (s *otpService) VerifyLogin(phoneNumber, code string) (*entity.Subscriber, error) {
	if err := s.Verify(phoneNumber, entity.PurposeLogin, code); err != nil {
		return nil, err
	}

	subscriber, err := s.subscriberRepo.GetByPhoneNumber(phoneNumber)
	if err != nil {
		s.logger.Errorw("Failed to load subscriber", "phone_number", phoneNumber, "error", err)
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	if subscriber == nil {
		return nil, apperr.NotFound("NO_ACCOUNT", "no account for this number, register first")
	}

	if err := s.subscriberRepo.UpdateLastLogin(phoneNumber); err != nil {
		s.logger.Errorw("Failed to update last login", "phone_number", phoneNumber, "error", err)
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	s.logger.Infow("Subscriber logged in", "subscriber_id", subscriber.ID, "phone_number", phoneNumber)
	return subscriber, nil
}

// AttemptsUsed reports the failed-attempt count on the live token for
// (phone, purpose), and whether such a token exists. Used by the admin
// poll endpoint; the code itself is never exposed.
func (s *otpService) AttemptsUsed(phoneNumber string, purpose entity.OTPPurpose) (int, bool, error) {
	token, err := s.otpRepo.GetActive(phoneNumber, purpose)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load OTP token: %w", err)
	}
	if token == nil {
		return 0, false, nil
	}
	return token.AttemptsUsed, true, nil
}

// CleanupExpired removes expired OTP tokens and registrations past
// their TTL.
func (s *otpService) CleanupExpired() error {
	deleted, err := s.otpRepo.DeleteExpired()
	if err != nil {
		s.logger.Errorw("Failed to delete expired OTP tokens", "error", err)
		return fmt.Errorf("failed to delete expired OTP tokens: %w", err)
	}
	if deleted > 0 {
		s.logger.Debugw("Deleted expired OTP tokens", "count", deleted)
	}

	expired, err := s.regRepo.DeleteExpired()
	if err != nil {
		s.logger.Errorw("Failed to delete expired registrations", "error", err)
		return fmt.Errorf("failed to delete expired registrations: %w", err)
	}
	if expired > 0 {
		s.logger.Debugw("Deleted expired registrations", "count", expired)
	}

	return nil
}

// dispatch delivers the code on the messaging channel. Failures are
// logged, never surfaced: the token is already live and verifiable.
func (s *otpService) dispatch(phoneNumber, code string, channel entity.MessageChannel) {
	message := fmt.Sprintf("Your GreenGate verification code is %s. It expires in %d minutes.",
		code, int(s.cfg.OTP.ExpirationTime.Minutes()))

	if err := s.sender.Send(phoneNumber, message, channel); err != nil {
		s.logger.Errorw("Failed to dispatch OTP message", "phone_number", phoneNumber, "channel", channel, "error", err)
	}
}
