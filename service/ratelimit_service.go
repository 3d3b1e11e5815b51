package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"greengate/entity"
	"greengate/pkg/logger"
	"greengate/repository"
)

// Rate-limited action names. The bucket key is action + client identity.
const (
	ActionOTPSend       = "otp-send"
	ActionOTPResend     = "otp-resend"
	ActionOTPVerify     = "otp-verify"
	ActionRegister      = "register"
	ActionAdminInitiate = "admin-initiate"
)

// Tier is one ceiling on an action. Callers compose several tiers on the
// same action (e.g. a per-minute cooldown plus an hourly cap).
type Tier struct {
	Action string
	Limit  int
	Window time.Duration
}

// RateLimitService interface defines rate limit checks gating OTP and
// registration operations.
type RateLimitService interface {
	Check(action, clientID string, limit int, window time.Duration) (*entity.RateLimitResult, error)
	CheckTiers(clientID string, tiers []Tier) (*entity.RateLimitResult, error)
}

// rateLimitService implements RateLimitService interface
type rateLimitService struct {
	repo   repository.RateLimitRepository
	logger *logger.Logger
}

// NewRateLimitService creates a new rate limit service instance
func NewRateLimitService(repo repository.RateLimitRepository, logger *logger.Logger) RateLimitService {
	return &rateLimitService{
		repo:   repo,
		logger: logger,
	}
}

// Check runs a single-tier limit check for (action, clientID).
func (s *rateLimitService) Check(action, clientID string, limit int, window time.Duration) (*entity.RateLimitResult, error) {
	key := fmt.Sprintf("%s:%s", action, clientID)

	count, resetAt, err := s.repo.Increment(key, window)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	result := &entity.RateLimitResult{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   resetAt,
		Limit:     limit,
	}

	if !result.Allowed {
		s.logger.Warnw("Rate limit exceeded",
			"action", action,
			"client_id", clientID,
			"limit", limit,
			"reset_at", resetAt.Format(time.RFC3339))
	}

	return result, nil
}

// CheckTiers runs every tier and takes the most restrictive outcome: any
// denial denies the whole check, reporting the latest reset time among
// denying tiers.
func (s *rateLimitService) CheckTiers(clientID string, tiers []Tier) (*entity.RateLimitResult, error) {
	var denied *entity.RateLimitResult
	var tightest *entity.RateLimitResult

	for _, tier := range tiers {
		result, err := s.Check(tier.Action, clientID, tier.Limit, tier.Window)
		if err != nil {
			return nil, err
		}

		if !result.Allowed {
			if denied == nil || result.ResetAt.After(denied.ResetAt) {
				denied = result
			}
			continue
		}

		if tightest == nil || result.Remaining < tightest.Remaining {
			tightest = result
		}
	}

	if denied != nil {
		return denied, nil
	}
	if tightest == nil {
		return &entity.RateLimitResult{Allowed: true}, nil
	}
	return tightest, nil
}

// ClientFingerprint derives a stable client identity from network origin
// and client-presented metadata. An unidentifiable client still gets
// rate-limited under a shared fallback identity rather than exempted.
func ClientFingerprint(ip, userAgent string) string {
	if ip == "" && userAgent == "" {
		return "anonymous"
	}

	h := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(h[:8])
}
