package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greengate/config"
	"greengate/entity"
	"greengate/pkg/apperr"
	"greengate/pkg/logger"
)

// wrongCode never matches a generated code: generated codes are exactly
// cfg.OTP.Length digits.
const wrongCode = "0000000"

func newOTPServiceForTest(cfg *config.Config) (OTPService, *fakeOTPRepo, *fakeSubscriberRepo) {
	otpRepo := newFakeOTPRepo()
	subRepo := newFakeSubscriberRepo()
	regRepo := newFakeRegistrationRepo()
	log := logger.NewNop()
	rateLimiter := NewRateLimitService(newFakeRateLimitRepo(), log)
	svc := NewOTPService(otpRepo, subRepo, regRepo, rateLimiter, &captureSender{}, cfg, log)
	return svc, otpRepo, subRepo
}

func TestIssueGeneratesCodeOfConfiguredLength(t *testing.T) {
	cfg := testConfig()
	svc, otpRepo, _ := newOTPServiceForTest(cfg)

	resp, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, "+27821234567", resp.PhoneNumber)

	code := otpRepo.activeCode("+27821234567", entity.PurposeLogin)
	assert.Len(t, code, cfg.OTP.Length)
}

func TestIssueReturnsOpaqueReference(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.ResendCooldown = 0
	svc, otpRepo, _ := newOTPServiceForTest(cfg)

	first, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)
	assert.Len(t, first.Reference, 32)

	second, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)
	assert.NotEqual(t, first.Reference, second.Reference)

	// The reference is a receipt, never a credential.
	code := otpRepo.activeCode("+27821234567", entity.PurposeLogin)
	assert.NotEqual(t, code, second.Reference)
	err = svc.Verify("+27821234567", entity.PurposeLogin, second.Reference)
	require.Error(t, err)
}

func TestIssueRejectsUnknownPurpose(t *testing.T) {
	svc, _, _ := newOTPServiceForTest(testConfig())

	_, err := svc.Issue("+27821234567", entity.OTPPurpose("PASSWORD_RESET"), entity.ChannelSMS)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestIssueSupersedesPriorToken(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.ResendCooldown = 0
	svc, otpRepo, _ := newOTPServiceForTest(cfg)

	_, err := svc.Issue("+27821234567", entity.PurposeRegistration, entity.ChannelSMS)
	require.NoError(t, err)
	oldCode := otpRepo.activeCode("+27821234567", entity.PurposeRegistration)

	_, err = svc.Issue("+27821234567", entity.PurposeRegistration, entity.ChannelSMS)
	require.NoError(t, err)
	newCode := otpRepo.activeCode("+27821234567", entity.PurposeRegistration)

	// The old code may only succeed if it happens to equal the new one.
	if oldCode != newCode {
		err = svc.Verify("+27821234567", entity.PurposeRegistration, oldCode)
		require.Error(t, err)
	}

	require.NoError(t, svc.Verify("+27821234567", entity.PurposeRegistration, newCode))
}

func TestVerifyWithoutActiveToken(t *testing.T) {
	svc, _, _ := newOTPServiceForTest(testConfig())

	err := svc.Verify("+27821234567", entity.PurposeLogin, "123456")
	require.Error(t, err)

	e, ok := apperr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, e.Kind)
	assert.Equal(t, "NO_ACTIVE_TOKEN", e.Code)
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, otpRepo, _ := newOTPServiceForTest(testConfig())

	_, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)
	code := otpRepo.activeCode("+27821234567", entity.PurposeLogin)

	otpRepo.expireActive("+27821234567", entity.PurposeLogin)

	err = svc.Verify("+27821234567", entity.PurposeLogin, code)
	require.Error(t, err)

	e, ok := apperr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindExpired, e.Kind)
	assert.Equal(t, "OTP_EXPIRED", e.Code)
}

func TestVerifyAttemptCap(t *testing.T) {
	cfg := testConfig()
	svc, otpRepo, _ := newOTPServiceForTest(cfg)

	_, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)
	code := otpRepo.activeCode("+27821234567", entity.PurposeLogin)

	// First two failures report the shrinking attempt budget.
	for want := cfg.OTP.MaxAttempts - 1; want >= 1; want-- {
		err = svc.Verify("+27821234567", entity.PurposeLogin, wrongCode)
		require.Error(t, err)

		e, ok := apperr.AsError(err)
		require.True(t, ok)
		assert.Equal(t, "CODE_MISMATCH", e.Code)
		assert.Equal(t, want, e.Remaining)
	}

	// The final failure exhausts the budget and kills the token.
	err = svc.Verify("+27821234567", entity.PurposeLogin, wrongCode)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAttemptsExceeded, apperr.KindOf(err))

	// Even the correct code is dead now; a fresh issue is required.
	err = svc.Verify("+27821234567", entity.PurposeLogin, code)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestVerifyConsumesTokenOnce(t *testing.T) {
	svc, otpRepo, _ := newOTPServiceForTest(testConfig())

	_, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)
	code := otpRepo.activeCode("+27821234567", entity.PurposeLogin)

	require.NoError(t, svc.Verify("+27821234567", entity.PurposeLogin, code))

	// Replaying the same code must not verify a second time.
	err = svc.Verify("+27821234567", entity.PurposeLogin, code)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// supersedeOnReadOTPRepo invalidates each token right after handing it
// out, so the verify's follow-up update always loses the race, the way a
// concurrent re-issue between the load and the update would make it.
type supersedeOnReadOTPRepo struct {
	*fakeOTPRepo
}

func (r *supersedeOnReadOTPRepo) GetActive(phoneNumber string, purpose entity.OTPPurpose) (*entity.OTPToken, error) {
	token, err := r.fakeOTPRepo.GetActive(phoneNumber, purpose)
	if token != nil {
		_ = r.fakeOTPRepo.Invalidate(token.ID)
	}
	return token, err
}

func TestVerifyRacingSupersedeReportsNoActiveToken(t *testing.T) {
	cfg := testConfig()
	otpRepo := newFakeOTPRepo()
	log := logger.NewNop()
	rateLimiter := NewRateLimitService(newFakeRateLimitRepo(), log)
	svc := NewOTPService(&supersedeOnReadOTPRepo{otpRepo}, newFakeSubscriberRepo(),
		newFakeRegistrationRepo(), rateLimiter, &captureSender{}, cfg, log)

	_, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)

	err = svc.Verify("+27821234567", entity.PurposeLogin, wrongCode)
	require.Error(t, err)

	e, ok := apperr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, e.Kind)
	assert.Equal(t, "NO_ACTIVE_TOKEN", e.Code)
}

func TestVerifyScopedToPurpose(t *testing.T) {
	svc, otpRepo, _ := newOTPServiceForTest(testConfig())

	_, err := svc.Issue("+27821234567", entity.PurposeRegistration, entity.ChannelSMS)
	require.NoError(t, err)
	code := otpRepo.activeCode("+27821234567", entity.PurposeRegistration)

	// A registration code never verifies as a login code.
	err = svc.Verify("+27821234567", entity.PurposeLogin, code)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestIssueRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.ResendCooldown = 0
	cfg.RateLimit.SendMaxRequests = 2
	svc, _, _ := newOTPServiceForTest(cfg)

	for i := 0; i < 2; i++ {
		_, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
		require.NoError(t, err)
	}

	_, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.Error(t, err)

	e, ok := apperr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRateLimited, e.Kind)
	assert.Equal(t, "OTP_SEND_LIMITED", e.Code)
	require.NotNil(t, e.ResetAt)
}

func TestIssueResendCooldown(t *testing.T) {
	svc, _, _ := newOTPServiceForTest(testConfig())

	_, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)

	// A second request inside the cooldown window is denied server-side.
	_, err = svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.Error(t, err)
	assert.Equal(t, apperr.KindRateLimited, apperr.KindOf(err))
}

func TestVerifyLogin(t *testing.T) {
	svc, otpRepo, subRepo := newOTPServiceForTest(testConfig())

	_, err := subRepo.Create(&entity.Subscriber{
		FirstName:   "Thandi",
		LastName:    "Nkosi",
		PhoneNumber: "+27821234567",
		Role:        entity.RoleCustomer,
	})
	require.NoError(t, err)

	_, err = svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)
	code := otpRepo.activeCode("+27821234567", entity.PurposeLogin)

	subscriber, err := svc.VerifyLogin("+27821234567", code)
	require.NoError(t, err)
	assert.Equal(t, "+27821234567", subscriber.PhoneNumber)
}

func TestVerifyLoginWithoutAccount(t *testing.T) {
	svc, otpRepo, _ := newOTPServiceForTest(testConfig())

	_, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)
	code := otpRepo.activeCode("+27821234567", entity.PurposeLogin)

	_, err = svc.VerifyLogin("+27821234567", code)
	require.Error(t, err)

	e, ok := apperr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "NO_ACCOUNT", e.Code)
}

func TestCleanupExpired(t *testing.T) {
	svc, otpRepo, _ := newOTPServiceForTest(testConfig())

	_, err := svc.Issue("+27821234567", entity.PurposeLogin, entity.ChannelSMS)
	require.NoError(t, err)
	otpRepo.expireActive("+27821234567", entity.PurposeLogin)

	require.NoError(t, svc.CleanupExpired())

	token, err := otpRepo.GetActive("+27821234567", entity.PurposeLogin)
	require.NoError(t, err)
	assert.Nil(t, token)
}
