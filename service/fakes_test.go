package service

import (
	"fmt"
	"sync"
	"time"

	"greengate/config"
	"greengate/entity"
	"greengate/repository"
)

// testConfig returns a config with the production defaults and test
// secrets, without touching the environment.
func testConfig() *config.Config {
	return &config.Config{
		Secrets: config.Secrets{
			EncryptionSecret: "0123456789abcdef0123456789abcdef",
			TokenSecret:      "fedcba9876543210fedcba9876543210",
		},
		SessionToken: config.SessionToken{ExpirationTime: time.Hour},
		OTP: config.OTP{
			Length:         6,
			ExpirationTime: 5 * time.Minute,
			MaxAttempts:    3,
		},
		Registration: config.Registration{
			TTL:        30 * time.Minute,
			MinimumAge: 18,
		},
		RateLimit: config.RateLimit{
			SendMaxRequests:    5,
			SendWindow:         time.Hour,
			ResendCooldown:     60 * time.Second,
			VerifyMaxRequests:  10,
			VerifyWindow:       10 * time.Minute,
			RegisterMaxPerHour: 10,
			AdminMaxPerHour:    30,
		},
	}
}

// fakeOTPRepo is an in-memory OTPRepository with the same conditional
// update semantics as the SQL implementation.
type fakeOTPRepo struct {
	mu     sync.Mutex
	nextID int
	tokens []*entity.OTPToken
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{nextID: 1}
}

func (f *fakeOTPRepo) IssueReplacing(otp *entity.OTPToken) (*entity.OTPToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	for _, t := range f.tokens {
		if t.PhoneNumber == otp.PhoneNumber && t.Purpose == otp.Purpose && !t.Consumed {
			t.Consumed = true
			at := now
			t.ConsumedAt = &at
		}
	}

	stored := *otp
	stored.ID = f.nextID
	f.nextID++
	stored.CreatedAt = now
	stored.AttemptsUsed = 0
	stored.Consumed = false
	f.tokens = append(f.tokens, &stored)

	created := stored
	return &created, nil
}

func (f *fakeOTPRepo) GetActive(phoneNumber string, purpose entity.OTPPurpose) (*entity.OTPToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var latest *entity.OTPToken
	for _, t := range f.tokens {
		if t.PhoneNumber == phoneNumber && t.Purpose == purpose && !t.Consumed {
			if latest == nil || t.ID > latest.ID {
				latest = t
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeOTPRepo) IncrementAttempts(id int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.tokens {
		if t.ID == id && !t.Consumed {
			t.AttemptsUsed++
			return t.AttemptsUsed, nil
		}
	}
	return 0, repository.ErrTokenConsumed
}

func (f *fakeOTPRepo) MarkConsumed(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.tokens {
		if t.ID == id && !t.Consumed {
			t.Consumed = true
			at := time.Now()
			t.ConsumedAt = &at
			return nil
		}
	}
	return repository.ErrTokenConsumed
}

func (f *fakeOTPRepo) Invalidate(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.tokens {
		if t.ID == id && !t.Consumed {
			t.Consumed = true
			at := time.Now()
			t.ConsumedAt = &at
		}
	}
	return nil
}

func (f *fakeOTPRepo) DeleteExpired() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	var kept []*entity.OTPToken
	var deleted int64
	for _, t := range f.tokens {
		if t.ExpiresAt.Before(now) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	f.tokens = kept
	return deleted, nil
}

// activeCode returns the code of the live token for (phone, purpose).
// Tests read it here since no API response ever carries it.
func (f *fakeOTPRepo) activeCode(phoneNumber string, purpose entity.OTPPurpose) string {
	t, _ := f.GetActive(phoneNumber, purpose)
	if t == nil {
		return ""
	}
	return t.Code
}

// expireActive backdates the live token for (phone, purpose).
func (f *fakeOTPRepo) expireActive(phoneNumber string, purpose entity.OTPPurpose) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.tokens {
		if t.PhoneNumber == phoneNumber && t.Purpose == purpose && !t.Consumed {
			t.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}
}

// fakeRegistrationRepo is an in-memory RegistrationRepository mirroring
// the guarded-update semantics of the SQL implementation.
type fakeRegistrationRepo struct {
	mu   sync.Mutex
	regs map[string]*entity.PendingRegistration
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{regs: make(map[string]*entity.PendingRegistration)}
}

func (f *fakeRegistrationRepo) Create(reg *entity.PendingRegistration) (*entity.PendingRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := *reg
	stored.CreatedAt = time.Now()
	stored.OTPVerified = false
	stored.Finalized = false
	f.regs[stored.ID] = &stored

	created := stored
	return &created, nil
}

func (f *fakeRegistrationRepo) GetByID(id string) (*entity.PendingRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reg, ok := f.regs[id]
	if !ok {
		return nil, nil
	}
	copied := *reg
	return &copied, nil
}

func (f *fakeRegistrationRepo) SetPersonalInfo(reg *entity.PendingRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.regs[reg.ID]
	if !ok || stored.CurrentStep != entity.StepPersonalInfo || stored.Finalized {
		return fmt.Errorf("pending registration not in expected step")
	}
	stored.FirstName = reg.FirstName
	stored.LastName = reg.LastName
	stored.PhoneNumber = reg.PhoneNumber
	stored.Email = reg.Email
	stored.CurrentStep = reg.CurrentStep
	return nil
}

func (f *fakeRegistrationRepo) AdvanceStep(id string, from, to entity.RegistrationStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.regs[id]
	if !ok || stored.CurrentStep != from || stored.Finalized {
		return fmt.Errorf("pending registration not in expected step")
	}
	stored.CurrentStep = to
	return nil
}

func (f *fakeRegistrationRepo) MarkOTPVerified(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.regs[id]
	if !ok || stored.CurrentStep != entity.StepMobileVerification || stored.Finalized {
		return fmt.Errorf("pending registration not in expected step")
	}
	stored.OTPVerified = true
	at := time.Now()
	stored.OTPVerifiedAt = &at
	stored.CurrentStep = entity.StepTerms
	return nil
}

func (f *fakeRegistrationRepo) ClaimFinalize(id string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.regs[id]
	if !ok || stored.Finalized || !stored.OTPVerified || !stored.ExpiresAt.After(now) {
		return false, nil
	}
	stored.Finalized = true
	return true, nil
}

func (f *fakeRegistrationRepo) DeleteExpired() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	var deleted int64
	for id, reg := range f.regs {
		if reg.ExpiresAt.Before(now) {
			delete(f.regs, id)
			deleted++
		}
	}
	return deleted, nil
}

// mutate applies fn to the stored registration, for tests that need to
// force a state the public operations would not produce.
func (f *fakeRegistrationRepo) mutate(id string, fn func(*entity.PendingRegistration)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if reg, ok := f.regs[id]; ok {
		fn(reg)
	}
}

// fakeSubscriberRepo is an in-memory SubscriberRepository.
type fakeSubscriberRepo struct {
	mu          sync.Mutex
	nextID      int
	subscribers []*entity.Subscriber
}

func newFakeSubscriberRepo() *fakeSubscriberRepo {
	return &fakeSubscriberRepo{nextID: 1}
}

func (f *fakeSubscriberRepo) Create(subscriber *entity.Subscriber) (*entity.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.subscribers {
		if s.PhoneNumber == subscriber.PhoneNumber {
			return nil, fmt.Errorf("duplicate key value violates unique constraint")
		}
	}

	stored := *subscriber
	stored.ID = f.nextID
	f.nextID++
	now := time.Now()
	stored.RegisteredAt = now
	stored.LastLoginAt = &now
	stored.IsActive = true
	f.subscribers = append(f.subscribers, &stored)

	created := stored
	return &created, nil
}

func (f *fakeSubscriberRepo) GetByID(id int) (*entity.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.subscribers {
		if s.ID == id && s.IsActive {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSubscriberRepo) GetByPhoneNumber(phoneNumber string) (*entity.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.subscribers {
		if s.PhoneNumber == phoneNumber && s.IsActive {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSubscriberRepo) UpdateLastLogin(phoneNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.subscribers {
		if s.PhoneNumber == phoneNumber && s.IsActive {
			now := time.Now()
			s.LastLoginAt = &now
			return nil
		}
	}
	return fmt.Errorf("subscriber not found or inactive")
}

func (f *fakeSubscriberRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// fakeRateLimitRepo is an in-memory fixed-window counter with the same
// increment-then-expire contract as the Redis implementation.
type fakeRateLimitRepo struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
}

type rateBucket struct {
	count   int64
	resetAt time.Time
}

func newFakeRateLimitRepo() *fakeRateLimitRepo {
	return &fakeRateLimitRepo{buckets: make(map[string]*rateBucket)}
}

func (f *fakeRateLimitRepo) Increment(key string, window time.Duration) (int64, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	bucket, ok := f.buckets[key]
	if !ok || !bucket.resetAt.After(now) {
		bucket = &rateBucket{resetAt: now.Add(window)}
		f.buckets[key] = bucket
	}
	bucket.count++
	return bucket.count, bucket.resetAt, nil
}

// expire forces the bucket's window to be over.
func (f *fakeRateLimitRepo) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if bucket, ok := f.buckets[key]; ok {
		bucket.resetAt = time.Now().Add(-time.Second)
	}
}

// captureSender records dispatched messages.
type captureSender struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureSender) Send(phoneNumber, message string, channel entity.MessageChannel) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, message)
	return nil
}
