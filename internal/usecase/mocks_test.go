package usecase

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/infra/config"
	"github.com/finledger/finledger-backend/internal/infra/security"
	"github.com/finledger/finledger-backend/internal/repository"
)

const strongTestPassword = "Tr4verse!Quiet#Moon"

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{Name: "finledger", Env: "test"},
		Auth: config.AuthSettings{
			MaxSessionsPerUser: 3,
			LockoutThreshold:   3,
			LockoutDuration:    15 * time.Minute,
			OTPEnabled:         false,
			OTPLength:          6,
			OTPTTL:             5 * time.Minute,
			VerificationTTL:    24 * time.Hour,
			ResetTokenTTL:      30 * time.Minute,
			ResetSessionTTL:    10 * time.Minute,
		},
		JWT: config.JWTSettings{
			Issuer:          "finledger-test",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
	}
}

func newSignerForTest(t *testing.T) *security.TokenSigner {
	t.Helper()

	keys, err := security.NewEphemeralKeyProvider("test-key")
	if err != nil {
		t.Fatalf("create key provider: %v", err)
	}
	signer, err := security.NewTokenSigner(keys, "finledger-test", 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	return signer
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User

	updatePasswordCalls int
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.users {
		if user.Email == domain.NormalizeEmail(email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updatePasswordCalls++
	user, ok := f.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.TokenVersion++
	user.LastPasswordChange = changedAt
	return user.TokenVersion, nil
}

func (f *fakeUserRepo) add(user *domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
}

type fakePendingStore struct {
	mu      sync.Mutex
	pending map[string]domain.PendingRegistration
	users   *fakeUserRepo

	upsertCalls int
}

func newFakePendingStore(users *fakeUserRepo) *fakePendingStore {
	return &fakePendingStore{pending: make(map[string]domain.PendingRegistration), users: users}
}

func (f *fakePendingStore) Upsert(_ context.Context, pending domain.PendingRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upsertCalls++
	f.pending[pending.Email] = pending
	return nil
}

func (f *fakePendingStore) GetByEmail(_ context.Context, email string) (*domain.PendingRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pending, ok := f.pending[domain.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := pending
	return &copied, nil
}

func (f *fakePendingStore) Promote(ctx context.Context, email string, user domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := domain.NormalizeEmail(email)
	if _, ok := f.pending[key]; !ok {
		return repository.ErrNotFound
	}
	if _, err := f.users.GetByEmail(ctx, key); err == nil {
		return repository.ErrDuplicate
	}

	copied := user
	f.users.add(&copied)
	delete(f.pending, key)
	return nil
}

func (f *fakePendingStore) Purge(_ context.Context, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, pending := range f.pending {
		if pending.IsExpired(now) {
			delete(f.pending, key)
		}
	}
	return nil
}

type fakeSessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]domain.UserSession
	now      func() time.Time

	registerErr error
}

func newFakeSessionRegistry() *fakeSessionRegistry {
	return &fakeSessionRegistry{
		sessions: make(map[string]domain.UserSession),
		now:      time.Now,
	}
}

func (f *fakeSessionRegistry) Register(_ context.Context, session domain.UserSession, maxPerUser int) error {
	if f.registerErr != nil {
		return f.registerErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for jti, existing := range f.sessions {
		if existing.UserID == session.UserID && !existing.IsActive(now) {
			delete(f.sessions, jti)
		}
	}

	f.sessions[session.JTI] = session

	if maxPerUser <= 0 {
		return nil
	}
	owned := make([]domain.UserSession, 0)
	for _, existing := range f.sessions {
		if existing.UserID == session.UserID {
			owned = append(owned, existing)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.Before(owned[j].CreatedAt) })
	for len(owned) > maxPerUser {
		delete(f.sessions, owned[0].JTI)
		owned = owned[1:]
	}
	return nil
}

func (f *fakeSessionRegistry) IsActive(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[jti]
	if !ok {
		return false, nil
	}
	return session.IsActive(f.now()), nil
}

func (f *fakeSessionRegistry) Revoke(_ context.Context, jti string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.sessions, jti)
	return nil
}

func (f *fakeSessionRegistry) RevokeAll(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	jtis := make([]string, 0)
	for jti, session := range f.sessions {
		if session.UserID == userID {
			jtis = append(jtis, jti)
			delete(f.sessions, jti)
		}
	}
	return jtis, nil
}

func (f *fakeSessionRegistry) Purge(_ context.Context, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for jti, session := range f.sessions {
		if !session.IsActive(now) {
			delete(f.sessions, jti)
		}
	}
	return nil
}

func (f *fakeSessionRegistry) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, session := range f.sessions {
		if session.UserID == userID {
			n++
		}
	}
	return n
}

type fakeUserTokens struct {
	mu     sync.Mutex
	tokens map[string]domain.UserToken
	now    func() time.Time

	issueCalls int
}

func newFakeUserTokens() *fakeUserTokens {
	return &fakeUserTokens{tokens: make(map[string]domain.UserToken), now: time.Now}
}

func (f *fakeUserTokens) Issue(_ context.Context, token domain.UserToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.issueCalls++
	for id, existing := range f.tokens {
		if existing.UserID == token.UserID && existing.Kind == token.Kind && existing.UsedAt == nil {
			used := f.now()
			existing.UsedAt = &used
			f.tokens[id] = existing
		}
	}
	f.tokens[token.ID] = token
	return nil
}

func (f *fakeUserTokens) GetActiveByHash(_ context.Context, kind domain.UserTokenKind, tokenHash string) (*domain.UserToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, token := range f.tokens {
		if token.Kind == kind && token.TokenHash == tokenHash && token.IsActive(f.now()) {
			copied := token
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserTokens) Consume(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	token, ok := f.tokens[id]
	if !ok || token.UsedAt != nil {
		return repository.ErrNotFound
	}
	token.UsedAt = &at
	f.tokens[id] = token
	return nil
}

func (f *fakeUserTokens) Purge(_ context.Context, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, token := range f.tokens {
		if token.UsedAt != nil || token.IsExpired(now) {
			delete(f.tokens, id)
		}
	}
	return nil
}

type fakeResetSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.PasswordResetSession
	now      func() time.Time
}

func newFakeResetSessions() *fakeResetSessions {
	return &fakeResetSessions{sessions: make(map[string]domain.PasswordResetSession), now: time.Now}
}

func (f *fakeResetSessions) Create(_ context.Context, session domain.PasswordResetSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for jti, existing := range f.sessions {
		if existing.UserID == session.UserID && existing.ConsumedAt == nil {
			existing.Consume(now)
			f.sessions[jti] = existing
		}
	}
	f.sessions[session.JTI] = session
	return nil
}

func (f *fakeResetSessions) GetActive(_ context.Context, jti string) (*domain.PasswordResetSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[jti]
	if !ok || !session.IsActive(f.now()) {
		return nil, repository.ErrNotFound
	}
	copied := session
	return &copied, nil
}

func (f *fakeResetSessions) Consume(_ context.Context, jti string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[jti]
	if !ok || !session.Consume(at) {
		return repository.ErrNotFound
	}
	f.sessions[jti] = session
	return nil
}

func (f *fakeResetSessions) Purge(_ context.Context, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for jti, session := range f.sessions {
		if session.IsExpired(now) || session.ConsumedAt != nil {
			delete(f.sessions, jti)
		}
	}
	return nil
}

type fakeMailSender struct {
	mu sync.Mutex

	verifyCalls int
	otpCalls    int
	resetCalls  int
	lastEmail   string
	lastCode    string
	err         error
}

func (f *fakeMailSender) SendVerifyEmail(_ context.Context, email, code string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.lastEmail = email
	f.lastCode = code
	return f.err
}

func (f *fakeMailSender) SendOtpEmail(_ context.Context, email, code string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpCalls++
	f.lastEmail = email
	f.lastCode = code
	return f.err
}

func (f *fakeMailSender) SendResetEmail(_ context.Context, email, code string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	f.lastEmail = email
	f.lastCode = code
	return f.err
}

type fakeEventPublisher struct {
	mu sync.Mutex

	registeredCalls      int
	registeredEvent      domain.UserRegisteredEvent
	passwordChangedCalls int
	passwordChangedEvent domain.PasswordChangedEvent
	err                  error
}

func (f *fakeEventPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registeredCalls++
	f.registeredEvent = event
	return f.err
}

func (f *fakeEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwordChangedCalls++
	f.passwordChangedEvent = event
	return f.err
}

type staticCodes struct {
	code string
}

func (s staticCodes) Generate() (string, error) {
	return s.code, nil
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}
