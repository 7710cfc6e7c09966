// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heimursaga/api/internal/platform/apperr"
	"github.com/heimursaga/api/internal/platform/dberr"
	"github.com/heimursaga/api/internal/platform/sec"
	"github.com/heimursaga/api/internal/users/auth"
)

// In-memory repository fakes mirroring the Postgres/Redis contract
// semantics, shared by the service, abuse-filter, and HTTP tests.

// # Users

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*auth.User

	failUpdateHash bool
}

func newMemUsers() *memUsers {
	return &memUsers{rows: make(map[int64]*auth.User)}
}

func (m *memUsers) Create(_ context.Context, user *auth.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.Email == user.Email {
			return 0, apperr.Forbidden("email is already in use").WithCode(auth.CodeEmailInUse)
		}
		if row.Username == user.Username {
			return 0, apperr.Forbidden("username is already in use").WithCode(auth.CodeUsernameInUse)
		}
	}

	m.nextID++
	stored := *user
	stored.ID = m.nextID
	stored.CreatedAt = time.Now()
	m.rows[stored.ID] = &stored
	return stored.ID, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == email {
			copied := *row
			return &copied, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (m *memUsers) FindByLogin(_ context.Context, login string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if (row.Email == login || row.Username == login) && !row.IsBlocked {
			copied := *row
			return &copied, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, dberr.ErrNotFound
}

func (m *memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, userID int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdateHash {
		return apperr.Internal(io.ErrUnexpectedEOF)
	}
	row, ok := m.rows[userID]
	if !ok {
		return dberr.ErrNotFound
	}
	row.PasswordHash = passwordHash
	return nil
}

func (m *memUsers) setEmailVerified(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[userID]; ok {
		row.IsEmailVerified = true
	}
}

func (m *memUsers) hashOf(userID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[userID].PasswordHash
}

// # Sessions

type memSessions struct {
	mu    sync.Mutex
	rows  []*auth.Session
	users *memUsers
}

func newMemSessions(users *memUsers) *memSessions {
	return &memSessions{users: users}
}

// Create mirrors the Postgres semantics exactly: the uniqueness guard keys
// on the is_expired flag alone (like the partial index), so time-expired
// rows must be flag-expired first or they would block the insert.
func (m *memSessions) Create(_ context.Context, session *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.Sid == session.Sid && !row.IsExpired && !row.ExpiresAt.After(time.Now()) {
			row.IsExpired = true
			row.ExpiresAt = time.Now()
		}
	}

	for _, row := range m.rows {
		if row.Sid == session.Sid && !row.IsExpired {
			return apperr.Conflict("session already active")
		}
	}

	stored := *session
	stored.CreatedAt = time.Now()
	m.rows = append(m.rows, &stored)
	return nil
}

func (m *memSessions) FindActive(ctx context.Context, sid string) (*auth.Session, *auth.User, error) {
	m.mu.Lock()
	var found *auth.Session
	for _, row := range m.rows {
		if row.Sid == sid && !row.IsExpired && row.ExpiresAt.After(time.Now()) {
			copied := *row
			found = &copied
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		return nil, nil, nil
	}

	user, err := m.users.FindByID(ctx, found.UserID)
	if err != nil {
		return nil, nil, nil
	}
	return found, user, nil
}

func (m *memSessions) Expire(_ context.Context, sid string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var affected int64
	for _, row := range m.rows {
		if row.Sid == sid {
			row.IsExpired = true
			row.ExpiresAt = time.Now()
			affected++
		}
	}
	return affected, nil
}

// # Verifications

type memVerifications struct {
	mu    sync.Mutex
	rows  map[string]*auth.EmailVerification
	users *memUsers
}

func newMemVerifications(users *memUsers) *memVerifications {
	return &memVerifications{rows: make(map[string]*auth.EmailVerification), users: users}
}

func (m *memVerifications) Create(_ context.Context, verification *auth.EmailVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *verification
	stored.CreatedAt = time.Now()
	m.rows[stored.Token] = &stored
	return nil
}

func (m *memVerifications) FindActive(_ context.Context, token string) (*auth.EmailVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[token]
	if !ok || row.IsExpired || !row.ExpiresAt.After(time.Now()) {
		return nil, dberr.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (m *memVerifications) CountActiveByEmail(_ context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, row := range m.rows {
		if row.Email == email && !row.IsExpired && row.ExpiresAt.After(time.Now()) {
			count++
		}
	}
	return count, nil
}

// consume mimics the transactional conditional UPDATE: a token that is
// missing, expired, or already consumed yields NotFound.
func (m *memVerifications) consume(token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[token]
	if !ok || row.IsExpired || !row.ExpiresAt.After(time.Now()) {
		return "", apperr.NotFound("Token")
	}
	row.IsExpired = true
	row.ExpiresAt = time.Now()
	return row.Email, nil
}

func (m *memVerifications) ConsumeForPasswordUpdate(ctx context.Context, token, newPasswordHash string) error {
	email, err := m.consume(token)
	if err != nil {
		return err
	}
	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	return m.users.UpdatePasswordHash(ctx, user.ID, newPasswordHash)
}

func (m *memVerifications) ConsumeForEmailVerification(ctx context.Context, token string) error {
	email, err := m.consume(token)
	if err != nil {
		return err
	}
	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	m.users.setEmailVerified(user.ID)
	return nil
}

// # Velocity

type velocityEntry struct {
	localPart string
	prefix    string
	at        time.Time
}

type memVelocity struct {
	mu      sync.Mutex
	entries []velocityEntry
}

func (m *memVelocity) TrackSignup(_ context.Context, emailLocalPart, usernamePrefix string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, velocityEntry{localPart: emailLocalPart, prefix: usernamePrefix, at: at})
	return nil
}

func (m *memVelocity) CountLocalPartMatches(_ context.Context, candidateLocalPart string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-window)

	var count int64
	for _, entry := range m.entries {
		if entry.at.Before(cutoff) || len(entry.localPart) <= 3 {
			continue
		}
		fragment := entry.localPart[:len(entry.localPart)-3]
		if strings.Contains(candidateLocalPart, fragment) {
			count++
		}
	}
	return count, nil
}

func (m *memVelocity) CountUsernamePrefixHits(_ context.Context, prefix string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-window)

	var count int64
	for _, entry := range m.entries {
		if !entry.at.Before(cutoff) && entry.prefix == prefix {
			count++
		}
	}
	return count, nil
}

// # Emitter & Captcha

type recordedEvent struct {
	name    string
	payload map[string]any
}

type memEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *memEmitter) Trigger(_ context.Context, event string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, _ := payload.(map[string]any)
	m.events = append(m.events, recordedEvent{name: event, payload: fields})
}

// lastLink digs the most recent link payload out for a given event name.
func (m *memEmitter) lastLink(event string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].name == event {
			link, _ := m.events[i].payload["link"].(string)
			return link
		}
	}
	return ""
}

func (m *memEmitter) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.events))
	for _, event := range m.events {
		names = append(names, event.name)
	}
	return names
}

type stubCaptcha struct {
	enabled bool
	accept  bool
}

func (s *stubCaptcha) Enabled() bool { return s.enabled }

func (s *stubCaptcha) Verify(context.Context, string, string) (bool, error) {
	return s.accept, nil
}

// # Harness

type testEnv struct {
	service       *auth.Service
	users         *memUsers
	sessions      *memSessions
	verifications *memVerifications
	velocity      *memVelocity
	emitter       *memEmitter
	captcha       *stubCaptcha
	tokens        *sec.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUsers()
	sessions := newMemSessions(users)
	verifications := newMemVerifications(users)
	velocity := &memVelocity{}
	emitter := &memEmitter{}
	captcha := &stubCaptcha{}

	tokens, err := sec.NewTokenService("test-secret", "heimursaga.com")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := auth.NewService(
		users,
		sessions,
		verifications,
		auth.NewAbuseFilter(velocity),
		captcha,
		tokens,
		emitter,
		logger,
		auth.ServiceConfig{
			BaseURL:                  "http://localhost:3000",
			VerificationRequestLimit: 3,
			IsDevelopment:            false,
		},
	)

	return &testEnv{
		service:       service,
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		velocity:      velocity,
		emitter:       emitter,
		captcha:       captcha,
		tokens:        tokens,
	}
}

// seedUser creates an account directly in the fake store.
func (env *testEnv) seedUser(t *testing.T, email, username, password string, legacy bool) *auth.User {
	t.Helper()

	passwordHash := sec.LegacyHashForTesting(password)
	if !legacy {
		var err error
		passwordHash, err = sec.HashPassword(password)
		require.NoError(t, err)
	}

	user := &auth.User{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         sec.RoleUser,
	}
	id, err := env.users.Create(context.Background(), user)
	require.NoError(t, err)
	user.ID = id
	return user
}

// tokenFromLink pulls the token query parameter off an emitted link.
func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	_, token, found := strings.Cut(link, "token=")
	require.True(t, found, "link %q carries no token", link)
	return token
}
