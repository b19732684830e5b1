package auth

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/safetrackhq/safetrack-backend/pkg/auth"
	"github.com/safetrackhq/safetrack-backend/pkg/config"
	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
	"github.com/safetrackhq/safetrack-backend/pkg/security"
)

type fakeAuthRepo struct {
	byStaffID map[string]*models.User
	byID      map[uuid.UUID]*models.User
	lastLogin map[uuid.UUID]int
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		byStaffID: make(map[string]*models.User),
		byID:      make(map[uuid.UUID]*models.User),
		lastLogin: make(map[uuid.UUID]int),
	}
}

func (f *fakeAuthRepo) add(user *models.User) {
	if user.StaffID != nil {
		f.byStaffID[*user.StaffID] = user
	}
	f.byID[user.ID] = user
}

func (f *fakeAuthRepo) FindByStaffID(_ context.Context, staffID string) (*models.User, error) {
	user, ok := f.byStaffID[staffID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeAuthRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeAuthRepo) UpdateLastLogin(_ context.Context, id uuid.UUID) error {
	f.lastLogin[id]++
	return nil
}

type fakeSessions struct {
	live map[string]bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{live: make(map[string]bool)}
}

func (f *fakeSessions) Register(_ context.Context, accessID string) error {
	f.live[accessID] = true
	return nil
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	delete(f.live, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "safetrack",
		ExpirationMinutes: 30,
	}
}

func passwordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func seedAdmin(t *testing.T, repo *fakeAuthRepo, staffID, password string, active bool) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, passwordConfig())
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		StaffID:      &staffID,
		FullName:     "Avery Admin",
		PasswordHash: &hash,
		Role:         enums.RoleAdmin,
		IsActive:     active,
	}
	repo.add(user)
	return user
}

func newTestService(t *testing.T, repo *fakeAuthRepo, sessions *fakeSessions) Service {
	t.Helper()
	svc, err := NewService(repo, sessions, testJWTConfig(), logger.New(logger.Options{Output: io.Discard}))
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func errCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	return typed.Code()
}

func TestLoginSuccess(t *testing.T) {
	repo := newFakeAuthRepo()
	sessions := newFakeSessions()
	user := seedAdmin(t, repo, "EMP-001", "correct horse battery", true)
	svc := newTestService(t, repo, sessions)

	result, err := svc.Login(context.Background(), "EMP-001", "correct horse battery")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.TokenType != "bearer" {
		t.Fatalf("unexpected token type %q", result.TokenType)
	}
	if result.User == nil || result.User.ID != user.ID {
		t.Fatalf("expected user payload in result")
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), result.AccessToken)
	if err != nil {
		t.Fatalf("parsing minted token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !sessions.live[claims.ID] {
		t.Fatalf("expected jti %q to be registered", claims.ID)
	}
	if repo.lastLogin[user.ID] != 1 {
		t.Fatalf("expected last login to be recorded once")
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	repo := newFakeAuthRepo()
	sessions := newFakeSessions()
	seedAdmin(t, repo, "EMP-001", "correct horse battery", true)
	seedAdmin(t, repo, "EMP-002", "another password", false)

	passwordless := &models.User{
		ID:       uuid.New(),
		StaffID:  strPtr("EMP-003"),
		FullName: "Bot Reporter",
		Role:     enums.RoleReporter,
		IsActive: true,
	}
	repo.add(passwordless)

	svc := newTestService(t, repo, sessions)

	cases := []struct {
		name     string
		staffID  string
		password string
	}{
		{"unknown staff id", "EMP-404", "whatever"},
		{"wrong password", "EMP-001", "incorrect"},
		{"inactive account", "EMP-002", "another password"},
		{"passwordless account", "EMP-003", "anything"},
	}
	for _, tc := range cases {
		_, err := svc.Login(context.Background(), tc.staffID, tc.password)
		if code := errCode(t, err); code != pkgerrors.CodeUnauthorized {
			t.Fatalf("%s: expected UNAUTHORIZED, got %s", tc.name, code)
		}
	}
	if len(sessions.live) != 0 {
		t.Fatalf("failed logins must not register sessions")
	}
}

func strPtr(v string) *string { return &v }

func TestLogoutRevokesSession(t *testing.T) {
	repo := newFakeAuthRepo()
	sessions := newFakeSessions()
	seedAdmin(t, repo, "EMP-001", "correct horse battery", true)
	svc := newTestService(t, repo, sessions)

	result, err := svc.Login(context.Background(), "EMP-001", "correct horse battery")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), result.AccessToken)
	if err != nil {
		t.Fatalf("parsing token: %v", err)
	}

	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if sessions.live[claims.ID] {
		t.Fatalf("expected session to be revoked")
	}

	if err := svc.Logout(context.Background(), ""); errCode(t, err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED for blank access id")
	}
}

func TestMe(t *testing.T) {
	repo := newFakeAuthRepo()
	user := seedAdmin(t, repo, "EMP-001", "correct horse battery", true)
	svc := newTestService(t, repo, newFakeSessions())

	me, err := svc.Me(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Me returned error: %v", err)
	}
	if me.ID != user.ID || me.FullName != "Avery Admin" {
		t.Fatalf("unexpected profile: %+v", me)
	}

	_, err = svc.Me(context.Background(), uuid.New())
	if code := errCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}
}
