package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/cafeluna/api/internal/domain"
)

type stubUserRepo struct {
	insertFn      func(context.Context, domain.UserProfile) error
	findFn        func(context.Context, string) (domain.UserProfile, error)
	findByEmailFn func(context.Context, string) (domain.UserProfile, error)
	updateFn      func(context.Context, domain.UserProfile) (domain.UserProfile, error)
	addPointsFn   func(context.Context, string, int64, time.Time) (int64, error)
}

func (s *stubUserRepo) Insert(ctx context.Context, profile domain.UserProfile) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, profile)
	}
	return nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if s.findFn != nil {
		return s.findFn(ctx, userID)
	}
	return domain.UserProfile{}, notFoundErr{}
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (domain.UserProfile, error) {
	if s.findByEmailFn != nil {
		return s.findByEmailFn(ctx, email)
	}
	return domain.UserProfile{}, notFoundErr{}
}

func (s *stubUserRepo) UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, profile)
	}
	return profile, nil
}

func (s *stubUserRepo) AddLoyaltyPoints(ctx context.Context, userID string, delta int64, now time.Time) (int64, error) {
	if s.addPointsFn != nil {
		return s.addPointsFn(ctx, userID, delta, now)
	}
	return delta, nil
}

type stubTokenIssuer struct {
	issueFn func(subject, email, displayName, role string) (string, time.Time, error)
}

func (s *stubTokenIssuer) Issue(subject, email, displayName, role string) (string, time.Time, error) {
	if s.issueFn != nil {
		return s.issueFn(subject, email, displayName, role)
	}
	return "token", time.Time{}, nil
}

func newTestUserService(t *testing.T, deps UserServiceDeps) UserService {
	t.Helper()
	if deps.Tokens == nil {
		deps.Tokens = &stubTokenIssuer{}
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time {
			return time.Date(2025, 5, 1, 7, 0, 0, 0, time.UTC)
		}
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "000TEST" }
	}
	svc, err := NewUserService(deps)
	if err != nil {
		t.Fatalf("new user service: %v", err)
	}
	return svc
}

func TestUserServiceRegister(t *testing.T) {
	var inserted domain.UserProfile
	users := &stubUserRepo{
		insertFn: func(_ context.Context, profile domain.UserProfile) error {
			inserted = profile
			return nil
		},
	}

	svc := newTestUserService(t, UserServiceDeps{Users: users})

	profile, err := svc.Register(context.Background(), RegisterUserCommand{
		Email:       "  Ana@Example.com ",
		Password:    "café-forte-123",
		DisplayName: "Ana",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if profile.Email != "ana@example.com" {
		t.Errorf("email not normalised: %s", profile.Email)
	}
	if profile.Role != domain.RoleCustomer {
		t.Errorf("unexpected role: %s", profile.Role)
	}
	if profile.PasswordHash != "" {
		t.Error("password hash must not leave the service")
	}
	if inserted.PasswordHash == "" || inserted.PasswordHash == "café-forte-123" {
		t.Error("stored password must be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(inserted.PasswordHash), []byte("café-forte-123")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestUserServiceRegisterDuplicateEmail(t *testing.T) {
	users := &stubUserRepo{
		findByEmailFn: func(_ context.Context, email string) (domain.UserProfile, error) {
			return domain.UserProfile{ID: "usr_1", Email: email}, nil
		},
	}

	svc := newTestUserService(t, UserServiceDeps{Users: users})

	_, err := svc.Register(context.Background(), RegisterUserCommand{
		Email:    "ana@example.com",
		Password: "café-forte-123",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("error = %v, want ErrEmailTaken", err)
	}
}

func TestUserServiceRegisterShortPassword(t *testing.T) {
	svc := newTestUserService(t, UserServiceDeps{Users: &stubUserRepo{}})

	_, err := svc.Register(context.Background(), RegisterUserCommand{
		Email:    "ana@example.com",
		Password: "curta",
	})
	if !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("error = %v, want ErrUserInvalidInput", err)
	}
}

func TestUserServiceLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("café-forte-123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := &stubUserRepo{
		findByEmailFn: func(_ context.Context, email string) (domain.UserProfile, error) {
			return domain.UserProfile{
				ID:           "usr_1",
				Email:        email,
				DisplayName:  "Ana",
				Role:         domain.RoleCustomer,
				PasswordHash: string(hash),
			}, nil
		},
	}
	expires := time.Date(2025, 5, 1, 19, 0, 0, 0, time.UTC)
	tokens := &stubTokenIssuer{
		issueFn: func(subject, email, displayName, role string) (string, time.Time, error) {
			if subject != "usr_1" || role != "customer" {
				t.Fatalf("unexpected token subject %s role %s", subject, role)
			}
			return "session-token", expires, nil
		},
	}

	svc := newTestUserService(t, UserServiceDeps{Users: users, Tokens: tokens})

	session, err := svc.Login(context.Background(), LoginCommand{
		Email:    "ana@example.com",
		Password: "café-forte-123",
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if session.Token != "session-token" {
		t.Errorf("unexpected token: %s", session.Token)
	}
	if !session.ExpiresAt.Equal(expires) {
		t.Errorf("unexpected expiry: %s", session.ExpiresAt)
	}
	if session.User.PasswordHash != "" {
		t.Error("password hash must not leave the service")
	}
}

func TestUserServiceLoginWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("café-forte-123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := &stubUserRepo{
		findByEmailFn: func(_ context.Context, email string) (domain.UserProfile, error) {
			return domain.UserProfile{ID: "usr_1", Email: email, PasswordHash: string(hash)}, nil
		},
	}

	svc := newTestUserService(t, UserServiceDeps{Users: users})

	_, err = svc.Login(context.Background(), LoginCommand{
		Email:    "ana@example.com",
		Password: "errada-demais",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials", err)
	}
}

func TestUserServiceLoginUnknownEmail(t *testing.T) {
	svc := newTestUserService(t, UserServiceDeps{Users: &stubUserRepo{}})

	_, err := svc.Login(context.Background(), LoginCommand{
		Email:    "ninguem@example.com",
		Password: "café-forte-123",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials", err)
	}
}

func TestUserServiceCreditLoyalty(t *testing.T) {
	var creditedDelta int64
	users := &stubUserRepo{
		addPointsFn: func(_ context.Context, userID string, delta int64, _ time.Time) (int64, error) {
			creditedDelta = delta
			return 100 + delta, nil
		},
	}

	svc := newTestUserService(t, UserServiceDeps{Users: users, PointsPerReal: 1})

	// R$23,27 earns 23 points at one point per real.
	balance, err := svc.CreditLoyalty(context.Background(), CreditLoyaltyCommand{
		UserID:  "usr_1",
		OrderID: "ord_1",
		Amount:  2327,
	})
	if err != nil {
		t.Fatalf("CreditLoyalty returned error: %v", err)
	}
	if creditedDelta != 23 {
		t.Errorf("credited %d points, want 23", creditedDelta)
	}
	if balance != 123 {
		t.Errorf("unexpected balance: %d", balance)
	}
}

func TestUserServiceCreditLoyaltySubRealAmount(t *testing.T) {
	credits := 0
	users := &stubUserRepo{
		addPointsFn: func(context.Context, string, int64, time.Time) (int64, error) {
			credits++
			return 0, nil
		},
	}

	svc := newTestUserService(t, UserServiceDeps{Users: users})

	balance, err := svc.CreditLoyalty(context.Background(), CreditLoyaltyCommand{
		UserID: "usr_1",
		Amount: 99,
	})
	if err != nil {
		t.Fatalf("CreditLoyalty returned error: %v", err)
	}
	if balance != 0 || credits != 0 {
		t.Errorf("amounts under one real must not write, balance=%d credits=%d", balance, credits)
	}
}
