package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/repositories"
)

const (
	userIDPrefix = "usr_"

	minPasswordLength = 8
)

var (
	// ErrUserInvalidInput signals the caller provided invalid data.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserNotFound indicates the account could not be located.
	ErrUserNotFound = errors.New("user: not found")
	// ErrEmailTaken indicates registration with an email that already has an account.
	ErrEmailTaken = errors.New("user: email already registered")
	// ErrInvalidCredentials indicates a failed login attempt. The message never
	// says whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("user: invalid credentials")
)

// TokenIssuer mints session tokens for authenticated users.
type TokenIssuer interface {
	Issue(subject, email, displayName, role string) (string, time.Time, error)
}

// UserServiceDeps bundles collaborators required to construct the user service.
type UserServiceDeps struct {
	Users         repositories.UserRepository
	Notifications repositories.NotificationRepository
	Tokens        TokenIssuer
	// PointsPerReal is how many loyalty points one real of spend earns.
	PointsPerReal int64
	Clock         func() time.Time
	IDGenerator   func() string
}

type userService struct {
	users         repositories.UserRepository
	notifications repositories.NotificationRepository
	tokens        TokenIssuer
	pointsPerReal int64
	clock         func() time.Time
	newID         func() string
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("user service: token issuer is required")
	}

	pointsPerReal := deps.PointsPerReal
	if pointsPerReal <= 0 {
		pointsPerReal = 1
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &userService{
		users:         deps.Users,
		notifications: deps.Notifications,
		tokens:        deps.Tokens,
		pointsPerReal: pointsPerReal,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *userService) Register(ctx context.Context, cmd RegisterUserCommand) (UserProfile, error) {
	email := normaliseEmail(cmd.Email)
	if email == "" || !strings.Contains(email, "@") {
		return UserProfile{}, fmt.Errorf("%w: a valid email is required", ErrUserInvalidInput)
	}
	if len(cmd.Password) < minPasswordLength {
		return UserProfile{}, fmt.Errorf("%w: password must have at least %d characters", ErrUserInvalidInput, minPasswordLength)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return UserProfile{}, ErrEmailTaken
	} else if !isNotFound(err) {
		return UserProfile{}, mapUserRepositoryError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserProfile{}, fmt.Errorf("user: hash password: %w", err)
	}

	now := s.clock()
	profile := domain.UserProfile{
		ID:           userIDPrefix + s.newID(),
		Email:        email,
		DisplayName:  strings.TrimSpace(cmd.DisplayName),
		Role:         domain.RoleCustomer,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Insert(ctx, profile); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return UserProfile{}, ErrEmailTaken
		}
		return UserProfile{}, mapUserRepositoryError(err)
	}

	profile.PasswordHash = ""
	return profile, nil
}

func (s *userService) Login(ctx context.Context, cmd LoginCommand) (Session, error) {
	email := normaliseEmail(cmd.Email)
	if email == "" || cmd.Password == "" {
		return Session{}, ErrInvalidCredentials
	}

	profile, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, mapUserRepositoryError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(cmd.Password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(profile.ID, profile.Email, profile.DisplayName, string(profile.Role))
	if err != nil {
		return Session{}, fmt.Errorf("user: issue session token: %w", err)
	}

	profile.PasswordHash = ""
	return Session{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      profile,
	}, nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	profile, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return UserProfile{}, mapUserRepositoryError(err)
	}
	profile.PasswordHash = ""
	return profile, nil
}

func (s *userService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	profile, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return UserProfile{}, mapUserRepositoryError(err)
	}

	if cmd.DisplayName != nil {
		profile.DisplayName = strings.TrimSpace(*cmd.DisplayName)
	}
	profile.UpdatedAt = s.clock()

	updated, err := s.users.UpdateProfile(ctx, profile)
	if err != nil {
		return UserProfile{}, mapUserRepositoryError(err)
	}
	updated.PasswordHash = ""
	return updated, nil
}

func (s *userService) CreditLoyalty(ctx context.Context, cmd CreditLoyaltyCommand) (int64, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	if cmd.Amount <= 0 {
		return 0, nil
	}

	// One point per whole real of spend, scaled by the configured rate.
	points := cmd.Amount / 100 * s.pointsPerReal
	if points == 0 {
		return 0, nil
	}

	balance, err := s.users.AddLoyaltyPoints(ctx, userID, points, s.clock())
	if err != nil {
		return 0, mapUserRepositoryError(err)
	}
	return balance, nil
}

func (s *userService) ListNotifications(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Notification], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[Notification]{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	if s.notifications == nil {
		return domain.CursorPage[Notification]{}, errors.New("user: notification repository not configured")
	}

	page, err := s.notifications.ListByUser(ctx, userID, pager)
	if err != nil {
		return domain.CursorPage[Notification]{}, mapUserRepositoryError(err)
	}
	return page, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapUserRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrUserNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("user: conflict: %w", err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("user: repository unavailable: %w", err)
		}
	}

	return err
}
