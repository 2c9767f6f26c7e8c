package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/auth"
	"github.com/sakif/village-gacha/internal/metrics"
	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/repository"
)

// Account validation limits.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
	MaxEmailLength    = 254
)

// AuthService handles sign-up, password login and GitHub sign-in.
//
//	AuthHandler → AuthService → UserRepository
//	                          ↘ TokenService (JWT), PasswordService (bcrypt)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	metrics   metrics.Recorder
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	rec metrics.Recorder,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		metrics:   rec,
		logger:    logger,
	}
}

// SignupInput is the POST /auth/signup body.
type SignupInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// LoginInput is the POST /auth/login body.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult is returned by every successful login.
type AuthResult struct {
	Token string            `json:"token"`
	User  model.UserSummary `json:"user"`
}

// Signup creates a password account.
//
// The username and email are checked up front so the caller gets the same
// error order as always (username first); the UNIQUE constraints in the
// schema still catch a concurrent signup that slips between check and
// insert.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*model.UserSummary, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateSignup(in); err != nil {
		return nil, err
	}

	if err := s.ensureFree(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if apperror.CodeOf(err) != apperror.CodeInternal {
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("username", in.Username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.metrics.RecordSignup("password")
	s.logger.Info("user signed up",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	summary := user.Summary()
	return &summary, nil
}

// Login checks a username/password pair and issues a token.
//
// An unknown username and a wrong password produce the same error, and
// the unknown-username path still runs a bcrypt comparison, so neither the
// response nor its timing tells a caller which usernames exist.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if in.Username == "" || in.Password == "" {
		return nil, apperror.New(apperror.CodeInvalidCredentials)
	}

	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		if !apperror.Is(err, apperror.CodeUserNotFound) {
			return nil, fmt.Errorf("service/auth: looking up %q: %w", in.Username, err)
		}
		s.passwords.VerifyDummy(in.Password)
		s.metrics.RecordLogin(false)
		s.logger.Warn("login failed: unknown username", slog.String("username", in.Username))
		return nil, apperror.New(apperror.CodeInvalidCredentials)
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, fmt.Errorf("service/auth: verifying password: %w", err)
		}
		s.metrics.RecordLogin(false)
		s.logger.Warn("login failed: wrong password", slog.Int64("userID", user.ID))
		return nil, apperror.New(apperror.CodeInvalidCredentials)
	}

	s.metrics.RecordLogin(true)
	return s.issue(user)
}

// LoginWithGitHub finds or creates the account for a GitHub profile.
//
// LOOKUP ORDER:
//  1. an account already linked to this GitHub ID
//  2. a new account named after the GitHub login
//
// A GitHub identity is never attached to an existing password account:
// signup does not verify emails, so a matching address proves nothing
// about who owns the account. On a clash the new account gets
// "<login>-<githubID>" as username and the GitHub noreply address as email.
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.ID == 0 {
		return nil, errors.New("service/auth: GitHub user must not be empty")
	}

	user, err := s.users.GetByGitHubID(ctx, gh.ID)
	if err == nil {
		return s.issue(user)
	}
	if !apperror.Is(err, apperror.CodeUserNotFound) {
		return nil, fmt.Errorf("service/auth: looking up github %d: %w", gh.ID, err)
	}

	noReply := auth.NoReplyEmail(gh.ID, gh.Login)
	email := strings.TrimSpace(gh.Email)
	if email == "" {
		email = noReply
	}

	githubID := gh.ID
	user = &model.User{Username: gh.Login, Email: email, GitHubID: &githubID}
	for attempt := 0; ; attempt++ {
		err = s.users.Create(ctx, user)
		switch {
		case attempt < 2 && apperror.Is(err, apperror.CodeUsernameExists):
			user.Username = gh.Login + "-" + strconv.FormatInt(gh.ID, 10)
			continue
		case attempt < 2 && apperror.Is(err, apperror.CodeEmailExists) && user.Email != noReply:
			s.logger.Warn("GitHub email already registered; using noreply address",
				slog.Int64("githubID", gh.ID),
			)
			user.Email = noReply
			continue
		}
		break
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating github user %q: %w", gh.Login, err)
	}

	s.metrics.RecordSignup("github")
	s.logger.Info("user signed up via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// EnsureUser creates a password account unless the username already
// exists. Used to seed demo accounts at start-up; reports whether a user
// was created.
func (s *AuthService) EnsureUser(ctx context.Context, username, password, email string) (bool, error) {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !apperror.Is(err, apperror.CodeUserNotFound) {
		return false, fmt.Errorf("service/auth: looking up seed user %q: %w", username, err)
	}
	if _, err := s.Signup(ctx, SignupInput{Username: username, Password: password, Email: email}); err != nil {
		return false, fmt.Errorf("service/auth: seeding %q: %w", username, err)
	}
	return true, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return &AuthResult{Token: token, User: user.Summary()}, nil
}

func (s *AuthService) ensureFree(ctx context.Context, username, email string) error {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return apperror.New(apperror.CodeUsernameExists)
	} else if !apperror.Is(err, apperror.CodeUserNotFound) {
		return fmt.Errorf("service/auth: checking username: %w", err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return apperror.New(apperror.CodeEmailExists)
	} else if !apperror.Is(err, apperror.CodeUserNotFound) {
		return fmt.Errorf("service/auth: checking email: %w", err)
	}
	return nil
}

func validateSignup(in SignupInput) error {
	n := utf8.RuneCountInString(in.Username)
	switch {
	case strings.TrimSpace(in.Username) == "":
		return apperror.ValidationFailed("username", "아이디를 입력해주세요.")
	case n < MinUsernameLength || n > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("아이디는 %d자 이상 %d자 이하여야 합니다.", MinUsernameLength, MaxUsernameLength))
	case strings.ContainsAny(in.Username, " \t\r\n"):
		return apperror.ValidationFailed("username", "아이디에 공백을 사용할 수 없습니다.")
	}

	switch {
	case in.Password == "":
		return apperror.ValidationFailed("password", "비밀번호를 입력해주세요.")
	case utf8.RuneCountInString(in.Password) < MinPasswordLength:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("비밀번호는 %d자 이상이어야 합니다.", MinPasswordLength))
	case len(in.Password) > auth.MaxPasswordBytes:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("비밀번호는 %d바이트 이하여야 합니다.", auth.MaxPasswordBytes))
	}

	return validateEmail(in.Email)
}

// validateEmail accepts a bare address ("a@x.com"), not a display-name
// form ("Alice <a@x.com>").
func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "이메일을 입력해주세요.")
	}
	if len(email) > MaxEmailLength {
		return apperror.ValidationFailed("email", "이메일이 너무 깁니다.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return apperror.ValidationFailed("email", "올바른 이메일 형식이 아닙니다.")
	}
	return nil
}
