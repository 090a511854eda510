package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/auth"
	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/repository"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 6
	MaxPasswordLength = 100
	MaxNameLength     = 50
	MaxBioLength      = 200
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// AuthService handles registration, login and token checks.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// RegisterInput is a username/password sign-up.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

// Register creates a password account. The caller is not logged in; the
// client follows up with Login.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validatePassword("password", in.Password); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name", fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}

	if taken, err := s.users.UsernameExists(ctx, in.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, apperror.ConflictMessage("username is already taken")
	}
	if taken, err := s.users.EmailExists(ctx, in.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, apperror.ConflictMessage("email is already registered")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
	}
	if user.Name == "" {
		user.Name = in.Username
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Availability reports whether a username and an email are still free.
// An empty argument is reported as available.
type Availability struct {
	UsernameAvailable bool `json:"usernameAvailable"`
	EmailAvailable    bool `json:"emailAvailable"`
}

func (s *AuthService) Availability(ctx context.Context, username, email string) (*Availability, error) {
	out := &Availability{UsernameAvailable: true, EmailAvailable: true}
	if username = strings.TrimSpace(username); username != "" {
		taken, err := s.users.UsernameExists(ctx, username)
		if err != nil {
			return nil, err
		}
		out.UsernameAvailable = !taken
	}
	if email = strings.TrimSpace(email); email != "" {
		taken, err := s.users.EmailExists(ctx, email)
		if err != nil {
			return nil, err
		}
		out.EmailAvailable = !taken
	}
	return out, nil
}

// Login checks a username-or-email and password. Every failure, including
// an unknown account, is the same apperror.ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*AuthResult, error) {
	invalid := apperror.Unauthorized("invalid username or password")

	login := strings.TrimSpace(usernameOrEmail)
	if login == "" || password == "" {
		return nil, invalid
	}

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if isNotFound(err) {
			return nil, invalid
		}
		return nil, err
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.issue(user)
}

// LoginOrRegisterGitHub signs in the account linked to ghUser, creating
// it on first login. The GitHub login becomes the username; if it is taken
// by another account a numeric suffix is added.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.GetUserByGitHubID(ctx, ghUser.ID)
	switch {
	case err == nil:
		user.AvatarURL = ghUser.AvatarURL
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: refreshing GitHub user %d: %w", ghUser.ID, err)
		}
	case isNotFound(err):
		user, err = s.createGitHubUser(ctx, ghUser)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up GitHub user %d: %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

func (s *AuthService) createGitHubUser(ctx context.Context, gh *auth.GitHubUser) (*model.User, error) {
	username, err := s.freeUsername(ctx, gh.Login)
	if err != nil {
		return nil, err
	}

	email := gh.Email
	if email != "" {
		// An address already on a password account stays with that account.
		taken, err := s.users.EmailExists(ctx, email)
		if err != nil {
			return nil, err
		}
		if taken {
			email = ""
		}
	}

	name := gh.Name
	if name == "" {
		name = gh.Login
	}
	user := &model.User{
		Username:  username,
		Email:     email,
		Name:      name,
		Bio:       gh.Bio,
		AvatarURL: gh.AvatarURL,
		GitHubID:  gh.ID,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating GitHub user %d: %w", gh.ID, err)
	}
	return user, nil
}

func (s *AuthService) freeUsername(ctx context.Context, login string) (string, error) {
	base := strings.TrimSpace(login)
	if base == "" {
		base = "user"
	}
	if len(base) > MaxUsernameLength-3 {
		base = base[:MaxUsernameLength-3]
	}

	candidate := base
	for i := 1; i < 100; i++ {
		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", apperror.ConflictMessage("could not find a free username for " + login)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}

// ValidateToken returns the user ID a valid token was issued for.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: invalid token: %w", err)
	}
	return userID, nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength))
	}
	if !usernamePattern.MatchString(username) {
		return apperror.ValidationFailed("username", "username may only contain letters, digits, '_' and '-'")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperror.ValidationFailed("email", "email address is not valid")
	}
	return nil
}

func validatePassword(field, password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("password must be %d to %d characters", MinPasswordLength, MaxPasswordLength))
	}
	return nil
}
