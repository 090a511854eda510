package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/auth"
	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/repository"
)

// UserService manages the signed-in user's own account.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	prompts   *PromptService
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	prompts *PromptService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		passwords: passwords,
		prompts:   prompts,
		logger:    logger,
	}
}

// ProfileInput holds the editable profile fields.
type ProfileInput struct {
	Name  string
	Email string
	Bio   string
}

// UpdateProfile replaces name, email and bio. An email already used by
// another account is apperror.ErrConflict.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Bio = strings.TrimSpace(in.Bio)

	if n := utf8.RuneCountInString(in.Name); n == 0 || n > MaxNameLength {
		return nil, apperror.ValidationFailed("name", fmt.Sprintf("name must be 1 to %d characters", MaxNameLength))
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Bio) > MaxBioLength {
		return nil, apperror.ValidationFailed("bio", fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Email, in.Email) {
		taken, err := s.users.EmailExists(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperror.ConflictMessage("email is already in use")
		}
	}

	user.Name = in.Name
	user.Email = in.Email
	user.Bio = in.Bio
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("user_id", userID))
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
// Accounts created through GitHub have no password to change.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := validatePassword("newPassword", next); err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return apperror.ValidationFailed("currentPassword", "this account signs in with GitHub and has no password")
	}
	if err := s.passwords.Verify(user.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return apperror.ValidationFailed("currentPassword", "current password is incorrect")
		}
		return fmt.Errorf("service/user: verifying password: %w", err)
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		return fmt.Errorf("service/user: hashing password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.String("user_id", userID))
	return nil
}

// DeleteAccount removes the user with every prompt and version they own.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	views, err := s.prompts.prompts.ListPromptViews(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}

	ids := make([]string, len(views))
	for i := range views {
		ids[i] = views[i].ID
	}
	s.prompts.forget(userID, ids)

	s.logger.Info("account deleted",
		slog.String("user_id", userID),
		slog.Int("prompts", len(ids)),
	)
	return nil
}

// DefaultActivityLimit is how many audit entries Activity returns when the
// caller does not ask for a number.
const DefaultActivityLimit = 50

// Activity returns the user's most recent audit entries, newest first.
func (s *UserService) Activity(ctx context.Context, userID string, limit int) ([]model.AuditEntry, error) {
	switch {
	case limit == 0:
		limit = DefaultActivityLimit
	case limit < 0 || limit > MaxListLimit:
		return nil, apperror.ValidationFailed("limit", fmt.Sprintf("limit must be between 1 and %d", MaxListLimit))
	}
	return s.prompts.audit.ListAudit(ctx, userID, repository.ListOptions{Limit: limit})
}
