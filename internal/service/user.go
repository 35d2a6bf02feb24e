package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/internal/repository"
	apperrors "github.com/cetzal/authcore/pkg/errors"
)

// bcryptCost is the cost factor for password digests. Tests lower it.
var bcryptCost = bcrypt.DefaultCost

// UserService manages accounts in the credential store.
type UserService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// CreateUserInput holds the parameters for creating an account.
type CreateUserInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Age       *int
	Password  string
	IsActive  bool
}

// Create hashes the password and stores a new account.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	user, err := newUser(input)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user created",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// CreateIfAbsent creates the account unless the username or e-mail is
// already taken. created is false when nothing was written.
func (s *UserService) CreateIfAbsent(ctx context.Context, input CreateUserInput) (user *domain.User, created bool, err error) {
	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		return nil, false, fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		return nil, false, nil
	}

	user, err = s.Create(ctx, input)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// Get returns the account with the given id.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// List returns one page of accounts and the total match count.
func (s *UserService) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Update applies a partial update. A new password is re-hashed.
func (s *UserService) Update(ctx context.Context, id int64, in domain.UserUpdate) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	if in.Username != nil {
		if strings.TrimSpace(*in.Username) == "" {
			return nil, apperrors.InvalidInput("username must not be empty")
		}
		user.Username = *in.Username
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Email != nil {
		if strings.TrimSpace(*in.Email) == "" {
			return nil, apperrors.InvalidInput("email must not be empty")
		}
		user.Email = *in.Email
	}
	if in.Age != nil {
		if *in.Age < 0 {
			return nil, apperrors.InvalidInput("age must not be negative")
		}
		user.Age = in.Age
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user updated",
		slog.Int64("user_id", user.ID),
		slog.Bool("password_changed", in.Password != nil),
	)
	return user, nil
}

// Delete removes the account.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.InfoContext(ctx, "user deleted", slog.Int64("user_id", id))
	return nil
}

func newUser(input CreateUserInput) (*domain.User, error) {
	if strings.TrimSpace(input.Username) == "" {
		return nil, apperrors.InvalidInput("username is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Age != nil && *input.Age < 0 {
		return nil, apperrors.InvalidInput("age must not be negative")
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		Age:          input.Age,
		PasswordHash: hash,
		IsActive:     input.IsActive,
	}, nil
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", apperrors.InvalidInput("password is required")
	}
	// bcrypt ignores everything past 72 bytes and GenerateFromPassword
	// rejects longer input.
	if len(password) > 72 {
		return "", apperrors.InvalidInput("password must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
