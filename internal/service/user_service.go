package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/internal/repository"
	apperrors "realtime-chat/backend/pkg/errors"
	"realtime-chat/backend/pkg/jwt"

	"github.com/go-playground/validator/v10"
)

// Comparing against a throwaway hash keeps login timing the same for unknown emails.
var dummyHash, _ = models.HashPassword("timing-equalizer")

// UserService handles registration, login and resolving sessions to users
type UserService struct {
	users    repository.UserRepository
	tokens   *jwt.Service
	validate *validator.Validate
}

// NewUserService creates a new user service
func NewUserService(users repository.UserRepository, tokens *jwt.Service) *UserService {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &UserService{users: users, tokens: tokens, validate: validate}
}

// Register creates a user account and opens a session for it
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = models.NormalizeEmail(req.Email)

	if err := s.validateStruct(req); err != nil {
		return nil, "", err
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, "", emailTaken()
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, "", err
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, "", emailTaken()
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Name)
	if err != nil {
		return nil, "", fmt.Errorf("issue session: %w", err)
	}

	return user, token, nil
}

// Login authenticates a user and returns a fresh session token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	req.Email = models.NormalizeEmail(req.Email)

	if err := s.validateStruct(req); err != nil {
		return nil, "", err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			models.CheckPasswordHash(req.Password, dummyHash)
			return nil, "", apperrors.NewInvalidCredentialsError()
		}
		return nil, "", err
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", apperrors.NewInvalidCredentialsError()
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Name)
	if err != nil {
		return nil, "", fmt.Errorf("issue session: %w", err)
	}

	return user, token, nil
}

// Authenticate resolves a session token to the acting user. The user row is
// re-read so sessions of users that no longer exist stop working.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required")
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError(apperrors.CodeInvalidToken, "Invalid or expired session").Wrap(err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.NewUnauthorizedError(apperrors.CodeInvalidToken, "Invalid or expired session").Wrap(err)
		}
		return nil, err
	}

	return user.Identity(), nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.NewNotFoundError(apperrors.CodeNotFound, "User not found").Wrap(err)
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewBadRequestError(apperrors.CodeValidation, "Invalid request").Wrap(err)
	}
	return fieldError(fieldErrs[0])
}

func fieldError(fe validator.FieldError) *apperrors.AppError {
	field := fe.Field()
	label := strings.ReplaceAll(field, "_", " ")

	switch fe.Tag() {
	case "required":
		return apperrors.NewValidationError(field, fmt.Sprintf("The %s field is required.", label))
	case "email":
		return apperrors.NewValidationError(field, fmt.Sprintf("The %s field must be a valid email address.", label))
	case "min":
		return apperrors.NewValidationError(field, fmt.Sprintf("The %s field must be at least %s characters.", label, fe.Param()))
	case "max":
		return apperrors.NewValidationError(field, fmt.Sprintf("The %s field must not be greater than %s characters.", label, fe.Param()))
	case "eqfield":
		return apperrors.NewValidationError("password", "The password field confirmation does not match.")
	default:
		return apperrors.NewValidationError(field, fmt.Sprintf("The %s field is invalid.", label))
	}
}

func emailTaken() *apperrors.AppError {
	return apperrors.NewValidationError("email", "The email has already been taken.")
}
