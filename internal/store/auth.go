package store

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/utils"
)

var (
	errUserExists = &backend.Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    "user_already_exists",
		Message: "User already registered",
	}
	errInvalidCredentials = &backend.Error{
		Status:  http.StatusBadRequest,
		Code:    "invalid_credentials",
		Message: "Invalid login credentials",
	}
)

// AuthRepository keeps auth identities in the local users table and issues
// HS256 session tokens. Local identities are confirmed on creation.
type AuthRepository struct {
	DB        *gorm.DB
	jwtSecret string
	tokenTTL  time.Duration
}

var _ backend.Authenticator = (*AuthRepository)(nil)

func NewAuthRepository(db *gorm.DB, jwtSecret string, tokenTTL time.Duration) *AuthRepository {
	return &AuthRepository{DB: db, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toBackendUser(u *models.User) backend.User {
	return backend.User{
		ID:           u.ID,
		Email:        u.Email,
		Role:         string(u.Role),
		UserMetadata: map[string]interface{}(u.Metadata),
	}
}

func (r *AuthRepository) SignUp(ctx context.Context, req backend.SignUpRequest) (*backend.User, error) {
	email := normalizeEmail(req.Email)

	var existing models.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, errUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrap("failed to check existing user", err)
	}

	user := models.User{
		Email: email,
		Role:  models.RoleAuthenticated,
		Metadata: datatypes.JSONMap{
			"display_name": req.DisplayName,
		},
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, wrap("failed to hash password", err)
	}
	if err := r.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, wrap("failed to create user", err)
	}

	out := toBackendUser(&user)
	return &out, nil
}

func (r *AuthRepository) CurrentSession(ctx context.Context, email, password string) (*backend.Session, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, wrap("failed to load user", err)
	}
	if !user.CheckPassword(password) {
		return nil, errInvalidCredentials
	}

	token, expiresAt, err := utils.GenerateAccessToken(user.ID, user.Email, string(user.Role), r.jwtSecret, r.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &backend.Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		User:        toBackendUser(&user),
	}, nil
}

func (r *AuthRepository) DeleteUser(ctx context.Context, userID string) error {
	if err := r.DB.WithContext(ctx).Where("id = ?", userID).Delete(&models.User{}).Error; err != nil {
		return wrap("failed to delete user", err)
	}
	return nil
}
