package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// Role of an authenticated identity
type Role string

const (
	RoleAuthenticated Role = "authenticated"
	RoleStaff         Role = "staff"
)

// User is a locally stored auth identity, used when the portal runs
// against the database directly instead of the hosted auth API.
type User struct {
	BaseModel
	Email    string            `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string            `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	Role     Role              `gorm:"size:20;default:'authenticated'" json:"role"`
	Metadata datatypes.JSONMap `gorm:"column:user_metadata" json:"user_metadata"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// DisplayName returns the display_name stored in the user metadata.
func (u *User) DisplayName() string {
	if name, ok := u.Metadata["display_name"].(string); ok {
		return name
	}
	return ""
}
