package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// unusablePassword is stored for users created from inbound channels; it is
// not a bcrypt hash, so no password ever matches it
const unusablePassword = "!"

// User owns threads. Channel contacts get a synthetic user per address,
// operators log in with a bcrypt password.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	Threads []Thread `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// LoginRequest is the request structure for user login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail is the form emails are stored and looked up in
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewChannelUser builds a user that cannot log in
func NewChannelUser(email string) *User {
	return &User{Email: email, PasswordHash: unusablePassword}
}

// HashPassword hashes a password for storage
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// HasPassword reports whether any password can match the stored hash
func (u *User) HasPassword() bool {
	return u.PasswordHash != "" && u.PasswordHash != unusablePassword
}

// CheckPassword compares a password with the stored hash
func (u *User) CheckPassword(password string) bool {
	if !u.HasPassword() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// ToResponse converts a User model to a UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}
