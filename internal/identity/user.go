package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
	ErrAccountLocked      = errors.New("account is locked")
)

// User is an identity independent of any organization. Organization access
// lives only in memberships.
type User struct {
	ID                  string
	Email               string
	DisplayName         string
	Notifications       NotificationPreferences
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NotificationPreferences are the per-user email switches.
type NotificationPreferences struct {
	EmailOnAssigned     bool `json:"email_on_assigned"`
	EmailOnStatusChange bool `json:"email_on_status_change"`
	EmailOnNewIssue     bool `json:"email_on_new_issue"`
}

// DefaultNotifications are applied to new users.
var DefaultNotifications = NotificationPreferences{
	EmailOnAssigned:     true,
	EmailOnStatusChange: true,
}

// Credentials holds the password hash of a user.
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// UserRepository defines user storage. Users are global rows.
type UserRepository interface {
	// Create stores a user and its credentials
	Create(ctx context.Context, user *User, credentials *Credentials) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by normalized email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update updates display name and notification preferences
	Update(ctx context.Context, user *User) error

	// UpdateLockout updates the failed login counter
	UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error

	// GetCredentials retrieves user credentials
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)
}
