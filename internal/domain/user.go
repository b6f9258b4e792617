package domain

import "time"

const AuthProviderGoogle = "google"

type User struct {
	UserID         string     `json:"id" dynamodbav:"user_id"`
	Email          string     `json:"email" dynamodbav:"email"`
	PasswordHash   string     `json:"-" dynamodbav:"password_hash"`
	EmailConfirmed bool       `json:"email_confirmed" dynamodbav:"email_confirmed"`
	AuthProvider   string     `json:"auth_provider,omitempty" dynamodbav:"auth_provider"`
	GoogleID       string     `json:"-" dynamodbav:"google_id"`
	Enable         bool       `json:"enable" dynamodbav:"enable"`
	LastSignInAt   *time.Time `json:"last_sign_in_at,omitempty" dynamodbav:"last_sign_in_at"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// Profile is the public-facing account row shown across the app.
// PK: id (same value as User.UserID).
type Profile struct {
	ID             string    `json:"id" dynamodbav:"id"`
	Email          string    `json:"email" dynamodbav:"email"`
	Username       string    `json:"username" dynamodbav:"username"`
	FullName       string    `json:"fullname" dynamodbav:"fullname"`
	AvatarURL      string    `json:"pfpurl" dynamodbav:"pfpurl"`
	GoogleVerified bool      `json:"google_verified" dynamodbav:"google_verified"`
	GoogleID       string    `json:"google_id,omitempty" dynamodbav:"google_id"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// NewAccount carries everything needed to create a confirmed account in one step.
type NewAccount struct {
	Email          string
	Password       string
	EmailConfirmed bool
	Profile        IdentityProfile
}

// UserStatus answers "does an account exist for this email, and in what state".
type UserStatus struct {
	Exists         bool       `json:"exists"`
	EmailConfirmed bool       `json:"emailConfirmed"`
	HasProfile     bool       `json:"hasProfile"`
	UserID         string     `json:"-"`
	Email          string     `json:"-"`
	CreatedAt      time.Time  `json:"-"`
	LastSignInAt   *time.Time `json:"-"`
}

type SyncProfileRequest struct {
	FullName  *string `json:"fullName"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,url"`
}
