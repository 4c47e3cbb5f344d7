// Package dto contains Data Transfer Objects for API request and response structures
package dto

import (
	"time"
)

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Email        string   `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password     string   `json:"password" validate:"required,min=1,max=100" example:"SecurePass123!"`
	CaptchaID    string   `json:"captcha_id,omitempty" validate:"omitempty,max=64" example:"0b0f6f1e-2b7c-4b9b-9f3e-5f5d2a1c9e77"`
	CaptchaAngle *float64 `json:"captcha_angle,omitempty" validate:"omitempty,min=0,max=360" example:"137"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// VerifyLoginRequest answers the second-factor challenge of a login
type VerifyLoginRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required,uuid" example:"8f14e45f-ceea-467f-a0e6-1a2b3c4d5e6f"`
	Code        string `json:"code" validate:"required,min=6,max=7" example:"123-456"`
}

// AuthResponse is returned by signup, login, refresh and impersonation.
// When MFARequired is set the tokens are empty and ChallengeID must be answered at /auth/login/verify.
type AuthResponse struct {
	AccessToken        string        `json:"access_token,omitempty" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	RefreshToken       string        `json:"refresh_token,omitempty" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType          string        `json:"token_type,omitempty" example:"Bearer"`
	ExpiresIn          int           `json:"expires_in,omitempty" example:"3600"`
	User               *UserResponse `json:"user,omitempty"`
	MFARequired        bool          `json:"mfa_required,omitempty" example:"false"`
	ChallengeID        string        `json:"challenge_id,omitempty" example:"8f14e45f-ceea-467f-a0e6-1a2b3c4d5e6f"`
	ChallengeSentTo    string        `json:"challenge_sent_to,omitempty" example:"j***@example.com"`
	ChallengeExpiresAt *time.Time    `json:"challenge_expires_at,omitempty" example:"2024-01-15T10:35:00Z"`
}

// CaptchaResponse carries a rotate captcha challenge
type CaptchaResponse struct {
	ID          string `json:"id" example:"0b0f6f1e-2b7c-4b9b-9f3e-5f5d2a1c9e77"`
	MasterImage string `json:"master_image" example:"data:image/jpeg;base64,..."`
	ThumbImage  string `json:"thumb_image" example:"data:image/png;base64,..."`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID             uint       `json:"id" example:"123"`
	Email          string     `json:"email" example:"user@example.com"`
	FirstName      string     `json:"first_name" example:"John"`
	LastName       string     `json:"last_name" example:"Doe"`
	Company        string     `json:"company" example:"Acme"`
	PhoneNumber    string     `json:"phone_number" example:"+15555550100"`
	Domain         string     `json:"domain" example:"viewiq"`
	IsActive       bool       `json:"is_active" example:"true"`
	IsSuperuser    bool       `json:"is_superuser" example:"false"`
	PlanID         *uint      `json:"plan_id,omitempty" example:"1"`
	Roles          []string   `json:"roles" example:"user"`
	Capabilities   []string   `json:"capabilities" example:"ctl.read"`
	ImpersonatorID *uint      `json:"impersonator_id,omitempty"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty" example:"2024-01-15T10:30:00Z"`
	CreatedAt      time.Time  `json:"created_at" example:"2024-01-15T10:30:00Z"`
}
