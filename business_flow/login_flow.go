package businessflow

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/amirphl/viewiq/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthFlow handles signup, login, captcha and token lifecycle
type AuthFlow interface {
	Captcha(ctx context.Context) (*dto.CaptchaResponse, error)
	Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
	// VerifyLogin completes a login that was answered with a second-factor challenge
	VerifyLogin(ctx context.Context, req *dto.VerifyLoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.AuthResponse, error)
	Logout(ctx context.Context, accessToken string) error
	// IssueTokens returns a token pair for user; impersonatorID marks an admin acting as the user
	IssueTokens(user *models.User, impersonatorID *uint) (*dto.AuthResponse, error)
}

// AuthOptions are the tunables of AuthFlowImpl
type AuthOptions struct {
	CaptchaEnabled bool
	AccessTokenTTL time.Duration
	BcryptCost     int

	// MFAEnabled makes password login send an emailed code that VerifyLogin must receive
	MFAEnabled     bool
	OTPTTL         time.Duration
	OTPMaxAttempts int
}

const (
	defaultOTPTTL         = 5 * time.Minute
	defaultOTPMaxAttempts = 3
)

// AuthFlowImpl implements the authentication business flow
type AuthFlowImpl struct {
	userRepo     repository.UserRepository
	roleRepo     repository.RoleRepository
	otpRepo      repository.OTPVerificationRepository
	tokenService services.TokenService
	captcha      services.CaptchaService
	notifier     services.NotificationService
	tx           repository.TxRunner
	opts         AuthOptions
}

// NewAuthFlow creates a new auth flow instance
func NewAuthFlow(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	otpRepo repository.OTPVerificationRepository,
	tokenService services.TokenService,
	captcha services.CaptchaService,
	notifier services.NotificationService,
	tx repository.TxRunner,
	opts AuthOptions,
) AuthFlow {
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = utils.AccessTokenTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = defaultOTPTTL
	}
	if opts.OTPMaxAttempts <= 0 {
		opts.OTPMaxAttempts = defaultOTPMaxAttempts
	}
	return &AuthFlowImpl{
		userRepo:     userRepo,
		roleRepo:     roleRepo,
		otpRepo:      otpRepo,
		tokenService: tokenService,
		captcha:      captcha,
		notifier:     notifier,
		tx:           tx,
		opts:         opts,
	}
}

// Captcha issues a rotate challenge
func (f *AuthFlowImpl) Captcha(ctx context.Context) (*dto.CaptchaResponse, error) {
	if f.captcha == nil {
		return nil, NewBusinessError("CAPTCHA_DISABLED", "Captcha is not enabled", ErrNotFound)
	}
	ch, err := f.captcha.GenerateRotate(ctx)
	if err != nil {
		return nil, internal("CAPTCHA_GENERATION_FAILED", "Failed to generate captcha", err)
	}
	return &dto.CaptchaResponse{
		ID:          ch.ID,
		MasterImage: ch.MasterImageBase64,
		ThumbImage:  ch.ThumbImageBase64,
	}, nil
}

// Login authenticates a user with email and password
func (f *AuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	if f.opts.CaptchaEnabled && f.captcha != nil {
		if req.CaptchaID == "" || req.CaptchaAngle == nil || !f.captcha.VerifyRotate(ctx, req.CaptchaID, *req.CaptchaAngle) {
			return nil, NewBusinessError("CAPTCHA_INVALID", "Captcha verification failed", ErrCaptchaInvalid)
		}
	}

	user, err := f.userRepo.ByEmail(ctx, req.Email)
	if err != nil {
		return nil, internal("LOGIN_FAILED", "Login failed", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		slog.WarnContext(ctx, "login rejected", append([]any{"email", req.Email}, metadata.logAttrs()...)...)
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", ErrInvalidCredentials)
	}
	if !user.IsActive {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is inactive", ErrAccountInactive)
	}

	if f.opts.MFAEnabled && f.otpRepo != nil {
		return f.challenge(ctx, user, metadata)
	}
	return f.completeLogin(ctx, user, metadata)
}

func (f *AuthFlowImpl) completeLogin(ctx context.Context, user *models.User, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	now := utils.UTCNow()
	if err := f.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, internal("LOGIN_FAILED", "Login failed", err)
	}
	user.LastLoginAt = &now

	slog.InfoContext(ctx, "user logged in", append([]any{"user_id", user.ID}, metadata.logAttrs()...)...)
	return f.IssueTokens(user, nil)
}

// challenge replaces the user's pending login codes with a fresh one and emails it
func (f *AuthFlowImpl) challenge(ctx context.Context, user *models.User, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	code, err := GenerateOTP()
	if err != nil {
		return nil, internal("OTP_GENERATION_FAILED", "Failed to generate verification code", err)
	}

	now := utils.UTCNow()
	otp := &models.OTPVerification{
		CorrelationID: uuid.New(),
		UserID:        user.ID,
		OTPCode:       code,
		Purpose:       models.OTPPurposeLogin,
		TargetValue:   user.Email,
		Status:        models.OTPStatusPending,
		MaxAttempts:   f.opts.OTPMaxAttempts,
		ExpiresAt:     now.Add(f.opts.OTPTTL),
	}
	if metadata != nil {
		otp.IPAddress = &metadata.IPAddress
		otp.UserAgent = &metadata.UserAgent
	}

	err = f.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := f.otpRepo.ExpirePending(ctx, user.ID, models.OTPPurposeLogin); err != nil {
			return err
		}
		return f.otpRepo.Save(ctx, otp)
	})
	if err != nil {
		return nil, internal("LOGIN_FAILED", "Login failed", err)
	}

	if err := f.notifier.SendLoginCode(ctx, user.Email, code, f.opts.OTPTTL); err != nil {
		return nil, internal("OTP_SEND_FAILED", "Failed to send verification code", err)
	}

	slog.InfoContext(ctx, "login code sent", append([]any{"user_id", user.ID, "challenge_id", otp.CorrelationID}, metadata.logAttrs()...)...)
	return &dto.AuthResponse{
		MFARequired:        true,
		ChallengeID:        otp.CorrelationID.String(),
		ChallengeSentTo:    maskEmail(user.Email),
		ChallengeExpiresAt: &otp.ExpiresAt,
	}, nil
}

// VerifyLogin checks the emailed code of a pending challenge and issues tokens
func (f *AuthFlowImpl) VerifyLogin(ctx context.Context, req *dto.VerifyLoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	invalidSession := NewBusinessError("MFA_SESSION_INVALID", "Invalid session for the user. Please log in again.", ErrMFASessionInvalid)
	if f.otpRepo == nil {
		return nil, invalidSession
	}
	id, err := uuid.Parse(req.ChallengeID)
	if err != nil {
		return nil, invalidSession
	}

	otp, err := f.otpRepo.ByCorrelationID(ctx, id)
	if err != nil {
		return nil, internal("LOGIN_FAILED", "Login failed", err)
	}
	if otp == nil || otp.Purpose != models.OTPPurposeLogin {
		return nil, invalidSession
	}

	now := utils.UTCNow()
	exceeded := NewBusinessError("OTP_ATTEMPTS_EXCEEDED", "Max retries exceeded. Please log in again.", ErrOTPAttemptsExceeded)
	switch {
	case otp.Status == models.OTPStatusFailed:
		return nil, exceeded
	case !otp.IsPending():
		return nil, invalidSession
	case otp.IsExpired(now):
		if _, err := f.otpRepo.Transition(ctx, otp.ID, models.OTPStatusPending, models.OTPStatusExpired, now); err != nil {
			return nil, internal("LOGIN_FAILED", "Login failed", err)
		}
		return nil, NewBusinessError("OTP_EXPIRED", "Verification code expired. Please log in again.", ErrOTPExpired)
	}

	code := strings.ReplaceAll(strings.TrimSpace(req.Code), "-", "")
	if subtle.ConstantTimeCompare([]byte(code), []byte(otp.OTPCode)) != 1 {
		attempts, err := f.otpRepo.RecordFailedAttempt(ctx, otp.ID)
		if err != nil {
			return nil, internal("LOGIN_FAILED", "Login failed", err)
		}
		slog.WarnContext(ctx, "login code rejected", append([]any{"user_id", otp.UserID, "attempts", attempts}, metadata.logAttrs()...)...)
		if attempts >= otp.MaxAttempts {
			if _, err := f.otpRepo.Transition(ctx, otp.ID, models.OTPStatusPending, models.OTPStatusFailed, now); err != nil {
				return nil, internal("LOGIN_FAILED", "Login failed", err)
			}
			return nil, exceeded
		}
		return nil, &BusinessError{
			Code:    "OTP_INVALID",
			Message: "Invalid verification code.",
			Err:     ErrOTPInvalid,
			Details: map[string]int{"attempts_left": otp.MaxAttempts - attempts},
		}
	}

	used, err := f.otpRepo.Transition(ctx, otp.ID, models.OTPStatusPending, models.OTPStatusUsed, now)
	if err != nil {
		return nil, internal("LOGIN_FAILED", "Login failed", err)
	}
	if !used {
		return nil, invalidSession
	}

	user, err := f.userRepo.ByIDWithRoles(ctx, otp.UserID)
	if err != nil {
		return nil, internal("LOGIN_FAILED", "Login failed", err)
	}
	if user == nil {
		return nil, invalidSession
	}
	if !user.IsActive {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is inactive", ErrAccountInactive)
	}
	return f.completeLogin(ctx, user, metadata)
}

// Refresh rotates a refresh token; the old one is revoked
func (f *AuthFlowImpl) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.AuthResponse, error) {
	claims, err := f.tokenService.ValidateToken(ctx, req.RefreshToken)
	if err != nil || claims.TokenType != services.TokenTypeRefresh {
		return nil, NewBusinessError("TOKEN_INVALID", "Invalid refresh token", ErrUnauthenticated)
	}

	user, err := f.userRepo.ByIDWithRoles(ctx, claims.UserID)
	if err != nil {
		return nil, internal("REFRESH_FAILED", "Token refresh failed", err)
	}
	if user == nil {
		return nil, NewBusinessError("TOKEN_INVALID", "Invalid refresh token", ErrUnauthenticated)
	}
	if !user.IsActive {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is inactive", ErrAccountInactive)
	}

	access, refresh, err := f.tokenService.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("TOKEN_INVALID", "Invalid refresh token", errors.Join(ErrUnauthenticated, err))
	}
	return &dto.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(f.opts.AccessTokenTTL.Seconds()),
		User:         ToUserResponse(user, claims.ImpersonatorID),
	}, nil
}

// Logout revokes the presented access token for its remaining lifetime
func (f *AuthFlowImpl) Logout(ctx context.Context, accessToken string) error {
	if err := f.tokenService.RevokeToken(ctx, accessToken); err != nil {
		return NewBusinessError("TOKEN_INVALID", "Invalid access token", errors.Join(ErrUnauthenticated, err))
	}
	return nil
}

func (f *AuthFlowImpl) IssueTokens(user *models.User, impersonatorID *uint) (*dto.AuthResponse, error) {
	access, refresh, err := f.tokenService.GenerateTokens(user.ID, impersonatorID)
	if err != nil {
		return nil, internal("TOKEN_GENERATION_FAILED", "Failed to issue tokens", err)
	}
	return &dto.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(f.opts.AccessTokenTTL.Seconds()),
		User:         ToUserResponse(user, impersonatorID),
	}, nil
}

// GenerateOTP returns a random six digit code
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// maskEmail keeps the first letter of the mailbox, e.g. j***@example.com
func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
