package businessflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"golang.org/x/crypto/bcrypt"
)

// Signup creates an active user with the default role and returns a token pair
func (f *AuthFlowImpl) Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), f.opts.BcryptCost)
	if err != nil {
		return nil, internal("SIGNUP_FAILED", "Signup failed", err)
	}

	domain := ""
	if metadata != nil {
		domain = metadata.Host
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Company:      strings.TrimSpace(req.Company),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Domain:       ResolveDomain(domain),
		IsActive:     true,
	}

	err = f.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := f.userRepo.ByEmail(ctx, user.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailAlreadyExists
		}
		if err := f.userRepo.Save(ctx, user); err != nil {
			if repository.IsDuplicate(err) {
				return ErrEmailAlreadyExists
			}
			return err
		}
		role, err := f.roleRepo.ByName(ctx, models.RoleNameUser)
		if err != nil {
			return err
		}
		if role == nil {
			return nil
		}
		return f.userRepo.ReplaceRoles(ctx, user, []*models.Role{role})
	})
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			return nil, NewBusinessError("EMAIL_ALREADY_EXISTS", "A user with this email already exists", ErrEmailAlreadyExists)
		}
		return nil, internal("SIGNUP_FAILED", "Signup failed", err)
	}

	slog.InfoContext(ctx, "user signed up", append([]any{"user_id", user.ID}, metadata.logAttrs()...)...)
	f.sendWelcome(ctx, user)

	return f.IssueTokens(user, nil)
}

// sendWelcome is best effort; a failed email never fails the signup
func (f *AuthFlowImpl) sendWelcome(ctx context.Context, user *models.User) {
	if f.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	go func() {
		defer cancel()
		if err := f.notifier.SendWelcome(ctx, user.Email, user.FullName()); err != nil {
			slog.WarnContext(ctx, "welcome email failed", "user_id", user.ID, "error", err)
		}
	}()
}
