package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
)

// ProfileFlow serves the caller's own profile and push tokens
type ProfileFlow interface {
	Me(ctx context.Context) (*dto.UserResponse, error)
	UpdateMe(ctx context.Context, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	AddDeviceToken(ctx context.Context, req *dto.DeviceTokenRequest) (*dto.DeviceTokenResponse, error)
	RemoveDeviceToken(ctx context.Context, token string) error
	ListDeviceTokens(ctx context.Context) ([]dto.DeviceTokenResponse, error)
}

// ProfileFlowImpl implements the profile business flow
type ProfileFlowImpl struct {
	userRepo   repository.UserRepository
	deviceRepo repository.DeviceTokenRepository
}

// NewProfileFlow creates a new profile flow instance
func NewProfileFlow(userRepo repository.UserRepository, deviceRepo repository.DeviceTokenRepository) ProfileFlow {
	return &ProfileFlowImpl{userRepo: userRepo, deviceRepo: deviceRepo}
}

func (f *ProfileFlowImpl) loadCaller(ctx context.Context) (*models.User, *uint, error) {
	caller, err := currentUser(ctx)
	if err != nil {
		return nil, nil, err
	}
	user, err := f.userRepo.ByIDWithRoles(ctx, caller.ID)
	if err != nil {
		return nil, nil, internal("PROFILE_FETCH_FAILED", "Failed to load profile", err)
	}
	if user == nil {
		return nil, nil, notFound("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}
	return user, caller.ImpersonatorID, nil
}

func (f *ProfileFlowImpl) Me(ctx context.Context) (*dto.UserResponse, error) {
	user, impersonator, err := f.loadCaller(ctx)
	if err != nil {
		return nil, err
	}
	return ToUserResponse(user, impersonator), nil
}

func (f *ProfileFlowImpl) UpdateMe(ctx context.Context, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, impersonator, err := f.loadCaller(ctx)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Company != nil {
		user.Company = strings.TrimSpace(*req.Company)
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}
	if err := f.userRepo.Update(ctx, user); err != nil {
		return nil, internal("PROFILE_UPDATE_FAILED", "Failed to update profile", err)
	}
	return ToUserResponse(user, impersonator), nil
}

// AddDeviceToken is idempotent; re-registering a token moves it to the caller
func (f *ProfileFlowImpl) AddDeviceToken(ctx context.Context, req *dto.DeviceTokenRequest) (*dto.DeviceTokenResponse, error) {
	caller, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	token := &models.DeviceToken{
		UserID:   caller.ID,
		Token:    strings.TrimSpace(req.Token),
		Platform: req.Platform,
	}
	if err := f.deviceRepo.Upsert(ctx, token); err != nil {
		return nil, internal("DEVICE_TOKEN_SAVE_FAILED", "Failed to register device token", err)
	}
	return &dto.DeviceTokenResponse{Token: token.Token, Platform: token.Platform}, nil
}

func (f *ProfileFlowImpl) RemoveDeviceToken(ctx context.Context, token string) error {
	caller, err := currentUser(ctx)
	if err != nil {
		return err
	}
	deleted, err := f.deviceRepo.DeleteForUser(ctx, caller.ID, token)
	if err != nil {
		return internal("DEVICE_TOKEN_DELETE_FAILED", "Failed to remove device token", err)
	}
	if !deleted {
		return notFound("DEVICE_TOKEN_NOT_FOUND", "Device token not found", ErrNotFound)
	}
	return nil
}

func (f *ProfileFlowImpl) ListDeviceTokens(ctx context.Context) ([]dto.DeviceTokenResponse, error) {
	caller, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := f.deviceRepo.ByUserID(ctx, caller.ID)
	if err != nil {
		return nil, internal("DEVICE_TOKEN_LIST_FAILED", "Failed to list device tokens", err)
	}
	out := make([]dto.DeviceTokenResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.DeviceTokenResponse{Token: r.Token, Platform: r.Platform})
	}
	return out, nil
}
