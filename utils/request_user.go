package utils

import (
	"context"

	"github.com/amirphl/viewiq/models"
)

// RequestUser is the authenticated caller, resolved once per request by the auth middleware
type RequestUser struct {
	ID             uint
	Email          string
	IsSuperuser    bool
	ImpersonatorID *uint
	Capabilities   models.CapabilitySet
}

// Can reports whether the caller holds capability c
func (u *RequestUser) Can(c models.Capability) bool {
	if u == nil {
		return false
	}
	return u.IsSuperuser || u.Capabilities.Has(c)
}

// NewRequestUser builds the request identity from a user with roles loaded
func NewRequestUser(user *models.User, impersonatorID *uint) *RequestUser {
	return &RequestUser{
		ID:             user.ID,
		Email:          user.Email,
		IsSuperuser:    user.IsSuperuser,
		ImpersonatorID: impersonatorID,
		Capabilities:   user.Capabilities(),
	}
}

func WithRequestUser(ctx context.Context, u *RequestUser) context.Context {
	return context.WithValue(ctx, RequestUserKey, u)
}

func RequestUserFrom(ctx context.Context) (*RequestUser, bool) {
	u, ok := ctx.Value(RequestUserKey).(*RequestUser)
	return u, ok && u != nil
}
