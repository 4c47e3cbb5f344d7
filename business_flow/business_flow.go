// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/utils"
)

// ClientMetadata holds client information attached to auth log records
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
	Host      string `json:"host,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func (cm *ClientMetadata) logAttrs() []any {
	if cm == nil {
		return nil
	}
	return []any{"ip", cm.IPAddress, "user_agent", cm.UserAgent, "request_id", cm.RequestID}
}

// currentUser returns the caller set by the auth middleware
func currentUser(ctx context.Context) (*utils.RequestUser, error) {
	u, ok := utils.RequestUserFrom(ctx)
	if !ok {
		return nil, NewBusinessError("UNAUTHORIZED", "Authentication required", ErrUnauthenticated)
	}
	return u, nil
}

// requireCapability returns the caller when they hold at least one of caps
func requireCapability(ctx context.Context, caps ...models.Capability) (*utils.RequestUser, error) {
	u, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range caps {
		if u.Can(c) {
			return u, nil
		}
	}
	return nil, forbidden("You do not have permission to perform this action.")
}

// pagination resolves page/size query values into an offset window
type pagination struct {
	Page   int
	Size   int
	Offset int
}

func newPagination(page, size int) pagination {
	if size <= 0 {
		size = utils.DefaultPageSize
	}
	if size > utils.MaxPageSize {
		size = utils.MaxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return pagination{Page: page, Size: size, Offset: (page - 1) * size}
}

func maxPage(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

func newPage[T any](p pagination, items []T, total int64) *dto.Page[T] {
	if items == nil {
		items = []T{}
	}
	return &dto.Page[T]{
		CurrentPage: p.Page,
		Items:       items,
		ItemsCount:  total,
		MaxPage:     maxPage(total, p.Size),
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func parseUintID(raw string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// ToUserResponse converts a user with roles loaded into its public view
func ToUserResponse(user *models.User, impersonatorID *uint) *dto.UserResponse {
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.Name)
	}
	caps := user.Capabilities().List()
	capNames := make([]string, 0, len(caps))
	for _, c := range caps {
		capNames = append(capNames, c.String())
	}
	return &dto.UserResponse{
		ID:             user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Company:        user.Company,
		PhoneNumber:    user.PhoneNumber,
		Domain:         user.Domain,
		IsActive:       user.IsActive,
		IsSuperuser:    user.IsSuperuser,
		PlanID:         user.PlanID,
		Roles:          roles,
		Capabilities:   capNames,
		ImpersonatorID: impersonatorID,
		LastLoginAt:    user.LastLoginAt,
		CreatedAt:      user.CreatedAt,
	}
}

// logFailure records an unexpected error with the flow name
func logFailure(ctx context.Context, flow string, err error, attrs ...any) {
	args := append([]any{"flow", flow, "error", err}, attrs...)
	slog.ErrorContext(ctx, "business flow failed", args...)
}
