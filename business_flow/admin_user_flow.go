package businessflow

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
)

// AdminUserFlow manages users on behalf of administrators
type AdminUserFlow interface {
	ListUsers(ctx context.Context, q *dto.AdminListUsersQuery) (*dto.Page[*dto.UserResponse], error)
	// ExportUsers writes every user matching q as CSV, ignoring paging
	ExportUsers(ctx context.Context, q *dto.AdminListUsersQuery, w io.Writer) error
	GetUser(ctx context.Context, id uint) (*dto.UserResponse, error)
	UpdateUser(ctx context.Context, id uint, req *dto.AdminUpdateUserRequest) (*dto.UserResponse, error)
	DeleteUser(ctx context.Context, id uint) error
	Impersonate(ctx context.Context, id uint) (*dto.AuthResponse, error)
}

// AdminUserFlowImpl implements the admin user management flow
type AdminUserFlowImpl struct {
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
	planRepo repository.PlanRepository
	auth     AuthFlow
	tx       repository.TxRunner
}

// NewAdminUserFlow creates a new admin user flow instance
func NewAdminUserFlow(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	planRepo repository.PlanRepository,
	auth AuthFlow,
	tx repository.TxRunner,
) AdminUserFlow {
	return &AdminUserFlowImpl{
		userRepo: userRepo,
		roleRepo: roleRepo,
		planRepo: planRepo,
		auth:     auth,
		tx:       tx,
	}
}

func (f *AdminUserFlowImpl) ListUsers(ctx context.Context, q *dto.AdminListUsersQuery) (*dto.Page[*dto.UserResponse], error) {
	if _, err := requireCapability(ctx, models.CapabilityAdmin); err != nil {
		return nil, err
	}
	p := newPagination(q.Page, q.Size)
	filter := models.UserFilter{IsActive: q.IsActive, Search: optionalString(q.Search)}

	total, err := f.userRepo.Count(ctx, filter)
	if err != nil {
		return nil, internal("USER_LIST_FAILED", "Failed to list users", err)
	}
	rows, err := f.userRepo.ByFilter(ctx, filter, "id DESC", p.Size, p.Offset)
	if err != nil {
		return nil, internal("USER_LIST_FAILED", "Failed to list users", err)
	}
	items := make([]*dto.UserResponse, 0, len(rows))
	for _, u := range rows {
		items = append(items, ToUserResponse(u, nil))
	}
	return newPage(p, items, total), nil
}

var userExportHeader = []string{
	"First name", "Last name", "Company", "Phone", "Email", "Domain",
	"Registered date", "Last login date", "Roles", "Is active",
}

const userExportTimeLayout = "2006-01-02 15:04:05"

func (f *AdminUserFlowImpl) ExportUsers(ctx context.Context, q *dto.AdminListUsersQuery, w io.Writer) error {
	if _, err := requireCapability(ctx, models.CapabilityAdmin); err != nil {
		return err
	}
	filter := models.UserFilter{IsActive: q.IsActive, Search: optionalString(q.Search)}

	cw := csv.NewWriter(w)
	if err := cw.Write(userExportHeader); err != nil {
		return err
	}
	for offset := 0; ; offset += exportBatchSize {
		rows, err := f.userRepo.ByFilter(ctx, filter, "id ASC", exportBatchSize, offset)
		if err != nil {
			return internal("USER_EXPORT_FAILED", "Failed to export users", err)
		}
		for _, u := range rows {
			if err := cw.Write(userExportRow(u)); err != nil {
				return err
			}
		}
		if len(rows) < exportBatchSize {
			break
		}
	}
	cw.Flush()
	return cw.Error()
}

func userExportRow(u *models.User) []string {
	lastLogin := ""
	if u.LastLoginAt != nil {
		lastLogin = u.LastLoginAt.UTC().Format(userExportTimeLayout)
	}
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Name)
	}
	return []string{
		u.FirstName,
		u.LastName,
		u.Company,
		u.PhoneNumber,
		u.Email,
		u.Domain,
		u.CreatedAt.In(time.UTC).Format(userExportTimeLayout),
		lastLogin,
		strings.Join(roles, ";"),
		strconv.FormatBool(u.IsActive),
	}
}

func (f *AdminUserFlowImpl) loadUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := f.userRepo.ByIDWithRoles(ctx, id)
	if err != nil {
		return nil, internal("USER_FETCH_FAILED", "Failed to load user", err)
	}
	if user == nil {
		return nil, notFound("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}
	return user, nil
}

func (f *AdminUserFlowImpl) GetUser(ctx context.Context, id uint) (*dto.UserResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityAdmin); err != nil {
		return nil, err
	}
	user, err := f.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToUserResponse(user, nil), nil
}

func (f *AdminUserFlowImpl) UpdateUser(ctx context.Context, id uint, req *dto.AdminUpdateUserRequest) (*dto.UserResponse, error) {
	caller, err := requireCapability(ctx, models.CapabilityAdmin)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = f.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if user, err = f.loadUser(ctx, id); err != nil {
			return err
		}
		if user.IsSuperuser && !caller.IsSuperuser {
			return NewBusinessError("SUPERUSER_PROTECTED", "Superusers cannot be modified", ErrSuperuserProtected)
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		if req.FirstName != nil {
			user.FirstName = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			user.LastName = strings.TrimSpace(*req.LastName)
		}
		if req.PlanID != nil {
			plan, err := f.planRepo.ByID(ctx, *req.PlanID)
			if err != nil {
				return err
			}
			if plan == nil {
				return NewBusinessErrorf("PLAN_NOT_FOUND", "Plan %d does not exist", ErrPlanNotFound, *req.PlanID)
			}
			user.PlanID = &plan.ID
		}
		if err := f.userRepo.Update(ctx, user); err != nil {
			return err
		}
		if req.RoleIDs == nil {
			return nil
		}
		roles, err := f.rolesByIDs(ctx, *req.RoleIDs)
		if err != nil {
			return err
		}
		return f.userRepo.ReplaceRoles(ctx, user, roles)
	})
	if err != nil {
		return nil, asBusinessError(err, "USER_UPDATE_FAILED", "Failed to update user")
	}

	slog.InfoContext(ctx, "user updated by admin", "admin_id", caller.ID, "user_id", id)
	return ToUserResponse(user, nil), nil
}

func (f *AdminUserFlowImpl) rolesByIDs(ctx context.Context, ids []uint) ([]*models.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	roles, err := f.roleRepo.ByFilter(ctx, models.RoleFilter{IDs: ids}, "", 0, 0)
	if err != nil {
		return nil, err
	}
	found := make(map[uint]struct{}, len(roles))
	for _, r := range roles {
		found[r.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return nil, NewBusinessErrorf("ROLE_NOT_FOUND", "Unknown role ids: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return roles, nil
}

// DeleteUser removes a user. Superusers and the caller themselves are protected.
func (f *AdminUserFlowImpl) DeleteUser(ctx context.Context, id uint) error {
	caller, err := requireCapability(ctx, models.CapabilityAdmin)
	if err != nil {
		return err
	}
	if caller.ID == id {
		return NewBusinessError("CANNOT_DELETE_SELF", "You cannot delete your own account", ErrCannotDeleteSelf)
	}
	user, err := f.loadUser(ctx, id)
	if err != nil {
		return err
	}
	if user.IsSuperuser {
		return NewBusinessError("SUPERUSER_PROTECTED", "Superusers cannot be deleted", ErrSuperuserProtected)
	}
	if _, err := f.userRepo.Delete(ctx, id); err != nil {
		return internal("USER_DELETE_FAILED", "Failed to delete user", err)
	}
	slog.InfoContext(ctx, "user deleted by admin", "admin_id", caller.ID, "user_id", id)
	return nil
}

// Impersonate issues tokens for the target carrying the caller as impersonator
func (f *AdminUserFlowImpl) Impersonate(ctx context.Context, id uint) (*dto.AuthResponse, error) {
	caller, err := requireCapability(ctx, models.CapabilityAdmin)
	if err != nil {
		return nil, err
	}
	user, err := f.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsSuperuser {
		return nil, NewBusinessError("SUPERUSER_PROTECTED", "Superusers cannot be impersonated", ErrSuperuserProtected)
	}
	if !user.IsActive {
		return nil, NewBusinessError("USER_INACTIVE", "Cannot impersonate an inactive user", ErrImpersonateInactive)
	}
	impersonator := caller.ID
	slog.InfoContext(ctx, "impersonation started", "admin_id", caller.ID, "user_id", id)
	return f.auth.IssueTokens(user, &impersonator)
}
