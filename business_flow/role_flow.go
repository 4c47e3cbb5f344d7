package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
)

// RoleFlow manages roles and their capability sets
type RoleFlow interface {
	ListCapabilities(ctx context.Context) ([]string, error)
	ListRoles(ctx context.Context) ([]*dto.RoleResponse, error)
	CreateRole(ctx context.Context, req *dto.RoleRequest) (*dto.RoleResponse, error)
	UpdateRole(ctx context.Context, id uint, req *dto.UpdateRoleRequest) (*dto.RoleResponse, error)
	DeleteRole(ctx context.Context, id uint) error
}

// RoleFlowImpl implements the role business flow
type RoleFlowImpl struct {
	roleRepo repository.RoleRepository
}

// NewRoleFlow creates a new role flow instance
func NewRoleFlow(roleRepo repository.RoleRepository) RoleFlow {
	return &RoleFlowImpl{roleRepo: roleRepo}
}

func toRoleResponse(r *models.Role) *dto.RoleResponse {
	caps := r.CapabilitySet().List()
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, c.String())
	}
	return &dto.RoleResponse{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Capabilities: names,
		CreatedAt:    r.CreatedAt,
	}
}

// parseCapabilityList rejects any name outside the closed capability set
func parseCapabilityList(in []string) ([]models.Capability, error) {
	known, unknown := models.ParseCapabilities(in)
	if len(unknown) > 0 {
		return nil, NewBusinessErrorf("UNKNOWN_CAPABILITIES", "Unknown capabilities: %s", ErrUnknownCapabilities, strings.Join(unknown, ", "))
	}
	return known, nil
}

func (f *RoleFlowImpl) ListCapabilities(ctx context.Context) ([]string, error) {
	if _, err := requireCapability(ctx, models.CapabilityAdmin); err != nil {
		return nil, err
	}
	all := models.AllCapabilities()
	out := make([]string, 0, len(all))
	for _, c := range all {
		out = append(out, c.String())
	}
	return out, nil
}

func (f *RoleFlowImpl) ListRoles(ctx context.Context) ([]*dto.RoleResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityAdmin); err != nil {
		return nil, err
	}
	rows, err := f.roleRepo.ByFilter(ctx, models.RoleFilter{}, "", 0, 0)
	if err != nil {
		return nil, internal("ROLE_LIST_FAILED", "Failed to list roles", err)
	}
	out := make([]*dto.RoleResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRoleResponse(r))
	}
	return out, nil
}

func (f *RoleFlowImpl) CreateRole(ctx context.Context, req *dto.RoleRequest) (*dto.RoleResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityAdmin); err != nil {
		return nil, err
	}
	caps, err := parseCapabilityList(req.Capabilities)
	if err != nil {
		return nil, err
	}
	role := &models.Role{Name: strings.TrimSpace(req.Name), Description: req.Description}
	role.SetCapabilities(caps)
	if err := f.roleRepo.Save(ctx, role); err != nil {
		if repository.IsDuplicate(err) {
			return nil, NewBusinessErrorf("ROLE_ALREADY_EXISTS", "A role named %s already exists", ErrRoleAlreadyExists, role.Name)
		}
		return nil, internal("ROLE_CREATE_FAILED", "Failed to create role", err)
	}
	return toRoleResponse(role), nil
}

func (f *RoleFlowImpl) UpdateRole(ctx context.Context, id uint, req *dto.UpdateRoleRequest) (*dto.RoleResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityAdmin); err != nil {
		return nil, err
	}
	role, err := f.roleRepo.ByID(ctx, id)
	if err != nil {
		return nil, internal("ROLE_FETCH_FAILED", "Failed to load role", err)
	}
	if role == nil {
		return nil, notFound("ROLE_NOT_FOUND", "Role not found", ErrRoleNotFound)
	}
	if req.Capabilities != nil {
		caps, err := parseCapabilityList(*req.Capabilities)
		if err != nil {
			return nil, err
		}
		role.SetCapabilities(caps)
	}
	if req.Name != nil {
		role.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if err := f.roleRepo.Update(ctx, role); err != nil {
		if repository.IsDuplicate(err) {
			return nil, NewBusinessErrorf("ROLE_ALREADY_EXISTS", "A role named %s already exists", ErrRoleAlreadyExists, role.Name)
		}
		return nil, internal("ROLE_UPDATE_FAILED", "Failed to update role", err)
	}
	return toRoleResponse(role), nil
}

func (f *RoleFlowImpl) DeleteRole(ctx context.Context, id uint) error {
	if _, err := requireCapability(ctx, models.CapabilityAdmin); err != nil {
		return err
	}
	deleted, err := f.roleRepo.Delete(ctx, id)
	if err != nil {
		return internal("ROLE_DELETE_FAILED", "Failed to delete role", err)
	}
	if !deleted {
		return notFound("ROLE_NOT_FOUND", "Role not found", ErrRoleNotFound)
	}
	return nil
}
