package dto

import "time"

// AdminListUsersQuery filters the admin user list
type AdminListUsersQuery struct {
	PageQuery
	IsActive *bool `query:"is_active" json:"is_active,omitempty"`
}

// AdminUpdateUserRequest patches a user as an administrator
type AdminUpdateUserRequest struct {
	IsActive  *bool   `json:"is_active,omitempty" example:"true"`
	RoleIDs   *[]uint `json:"role_ids,omitempty" example:"1,2"`
	PlanID    *uint   `json:"plan_id,omitempty" example:"1"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=150" example:"John"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=150" example:"Doe"`
}

// RoleRequest creates or replaces a role
type RoleRequest struct {
	Name         string   `json:"name" validate:"required,min=2,max=100" example:"analyst"`
	Description  string   `json:"description,omitempty" validate:"omitempty,max=255" example:"Read-only analyst"`
	Capabilities []string `json:"capabilities" validate:"required" example:"ctl.read,bste.read"`
}

// UpdateRoleRequest patches a role
type UpdateRoleRequest struct {
	Name         *string   `json:"name,omitempty" validate:"omitempty,min=2,max=100" example:"analyst"`
	Description  *string   `json:"description,omitempty" validate:"omitempty,max=255"`
	Capabilities *[]string `json:"capabilities,omitempty" example:"ctl.read"`
}

// RoleResponse is a role with its capabilities
type RoleResponse struct {
	ID           uint      `json:"id" example:"1"`
	Name         string    `json:"name" example:"admin"`
	Description  string    `json:"description" example:"Full access"`
	Capabilities []string  `json:"capabilities" example:"admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// DashboardResponse aggregates platform counters for administrators
type DashboardResponse struct {
	Users struct {
		Total  int64 `json:"total" example:"120"`
		Active int64 `json:"active" example:"98"`
	} `json:"users"`
	Segments            map[string]int64 `json:"segments"`
	SegmentExports      map[string]int64 `json:"segment_exports"`
	TargetingReports    map[string]int64 `json:"targeting_reports"`
	ActiveSubscriptions int64            `json:"active_subscriptions" example:"12"`
}
