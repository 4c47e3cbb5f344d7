package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/amirphl/viewiq/utils"
)

const userActionPageSize = 20

var userActionOrder = map[string]string{
	"":           "user_actions.created_at DESC, user_actions.id DESC",
	"created_at": "user_actions.created_at DESC, user_actions.id DESC",
	"slug":       "user_actions.slug ASC, user_actions.id ASC",
	"url":        "user_actions.url ASC, user_actions.id ASC",
}

// UserActionFlow records and lists the page visits reported by the frontend
type UserActionFlow interface {
	// List is admin only; q.Flat returns every match on one page
	List(ctx context.Context, q *dto.UserActionListQuery) (*dto.Page[*dto.UserActionResponse], error)
	Create(ctx context.Context, req *dto.UserActionRequest) (*dto.UserActionResponse, error)
}

// UserActionFlowImpl implements UserActionFlow
type UserActionFlowImpl struct {
	repo repository.UserActionRepository
}

// NewUserActionFlow creates a new user action flow
func NewUserActionFlow(repo repository.UserActionRepository) UserActionFlow {
	return &UserActionFlowImpl{repo: repo}
}

func (f *UserActionFlowImpl) List(ctx context.Context, q *dto.UserActionListQuery) (*dto.Page[*dto.UserActionResponse], error) {
	if _, err := requireCapability(ctx, models.CapabilityAdmin); err != nil {
		return nil, err
	}
	orderBy, ok := userActionOrder[strings.TrimSpace(q.OrderBy)]
	if !ok {
		return nil, ValidationError("order_by must be one of slug, url, created_at.")
	}
	filter, err := userActionFilter(q)
	if err != nil {
		return nil, err
	}

	total, err := f.repo.Count(ctx, filter)
	if err != nil {
		return nil, internal("USER_ACTION_LIST_FAILED", "Failed to list user actions", err)
	}

	size := q.Size
	if size <= 0 {
		size = userActionPageSize
	}
	p := newPagination(q.Page, size)
	limit, offset := p.Size, p.Offset
	if q.Flat {
		p = pagination{Page: 1, Size: int(total)}
		limit, offset = 0, 0
	}

	rows, err := f.repo.ByFilter(ctx, filter, orderBy, limit, offset)
	if err != nil {
		return nil, internal("USER_ACTION_LIST_FAILED", "Failed to list user actions", err)
	}
	items := make([]*dto.UserActionResponse, 0, len(rows))
	for _, a := range rows {
		items = append(items, toUserActionResponse(a))
	}
	return newPage(p, items, total), nil
}

func userActionFilter(q *dto.UserActionListQuery) (models.UserActionFilter, error) {
	filter := models.UserActionFilter{
		Username: optionalString(q.Username),
		URL:      optionalString(q.URL),
		Slug:     optionalString(q.Slug),
	}
	if s := strings.TrimSpace(q.StartDate); s != "" {
		start, err := utils.ParseDate(s)
		if err != nil {
			return filter, ValidationError("start_date must be YYYY-mm-dd.")
		}
		filter.CreatedAfter = &start
	}
	if s := strings.TrimSpace(q.EndDate); s != "" {
		end, err := utils.ParseDate(s)
		if err != nil {
			return filter, ValidationError("end_date must be YYYY-mm-dd.")
		}
		// the whole end day is included
		end = end.Add(24*time.Hour - time.Microsecond)
		filter.CreatedBefore = &end
	}
	if filter.CreatedAfter != nil && filter.CreatedBefore != nil && filter.CreatedAfter.After(*filter.CreatedBefore) {
		return filter, NewBusinessError("INVALID_DATE_RANGE", "start_date cannot be after end_date.", ErrInvalidDateRange)
	}
	return filter, nil
}

func (f *UserActionFlowImpl) Create(ctx context.Context, req *dto.UserActionRequest) (*dto.UserActionResponse, error) {
	caller, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	action := &models.UserAction{
		UserID:    caller.ID,
		Slug:      strings.TrimSpace(req.Slug),
		URL:       strings.TrimSpace(req.URL),
		CreatedAt: utils.UTCNow(),
	}
	if action.Slug == "" || action.URL == "" {
		return nil, ValidationError("slug and url are required.")
	}
	if err := f.repo.Save(ctx, action); err != nil {
		return nil, internal("USER_ACTION_SAVE_FAILED", "Failed to record user action", err)
	}
	resp := toUserActionResponse(action)
	resp.Email = caller.Email
	return resp, nil
}

func toUserActionResponse(a *models.UserAction) *dto.UserActionResponse {
	resp := &dto.UserActionResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Slug:      a.Slug,
		URL:       a.URL,
		CreatedAt: a.CreatedAt,
	}
	if a.User != nil {
		resp.Username = a.User.FullName()
		resp.Email = a.User.Email
	}
	return resp
}
