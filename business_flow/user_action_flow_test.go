package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserActionRepo struct {
	repository.UserActionRepository
	rows []*models.UserAction

	filter        models.UserActionFilter
	orderBy       string
	limit, offset int
}

func (r *fakeUserActionRepo) Save(_ context.Context, a *models.UserAction) error {
	a.ID = uint(len(r.rows) + 1)
	r.rows = append(r.rows, a)
	return nil
}

func (r *fakeUserActionRepo) Count(_ context.Context, filter models.UserActionFilter) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *fakeUserActionRepo) ByFilter(_ context.Context, filter models.UserActionFilter, orderBy string, limit, offset int) ([]*models.UserAction, error) {
	r.filter, r.orderBy, r.limit, r.offset = filter, orderBy, limit, offset
	rows := r.rows
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func TestUserActionCreate(t *testing.T) {
	repo := &fakeUserActionRepo{}
	flow := NewUserActionFlow(repo)

	t.Run("AnyAuthenticatedUser", func(t *testing.T) {
		resp, err := flow.Create(asUser(7), &dto.UserActionRequest{Slug: " segments ", URL: "https://app.viewiq.com/segments"})
		require.NoError(t, err)
		assert.Equal(t, uint(7), resp.UserID)
		assert.Equal(t, "user@example.com", resp.Email)
		assert.Equal(t, "segments", resp.Slug)
		require.Len(t, repo.rows, 1)
		assert.Equal(t, uint(7), repo.rows[0].UserID)
		assert.False(t, repo.rows[0].CreatedAt.IsZero())
	})

	t.Run("Anonymous", func(t *testing.T) {
		_, err := flow.Create(context.Background(), &dto.UserActionRequest{Slug: "x", URL: "y"})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("BlankSlug", func(t *testing.T) {
		_, err := flow.Create(asUser(7), &dto.UserActionRequest{Slug: "  ", URL: "y"})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestUserActionList(t *testing.T) {
	repo := &fakeUserActionRepo{}
	for i := 0; i < 45; i++ {
		repo.rows = append(repo.rows, &models.UserAction{
			ID:     uint(i + 1),
			UserID: 7,
			User:   &models.User{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"},
			Slug:   "segments",
			URL:    "/segments",
		})
	}
	flow := NewUserActionFlow(repo)
	admin := asUser(1, models.CapabilityAdmin)

	t.Run("DefaultPageOfTwenty", func(t *testing.T) {
		page, err := flow.List(admin, &dto.UserActionListQuery{Page: 3})
		require.NoError(t, err)
		assert.Equal(t, 20, repo.limit)
		assert.Equal(t, 40, repo.offset)
		assert.Equal(t, "user_actions.created_at DESC, user_actions.id DESC", repo.orderBy)
		assert.EqualValues(t, 45, page.ItemsCount)
		assert.Equal(t, 3, page.MaxPage)
		require.Len(t, page.Items, 5)
		assert.Equal(t, "Jane Doe", page.Items[0].Username)
		assert.Equal(t, "jane@example.com", page.Items[0].Email)
	})

	t.Run("Flat", func(t *testing.T) {
		page, err := flow.List(admin, &dto.UserActionListQuery{Page: 2, Flat: true})
		require.NoError(t, err)
		assert.Zero(t, repo.limit)
		assert.Zero(t, repo.offset)
		assert.Len(t, page.Items, 45)
		assert.Equal(t, 1, page.CurrentPage)
		assert.Equal(t, 1, page.MaxPage)
	})

	t.Run("Ordering", func(t *testing.T) {
		tests := []struct {
			orderBy string
			want    string
		}{
			{"slug", "user_actions.slug ASC, user_actions.id ASC"},
			{"url", "user_actions.url ASC, user_actions.id ASC"},
			{"created_at", "user_actions.created_at DESC, user_actions.id DESC"},
		}
		for _, tt := range tests {
			_, err := flow.List(admin, &dto.UserActionListQuery{OrderBy: tt.orderBy})
			require.NoError(t, err)
			assert.Equal(t, tt.want, repo.orderBy)
		}

		_, err := flow.List(admin, &dto.UserActionListQuery{OrderBy: "user_id; DROP TABLE users"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Filters", func(t *testing.T) {
		_, err := flow.List(admin, &dto.UserActionListQuery{
			Username:  " jane doe ",
			URL:       "/segments",
			Slug:      "seg",
			StartDate: "2024-01-01",
			EndDate:   "2024-01-31",
		})
		require.NoError(t, err)
		require.NotNil(t, repo.filter.Username)
		assert.Equal(t, "jane doe", *repo.filter.Username)
		assert.Equal(t, "/segments", *repo.filter.URL)
		assert.Equal(t, "seg", *repo.filter.Slug)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *repo.filter.CreatedAfter)
		assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999000, time.UTC), *repo.filter.CreatedBefore)
	})

	t.Run("BadDates", func(t *testing.T) {
		_, err := flow.List(admin, &dto.UserActionListQuery{StartDate: "01/02/2024"})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = flow.List(admin, &dto.UserActionListQuery{StartDate: "2024-02-01", EndDate: "2024-01-01"})
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})

	t.Run("RequiresAdmin", func(t *testing.T) {
		_, err := flow.List(asUser(7, models.CapabilityCTLRead), &dto.UserActionListQuery{})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}
