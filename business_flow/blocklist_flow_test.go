package businessflow

import (
	"bytes"
	"context"
	"testing"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannelRepo struct {
	repository.BadChannelRepository
	nextID uint
	rows   []*models.BadChannel
}

func (r *fakeChannelRepo) active(filter models.BlocklistFilter) []*models.BadChannel {
	var out []*models.BadChannel
	for _, c := range r.rows {
		if c.DeletedAt.Valid && !filter.IncludeDeleted {
			continue
		}
		if filter.ExternalID != nil && c.ChannelID != *filter.ExternalID {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *fakeChannelRepo) ByFilter(_ context.Context, filter models.BlocklistFilter, _ string, limit, offset int) ([]*models.BadChannel, error) {
	rows := r.active(filter)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *fakeChannelRepo) Count(_ context.Context, filter models.BlocklistFilter) (int64, error) {
	return int64(len(r.active(filter))), nil
}

func (r *fakeChannelRepo) Exists(_ context.Context, filter models.BlocklistFilter) (bool, error) {
	return len(r.active(filter)) > 0, nil
}

func (r *fakeChannelRepo) Save(_ context.Context, c *models.BadChannel) error {
	r.nextID++
	c.ID = r.nextID
	r.rows = append(r.rows, c)
	return nil
}

func (r *fakeChannelRepo) Delete(_ context.Context, id uint) (bool, error) {
	for _, c := range r.rows {
		if c.ID == id && !c.DeletedAt.Valid {
			c.DeletedAt.Valid = true
			return true, nil
		}
	}
	return false, nil
}

func newBlocklistFixture() (BlocklistFlow, *fakeChannelRepo) {
	channels := &fakeChannelRepo{}
	categories := &fakeCategoryRepo{rows: []*models.BadWordCategory{{ID: 1, Name: "Violence"}}}
	return NewBlocklistFlow(channels, nil, categories), channels
}

func TestBlocklistChannels(t *testing.T) {
	flow, channels := newBlocklistFixture()
	ctx := asUser(1,
		models.CapabilityBlocklistRead,
		models.CapabilityBlocklistCreate,
		models.CapabilityBlocklistDelete,
		models.CapabilityBlocklistExport,
	)
	violence := uint(1)

	created, err := flow.Create(ctx, BlocklistChannels, &dto.BlocklistItemRequest{ID: " UC123 ", Title: "Bad", Reason: "gore", CategoryID: &violence})
	require.NoError(t, err)
	assert.Equal(t, "UC123", created.ExternalID)
	assert.Equal(t, "Violence", created.Category)

	t.Run("DuplicateRejected", func(t *testing.T) {
		_, err := flow.Create(ctx, BlocklistChannels, &dto.BlocklistItemRequest{ID: "UC123"})
		assert.ErrorIs(t, err, ErrDuplicateBlocklistItem)
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		missing := uint(9)
		_, err := flow.Create(ctx, BlocklistChannels, &dto.BlocklistItemRequest{ID: "UC999", CategoryID: &missing})
		assert.Equal(t, "Category '9' does not exist.", validationMessage(t, err))
	})

	t.Run("List", func(t *testing.T) {
		page, err := flow.List(ctx, BlocklistChannels, &dto.BlocklistListQuery{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, page.ItemsCount)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "UC123", page.Items[0].ExternalID)
	})

	t.Run("Export", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, flow.Export(ctx, BlocklistChannels, &buf))
		assert.Equal(t, "Channel ID,Title,Reason,Category\nUC123,Bad,gore,Violence\n", buf.String())
	})

	t.Run("DeleteThenRecreate", func(t *testing.T) {
		require.NoError(t, flow.Delete(ctx, BlocklistChannels, created.ID))
		err := flow.Delete(ctx, BlocklistChannels, created.ID)
		assert.ErrorIs(t, err, ErrBlocklistItemNotFound)

		_, err = flow.Create(ctx, BlocklistChannels, &dto.BlocklistItemRequest{ID: "UC123"})
		require.NoError(t, err)
		assert.Len(t, channels.rows, 2)
	})

	t.Run("RequiresCapability", func(t *testing.T) {
		_, err := flow.List(asUser(2, models.CapabilityBSTERead), BlocklistChannels, &dto.BlocklistListQuery{})
		assert.ErrorIs(t, err, ErrForbidden)
		err = flow.Export(asUser(2, models.CapabilityBlocklistRead), BlocklistChannels, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}
