package businessflow

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
)

// BlocklistKind selects channels or videos
type BlocklistKind string

const (
	BlocklistChannels BlocklistKind = "channels"
	BlocklistVideos   BlocklistKind = "videos"
)

// BlocklistFlow manages blocklisted channels and videos
type BlocklistFlow interface {
	List(ctx context.Context, kind BlocklistKind, q *dto.BlocklistListQuery) (*dto.Page[dto.BlocklistItemResponse], error)
	Create(ctx context.Context, kind BlocklistKind, req *dto.BlocklistItemRequest) (*dto.BlocklistItemResponse, error)
	Delete(ctx context.Context, kind BlocklistKind, id uint) error
	Export(ctx context.Context, kind BlocklistKind, w io.Writer) error
}

// BlocklistFlowImpl implements the blocklist business flow
type BlocklistFlowImpl struct {
	channelRepo  repository.BadChannelRepository
	videoRepo    repository.BadVideoRepository
	categoryRepo repository.BadWordCategoryRepository
}

// NewBlocklistFlow creates a new blocklist flow instance
func NewBlocklistFlow(
	channelRepo repository.BadChannelRepository,
	videoRepo repository.BadVideoRepository,
	categoryRepo repository.BadWordCategoryRepository,
) BlocklistFlow {
	return &BlocklistFlowImpl{channelRepo: channelRepo, videoRepo: videoRepo, categoryRepo: categoryRepo}
}

func channelItem(c *models.BadChannel) dto.BlocklistItemResponse {
	item := dto.BlocklistItemResponse{
		ID:         c.ID,
		ExternalID: c.ChannelID,
		Title:      c.Title,
		Reason:     c.Reason,
		CategoryID: c.CategoryID,
		CreatedAt:  c.CreatedAt,
	}
	if c.Category != nil {
		item.Category = c.Category.Name
	}
	return item
}

func videoItem(v *models.BadVideo) dto.BlocklistItemResponse {
	item := dto.BlocklistItemResponse{
		ID:         v.ID,
		ExternalID: v.VideoID,
		Title:      v.Title,
		Reason:     v.Reason,
		CategoryID: v.CategoryID,
		CreatedAt:  v.CreatedAt,
	}
	if v.Category != nil {
		item.Category = v.Category.Name
	}
	return item
}

func (f *BlocklistFlowImpl) List(ctx context.Context, kind BlocklistKind, q *dto.BlocklistListQuery) (*dto.Page[dto.BlocklistItemResponse], error) {
	if _, err := requireCapability(ctx, models.CapabilityBlocklistRead); err != nil {
		return nil, err
	}
	p := newPagination(q.Page, q.Size)
	filter := models.BlocklistFilter{Search: optionalString(q.Search), CategoryID: q.Category}

	var (
		items []dto.BlocklistItemResponse
		total int64
		err   error
	)
	switch kind {
	case BlocklistChannels:
		if total, err = f.channelRepo.Count(ctx, filter); err != nil {
			break
		}
		var rows []*models.BadChannel
		if rows, err = f.channelRepo.ByFilter(ctx, filter, "", p.Size, p.Offset); err != nil {
			break
		}
		for _, r := range rows {
			items = append(items, channelItem(r))
		}
	default:
		if total, err = f.videoRepo.Count(ctx, filter); err != nil {
			break
		}
		var rows []*models.BadVideo
		if rows, err = f.videoRepo.ByFilter(ctx, filter, "", p.Size, p.Offset); err != nil {
			break
		}
		for _, r := range rows {
			items = append(items, videoItem(r))
		}
	}
	if err != nil {
		return nil, internal("BLOCKLIST_LIST_FAILED", "Failed to list blocklist", err)
	}
	return newPage(p, items, total), nil
}

func (f *BlocklistFlowImpl) Create(ctx context.Context, kind BlocklistKind, req *dto.BlocklistItemRequest) (*dto.BlocklistItemResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityBlocklistCreate); err != nil {
		return nil, err
	}
	var category *models.BadWordCategory
	if req.CategoryID != nil {
		c, err := f.categoryRepo.ByID(ctx, *req.CategoryID)
		if err != nil {
			return nil, internal("CATEGORY_FETCH_FAILED", "Failed to load category", err)
		}
		if c == nil {
			return nil, NewBusinessErrorf("CATEGORY_NOT_FOUND", "Category '%d' does not exist.", ErrValidation, *req.CategoryID)
		}
		category = c
	}

	externalID := strings.TrimSpace(req.ID)
	exists, err := f.exists(ctx, kind, externalID)
	if err != nil {
		return nil, internal("BLOCKLIST_SAVE_FAILED", "Failed to save blocklist item", err)
	}
	if exists {
		return nil, duplicateBlocklistItem(externalID)
	}

	var item dto.BlocklistItemResponse
	switch kind {
	case BlocklistChannels:
		row := &models.BadChannel{ChannelID: externalID, Title: req.Title, Reason: req.Reason, CategoryID: req.CategoryID, Category: category}
		err = f.channelRepo.Save(ctx, row)
		item = channelItem(row)
	default:
		row := &models.BadVideo{VideoID: externalID, Title: req.Title, Reason: req.Reason, CategoryID: req.CategoryID, Category: category}
		err = f.videoRepo.Save(ctx, row)
		item = videoItem(row)
	}
	if err != nil {
		if repository.IsDuplicate(err) {
			return nil, duplicateBlocklistItem(externalID)
		}
		return nil, internal("BLOCKLIST_SAVE_FAILED", "Failed to save blocklist item", err)
	}
	return &item, nil
}

func duplicateBlocklistItem(id string) error {
	return NewBusinessErrorf("DUPLICATE_BLOCKLIST_ITEM", "'%s' is already blocklisted.", ErrDuplicateBlocklistItem, id)
}

func (f *BlocklistFlowImpl) exists(ctx context.Context, kind BlocklistKind, externalID string) (bool, error) {
	filter := models.BlocklistFilter{ExternalID: &externalID}
	if kind == BlocklistChannels {
		return f.channelRepo.Exists(ctx, filter)
	}
	return f.videoRepo.Exists(ctx, filter)
}

func (f *BlocklistFlowImpl) Delete(ctx context.Context, kind BlocklistKind, id uint) error {
	if _, err := requireCapability(ctx, models.CapabilityBlocklistDelete); err != nil {
		return err
	}
	var (
		deleted bool
		err     error
	)
	if kind == BlocklistChannels {
		deleted, err = f.channelRepo.Delete(ctx, id)
	} else {
		deleted, err = f.videoRepo.Delete(ctx, id)
	}
	if err != nil {
		return internal("BLOCKLIST_DELETE_FAILED", "Failed to delete blocklist item", err)
	}
	if !deleted {
		return notFound("BLOCKLIST_ITEM_NOT_FOUND", "Blocklist item not found", ErrBlocklistItemNotFound)
	}
	return nil
}

// Export writes every active item as CSV
func (f *BlocklistFlowImpl) Export(ctx context.Context, kind BlocklistKind, w io.Writer) error {
	if _, err := requireCapability(ctx, models.CapabilityBlocklistExport); err != nil {
		return err
	}
	header := []string{"Video ID", "Title", "Reason", "Category"}
	if kind == BlocklistChannels {
		header[0] = "Channel ID"
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for offset := 0; ; offset += exportBatchSize {
		var (
			items []dto.BlocklistItemResponse
			err   error
		)
		if kind == BlocklistChannels {
			var rows []*models.BadChannel
			rows, err = f.channelRepo.ByFilter(ctx, models.BlocklistFilter{}, "id ASC", exportBatchSize, offset)
			for _, r := range rows {
				items = append(items, channelItem(r))
			}
		} else {
			var rows []*models.BadVideo
			rows, err = f.videoRepo.ByFilter(ctx, models.BlocklistFilter{}, "id ASC", exportBatchSize, offset)
			for _, r := range rows {
				items = append(items, videoItem(r))
			}
		}
		if err != nil {
			return internal("BLOCKLIST_EXPORT_FAILED", "Failed to export blocklist", err)
		}
		for _, it := range items {
			if err := cw.Write([]string{it.ExternalID, it.Title, it.Reason, it.Category}); err != nil {
				return err
			}
		}
		if len(items) < exportBatchSize {
			break
		}
	}
	cw.Flush()
	return cw.Error()
}
