package businessflow

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
)

const exportBatchSize = 1000

// BadWordFlow manages bad word categories and bad words
type BadWordFlow interface {
	ListCategories(ctx context.Context) ([]dto.BadWordCategoryResponse, error)
	CreateCategory(ctx context.Context, req *dto.BadWordCategoryRequest) (*dto.BadWordCategoryResponse, error)
	ListBadWords(ctx context.Context, q *dto.BadWordListQuery) (*dto.Page[dto.BadWordResponse], error)
	GetBadWord(ctx context.Context, id uint) (*dto.BadWordResponse, error)
	CreateBadWord(ctx context.Context, req *dto.BadWordRequest) (*dto.BadWordResponse, error)
	UpdateBadWord(ctx context.Context, id uint, req *dto.UpdateBadWordRequest) (*dto.BadWordResponse, error)
	DeleteBadWord(ctx context.Context, id uint) error
	// ExportBadWords writes every active bad word as CSV
	ExportBadWords(ctx context.Context, w io.Writer) error
}

// BadWordFlowImpl implements the bad word business flow
type BadWordFlowImpl struct {
	categoryRepo repository.BadWordCategoryRepository
	wordRepo     repository.BadWordRepository
}

// NewBadWordFlow creates a new bad word flow instance
func NewBadWordFlow(categoryRepo repository.BadWordCategoryRepository, wordRepo repository.BadWordRepository) BadWordFlow {
	return &BadWordFlowImpl{categoryRepo: categoryRepo, wordRepo: wordRepo}
}

func toBadWordResponse(w *models.BadWord) dto.BadWordResponse {
	return dto.BadWordResponse{
		ID:            w.ID,
		Name:          w.Name,
		CategoryID:    w.CategoryID,
		Category:      w.Category.Name,
		Language:      w.Language,
		NegativeScore: w.NegativeScore,
		CreatedAt:     w.CreatedAt,
	}
}

func (f *BadWordFlowImpl) ListCategories(ctx context.Context) ([]dto.BadWordCategoryResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityBSTERead); err != nil {
		return nil, err
	}
	rows, err := f.categoryRepo.ByFilter(ctx, models.BadWordCategoryFilter{}, "", 0, 0)
	if err != nil {
		return nil, internal("CATEGORY_LIST_FAILED", "Failed to list categories", err)
	}
	out := make([]dto.BadWordCategoryResponse, 0, len(rows))
	for _, c := range rows {
		out = append(out, dto.BadWordCategoryResponse{ID: c.ID, Name: c.Name, Excluded: c.Excluded})
	}
	return out, nil
}

func (f *BadWordFlowImpl) CreateCategory(ctx context.Context, req *dto.BadWordCategoryRequest) (*dto.BadWordCategoryResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityBSTECreate); err != nil {
		return nil, err
	}
	c := &models.BadWordCategory{Name: strings.TrimSpace(req.Name), Excluded: req.Excluded}
	if err := f.categoryRepo.Save(ctx, c); err != nil {
		if repository.IsDuplicate(err) {
			return nil, NewBusinessErrorf("CATEGORY_ALREADY_EXISTS", "A category named %s already exists", ErrCategoryAlreadyExists, c.Name)
		}
		return nil, internal("CATEGORY_CREATE_FAILED", "Failed to create category", err)
	}
	return &dto.BadWordCategoryResponse{ID: c.ID, Name: c.Name, Excluded: c.Excluded}, nil
}

// resolveCategory accepts a category id or name
func (f *BadWordFlowImpl) resolveCategory(ctx context.Context, ref string) (*models.BadWordCategory, error) {
	ref = strings.TrimSpace(ref)
	var (
		c   *models.BadWordCategory
		err error
	)
	if id, ok := parseUintID(ref); ok {
		c, err = f.categoryRepo.ByID(ctx, id)
	} else {
		c, err = f.categoryRepo.ByName(ctx, ref)
	}
	if err != nil {
		return nil, internal("CATEGORY_FETCH_FAILED", "Failed to load category", err)
	}
	if c == nil {
		return nil, NewBusinessErrorf("CATEGORY_NOT_FOUND", "Category '%s' does not exist.", ErrValidation, ref)
	}
	return c, nil
}

func (f *BadWordFlowImpl) ListBadWords(ctx context.Context, q *dto.BadWordListQuery) (*dto.Page[dto.BadWordResponse], error) {
	if _, err := requireCapability(ctx, models.CapabilityBSTERead); err != nil {
		return nil, err
	}
	p := newPagination(q.Page, q.Size)
	filter := models.BadWordFilter{Search: optionalString(q.Search), Language: optionalString(q.Language)}
	if q.Category != "" {
		c, err := f.resolveCategory(ctx, q.Category)
		if err != nil {
			return nil, err
		}
		filter.CategoryID = &c.ID
	}

	total, err := f.wordRepo.Count(ctx, filter)
	if err != nil {
		return nil, internal("BAD_WORD_LIST_FAILED", "Failed to list bad words", err)
	}
	rows, err := f.wordRepo.ByFilter(ctx, filter, "", p.Size, p.Offset)
	if err != nil {
		return nil, internal("BAD_WORD_LIST_FAILED", "Failed to list bad words", err)
	}
	items := make([]dto.BadWordResponse, 0, len(rows))
	for _, w := range rows {
		items = append(items, toBadWordResponse(w))
	}
	return newPage(p, items, total), nil
}

func (f *BadWordFlowImpl) loadWord(ctx context.Context, id uint) (*models.BadWord, error) {
	w, err := f.wordRepo.ByID(ctx, id)
	if err != nil {
		return nil, internal("BAD_WORD_FETCH_FAILED", "Failed to load bad word", err)
	}
	if w == nil {
		return nil, notFound("BAD_WORD_NOT_FOUND", "Bad word not found", ErrBadWordNotFound)
	}
	return w, nil
}

func (f *BadWordFlowImpl) GetBadWord(ctx context.Context, id uint) (*dto.BadWordResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityBSTERead); err != nil {
		return nil, err
	}
	w, err := f.loadWord(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toBadWordResponse(w)
	return &resp, nil
}

// ensureUnique rejects a natural key held by another active bad word
func (f *BadWordFlowImpl) ensureUnique(ctx context.Context, w *models.BadWord) error {
	rows, err := f.wordRepo.ByFilter(ctx, models.BadWordFilter{
		NormalizedName: &w.NormalizedName,
		CategoryID:     &w.CategoryID,
		Language:       &w.Language,
	}, "", 1, 0)
	if err != nil {
		return internal("BAD_WORD_SAVE_FAILED", "Failed to save bad word", err)
	}
	if len(rows) > 0 && rows[0].ID != w.ID {
		return duplicateBadWord(w.Name)
	}
	return nil
}

func duplicateBadWord(name string) error {
	return NewBusinessErrorf("DUPLICATE_BAD_WORD", "Bad word '%s' already exists for this category and language.", ErrDuplicateBadWord, name)
}

func (f *BadWordFlowImpl) CreateBadWord(ctx context.Context, req *dto.BadWordRequest) (*dto.BadWordResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityBSTECreate); err != nil {
		return nil, err
	}
	category, err := f.resolveCategory(ctx, req.Category)
	if err != nil {
		return nil, err
	}
	score := models.MinNegativeScore
	if req.NegativeScore != nil {
		score = *req.NegativeScore
	}
	w := &models.BadWord{
		Name:           strings.TrimSpace(req.Name),
		NormalizedName: models.NormalizeWord(req.Name),
		CategoryID:     category.ID,
		Category:       *category,
		Language:       strings.ToLower(strings.TrimSpace(req.Language)),
		NegativeScore:  score,
	}
	if err := f.ensureUnique(ctx, w); err != nil {
		return nil, err
	}
	if err := f.wordRepo.Save(ctx, w); err != nil {
		if repository.IsDuplicate(err) {
			return nil, duplicateBadWord(w.Name)
		}
		return nil, internal("BAD_WORD_SAVE_FAILED", "Failed to save bad word", err)
	}
	resp := toBadWordResponse(w)
	return &resp, nil
}

func (f *BadWordFlowImpl) UpdateBadWord(ctx context.Context, id uint, req *dto.UpdateBadWordRequest) (*dto.BadWordResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityBSTECreate); err != nil {
		return nil, err
	}
	w, err := f.loadWord(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		w.Name = strings.TrimSpace(*req.Name)
		w.NormalizedName = models.NormalizeWord(w.Name)
	}
	if req.Category != nil {
		c, err := f.resolveCategory(ctx, *req.Category)
		if err != nil {
			return nil, err
		}
		w.CategoryID = c.ID
		w.Category = *c
	}
	if req.Language != nil {
		w.Language = strings.ToLower(strings.TrimSpace(*req.Language))
	}
	if req.NegativeScore != nil {
		w.NegativeScore = *req.NegativeScore
	}
	if err := f.ensureUnique(ctx, w); err != nil {
		return nil, err
	}
	if err := f.wordRepo.Update(ctx, w); err != nil {
		if repository.IsDuplicate(err) {
			return nil, duplicateBadWord(w.Name)
		}
		return nil, internal("BAD_WORD_SAVE_FAILED", "Failed to save bad word", err)
	}
	resp := toBadWordResponse(w)
	return &resp, nil
}

// DeleteBadWord soft-deletes; the natural key becomes free again
func (f *BadWordFlowImpl) DeleteBadWord(ctx context.Context, id uint) error {
	if _, err := requireCapability(ctx, models.CapabilityBSTEDelete); err != nil {
		return err
	}
	deleted, err := f.wordRepo.Delete(ctx, id)
	if err != nil {
		return internal("BAD_WORD_DELETE_FAILED", "Failed to delete bad word", err)
	}
	if !deleted {
		return notFound("BAD_WORD_NOT_FOUND", "Bad word not found", ErrBadWordNotFound)
	}
	return nil
}

func (f *BadWordFlowImpl) ExportBadWords(ctx context.Context, w io.Writer) error {
	if _, err := requireCapability(ctx, models.CapabilityBSTEExport); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Name", "Category", "Language", "Score"}); err != nil {
		return err
	}
	for offset := 0; ; offset += exportBatchSize {
		rows, err := f.wordRepo.ByFilter(ctx, models.BadWordFilter{}, "bad_words.id ASC", exportBatchSize, offset)
		if err != nil {
			return internal("BAD_WORD_EXPORT_FAILED", "Failed to export bad words", err)
		}
		for _, r := range rows {
			if err := cw.Write([]string{r.Name, r.Category.Name, r.Language, strconv.Itoa(r.NegativeScore)}); err != nil {
				return fmt.Errorf("failed to write bad word row: %w", err)
			}
		}
		if len(rows) < exportBatchSize {
			break
		}
	}
	cw.Flush()
	return cw.Error()
}
