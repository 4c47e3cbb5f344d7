package businessflow

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/amirphl/viewiq/utils"
)

// asUser returns a context carrying a caller with the given capabilities
func asUser(id uint, caps ...models.Capability) context.Context {
	return utils.WithRequestUser(context.Background(), &utils.RequestUser{
		ID:           id,
		Email:        "user@example.com",
		Capabilities: models.NewCapabilitySet(caps...),
	})
}

type fakeIndex struct {
	docs      map[string]*models.IndexDocument
	scanHits  []services.SearchHit
	scanQuery map[string]any
	err       error
}

func (f *fakeIndex) GetDocument(_ context.Context, index, id string) (*models.IndexDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[index+"/"+id], nil
}

func (f *fakeIndex) Search(context.Context, string, services.SearchRequest) (*services.SearchResult, error) {
	return &services.SearchResult{}, f.err
}

func (f *fakeIndex) Scan(_ context.Context, _ string, query map[string]any, pageSize int, fn func([]services.SearchHit) error) error {
	f.scanQuery = query
	if f.err != nil {
		return f.err
	}
	for start := 0; start < len(f.scanHits); start += pageSize {
		end := min(start+pageSize, len(f.scanHits))
		if err := fn(f.scanHits[start:end]); err != nil {
			return err
		}
	}
	return nil
}

type fakeCategoryRepo struct {
	repository.BadWordCategoryRepository
	rows []*models.BadWordCategory
}

func (r *fakeCategoryRepo) ByFilter(context.Context, models.BadWordCategoryFilter, string, int, int) ([]*models.BadWordCategory, error) {
	return r.rows, nil
}

func (r *fakeCategoryRepo) ByID(_ context.Context, id uint) (*models.BadWordCategory, error) {
	for _, c := range r.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeCategoryRepo) ByName(_ context.Context, name string) (*models.BadWordCategory, error) {
	for _, c := range r.rows {
		if models.NormalizeWord(c.Name) == models.NormalizeWord(name) {
			return c, nil
		}
	}
	return nil, nil
}

// fakeWordRepo keeps bad words in memory with soft delete
type fakeWordRepo struct {
	repository.BadWordRepository
	mu     sync.Mutex
	nextID uint
	rows   []*models.BadWord
}

func (r *fakeWordRepo) active(w *models.BadWord) bool {
	return !w.DeletedAt.Valid
}

func (r *fakeWordRepo) ByFilter(_ context.Context, filter models.BadWordFilter, _ string, _, _ int) ([]*models.BadWord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.BadWord
	for _, w := range r.rows {
		if !filter.IncludeDeleted && !r.active(w) {
			continue
		}
		if filter.ID != nil && w.ID != *filter.ID {
			continue
		}
		if filter.NormalizedName != nil && w.NormalizedName != *filter.NormalizedName {
			continue
		}
		if filter.CategoryID != nil && w.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Language != nil && w.Language != *filter.Language {
			continue
		}
		if len(filter.NormalizedNames) > 0 {
			found := false
			for _, n := range filter.NormalizedNames {
				if n == w.NormalizedName {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *fakeWordRepo) Count(ctx context.Context, filter models.BadWordFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *fakeWordRepo) Exists(ctx context.Context, filter models.BadWordFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeWordRepo) ByID(ctx context.Context, id uint) (*models.BadWord, error) {
	rows, _ := r.ByFilter(ctx, models.BadWordFilter{ID: &id}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeWordRepo) Save(_ context.Context, w *models.BadWord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.NormalizedName = models.NormalizeWord(w.Name)
	for _, cur := range r.rows {
		if r.active(cur) && cur.NormalizedName == w.NormalizedName && cur.CategoryID == w.CategoryID && cur.Language == w.Language {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	w.ID = r.nextID
	r.rows = append(r.rows, w)
	return nil
}

func (r *fakeWordRepo) Update(_ context.Context, w *models.BadWord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.NormalizedName = models.NormalizeWord(w.Name)
	for _, cur := range r.rows {
		if cur.ID != w.ID && r.active(cur) && cur.NormalizedName == w.NormalizedName && cur.CategoryID == w.CategoryID && cur.Language == w.Language {
			return repository.ErrDuplicate
		}
	}
	return nil
}

func (r *fakeWordRepo) Delete(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.rows {
		if w.ID == id && r.active(w) {
			w.DeletedAt.Time = time.Now()
			w.DeletedAt.Valid = true
			return true, nil
		}
	}
	return false, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []services.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job services.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
}

func (s *fakeStorage) Put(_ context.Context, key string, body io.Reader, _ string) error {
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[key] = b
	return nil
}

func (s *fakeStorage) PresignedURL(_ context.Context, key string) (string, error) {
	return "https://storage.example.com/" + key + "?sig=1", nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

// fakeTx runs fn directly; rollbacks are simulated by the fakes themselves
type fakeTx struct {
	calls int
}

func (t *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

var errBoom = errors.New("boom")
