package businessflow

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

// pagedIndex serves hits ordered by id and honours search_after like the real index
type pagedIndex struct {
	hits     []services.SearchHit
	requests []services.SearchRequest
	names    []string
	err      error
}

func newPagedIndex(hits ...services.SearchHit) *pagedIndex {
	sort.Slice(hits, func(a, b int) bool { return hits[a].ID < hits[b].ID })
	for i := range hits {
		hits[i].Sort = []any{hits[i].ID}
	}
	return &pagedIndex{hits: hits}
}

func (p *pagedIndex) GetDocument(context.Context, string, string) (*models.IndexDocument, error) {
	return nil, nil
}

func (p *pagedIndex) Search(_ context.Context, index string, req services.SearchRequest) (*services.SearchResult, error) {
	p.names = append(p.names, index)
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	start := 0
	if len(req.SearchAfter) > 0 {
		after := req.SearchAfter[0].(string)
		start = sort.Search(len(p.hits), func(i int) bool { return p.hits[i].ID > after })
	}
	end := min(start+req.Size, len(p.hits))
	return &services.SearchResult{Total: int64(len(p.hits)), Hits: p.hits[start:end]}, nil
}

func (p *pagedIndex) Scan(ctx context.Context, index string, query map[string]any, pageSize int, fn func([]services.SearchHit) error) error {
	return services.ScanWithSearchAfter(ctx, p, index, query, pageSize, fn)
}

func videoHit(id, title string, views int64, score float64) services.SearchHit {
	return services.SearchHit{ID: id, Source: models.IndexDocument{
		Main:        models.DocumentMain{ID: id},
		GeneralData: models.DocumentGeneralData{Title: title, LangCode: "en", IABCategories: []string{"Sports"}},
		Stats:       models.DocumentStats{Views: views},
		BrandSafety: models.DocumentBrandSafety{OverallScore: score},
	}}
}

func (r *fakeSegmentRepo) ByID(_ context.Context, id uint) (*models.CustomSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.ID == id && !s.DeletedAt.Valid {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSegmentRepo) UpdateStatistics(_ context.Context, id uint, stats map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats == nil {
		r.stats = make(map[uint]map[string]any)
	}
	r.stats[id] = stats
	return nil
}

func (r *fakeUploadRepo) ByID(_ context.Context, id uint) (*models.CustomSegmentFileUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeUploadRepo) MarkInProgress(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id && row.Status == models.ExportStatusPending {
			row.Status = models.ExportStatusInProgress
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUploadRepo) MarkSuccess(_ context.Context, id uint, fileKey string, rows int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			row.Status = models.ExportStatusSuccess
			row.FileKey = &fileKey
			row.RowCount = rows
		}
	}
	return nil
}

func (r *fakeReportRepo) MarkInProgress(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.find(id)
	if row == nil || row.Status != models.ExportStatusPending {
		return false, nil
	}
	row.Status = models.ExportStatusInProgress
	return true, nil
}

func (r *fakeReportRepo) MarkSuccess(_ context.Context, id uint, fileKey string, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row := r.find(id); row != nil {
		row.Status = models.ExportStatusSuccess
		row.S3FileKey = &fileKey
	}
	return nil
}

func (r *fakeReportRepo) ByIDWithRelations(_ context.Context, id uint) (*models.OpportunityTargetingReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(id), nil
}

type fakeStatRepo struct {
	repository.TargetingStatisticRepository
	rows   []*models.TargetingStatistic
	filter models.TargetingStatisticFilter
}

func (r *fakeStatRepo) ByFilter(_ context.Context, filter models.TargetingStatisticFilter) ([]*models.TargetingStatistic, error) {
	r.filter = filter
	return r.rows, nil
}

func (n *fakeNotifier) SendSegmentExportReady(_ context.Context, email, title, link string) error {
	n.sent = append(n.sent, sentNotification{email, "segment_export:" + title, link})
	return nil
}

func (n *fakeNotifier) SendTargetingReportReady(_ context.Context, emails []string, opportunity, dateRange, link string) error {
	n.sent = append(n.sent, sentNotification{strings.Join(emails, ","), "targeting_report:" + opportunity + " " + dateRange, link})
	return nil
}

type exportFixture struct {
	flow     ExportFlow
	segments *fakeSegmentRepo
	uploads  *fakeUploadRepo
	reports  *fakeReportRepo
	stats    *fakeStatRepo
	index    *pagedIndex
	storage  *fakeStorage
	notifier *fakeNotifier
}

func newExportFixture(index *pagedIndex) *exportFixture {
	uploads := &fakeUploadRepo{}
	f := &exportFixture{
		segments: &fakeSegmentRepo{uploads: uploads},
		uploads:  uploads,
		reports:  &fakeReportRepo{},
		stats:    &fakeStatRepo{},
		index:    index,
		storage:  &fakeStorage{},
		notifier: &fakeNotifier{},
	}
	users := paymentUsers{user: &models.User{ID: 7, Email: "owner@example.com"}}
	f.flow = NewExportFlow(f.segments, f.uploads, f.reports, f.stats, users, f.index, f.storage, f.notifier,
		ExportOptions{VideoIndex: "videos", ChannelIndex: "channels", ScanSize: 2})
	return f
}

// pendingSegment stores a segment of the given type with a pending export row
func (f *exportFixture) pendingSegment(t *testing.T, segmentType models.SegmentType) (*models.CustomSegment, *models.CustomSegmentFileUpload) {
	t.Helper()
	ctx := context.Background()
	segment := &models.CustomSegment{OwnerID: 7, Title: "Safe sports", SegmentType: segmentType, ListType: models.ListTypeWhitelist}
	require.NoError(t, f.segments.Save(ctx, segment))
	upload := &models.CustomSegmentFileUpload{
		SegmentID: segment.ID,
		Query:     datatypes.JSON(`{"bool":{"filter":[{"range":{"stats.views":{"gte":10}}}]}}`),
		Status:    models.ExportStatusPending,
	}
	require.NoError(t, f.uploads.Save(ctx, upload))
	return segment, upload
}

func TestRunSegmentExport_VideoCSV(t *testing.T) {
	fx := newExportFixture(newPagedIndex(
		videoHit("v3", "Third", 300, 70.4),
		videoHit("v1", "First", 100, 90),
		videoHit("v2", "Second", 200, 80.6),
	))
	segment, upload := fx.pendingSegment(t, models.SegmentTypeVideo)
	ctx := context.Background()

	require.NoError(t, fx.flow.Run(ctx, services.Job{Type: services.JobSegmentExport, ID: upload.ID}))

	t.Run("ReplaysStoredQueryWithSearchAfter", func(t *testing.T) {
		require.Len(t, fx.index.requests, 2)
		want := map[string]any{"bool": map[string]any{"filter": []any{
			map[string]any{"range": map[string]any{"stats.views": map[string]any{"gte": float64(10)}}},
		}}}
		for _, req := range fx.index.requests {
			assert.Equal(t, want, req.Query)
			assert.Equal(t, 2, req.Size)
			assert.Equal(t, []map[string]any{{"main.id": "asc"}}, req.Sort)
		}
		assert.Nil(t, fx.index.requests[0].SearchAfter)
		assert.Equal(t, []any{"v2"}, fx.index.requests[1].SearchAfter)
		assert.Equal(t, []string{"videos", "videos"}, fx.index.names)
	})

	key := "custom_segments/7/1.csv"
	t.Run("UploadsCSV", func(t *testing.T) {
		require.Contains(t, fx.storage.objects, key)
		assert.Equal(t, "URL,Title,Language,Category,Views,Score\n"+
			"https://www.youtube.com/watch?v=v1,First,en,Sports,100,90\n"+
			"https://www.youtube.com/watch?v=v2,Second,en,Sports,200,81\n"+
			"https://www.youtube.com/watch?v=v3,Third,en,Sports,300,70\n",
			string(fx.storage.objects[key]))
		assert.Equal(t, key, SegmentExportKey(segment.OwnerID, segment.ID))
	})

	t.Run("MarksSuccess", func(t *testing.T) {
		row := fx.uploads.rows[0]
		assert.Equal(t, models.ExportStatusSuccess, row.Status)
		require.NotNil(t, row.FileKey)
		assert.Equal(t, key, *row.FileKey)
		assert.EqualValues(t, 3, row.RowCount)
		assert.EqualValues(t, 3, fx.segments.stats[segment.ID]["items_count"])
		assert.Equal(t, float64(80), fx.segments.stats[segment.ID]["average_brand_safety_score"])
	})

	t.Run("NotifiesOwner", func(t *testing.T) {
		require.Len(t, fx.notifier.sent, 1)
		assert.Equal(t, "owner@example.com", fx.notifier.sent[0].email)
		assert.Equal(t, "segment_export:Safe sports", fx.notifier.sent[0].eventType)
		assert.Equal(t, "https://storage.example.com/"+key+"?sig=1", fx.notifier.sent[0].message)
	})

	t.Run("SecondRunIsSkipped", func(t *testing.T) {
		require.NoError(t, fx.flow.RunSegmentExport(ctx, upload.ID))
		assert.Len(t, fx.index.requests, 2)
		assert.Len(t, fx.notifier.sent, 1)
	})
}

func TestRunSegmentExport_ChannelCSV(t *testing.T) {
	hit := services.SearchHit{ID: "UC1", Source: models.IndexDocument{
		GeneralData: models.DocumentGeneralData{Title: "Kitchen", TopLangCode: "fr", PrimaryCategory: "Food"},
		Stats:       models.DocumentStats{Views: 5000, Subscribers: 120},
		BrandSafety: models.DocumentBrandSafety{OverallScore: 99.5},
	}}
	fx := newExportFixture(newPagedIndex(hit))
	_, upload := fx.pendingSegment(t, models.SegmentTypeChannel)

	require.NoError(t, fx.flow.RunSegmentExport(context.Background(), upload.ID))

	assert.Equal(t, []string{"channels"}, fx.index.names)
	assert.Equal(t, "URL,Title,Language,Category,Subscribers,Views,Score\n"+
		"https://www.youtube.com/channel/UC1,Kitchen,fr,Food,120,5000,100\n",
		string(fx.storage.objects["custom_segments/7/1.csv"]))
	assert.EqualValues(t, 1, fx.uploads.rows[0].RowCount)
}

func TestRunSegmentExport_Failures(t *testing.T) {
	t.Run("SearchError", func(t *testing.T) {
		index := newPagedIndex()
		index.err = errBoom
		fx := newExportFixture(index)
		_, upload := fx.pendingSegment(t, models.SegmentTypeVideo)

		err := fx.flow.RunSegmentExport(context.Background(), upload.ID)
		assert.ErrorIs(t, err, errBoom)
		row := fx.uploads.rows[0]
		assert.Equal(t, models.ExportStatusFailed, row.Status)
		require.NotNil(t, row.Error)
		assert.Equal(t, "boom", *row.Error)
		assert.Empty(t, fx.storage.objects)
		assert.Empty(t, fx.notifier.sent)
	})

	t.Run("DeletedSegment", func(t *testing.T) {
		fx := newExportFixture(newPagedIndex())
		segment, upload := fx.pendingSegment(t, models.SegmentTypeVideo)
		_, err := fx.segments.Delete(context.Background(), segment.ID)
		require.NoError(t, err)

		err = fx.flow.RunSegmentExport(context.Background(), upload.ID)
		require.Error(t, err)
		assert.Equal(t, models.ExportStatusFailed, fx.uploads.rows[0].Status)
		assert.Empty(t, fx.index.requests)
	})

	t.Run("AlreadyTaken", func(t *testing.T) {
		fx := newExportFixture(newPagedIndex(videoHit("v1", "First", 1, 1)))
		_, upload := fx.pendingSegment(t, models.SegmentTypeVideo)
		fx.uploads.rows[0].Status = models.ExportStatusInProgress

		require.NoError(t, fx.flow.RunSegmentExport(context.Background(), upload.ID))
		assert.Equal(t, models.ExportStatusInProgress, fx.uploads.rows[0].Status)
		assert.Empty(t, fx.index.requests)
	})

	t.Run("UnknownJobType", func(t *testing.T) {
		fx := newExportFixture(newPagedIndex())
		assert.Error(t, fx.flow.Run(context.Background(), services.Job{Type: "reindex", ID: 1}))
	})
}

func targetingStat(dimension models.TargetingDimension, name string, views int64) *models.TargetingStatistic {
	return &models.TargetingStatistic{
		OpportunityID: "006A",
		Dimension:     dimension,
		Name:          name,
		Type:          "Keyword",
		RateType:      "cpv",
		Impressions:   views * 2,
		VideoViews:    views,
		Cost:          float64(views) / 10,
	}
}

// pendingReport stores a report row for 006A covering January 2024
func (f *exportFixture) pendingReport(t *testing.T, opportunity *models.Opportunity) *models.OpportunityTargetingReport {
	t.Helper()
	report := &models.OpportunityTargetingReport{
		OpportunityID: "006A",
		Opportunity:   opportunity,
		DateFrom:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:        models.ExportStatusPending,
		CreatedAt:     time.Date(2024, 2, 1, 10, 20, 30, 0, time.UTC),
		Recipients:    []models.User{{ID: 1, Email: "am@example.com"}, {ID: 2, Email: "ops@example.com"}},
	}
	_, _, err := f.reports.InsertOrGet(context.Background(), report)
	require.NoError(t, err)
	return report
}

func TestRunTargetingReport(t *testing.T) {
	fx := newExportFixture(newPagedIndex())
	fx.stats.rows = []*models.TargetingStatistic{
		targetingStat(models.TargetingDimensionTarget, "sports fans", 100),
		targetingStat(models.TargetingDimensionTarget, "cooking", 900),
		targetingStat(models.TargetingDimensionDevice, "Mobile", 50),
		targetingStat(models.TargetingDimensionGender, "Male", 20),
		targetingStat(models.TargetingDimensionAge, "18-24", 10),
		targetingStat(models.TargetingDimensionVideo, "Launch spot", 5),
	}
	report := fx.pendingReport(t, &models.Opportunity{ID: "006A", Name: "Acme Q1"})
	ctx := context.Background()

	require.NoError(t, fx.flow.Run(ctx, services.Job{Type: services.JobTargetingReport, ID: report.ID}))

	key := "opportunity_targeting_reports/006A_2024-01-01_2024-01-31_20240201102030.xlsx"
	assert.Equal(t, key, TargetingReportKey(report))
	require.NotNil(t, fx.stats.filter.OpportunityID)
	assert.Equal(t, "006A", *fx.stats.filter.OpportunityID)

	t.Run("MarksSuccess", func(t *testing.T) {
		assert.Equal(t, models.ExportStatusSuccess, report.Status)
		require.NotNil(t, report.S3FileKey)
		assert.Equal(t, key, *report.S3FileKey)
	})

	t.Run("Workbook", func(t *testing.T) {
		require.Contains(t, fx.storage.objects, key)
		xl, err := excelize.OpenReader(bytes.NewReader(fx.storage.objects[key]))
		require.NoError(t, err)
		defer func() { _ = xl.Close() }()

		assert.Equal(t, []string{"Target", "Devices", "Demo", "Video"}, xl.GetSheetList())

		firstColumns := map[string]string{"Target": "Target", "Devices": "Device", "Demo": "Demo", "Video": "Video"}
		for sheet, first := range firstColumns {
			rows, err := xl.GetRows(sheet)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(rows), 5, sheet)
			assert.Equal(t, "Opportunity: Acme Q1", rows[0][0])
			assert.Equal(t, "Date Range: 2024-01-01 - 2024-01-31", rows[1][0])
			assert.Equal(t, append([]string{first}, targetingColumns...), rows[3])
		}

		target, err := xl.GetRows("Target")
		require.NoError(t, err)
		require.Len(t, target, 6)
		assert.Equal(t, "cooking", target[4][0])
		assert.Equal(t, "sports fans", target[5][0])

		demo, err := xl.GetRows("Demo")
		require.NoError(t, err)
		require.Len(t, demo, 6)
		assert.Equal(t, "18-24", demo[4][0])
		assert.Equal(t, "Male", demo[5][0])
	})

	t.Run("MailsRecipients", func(t *testing.T) {
		require.Len(t, fx.notifier.sent, 1)
		assert.Equal(t, "am@example.com,ops@example.com", fx.notifier.sent[0].email)
		assert.Equal(t, "targeting_report:Acme Q1 2024-01-01 - 2024-01-31", fx.notifier.sent[0].eventType)
		assert.Equal(t, "https://storage.example.com/"+key+"?sig=1", fx.notifier.sent[0].message)
	})

	t.Run("SecondRunIsSkipped", func(t *testing.T) {
		require.NoError(t, fx.flow.RunTargetingReport(ctx, report.ID))
		assert.Len(t, fx.notifier.sent, 1)
	})
}

func TestRunTargetingReport_MissingOpportunityFails(t *testing.T) {
	fx := newExportFixture(newPagedIndex())
	report := fx.pendingReport(t, nil)

	err := fx.flow.RunTargetingReport(context.Background(), report.ID)
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusFailed, report.Status)
	require.NotNil(t, report.Error)
	assert.Equal(t, "opportunity no longer exists", *report.Error)
	assert.Empty(t, fx.storage.objects)
	assert.Empty(t, fx.notifier.sent)
}
