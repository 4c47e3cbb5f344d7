package businessflow

import (
	"errors"
	"testing"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/business_flow/taxonomy"
	"github.com/amirphl/viewiq/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSegmentRequest() *dto.CreateSegmentRequest {
	return &dto.CreateSegmentRequest{
		Title:       "Safe sports",
		SegmentType: dto.NewNumberInput("1"),
		ListType:    "whitelist",
	}
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	var be *BusinessError
	require.True(t, errors.As(err, &be))
	assert.ErrorIs(t, err, ErrValidation)
	return be.Message
}

func TestParseSegmentRequest_UnknownCategoriesReportedTogether(t *testing.T) {
	req := validSegmentRequest()
	req.ContentCategories = []string{"Sports", "zeta", "alpha"}
	req.ExcludeContentCategories = []string{"alpha", "Automotive", "beta"}

	_, err := ParseSegmentRequest(req, taxonomy.MustDefault())
	assert.Equal(t, "The following content_categories are invalid: 'alpha, beta, zeta'", validationMessage(t, err))
}

func TestParseSegmentRequest_CanonicalCategories(t *testing.T) {
	req := validSegmentRequest()
	req.ContentCategories = []string{"sports", " motorcycles "}

	c, err := ParseSegmentRequest(req, taxonomy.MustDefault())
	require.NoError(t, err)
	assert.Equal(t, []string{"Sports", "Motorcycles"}, c.ContentCategories)
}

func TestParseSegmentRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *dto.CreateSegmentRequest)
		message string
	}{
		{
			name:    "UnknownSegmentType",
			mutate:  func(r *dto.CreateSegmentRequest) { r.SegmentType = dto.NewNumberInput("7") },
			message: "Invalid list_type: 7. 0 = video, 1 = channel.",
		},
		{
			name:    "MissingSegmentType",
			mutate:  func(r *dto.CreateSegmentRequest) { r.SegmentType = dto.NumberInput{} },
			message: "segment_type is required",
		},
		{
			name:    "NonNumericViews",
			mutate:  func(r *dto.CreateSegmentRequest) { r.MinimumViews = dto.NewNumberInput("1,000x") },
			message: "The value: '1000x' is not a valid number.",
		},
		{
			name:    "BadDate",
			mutate:  func(r *dto.CreateSegmentRequest) { r.LastUploadDate = "01/02/2024" },
			message: "Date format must be YYYY-mm-dd",
		},
		{
			name:    "BadSeverity",
			mutate:  func(r *dto.CreateSegmentRequest) { r.SeverityFilters = map[string][]int{"4": {1, 5}} },
			message: "Invalid severity score: 5. Expected 1, 2 or 3.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSegmentRequest()
			tt.mutate(req)
			_, err := ParseSegmentRequest(req, taxonomy.MustDefault())
			assert.Equal(t, tt.message, validationMessage(t, err))
		})
	}
}

func TestParseSegmentRequest_NumbersAndLevels(t *testing.T) {
	req := validSegmentRequest()
	req.SegmentType = dto.NewNumberInput("2")
	req.MinimumViews = dto.NewNumberInput("1,000,000")
	req.MinimumSubscribers = dto.NewNumberInput("2500")
	req.ScoreThreshold = dto.NewNumberInput("3")
	req.Sentiment = dto.NewNumberInput("65")
	req.Countries = []string{"us", "US", "ca"}

	c, err := ParseSegmentRequest(req, taxonomy.MustDefault())
	require.NoError(t, err)

	assert.Equal(t, []models.SegmentType{models.SegmentTypeVideo, models.SegmentTypeChannel}, c.SegmentTypes)
	require.NotNil(t, c.MinimumViews)
	assert.Equal(t, int64(1000000), *c.MinimumViews)
	require.NotNil(t, c.ScoreThreshold)
	assert.Equal(t, 79.0, *c.ScoreThreshold)
	require.NotNil(t, c.Sentiment)
	assert.Equal(t, 65.0, *c.Sentiment)
	assert.Equal(t, []string{"US", "CA"}, c.Countries)
}

func TestParseSegmentRequest_BlacklistSeverity(t *testing.T) {
	tests := []struct {
		threshold string
		want      float64
	}{
		{threshold: "1", want: 0},
		{threshold: "2", want: 79},
		{threshold: "3", want: 89},
		{threshold: "4", want: 100},
		{threshold: "60", want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.threshold, func(t *testing.T) {
			req := validSegmentRequest()
			req.ListType = "blacklist"
			req.ScoreThreshold = dto.NewNumberInput(tt.threshold)

			c, err := ParseSegmentRequest(req, taxonomy.MustDefault())
			require.NoError(t, err)
			require.NotNil(t, c.ScoreThreshold)
			assert.Equal(t, tt.want, *c.ScoreThreshold)
		})
	}
}

func boolFilters(q map[string]any) ([]any, []any) {
	b := q["bool"].(map[string]any)
	return b["filter"].([]any), b["must_not"].([]any)
}

func TestBuildSegmentQuery(t *testing.T) {
	req := validSegmentRequest()
	req.MinimumViews = dto.NewNumberInput("1,000")
	req.MinimumSubscribers = dto.NewNumberInput("50")
	req.ScoreThreshold = dto.NewNumberInput("80")
	req.ContentCategories = []string{"Sports"}
	req.ExcludeContentCategories = []string{"Automotive"}
	req.Languages = []string{"en"}
	vetted := false
	req.IsVetted = &vetted

	c, err := ParseSegmentRequest(req, taxonomy.MustDefault())
	require.NoError(t, err)

	t.Run("Channel", func(t *testing.T) {
		filter, mustNot := boolFilters(BuildSegmentQuery(c, models.SegmentTypeChannel))
		assert.Contains(t, filter, rangeClause("stats.views", "gte", int64(1000)))
		assert.Contains(t, filter, rangeClause("stats.subscribers", "gte", int64(50)))
		assert.Contains(t, filter, termsClause("general_data.top_lang_code", []string{"en"}))
		assert.Contains(t, filter, termsClause("general_data.iab_categories", []string{"Sports"}))
		assert.Contains(t, filter, rangeClause("brand_safety.overall_score", "gte", 80.0))
		assert.Contains(t, mustNot, termsClause("general_data.iab_categories", []string{"Automotive"}))
		assert.Contains(t, mustNot, existsClause("task_us_data"))
	})

	t.Run("VideoSkipsChannelOnlyFilters", func(t *testing.T) {
		filter, _ := boolFilters(BuildSegmentQuery(c, models.SegmentTypeVideo))
		assert.NotContains(t, filter, rangeClause("stats.subscribers", "gte", int64(50)))
		assert.Contains(t, filter, termsClause("general_data.lang_code", []string{"en"}))
	})

	t.Run("BlacklistUsesUpperBound", func(t *testing.T) {
		black := *c
		black.ListType = models.ListTypeBlacklist
		filter, _ := boolFilters(BuildSegmentQuery(&black, models.SegmentTypeVideo))
		assert.Contains(t, filter, rangeClause("brand_safety.overall_score", "lte", 80.0))
	})
}
