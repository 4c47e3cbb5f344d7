package businessflow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/business_flow/taxonomy"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/utils"
)

// segmentTypeBoth creates one video and one channel list from the same filters
const segmentTypeBoth = 2

// score_threshold and sentiment accept a 1..4 level; larger values are literal scores
var (
	scoreThresholdLevels = map[int64]float64{1: 0, 2: 69, 3: 79, 4: 89}
	sentimentLevels      = map[int64]float64{1: 0, 2: 50, 3: 70, 4: 90}
)

// blacklist severity only knows levels 1..3; anything else caps at the maximum score
var blacklistSeverityLevels = map[int64]float64{1: 0, 2: 79, 3: 89}

const maxBrandSafetyScore = 100

// SegmentCriteria is a validated segment request
type SegmentCriteria struct {
	Title                    string
	SegmentTypes             []models.SegmentType
	ListType                 models.ListType
	Languages                []string
	Countries                []string
	ContentCategories        []string
	ExcludeContentCategories []string
	ScoreThreshold           *float64
	MinimumViews             *int64
	MinimumSubscribers       *int64
	MinimumVideos            *int64
	LastUploadDate           *time.Time
	Sentiment                *float64
	AgeGroups                []string
	Genders                  []string
	SeverityFilters          map[string][]int
	BrandSafetyCategories    []string
	IsVetted                 *bool
	VettedAfter              *time.Time
}

type fieldErrors []FieldError

func (fe *fieldErrors) add(field, message string) {
	*fe = append(*fe, FieldError{Field: field, Message: message})
}

// err returns a 400 whose message is the first problem found
func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	be := FieldValidationError(fe)
	be.Message = fe[0].Message
	return be
}

func parseNumberInput(n dto.NumberInput) (*int64, string, bool) {
	if !n.Set {
		return nil, "", true
	}
	formatted := strings.ReplaceAll(strings.TrimSpace(n.Raw), ",", "")
	if formatted == "" {
		return nil, "", true
	}
	v, err := strconv.ParseInt(formatted, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(formatted, 64)
		if ferr != nil || f != float64(int64(f)) {
			return nil, formatted, false
		}
		v = int64(f)
	}
	return &v, formatted, true
}

func mapLevel(v *int64, levels map[int64]float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	if mapped, ok := levels[*v]; ok {
		return &mapped
	}
	f := float64(*v)
	return &f
}

func mapBlacklistSeverity(v *int64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	mapped, ok := blacklistSeverityLevels[*v]
	if !ok {
		mapped = maxBrandSafetyScore
	}
	return &mapped
}

func parseOptionalDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	t, err := utils.ParseDate(raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return utils.UniqueStrings(out)
}

// ParseSegmentRequest validates a create request into criteria
func ParseSegmentRequest(req *dto.CreateSegmentRequest, tax *taxonomy.Taxonomy) (*SegmentCriteria, error) {
	var errs fieldErrors
	c := &SegmentCriteria{
		Title:     strings.TrimSpace(req.Title),
		ListType:  models.ListType(strings.ToLower(strings.TrimSpace(req.ListType))),
		Languages: cleanList(req.Languages),
		AgeGroups: cleanList(req.AgeGroups),
		Genders:   cleanList(req.Genders),
		IsVetted:  req.IsVetted,
	}

	if c.Title == "" {
		errs.add("title", "title is required")
	}

	rawType := strings.TrimSpace(req.SegmentType.Raw)
	switch st, err := strconv.Atoi(rawType); {
	case !req.SegmentType.Set || rawType == "":
		errs.add("segment_type", "segment_type is required")
	case err != nil || st < 0 || st > segmentTypeBoth:
		errs.add("segment_type", fmt.Sprintf("Invalid list_type: %s. 0 = video, 1 = channel.", rawType))
	case st == segmentTypeBoth:
		c.SegmentTypes = []models.SegmentType{models.SegmentTypeVideo, models.SegmentTypeChannel}
	default:
		c.SegmentTypes = []models.SegmentType{models.SegmentType(st)}
	}

	if !c.ListType.Valid() {
		errs.add("list_type", fmt.Sprintf("Invalid list_type: %s. Expected whitelist or blacklist.", req.ListType))
	}

	countries := make([]string, 0, len(req.Countries))
	for _, country := range req.Countries {
		countries = append(countries, strings.ToUpper(country))
	}
	c.Countries = cleanList(countries)

	include := cleanList(req.ContentCategories)
	exclude := cleanList(req.ExcludeContentCategories)
	if unknown := tax.Unknown(include, exclude); len(unknown) > 0 {
		errs.add("content_categories", fmt.Sprintf("The following content_categories are invalid: '%s'", strings.Join(unknown, ", ")))
	} else {
		for _, name := range include {
			canonical, _ := tax.Canonical(name)
			c.ContentCategories = append(c.ContentCategories, canonical)
		}
		for _, name := range exclude {
			canonical, _ := tax.Canonical(name)
			c.ExcludeContentCategories = append(c.ExcludeContentCategories, canonical)
		}
	}

	numbers := []struct {
		field string
		input dto.NumberInput
		dst   **int64
	}{
		{"minimum_views", req.MinimumViews, &c.MinimumViews},
		{"minimum_subscribers", req.MinimumSubscribers, &c.MinimumSubscribers},
		{"minimum_videos", req.MinimumVideos, &c.MinimumVideos},
	}
	for _, n := range numbers {
		v, formatted, ok := parseNumberInput(n.input)
		if !ok {
			errs.add(n.field, fmt.Sprintf("The value: '%s' is not a valid number.", formatted))
			continue
		}
		*n.dst = v
	}

	if v, formatted, ok := parseNumberInput(req.ScoreThreshold); ok {
		if c.ListType == models.ListTypeBlacklist {
			c.ScoreThreshold = mapBlacklistSeverity(v)
		} else {
			c.ScoreThreshold = mapLevel(v, scoreThresholdLevels)
		}
	} else {
		errs.add("score_threshold", fmt.Sprintf("The value: '%s' is not a valid number.", formatted))
	}
	if v, formatted, ok := parseNumberInput(req.Sentiment); ok {
		c.Sentiment = mapLevel(v, sentimentLevels)
	} else {
		errs.add("sentiment", fmt.Sprintf("The value: '%s' is not a valid number.", formatted))
	}

	var ok bool
	if c.LastUploadDate, ok = parseOptionalDate(req.LastUploadDate); !ok {
		errs.add("last_upload_date", "Date format must be YYYY-mm-dd")
	}
	if c.VettedAfter, ok = parseOptionalDate(req.VettedAfter); !ok {
		errs.add("vetted_after", "Date format must be YYYY-mm-dd")
	}

	if len(req.SeverityFilters) > 0 {
		c.SeverityFilters = make(map[string][]int, len(req.SeverityFilters))
		for category, scores := range req.SeverityFilters {
			if _, valid := parseUintID(category); !valid {
				errs.add("severity_filters", fmt.Sprintf("Invalid brand safety category id: %s", category))
				continue
			}
			clean := make([]int, 0, len(scores))
			for _, s := range scores {
				if s < 1 || s > 3 {
					errs.add("severity_filters", fmt.Sprintf("Invalid severity score: %d. Expected 1, 2 or 3.", s))
					continue
				}
				clean = append(clean, s)
			}
			sort.Ints(clean)
			c.SeverityFilters[category] = clean
		}
	}

	for _, category := range cleanList(req.BrandSafetyCategories) {
		if _, valid := parseUintID(category); !valid {
			errs.add("brand_safety_categories", fmt.Sprintf("Invalid brand safety category id: %s", category))
			continue
		}
		c.BrandSafetyCategories = append(c.BrandSafetyCategories, category)
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return c, nil
}

func rangeClause(field, op string, value any) map[string]any {
	return map[string]any{"range": map[string]any{field: map[string]any{op: value}}}
}

func termsClause(field string, values []string) map[string]any {
	return map[string]any{"terms": map[string]any{field: values}}
}

func existsClause(field string) map[string]any {
	return map[string]any{"exists": map[string]any{"field": field}}
}

// BuildSegmentQuery renders criteria as a bool query over one document kind
func BuildSegmentQuery(c *SegmentCriteria, segmentType models.SegmentType) map[string]any {
	filter := []any{}
	mustNot := []any{}

	publishedField := "general_data.youtube_published_at"
	languageField := "general_data.lang_code"
	if segmentType == models.SegmentTypeChannel {
		publishedField = "stats.last_video_published_at"
		languageField = "general_data.top_lang_code"
	}

	if c.MinimumViews != nil {
		filter = append(filter, rangeClause("stats.views", "gte", *c.MinimumViews))
	}
	if segmentType == models.SegmentTypeChannel {
		if c.MinimumSubscribers != nil {
			filter = append(filter, rangeClause("stats.subscribers", "gte", *c.MinimumSubscribers))
		}
		if c.MinimumVideos != nil {
			filter = append(filter, rangeClause("stats.total_videos_count", "gte", *c.MinimumVideos))
		}
	}
	if c.LastUploadDate != nil {
		filter = append(filter, rangeClause(publishedField, "gte", utils.FormatDate(*c.LastUploadDate)))
	}
	if c.Sentiment != nil {
		filter = append(filter, rangeClause("stats.sentiment", "gte", *c.Sentiment))
	}
	if len(c.Languages) > 0 {
		filter = append(filter, termsClause(languageField, c.Languages))
	}
	if len(c.ContentCategories) > 0 {
		filter = append(filter, termsClause("general_data.iab_categories", c.ContentCategories))
	}
	if len(c.ExcludeContentCategories) > 0 {
		mustNot = append(mustNot, termsClause("general_data.iab_categories", c.ExcludeContentCategories))
	}
	if len(c.Countries) > 0 {
		filter = append(filter, termsClause("general_data.country_code", c.Countries))
	}
	if len(c.AgeGroups) > 0 {
		filter = append(filter, termsClause("task_us_data.age_group", c.AgeGroups))
	}
	if len(c.Genders) > 0 {
		filter = append(filter, termsClause("task_us_data.gender", c.Genders))
	}

	categories := make([]string, 0, len(c.SeverityFilters))
	for category := range c.SeverityFilters {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		for _, score := range c.SeverityFilters[category] {
			field := fmt.Sprintf("brand_safety.categories.%s.severity_counts.%d", category, score)
			filter = append(filter, rangeClause(field, "lte", 0))
		}
	}

	if c.ScoreThreshold != nil {
		op := "gte"
		if c.ListType == models.ListTypeBlacklist {
			op = "lte"
		}
		filter = append(filter, rangeClause("brand_safety.overall_score", op, *c.ScoreThreshold))
		for _, category := range c.BrandSafetyCategories {
			field := fmt.Sprintf("brand_safety.categories.%s.category_score", category)
			filter = append(filter, rangeClause(field, "gte", *c.ScoreThreshold))
		}
	}

	if c.IsVetted != nil {
		if *c.IsVetted {
			filter = append(filter, existsClause("task_us_data"))
		} else {
			mustNot = append(mustNot, existsClause("task_us_data"))
		}
	}
	if c.VettedAfter != nil {
		filter = append(filter, rangeClause("task_us_data.last_vetted_at", "gte", utils.FormatDate(*c.VettedAfter)))
	}

	return map[string]any{
		"bool": map[string]any{
			"filter":   filter,
			"must_not": mustNot,
		},
	}
}
