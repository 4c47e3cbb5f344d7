package businessflow

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
)

// Brand suitability labels by overall score
const (
	LabelSuitable          = "Suitable"
	LabelMediumSuitability = "Medium Suitability"
	LabelLowSuitability    = "Low Suitability"
	LabelHighRisk          = "High Risk"
)

const (
	DefaultFlagThreshold = 89
	MaxChannelPageSize   = 24
	worstWordsLimit      = 20
)

var channelVideoSortKeys = map[string]bool{
	"youtube_published_at": true,
	"score":                true,
	"views":                true,
	"engage_rate":          true,
}

// BrandSuitabilityLabel maps a score to its label.
// High Risk is only revealed to callers allowed to see it; otherwise the label is nil.
func BrandSuitabilityLabel(score int, canSeeHighRisk bool) *string {
	var label string
	switch {
	case score >= 90:
		label = LabelSuitable
	case score >= 80:
		label = LabelMediumSuitability
	case score >= 70:
		label = LabelLowSuitability
	default:
		if !canSeeHighRisk {
			return nil
		}
		label = LabelHighRisk
	}
	return &label
}

// BrandSafetyFlow scores videos and channels from their index documents
type BrandSafetyFlow interface {
	VideoBrandSafety(ctx context.Context, videoID string) (*dto.VideoBrandSafetyResponse, error)
	ChannelBrandSafety(ctx context.Context, channelID string, q *dto.ChannelBrandSafetyQuery) (*dto.ChannelBrandSafetyResponse, error)
}

// BrandSafetyFlowImpl implements the brand safety scoring flow
type BrandSafetyFlowImpl struct {
	index        services.SearchIndex
	categoryRepo repository.BadWordCategoryRepository
	wordRepo     repository.BadWordRepository
	videoIndex   string
	channelIndex string
	scanSize     int
}

// NewBrandSafetyFlow creates a new brand safety flow instance
func NewBrandSafetyFlow(
	index services.SearchIndex,
	categoryRepo repository.BadWordCategoryRepository,
	wordRepo repository.BadWordRepository,
	videoIndex, channelIndex string,
	scanSize int,
) BrandSafetyFlow {
	if scanSize <= 0 {
		scanSize = 1000
	}
	return &BrandSafetyFlowImpl{
		index:        index,
		categoryRepo: categoryRepo,
		wordRepo:     wordRepo,
		videoIndex:   videoIndex,
		channelIndex: channelIndex,
		scanSize:     scanSize,
	}
}

func searchUnavailable(err error) error {
	return NewBusinessError("SEARCH_UNAVAILABLE", "Brand safety data is temporarily unavailable. Please try again later.", joinErr(ErrSearchUnavailable, err))
}

func roundScore(v float64) int {
	return int(math.Round(v))
}

// categoriesByID loads every category keyed the way documents reference them
func (f *BrandSafetyFlowImpl) categoriesByID(ctx context.Context) (map[string]*models.BadWordCategory, error) {
	rows, err := f.categoryRepo.ByFilter(ctx, models.BadWordCategoryFilter{}, "", 0, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.BadWordCategory, len(rows))
	for _, c := range rows {
		out[strconv.FormatUint(uint64(c.ID), 10)] = c
	}
	return out, nil
}

func (f *BrandSafetyFlowImpl) VideoBrandSafety(ctx context.Context, videoID string) (*dto.VideoBrandSafetyResponse, error) {
	caller, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	canSeeHighRisk := caller.Can(models.CapabilityBrandSuitabilityHighRisk)

	doc, err := f.index.GetDocument(ctx, f.videoIndex, videoID)
	if err != nil {
		return nil, searchUnavailable(err)
	}
	if doc == nil {
		return &dto.VideoBrandSafetyResponse{
			Label:                BrandSuitabilityLabel(0, canSeeHighRisk),
			CategoryFlaggedWords: map[string]int{},
			WorstWords:           []string{},
		}, nil
	}

	categories, err := f.categoriesByID(ctx)
	if err != nil {
		return nil, internal("BRAND_SAFETY_FAILED", "Failed to score video", err)
	}
	hits := collectKeywordHits(doc.BrandSafety.Categories, categories)

	var words []*models.BadWord
	if names := hits.normalizedNames(); len(names) > 0 {
		words, err = f.wordRepo.ByFilter(ctx, models.BadWordFilter{NormalizedNames: names}, "bad_words.id ASC", 0, 0)
		if err != nil {
			return nil, internal("BRAND_SAFETY_FAILED", "Failed to score video", err)
		}
	}

	resp := scoreKeywordHits(hits, words)
	resp.Score = roundScore(doc.BrandSafety.OverallScore)
	resp.Label = BrandSuitabilityLabel(resp.Score, canSeeHighRisk)
	return resp, nil
}

// keywordHit is one keyword found under one category of a document
type keywordHit struct {
	category   string
	keyword    string
	normalized string
}

type keywordHits []keywordHit

func (h keywordHits) normalizedNames() []string {
	seen := make(map[string]struct{}, len(h))
	out := make([]string, 0, len(h))
	for _, hit := range h {
		if _, ok := seen[hit.normalized]; ok {
			continue
		}
		seen[hit.normalized] = struct{}{}
		out = append(out, hit.normalized)
	}
	sort.Strings(out)
	return out
}

// collectKeywordHits flattens document categories, skipping excluded ones.
// Category ids without a local record keep the id as their display name.
func collectKeywordHits(docCategories map[string]models.DocumentCategory, categories map[string]*models.BadWordCategory) keywordHits {
	ids := make([]string, 0, len(docCategories))
	for id := range docCategories {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var hits keywordHits
	for _, id := range ids {
		name := id
		if c, ok := categories[id]; ok {
			if c.Excluded {
				continue
			}
			name = c.Name
		}
		for _, kw := range docCategories[id].Keywords {
			n := models.NormalizeWord(kw.Keyword)
			if n == "" {
				continue
			}
			hits = append(hits, keywordHit{category: name, keyword: kw.Keyword, normalized: n})
		}
	}
	return hits
}

// scoreKeywordHits counts flagged words. Every hit resolves to one word record,
// the lowest id sharing its normalized name, so a word listed under several
// categories or stored as several rows is counted once.
func scoreKeywordHits(hits keywordHits, words []*models.BadWord) *dto.VideoBrandSafetyResponse {
	canonical := make(map[string]*models.BadWord, len(words))
	for _, w := range words {
		if cur, ok := canonical[w.NormalizedName]; !ok || w.ID < cur.ID {
			canonical[w.NormalizedName] = w
		}
	}

	type flagged struct {
		name  string
		score int
	}
	unique := make(map[string]flagged)
	perCategory := make(map[string]map[string]struct{})
	for _, hit := range hits {
		key := "kw:" + hit.normalized
		entry := flagged{name: hit.keyword}
		if w, ok := canonical[hit.normalized]; ok {
			key = "id:" + strconv.FormatUint(uint64(w.ID), 10)
			entry = flagged{name: w.Name, score: w.NegativeScore}
		}
		unique[key] = entry
		if perCategory[hit.category] == nil {
			perCategory[hit.category] = make(map[string]struct{})
		}
		perCategory[hit.category][key] = struct{}{}
	}

	worst := make([]flagged, 0, len(unique))
	for _, v := range unique {
		worst = append(worst, v)
	}
	sort.Slice(worst, func(i, j int) bool {
		if worst[i].score != worst[j].score {
			return worst[i].score > worst[j].score
		}
		return worst[i].name < worst[j].name
	})
	if len(worst) > worstWordsLimit {
		worst = worst[:worstWordsLimit]
	}

	resp := &dto.VideoBrandSafetyResponse{
		TotalUniqueFlaggedWords: len(unique),
		CategoryFlaggedWords:    make(map[string]int, len(perCategory)),
		WorstWords:              make([]string, 0, len(worst)),
	}
	for name, set := range perCategory {
		resp.CategoryFlaggedWords[name] = len(set)
	}
	for _, w := range worst {
		resp.WorstWords = append(resp.WorstWords, w.name)
	}
	return resp
}

func (f *BrandSafetyFlowImpl) ChannelBrandSafety(ctx context.Context, channelID string, q *dto.ChannelBrandSafetyQuery) (*dto.ChannelBrandSafetyResponse, error) {
	caller, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	canSeeHighRisk := caller.Can(models.CapabilityBrandSuitabilityHighRisk)

	threshold := DefaultFlagThreshold
	if v, err := strconv.Atoi(strings.TrimSpace(q.Threshold)); err == nil {
		threshold = v
	}
	size := MaxChannelPageSize
	if v, err := strconv.Atoi(strings.TrimSpace(q.Size)); err == nil && v > 0 && v <= MaxChannelPageSize {
		size = v
	}
	ascending := false
	if q.SortAscending != "" {
		b, err := strconv.ParseBool(q.SortAscending)
		if err != nil {
			return nil, ValidationError("Expected sortAscending to be boolean value. Received %s", q.SortAscending)
		}
		ascending = b
	}

	doc, err := f.index.GetDocument(ctx, f.channelIndex, channelID)
	if err != nil {
		return nil, searchUnavailable(err)
	}
	summary := dto.ChannelBrandSafetySummary{FlaggedWords: []string{}}
	var items []dto.FlaggedVideoItem
	if doc != nil {
		categories, err := f.categoriesByID(ctx)
		if err != nil {
			return nil, internal("BRAND_SAFETY_FAILED", "Failed to score channel", err)
		}
		hits := collectKeywordHits(doc.BrandSafety.Categories, categories)
		seen := make(map[string]struct{}, len(hits))
		for _, h := range hits {
			if _, ok := seen[h.normalized]; ok {
				continue
			}
			seen[h.normalized] = struct{}{}
			summary.FlaggedWords = append(summary.FlaggedWords, h.keyword)
		}
		summary.TotalVideosScored = doc.BrandSafety.VideosScored
		summary.Score = roundScore(doc.BrandSafety.OverallScore)

		items, err = f.flaggedVideos(ctx, channelID, threshold, canSeeHighRisk)
		if err != nil {
			return nil, searchUnavailable(err)
		}
	}
	summary.Label = BrandSuitabilityLabel(summary.Score, canSeeHighRisk)
	summary.TotalFlaggedVideos = int64(len(items))

	sortKey := q.Sort
	if !channelVideoSortKeys[sortKey] {
		sortKey = "youtube_published_at"
	}
	sortFlaggedVideos(items, sortKey, ascending)

	page := paginateSlice(items, q.Page, size)
	return &dto.ChannelBrandSafetyResponse{BrandSafety: summary, Page: page}, nil
}

// flaggedVideos returns the channel's videos scored at or above threshold
func (f *BrandSafetyFlowImpl) flaggedVideos(ctx context.Context, channelID string, threshold int, canSeeHighRisk bool) ([]dto.FlaggedVideoItem, error) {
	query := map[string]any{
		"bool": map[string]any{
			"filter": []any{
				map[string]any{"term": map[string]any{"channel.id": channelID}},
				map[string]any{"range": map[string]any{"brand_safety.overall_score": map[string]any{"gte": threshold}}},
			},
		},
	}
	var items []dto.FlaggedVideoItem
	err := f.index.Scan(ctx, f.videoIndex, query, f.scanSize, func(hits []services.SearchHit) error {
		for _, h := range hits {
			if h.Source.BrandSafety.OverallScore < float64(threshold) {
				continue
			}
			score := roundScore(h.Source.BrandSafety.OverallScore)
			id := h.Source.Main.ID
			if id == "" {
				id = h.ID
			}
			items = append(items, dto.FlaggedVideoItem{
				ID:                 id,
				Score:              score,
				Label:              BrandSuitabilityLabel(score, canSeeHighRisk),
				Title:              h.Source.GeneralData.Title,
				ThumbnailImageURL:  h.Source.GeneralData.ThumbnailImageURL,
				Transcript:         h.Source.GeneralData.Transcript,
				YoutubePublishedAt: h.Source.GeneralData.YoutubePublishedAt,
				Views:              h.Source.Stats.Views,
				EngageRate:         h.Source.Stats.EngageRate,
			})
		}
		return nil
	})
	return items, err
}

func sortFlaggedVideos(items []dto.FlaggedVideoItem, key string, ascending bool) {
	less := func(a, b dto.FlaggedVideoItem) bool {
		switch key {
		case "score":
			return a.Score < b.Score
		case "views":
			return a.Views < b.Views
		case "engage_rate":
			return a.EngageRate < b.EngageRate
		default:
			return a.YoutubePublishedAt < b.YoutubePublishedAt
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if ascending {
			return less(items[i], items[j])
		}
		return less(items[j], items[i])
	})
}

// paginateSlice pages an in-memory list. A page past the end or below one
// yields the last page; a non-numeric page yields the first.
func paginateSlice[T any](items []T, rawPage string, size int) dto.Page[T] {
	total := len(items)
	pages := 1
	if total > 0 {
		pages = (total + size - 1) / size
	}
	page := 1
	if rawPage != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(rawPage)); err == nil {
			page = n
			if page < 1 || page > pages {
				page = pages
			}
		}
	}
	start := (page - 1) * size
	end := min(start+size, total)
	out := make([]T, 0, end-start)
	out = append(out, items[start:end]...)
	return dto.Page[T]{
		CurrentPage: page,
		Items:       out,
		ItemsCount:  int64(total),
		MaxPage:     pages,
	}
}
