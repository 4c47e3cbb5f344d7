package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/amirphl/viewiq/config"
	"github.com/amirphl/viewiq/models"
	"github.com/elastic/go-elasticsearch/v8"
)

// ErrSearchUnavailable wraps every transport or server failure of the index
var ErrSearchUnavailable = errors.New("search index unavailable")

// SearchRequest is one page of a bool query
type SearchRequest struct {
	Query       map[string]any
	Sort        []map[string]any
	Size        int
	From        int
	SearchAfter []any
}

type SearchHit struct {
	ID     string
	Source models.IndexDocument
	Sort   []any
}

type SearchResult struct {
	Total int64
	Hits  []SearchHit
}

// SearchIndex reads channel and video documents
type SearchIndex interface {
	GetDocument(ctx context.Context, index, id string) (*models.IndexDocument, error)
	Search(ctx context.Context, index string, req SearchRequest) (*SearchResult, error)
	// Scan walks every hit of query in pages using search_after; fn is called once per page
	Scan(ctx context.Context, index string, query map[string]any, pageSize int, fn func(hits []SearchHit) error) error
}

type elasticSearchIndex struct {
	client *elasticsearch.Client
}

// NewElasticSearchIndex builds a SearchIndex backed by elasticsearch
func NewElasticSearchIndex(cfg config.SearchConfig) (SearchIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Transport: &http.Transport{ResponseHeaderTimeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &elasticSearchIndex{client: client}, nil
}

type getResponse struct {
	Found  bool                 `json:"found"`
	Source models.IndexDocument `json:"_source"`
}

// GetDocument returns nil without error when the document does not exist
func (s *elasticSearchIndex) GetDocument(ctx context.Context, index, id string) (*models.IndexDocument, error) {
	res, err := s.client.Get(index, id, s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchUnavailable, res.String())
	}

	var body getResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", index, id, err)
	}
	if !body.Found {
		return nil, nil
	}
	return &body.Source, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string               `json:"_id"`
			Source models.IndexDocument `json:"_source"`
			Sort   []any                `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *elasticSearchIndex) Search(ctx context.Context, index string, req SearchRequest) (*SearchResult, error) {
	body := map[string]any{"query": req.Query}
	if len(req.Sort) > 0 {
		body["sort"] = req.Sort
	}
	if req.Size > 0 {
		body["size"] = req.Size
	}
	if req.From > 0 {
		body["from"] = req.From
	}
	if len(req.SearchAfter) > 0 {
		body["search_after"] = req.SearchAfter
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode search body: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(&buf),
		s.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%w: %s %s", ErrSearchUnavailable, res.Status(), raw)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	out := &SearchResult{Total: parsed.Hits.Total.Value, Hits: make([]SearchHit, 0, len(parsed.Hits.Hits))}
	for _, h := range parsed.Hits.Hits {
		out.Hits = append(out.Hits, SearchHit{ID: h.ID, Source: h.Source, Sort: h.Sort})
	}
	return out, nil
}

func (s *elasticSearchIndex) Scan(ctx context.Context, index string, query map[string]any, pageSize int, fn func(hits []SearchHit) error) error {
	return ScanWithSearchAfter(ctx, s, index, query, pageSize, fn)
}

// ScanWithSearchAfter pages through a SearchIndex ordered by document id
func ScanWithSearchAfter(ctx context.Context, index SearchIndex, name string, query map[string]any, pageSize int, fn func(hits []SearchHit) error) error {
	if pageSize <= 0 {
		pageSize = 1000
	}
	var after []any
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := index.Search(ctx, name, SearchRequest{
			Query:       query,
			Sort:        []map[string]any{{"main.id": "asc"}},
			Size:        pageSize,
			SearchAfter: after,
		})
		if err != nil {
			return err
		}
		if len(res.Hits) == 0 {
			return nil
		}
		if err := fn(res.Hits); err != nil {
			return err
		}
		if len(res.Hits) < pageSize {
			return nil
		}
		after = res.Hits[len(res.Hits)-1].Sort
	}
}
