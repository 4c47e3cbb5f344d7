package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirphl/viewiq/app/dto"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/amirphl/viewiq/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSegmentFlow struct {
	businessflow.SegmentFlow
	err     error
	created []*dto.SegmentResponse
	caller  *utils.RequestUser
	req     *dto.CreateSegmentRequest
	calls   int
}

func (f *fakeSegmentFlow) Create(ctx context.Context, req *dto.CreateSegmentRequest, _ *businessflow.ClientMetadata) ([]*dto.SegmentResponse, error) {
	f.calls++
	f.req = req
	f.caller, _ = utils.RequestUserFrom(ctx)
	return f.created, f.err
}

func (f *fakeSegmentFlow) Delete(context.Context, uint) error {
	f.calls++
	return f.err
}

func (f *fakeSegmentFlow) ExportStatus(context.Context, uint) (*dto.ExportStatusResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ExportStatusResponse{Status: "ready", Message: "Your export is ready.", DownloadLink: "https://example.com/f.csv"}, nil
}

func newSegmentApp(flow businessflow.SegmentFlow) *fiber.App {
	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		c.SetContext(utils.WithRequestUser(c.Context(), &utils.RequestUser{ID: 7, Email: "user@example.com"}))
		return c.Next()
	})
	h := NewSegmentHandler(flow)
	app.Post("/api/v1/segments", h.Create)
	app.Delete("/api/v1/segments/:id", h.Delete)
	app.Get("/api/v1/segments/:id/export", h.ExportStatus)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, dto.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out dto.APIResponse
	if resp.StatusCode != fiber.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func errorCode(t *testing.T, r dto.APIResponse) string {
	t.Helper()
	detail, ok := r.Error.(map[string]any)
	require.True(t, ok, "error detail missing: %#v", r.Error)
	code, _ := detail["code"].(string)
	return code
}

func TestSegmentHandler_Create(t *testing.T) {
	t.Run("ValidationFailsBeforeFlow", func(t *testing.T) {
		flow := &fakeSegmentFlow{}
		status, body := doJSON(t, newSegmentApp(flow), http.MethodPost, "/api/v1/segments", `{"list_type":"whitelist","segment_type":1}`)

		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.False(t, body.Success)
		assert.Equal(t, "title is required", body.Message)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
		assert.Zero(t, flow.calls)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		flow := &fakeSegmentFlow{}
		status, body := doJSON(t, newSegmentApp(flow), http.MethodPost, "/api/v1/segments", `{"title":`)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_REQUEST", errorCode(t, body))
		assert.Zero(t, flow.calls)
	})

	t.Run("FormattedNumbersReachFlow", func(t *testing.T) {
		flow := &fakeSegmentFlow{created: []*dto.SegmentResponse{{ID: 1, Title: "Safe"}}}
		status, body := doJSON(t, newSegmentApp(flow), http.MethodPost, "/api/v1/segments",
			`{"title":"Safe","list_type":"whitelist","segment_type":"2","minimum_views":"1,000,000","score_threshold":3}`)

		assert.Equal(t, fiber.StatusCreated, status)
		assert.True(t, body.Success)
		require.NotNil(t, flow.req)
		assert.Equal(t, "1,000,000", flow.req.MinimumViews.Raw)
		assert.Equal(t, "3", flow.req.ScoreThreshold.Raw)
		assert.Equal(t, "2", flow.req.SegmentType.Raw)
		require.NotNil(t, flow.caller)
		assert.Equal(t, uint(7), flow.caller.ID)
	})

	t.Run("BusinessValidationMessageIsKept", func(t *testing.T) {
		flow := &fakeSegmentFlow{err: businessflow.ValidationError("The following content_categories are invalid: 'x'")}
		status, body := doJSON(t, newSegmentApp(flow), http.MethodPost, "/api/v1/segments",
			`{"title":"Safe","list_type":"whitelist","segment_type":1}`)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "The following content_categories are invalid: 'x'", body.Message)
	})

	t.Run("InternalErrorsAreHidden", func(t *testing.T) {
		flow := &fakeSegmentFlow{err: errors.New("pq: connection refused")}
		status, body := doJSON(t, newSegmentApp(flow), http.MethodPost, "/api/v1/segments",
			`{"title":"Safe","list_type":"whitelist","segment_type":1}`)
		assert.Equal(t, fiber.StatusInternalServerError, status)
		assert.Equal(t, "An internal server error occurred", body.Message)
		assert.NotContains(t, body.Message, "pq")
	})
}

func TestSegmentHandler_DeleteAndExport(t *testing.T) {
	t.Run("InvalidID", func(t *testing.T) {
		flow := &fakeSegmentFlow{}
		status, body := doJSON(t, newSegmentApp(flow), http.MethodDelete, "/api/v1/segments/abc", "")
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_ID", errorCode(t, body))
		assert.Zero(t, flow.calls)
	})

	t.Run("Deleted", func(t *testing.T) {
		status, _ := doJSON(t, newSegmentApp(&fakeSegmentFlow{}), http.MethodDelete, "/api/v1/segments/3", "")
		assert.Equal(t, fiber.StatusNoContent, status)
	})

	t.Run("NotFound", func(t *testing.T) {
		flow := &fakeSegmentFlow{err: businessflow.NewBusinessError("SEGMENT_NOT_FOUND", "Segment not found", businessflow.ErrSegmentNotFound)}
		status, body := doJSON(t, newSegmentApp(flow), http.MethodGet, "/api/v1/segments/3/export", "")
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, "SEGMENT_NOT_FOUND", errorCode(t, body))
	})

	t.Run("Ready", func(t *testing.T) {
		status, body := doJSON(t, newSegmentApp(&fakeSegmentFlow{}), http.MethodGet, "/api/v1/segments/3/export", "")
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "Your export is ready.", body.Message)
		data := body.Data.(map[string]any)
		assert.Equal(t, "ready", data["status"])
		assert.Equal(t, "https://example.com/f.csv", data["download_link"])
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{businessflow.ErrUnauthenticated, fiber.StatusUnauthorized},
		{businessflow.NewBusinessError("X", "x", businessflow.ErrInvalidCredentials), fiber.StatusUnauthorized},
		{businessflow.NewBusinessError("X", "x", businessflow.ErrOTPAttemptsExceeded), fiber.StatusUnauthorized},
		{businessflow.NewBusinessError("X", "x", businessflow.ErrMFASessionInvalid), fiber.StatusUnauthorized},
		{businessflow.NewBusinessError("X", "x", businessflow.ErrOTPInvalid), fiber.StatusBadRequest},
		{businessflow.NewBusinessError("X", "x", businessflow.ErrForbidden), fiber.StatusForbidden},
		{businessflow.NewBusinessError("X", "x", businessflow.ErrAccountInactive), fiber.StatusForbidden},
		{businessflow.NewBusinessError("X", "x", businessflow.ErrBadWordNotFound), fiber.StatusNotFound},
		{businessflow.NewBusinessError("X", "x", businessflow.ErrDuplicateSegmentTitle), fiber.StatusBadRequest},
		{businessflow.ValidationError("bad"), fiber.StatusBadRequest},
		{errors.Join(businessflow.ErrSearchUnavailable, errors.New("dial tcp")), fiber.StatusServiceUnavailable},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
