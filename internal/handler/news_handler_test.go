package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agropulse/agropulse/internal/model"
)

// mockNewsService は関数フィールドで挙動を差し替え可能なNewsServiceInterface。
type mockNewsService struct {
	configured bool
	fetchFunc  func(ctx context.Context) ([]model.NewsItem, error)
}

func (m *mockNewsService) Configured() bool {
	return m.configured
}

func (m *mockNewsService) Fetch(ctx context.Context) ([]model.NewsItem, error) {
	return m.fetchFunc(ctx)
}

func TestNewsHandler_List_Success(t *testing.T) {
	h := NewNewsHandler(&mockNewsService{
		configured: true,
		fetchFunc: func(ctx context.Context) ([]model.NewsItem, error) {
			return []model.NewsItem{
				{Title: "Tomato prices surge", Link: "https://news.example.com/1"},
			}, nil
		},
	}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp newsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Title != "Tomato prices surge" {
		t.Errorf("items = %+v", resp.Items)
	}
}

func TestNewsHandler_List_Unconfigured_Returns204(t *testing.T) {
	h := NewNewsHandler(&mockNewsService{configured: false}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestNewsHandler_List_UpstreamFailure_Returns502(t *testing.T) {
	h := NewNewsHandler(&mockNewsService{
		configured: true,
		fetchFunc: func(ctx context.Context) ([]model.NewsItem, error) {
			return nil, errors.New("feed returned status 500")
		},
	}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestNewsHandler_List_EmptyFeed_ReturnsEmptyArray(t *testing.T) {
	h := NewNewsHandler(&mockNewsService{
		configured: true,
		fetchFunc: func(ctx context.Context) ([]model.NewsItem, error) {
			return nil, nil
		},
	}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); !json.Valid([]byte(got)) {
		t.Fatalf("body is not JSON: %q", got)
	}

	var resp newsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Items == nil || len(resp.Items) != 0 {
		t.Errorf("items = %#v, want empty array", resp.Items)
	}
}
