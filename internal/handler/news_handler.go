package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/agropulse/agropulse/internal/model"
)

// NewsServiceInterface はニュースハンドラーが必要とするサービスインターフェース。
type NewsServiceInterface interface {
	Configured() bool
	Fetch(ctx context.Context) ([]model.NewsItem, error)
}

// NewsHandler は市場ニュースAPIのHTTPハンドラー。
type NewsHandler struct {
	service NewsServiceInterface
	logger  *slog.Logger
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(service NewsServiceInterface, logger *slog.Logger) *NewsHandler {
	return &NewsHandler{
		service: service,
		logger:  logger,
	}
}

type newsResponse struct {
	Items []model.NewsItem `json:"items"`
}

// List はキャッシュ済みの市場ニュース記事を返す。
// フィードが未設定の場合は204を返す。
// GET /api/news
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.service.Configured() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	items, err := h.service.Fetch(r.Context())
	if err != nil {
		h.logger.Warn("news fetch failed", slog.String("error", err.Error()))
		writeAPIError(w, http.StatusBadGateway, model.NewNewsUnavailableError())
		return
	}

	if items == nil {
		items = []model.NewsItem{}
	}
	writeJSON(w, http.StatusOK, newsResponse{Items: items})
}
