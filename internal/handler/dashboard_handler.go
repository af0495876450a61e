package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/agropulse/agropulse/internal/advisor"
	"github.com/agropulse/agropulse/internal/middleware"
	"github.com/agropulse/agropulse/internal/model"
	"github.com/agropulse/agropulse/internal/weather"
)

// AdvisorServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type AdvisorServiceInterface interface {
	Generate(ctx context.Context, username string, req advisor.Request) (*model.HistoryEntry, error)
	History(ctx context.Context, username string) ([]*model.HistoryEntry, error)
}

// UserFinder はユーザー情報の取得インターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// DashboardHandler は栽培計画ダッシュボードのHTTPハンドラー。
type DashboardHandler struct {
	advisorSvc AdvisorServiceInterface
	userFinder UserFinder
	fallback   weather.Fallback
	logger     *slog.Logger
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(advisorSvc AdvisorServiceInterface, userFinder UserFinder, fallback weather.Fallback, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		advisorSvc: advisorSvc,
		userFinder: userFinder,
		fallback:   fallback,
		logger:     logger,
	}
}

// defaultLocationResponse はブラウザ位置情報が得られない場合の既定地点。
type defaultLocationResponse struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	City string  `json:"city"`
}

type dashboardResponse struct {
	Username        string                  `json:"username"`
	FarmName        string                  `json:"farm_name"`
	DefaultLocation defaultLocationResponse `json:"default_location"`
	Active          *model.HistoryEntry     `json:"active"`
	History         []*model.HistoryEntry   `json:"history"`
}

// Get はダッシュボードの表示内容を返す。
// 履歴は新しい順で最大5件、先頭のエントリが現在の表示対象になる。
// GET /dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.userFinder.FindByUsername(r.Context(), username)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if user == nil {
		writeAPIError(w, http.StatusUnauthorized, model.NewUserNotFoundError())
		return
	}

	history, err := h.advisorSvc.History(r.Context(), username)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := dashboardResponse{
		Username: user.Username,
		FarmName: user.FarmName,
		DefaultLocation: defaultLocationResponse{
			Lat:  h.fallback.Lat,
			Lon:  h.fallback.Lon,
			City: h.fallback.City,
		},
		History: history,
	}
	if len(history) > 0 {
		resp.Active = history[0]
	}

	writeJSON(w, http.StatusOK, resp)
}

type generateRequest struct {
	Crop      string `json:"crop"`
	LandSize  string `json:"land_size"`
	City      string `json:"city"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

type generateResponse struct {
	Entry   *model.HistoryEntry   `json:"entry"`
	History []*model.HistoryEntry `json:"history"`
	AIError string                `json:"ai_error,omitempty"`
}

// Generate は栽培計画ワークフローを実行して新しいエントリと履歴を返す。
// 上流AIの失敗はコンテンツとは別のai_errorフィールドで伝える。
// POST /dashboard
func (h *DashboardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("request body must be valid JSON"))
		return
	}

	entry, err := h.advisorSvc.Generate(r.Context(), username, advisor.Request{
		Crop:      req.Crop,
		LandSize:  req.LandSize,
		City:      req.City,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	history, err := h.advisorSvc.History(r.Context(), username)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Entry:   entry,
		History: history,
		AIError: entry.AIError,
	})
}
