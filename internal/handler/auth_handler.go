package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/agropulse/agropulse/internal/middleware"
	"github.com/agropulse/agropulse/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, username, password, farmName string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// SessionMetrics はアクティブセッション数の増減を記録する。
type SessionMetrics interface {
	SessionOpened()
	SessionClosed()
}

// AuthHandler はユーザー登録・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	config   AuthHandlerConfig
	logger   *slog.Logger
	sessions SessionMetrics // nil可
}

// NewAuthHandler はAuthHandlerを生成する。sessionsはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, logger *slog.Logger, sessions SessionMetrics) *AuthHandler {
	return &AuthHandler{
		service:  service,
		config:   config,
		logger:   logger,
		sessions: sessions,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FarmName string `json:"farm_name"`
}

type userResponse struct {
	Username  string    `json:"username"`
	FarmName  string    `json:"farm_name"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(user *model.User) userResponse {
	return userResponse{
		Username:  user.Username,
		FarmName:  user.FarmName,
		CreatedAt: user.CreatedAt,
	}
}

// Register は新規ユーザーを登録する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("request body must be valid JSON"))
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Password, req.FarmName)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user registered", slog.String("username", user.Username))
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login は認証に成功した場合にセッションCookieを発行する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("request body must be valid JSON"))
		return
	}

	session, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	if h.sessions != nil {
		h.sessions.SessionOpened()
	}
	h.logger.Info("user logged in", slog.String("username", session.Username))
	writeJSON(w, http.StatusOK, map[string]string{"username": session.Username})
}

// Logout はセッションを破棄してCookieをクリアする。
// POST /logout, GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		// 破棄失敗してもCookieはクリアする
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			h.logger.Error("failed to logout", slog.String("error", logoutErr.Error()))
		} else if h.sessions != nil {
			h.sessions.SessionClosed()
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIError(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if user == nil {
		writeAPIError(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// setSessionCookie はHTTP OnlyのセッションCookieを設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
