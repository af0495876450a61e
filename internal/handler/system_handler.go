package handler

import "net/http"

// serviceDescriptor はルートパスで返すサービス情報。
var serviceDescriptor = map[string]any{
	"service": "agropulse",
	"status":  "ok",
	"endpoints": []string{
		"/api/ping",
		"/register",
		"/login",
		"/logout",
		"/me",
		"/dashboard",
		"/api/weather",
		"/api/news",
		"/metrics",
	},
}

// Root はサービスの自己記述JSONを返す。
// GET /
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, serviceDescriptor)
}

// Ping は生存確認に応答する。
// GET /api/ping
func Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
