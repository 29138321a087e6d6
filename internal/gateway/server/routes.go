package server

import (
	"net/http"

	"chunkchat/internal/gateway/handler"
	"chunkchat/internal/gateway/middleware"
)

func NewMux(
	chatHandler *handler.ChatHandler,
	debugHandler *handler.DebugHandler,
	metricsHandler http.Handler,
) http.Handler {
	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("GET /ws/chat", chatHandler.HandleChatWS)
	mux.HandleFunc("GET /api/placeholder/{w}/{h}", debugHandler.HandlePlaceholder)

	// Debug & observability
	mux.HandleFunc("/debug/render", debugHandler.HandleRender)
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Middleware
	return middleware.CORS(mux)
}
