package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"chunkchat/internal/chunk"
	"chunkchat/internal/gateway/repository/asset"
	"chunkchat/internal/logging"
	"chunkchat/internal/metrics"
	"chunkchat/internal/reassembly"
	"chunkchat/internal/ui"
)

const maxRenderBody = 1 << 20

// DebugHandler exposes the reassembly pipeline over plain HTTP so producers
// can check how a chunk sequence will display.
type DebugHandler struct {
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewDebugHandler(m *metrics.Metrics, log *zap.Logger) *DebugHandler {
	return &DebugHandler{metrics: m, log: logging.OrNop(log)}
}

type renderResponse struct {
	MessageID   string          `json:"messageId,omitempty"`
	HTML        string          `json:"html"`
	Markdown    string          `json:"markdown"`
	IsComplete  bool            `json:"isComplete"`
	Chunks      int             `json:"chunks"`
	Dropped     []droppedChunk  `json:"dropped,omitempty"`
	Diagnostics []ui.Diagnostic `json:"diagnostics,omitempty"`
}

type droppedChunk struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// HandleRender feeds a JSON array of wire chunks through a fresh session one
// chunk at a time and returns the final render.
func (h *DebugHandler) HandleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRenderBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
		http.Error(w, "body must be a json array of chunks", http.StatusBadRequest)
		return
	}

	session := reassembly.NewSession(reassembly.WithLogger(h.log))
	var resp renderResponse
	var last reassembly.RenderedMessage
	for i, item := range gjson.ParseBytes(body).Array() {
		c, err := chunk.FromResult(item)
		if err != nil {
			if h.metrics != nil {
				h.metrics.ParseFailures.Inc()
			}
			resp.Dropped = append(resp.Dropped, droppedChunk{Index: i, Reason: err.Error()})
			continue
		}
		last = session.Append(reassembly.Envelope{Chunk: c})
	}
	resp.MessageID = last.ID
	resp.HTML = last.HTML()
	resp.Markdown = last.Markdown()
	resp.IsComplete = last.IsComplete
	resp.Chunks = last.ChunkCount
	resp.Diagnostics = last.Diagnostics

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandlePlaceholder serves GET /api/placeholder/{w}/{h}.
func (h *DebugHandler) HandlePlaceholder(w http.ResponseWriter, r *http.Request) {
	width, errW := strconv.Atoi(strings.TrimSpace(r.PathValue("w")))
	height, errH := strconv.Atoi(strings.TrimSpace(r.PathValue("h")))
	if errW != nil || errH != nil {
		http.Error(w, "width and height must be integers", http.StatusBadRequest)
		return
	}
	img, err := asset.Placeholder(width, height)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(img)
}
