package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/config"
	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
	"github.com/kirillkom/knowledge-assistant/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg       config.Config
	ingest    ports.KnowledgeIngestor
	knowledge ports.KnowledgeQueryService
	answers   ports.AnswerRouter
	chat      ports.ChatService
	metrics   *metrics.HTTPServerMetrics
	breakers  func() map[string]string
}

func NewRouter(
	cfg config.Config,
	ingest ports.KnowledgeIngestor,
	knowledge ports.KnowledgeQueryService,
	answers ports.AnswerRouter,
	chat ports.ChatService,
) *Router {
	return &Router{
		cfg:       cfg,
		ingest:    ingest,
		knowledge: knowledge,
		answers:   answers,
		chat:      chat,
	}
}

// WithMetrics exposes /metrics and records per-request counters.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

// WithBreakerStates adds the capability circuit breaker states to /healthz.
func (rt *Router) WithBreakerStates(states func() map[string]string) *Router {
	rt.breakers = states
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/ingest", rt.ingestDocuments)
	mux.HandleFunc("GET /v1/query", rt.queryKnowledge)
	mux.HandleFunc("POST /v1/query", rt.queryKnowledge)
	mux.HandleFunc("POST /v1/ask", rt.ask)
	mux.HandleFunc("POST /v1/chat", rt.postChat)
	mux.HandleFunc("GET /v1/chat/{chat_id}/history", rt.chatHistory)
	mux.HandleFunc("DELETE /v1/chat/{chat_id}/history", rt.deleteChatHistory)
	mux.HandleFunc("GET /v1/chat/stats", rt.chatStats)
	mux.HandleFunc("GET /v1/stats", rt.stats)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.HTTPMaxInFlight, time.Duration(rt.cfg.HTTPQueueWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.HTTPRateLimitRPS, rt.cfg.HTTPRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if rt.knowledge != nil {
		if stats, err := rt.knowledge.Stats(r.Context()); err == nil {
			resp["processing_method"] = string(stats.ProcessingMethod)
		}
	}
	if rt.breakers != nil {
		if states := rt.breakers(); len(states) > 0 {
			resp["breakers"] = states
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type ingestDocument struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// ingestDocuments accepts multipart uploads in the "files" field or a JSON
// body of {"documents": [{"filename", "text"}]}.
func (rt *Router) ingestDocuments(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(rt.cfg.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var docs []domain.SourceDocument
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		docs, err = decodeJSONDocuments(r.Body)
	} else {
		docs, err = readMultipartDocuments(r, maxBytes)
	}
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "ingest", err))
		return
	}

	result, err := rt.ingest.Ingest(r.Context(), docs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeJSONDocuments(body io.Reader) ([]domain.SourceDocument, error) {
	var req struct {
		Documents []ingestDocument `json:"documents"`
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, errors.New("invalid json")
	}
	if len(req.Documents) == 0 {
		return nil, errors.New("documents are required")
	}
	docs := make([]domain.SourceDocument, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, domain.SourceDocument{Filename: d.Filename, Content: []byte(d.Text)})
	}
	return docs, nil
}

func readMultipartDocuments(r *http.Request, maxBytes int64) ([]domain.SourceDocument, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, errors.New("multipart field 'files' is required")
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, errors.New("multipart field 'files' is required")
	}
	docs := make([]domain.SourceDocument, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, domain.SourceDocument{Filename: fh.Filename, Content: raw})
	}
	return docs, nil
}

type queryRequest struct {
	Query string `json:"query"`
}

func decodeQuery(r *http.Request) (string, error) {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("q"), nil
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode query", errors.New("invalid json"))
	}
	return req.Query, nil
}

func (rt *Router) queryKnowledge(w http.ResponseWriter, r *http.Request) {
	query, err := decodeQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	answer, err := rt.knowledge.Query(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	query, err := decodeQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	decision, err := rt.answers.Route(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (rt *Router) postChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID  string `json:"chat_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode chat", errors.New("invalid json")))
		return
	}
	reply, err := rt.chat.Chat(r.Context(), req.ChatID, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (rt *Router) chatHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "chat history", errors.New("limit must be a non-negative integer")))
			return
		}
		limit = n
	}
	turns, err := rt.chat.History(r.Context(), r.PathValue("chat_id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat_id": r.PathValue("chat_id"), "turns": turns})
}

func (rt *Router) deleteChatHistory(w http.ResponseWriter, r *http.Request) {
	deleted, err := rt.chat.DeleteHistory(r.Context(), r.PathValue("chat_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat_id": r.PathValue("chat_id"), "deleted": deleted})
}

func (rt *Router) chatStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.chat.HistoryStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.knowledge.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "code", code, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
