// Package chi implements the HTTP API on top of the go-chi router.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
	"github.com/tnedr/cognitive-memory-core/internal/domain/block"
	domdecay "github.com/tnedr/cognitive-memory-core/internal/domain/decay"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/mode"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/request"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/result"
	"github.com/tnedr/cognitive-memory-core/internal/metrics"
	compressuc "github.com/tnedr/cognitive-memory-core/internal/usecase/compress"
	decayuc "github.com/tnedr/cognitive-memory-core/internal/usecase/decay"
	knowledgeuc "github.com/tnedr/cognitive-memory-core/internal/usecase/knowledge"
	reflectionuc "github.com/tnedr/cognitive-memory-core/internal/usecase/reflection"
	retrievaluc "github.com/tnedr/cognitive-memory-core/internal/usecase/retrieval"
)

// errorCode is the machine-readable error code in API error responses.
type errorCode string

const (
	codeBadRequest             errorCode = "bad_request"
	codeValidationFailed       errorCode = "validation_failed"
	codeUnauthorized           errorCode = "unauthorized"
	codeBlockNotFound          errorCode = "block_not_found"
	codeAlreadyExists          errorCode = "block_already_exists"
	codeDecayInProgress        errorCode = "decay_in_progress"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeBackendUnavailable     errorCode = "backend_unavailable"
	codeInternalError          errorCode = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Defaults carries the config-driven request defaults applied when a request
// leaves a field unset. Zero fields fall back to the engine constants.
type Defaults struct {
	TopK        int
	RRFK        int
	DecayPolicy string
	DecayDays   int
	DecayUsage  float64
}

func (d Defaults) normalized() Defaults {
	if d.TopK <= 0 {
		d.TopK = request.DefaultTopK
	}
	if d.RRFK <= 0 {
		d.RRFK = request.DefaultRRFK
	}
	if d.DecayPolicy == "" {
		d.DecayPolicy = string(domdecay.Time)
	}
	if d.DecayDays <= 0 {
		d.DecayDays = domdecay.DefaultDaysThreshold
	}
	if d.DecayUsage <= 0 {
		d.DecayUsage = domdecay.DefaultUsageThreshold
	}
	return d
}

// Server exposes the knowledge engine over HTTP.
type Server struct {
	knowledge     *knowledgeuc.Service
	retrieval     *retrievaluc.Service
	reflection    *reflectionuc.Service
	decay         *decayuc.Service
	compress      *compressuc.Service
	defaults      Defaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	knowledge *knowledgeuc.Service,
	retrieval *retrievaluc.Service,
	reflection *reflectionuc.Service,
	decay *decayuc.Service,
	compress *compressuc.Service,
	defaults Defaults,
	logger *zap.Logger,
) *Server {
	s := &Server{
		knowledge:  knowledge,
		retrieval:  retrieval,
		reflection: reflection,
		decay:      decay,
		compress:   compress,
		defaults:   defaults.normalized(),
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeBlockNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists),
		sentinelHandler(domain.ErrInvalidParameter, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrDecayInProgress, http.StatusConflict, codeDecayInProgress),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, codeBackendUnavailable),
	}
	return s
}

// Routes mounts all API handlers on a fresh router. Middleware is applied
// by the caller.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/blocks", s.createBlock)
	r.Get("/blocks/{id}", s.getBlock)
	r.Post("/blocks/{id}/links", s.linkBlocks)
	r.Get("/blocks/{id}/related", s.relatedBlocks)
	r.Post("/blocks/{id}/restore", s.restoreBlock)
	r.Post("/search", s.search)
	r.Post("/decay", s.runDecay)
	r.Post("/reindex", s.reindex)
	r.Post("/context", s.materializeContext)
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

type createBlockRequest struct {
	ID              string            `json:"id,omitempty"`
	Title           string            `json:"title"`
	Content         string            `json:"content"`
	Tags            []string          `json:"tags,omitempty"`
	InformationType string            `json:"information_type,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type blockResponse struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Content         string            `json:"content"`
	Tags            []string          `json:"tags,omitempty"`
	InformationType string            `json:"information_type,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	ContentHash     string            `json:"content_hash"`
	AccessCount     int               `json:"access_count"`
	LastAccess      time.Time         `json:"last_access"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// createBlock handles POST /blocks.
func (s *Server) createBlock(w http.ResponseWriter, r *http.Request) {
	var req createBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Title == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Block title is required")
		return
	}

	id, err := s.knowledge.Record(r.Context(), req.Content, knowledgeuc.Meta{
		ID:              req.ID,
		Title:           req.Title,
		Tags:            req.Tags,
		InformationType: req.InformationType,
		Extra:           req.Metadata,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	b, err := s.knowledge.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/blocks/"+id)
	writeJSON(w, http.StatusCreated, blockToResponse(b))
}

// getBlock handles GET /blocks/{id}.
func (s *Server) getBlock(w http.ResponseWriter, r *http.Request) {
	b, err := s.knowledge.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blockToResponse(b))
}

type linkRequest struct {
	TargetID         string `json:"target_id"`
	RelationshipType string `json:"relationship_type"`
}

// linkBlocks handles POST /blocks/{id}/links.
func (s *Server) linkBlocks(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.TargetID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "target_id is required")
		return
	}
	relType := req.RelationshipType
	if relType == "" {
		relType = "RELATES_TO"
	}

	if err := s.knowledge.Link(r.Context(), chi.URLParam(r, "id"), req.TargetID, relType); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// relatedBlocks handles GET /blocks/{id}/related.
func (s *Server) relatedBlocks(w http.ResponseWriter, r *http.Request) {
	limit := reflectionuc.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ids, err := s.reflection.Related(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"related": ids})
}

// restoreBlock handles POST /blocks/{id}/restore.
func (s *Server) restoreBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.knowledge.Restore(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	b, err := s.knowledge.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blockToResponse(b))
}

type searchRequest struct {
	Query      string   `json:"query"`
	TopK       int      `json:"top_k,omitempty"`
	Boost      []string `json:"boost_keywords,omitempty"`
	Exclude    []string `json:"exclude_keywords,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
	FilterMode string   `json:"filter_mode,omitempty"`
	RRFK       int      `json:"rrf_k,omitempty"`
}

type searchResultItem struct {
	BlockID       string             `json:"block_id"`
	Score         float64            `json:"score"`
	SemanticScore float64            `json:"semantic_score"`
	KeywordScore  float64            `json:"keyword_score,omitempty"`
	Snippet       string             `json:"snippet,omitempty"`
	Explanation   result.Explanation `json:"explanation"`
}

// search handles POST /search.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	strategy := mode.Strategy(req.Strategy)
	if req.Strategy != "" && !strategy.IsValid() {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "strategy must be hybrid or rrf")
		return
	}
	filterMode := mode.FilterMode(req.FilterMode)
	if req.FilterMode != "" && !filterMode.IsValid() {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "filter_mode must be strict or annotate")
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.defaults.TopK
	}
	rrfK := req.RRFK
	if rrfK == 0 {
		rrfK = s.defaults.RRFK
	}

	domReq, err := request.New(req.Query, topK, req.Boost, req.Exclude, strategy, filterMode, rrfK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	start := time.Now()
	results, err := s.retrieval.Retrieve(r.Context(), &domReq)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(string(domReq.Strategy()), "error").Inc()
		s.handleDomainError(w, err)
		return
	}
	metrics.RetrievalRequestsTotal.WithLabelValues(string(domReq.Strategy()), "success").Inc()
	metrics.RetrievalDuration.WithLabelValues(string(domReq.Strategy())).Observe(time.Since(start).Seconds())
	metrics.RetrievalResults.Observe(float64(len(results)))

	items := make([]searchResultItem, len(results))
	for i := range results {
		items[i] = searchResultToItem(&results[i])
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// decayRequest uses pointer thresholds so an explicit zero (archive anything
// not accessed this instant, or disable the usage rule) is distinguishable
// from an omitted field.
type decayRequest struct {
	Policy         string   `json:"policy,omitempty"`
	DaysThreshold  *int     `json:"days_threshold,omitempty"`
	UsageThreshold *float64 `json:"usage_threshold,omitempty"`
}

type decayDecisionItem struct {
	BlockID string `json:"block_id"`
	Reason  string `json:"reason"`
}

// runDecay handles POST /decay.
func (s *Server) runDecay(w http.ResponseWriter, r *http.Request) {
	var req decayRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	kind := domdecay.Kind(req.Policy)
	if req.Policy == "" {
		kind = domdecay.Kind(s.defaults.DecayPolicy)
	}
	if !kind.IsValid() {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "policy must be one of time, usage, both, none")
		return
	}
	days := s.defaults.DecayDays
	if req.DaysThreshold != nil {
		days = *req.DaysThreshold
	}
	usage := s.defaults.DecayUsage
	if req.UsageThreshold != nil {
		usage = *req.UsageThreshold
	}

	pol, err := domdecay.New(kind, days, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	decisions, err := s.decay.Decay(r.Context(), pol)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]decayDecisionItem, len(decisions))
	for i, d := range decisions {
		items[i] = decayDecisionItem{BlockID: d.BlockID, Reason: string(d.Reason)}
		metrics.BlocksArchivedTotal.WithLabelValues(string(d.Reason)).Inc()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"archived": items,
		"total":    len(items),
	})
}

// reindex handles POST /reindex.
func (s *Server) reindex(w http.ResponseWriter, r *http.Request) {
	count, err := s.knowledge.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reindexed": count})
}

type contextRequest struct {
	Goal      string   `json:"goal,omitempty"`
	BlockIDs  []string `json:"block_ids,omitempty"`
	MaxTokens int      `json:"max_tokens,omitempty"`
}

// materializeContext handles POST /context. With a goal it retrieves and
// packs relevant blocks; with explicit block IDs it compresses those.
func (s *Server) materializeContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Goal == "" && len(req.BlockIDs) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "either goal or block_ids is required")
		return
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = compressuc.DefaultMaxTokens
	}

	var (
		text string
		err  error
	)
	if req.Goal != "" {
		text, err = s.compress.MaterializeContext(r.Context(), req.Goal, maxTokens)
	} else {
		text, err = s.compress.Compress(r.Context(), req.BlockIDs, maxTokens)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"context": text})
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func blockToResponse(b *block.Block) blockResponse {
	return blockResponse{
		ID:              b.ID(),
		Title:           b.Title(),
		Content:         b.Content(),
		Tags:            b.Tags(),
		InformationType: b.InformationType(),
		CreatedAt:       b.Created(),
		UpdatedAt:       b.Updated(),
		ContentHash:     b.ContentHash(),
		AccessCount:     b.AccessCount(),
		LastAccess:      b.LastAccess(),
		Metadata:        b.Metadata(),
	}
}

func searchResultToItem(r *result.Result) searchResultItem {
	return searchResultItem{
		BlockID:       r.BlockID(),
		Score:         r.FinalScore(),
		SemanticScore: r.SemanticScore(),
		KeywordScore:  r.KeywordScore(),
		Snippet:       r.Snippet(),
		Explanation:   r.Explanation(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, map[string]string{
		"code":    string(code),
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrInvalidParameter,
		domain.ErrDecayInProgress,
		domain.ErrEmbeddingProviderError,
		domain.ErrBackendUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}
