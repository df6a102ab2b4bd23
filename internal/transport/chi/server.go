package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	logpkg "github.com/kailas-cloud/zoomgraph/internal/logger"
	healthuc "github.com/kailas-cloud/zoomgraph/internal/usecase/health"
	queryuc "github.com/kailas-cloud/zoomgraph/internal/usecase/query"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the progressive query API.
type Server struct {
	query         *queryuc.Service
	health        *healthuc.Service
	metrics       http.Handler
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(query *queryuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		query:   query,
		health:  health,
		metrics: promhttp.Handler(),
		logger:  logger,
	}
	// Order matters: the specific not-found sentinels wrap ErrNotFound.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrClusterNotFound, http.StatusNotFound, ErrorCodeClusterNotFound),
		sentinelHandler(domain.ErrEntityNotFound, http.StatusNotFound, ErrorCodeEntityNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeBadRequest),
		sentinelHandler(domain.ErrSnapshotUnavailable, http.StatusServiceUnavailable, ErrorCodeSnapshotUnavailable),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api", func(r chi.Router) {
		r.Get("/overview", s.GetOverview)
		r.Get("/domains/{id}", s.GetDomain)
		r.Get("/topics/{id}", s.GetTopic)
		r.Get("/entities/{id}", s.GetEntity)
		r.Get("/entities/{id}/neighbors", s.GetNeighbors)
		r.Get("/search", s.Search)
		r.Get("/stats", s.GetStats)
		r.Get("/clusters/{level}", s.GetClusters)
		r.Get("/path/{from}/{to}", s.GetPath)
		r.Get("/temporal-distribution", s.GetTemporalDistribution)
		r.Get("/centrality", s.GetCentrality)
	})
}

// GetOverview handles GET /api/overview.
func (s *Server) GetOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.query.Overview()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overviewResponse{
		RunID:         ov.RunID,
		CreatedAt:     ov.CreatedAt,
		TotalClusters: len(ov.Domains),
		TotalEntities: ov.TotalEntities,
		Clusters:      clustersToDTO(ov.Domains),
	})
}

// GetDomain handles GET /api/domains/{id}.
func (s *Server) GetDomain(w http.ResponseWriter, r *http.Request) {
	d, err := s.query.ExpandDomain(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domainResponse{
		Domain: clusterToDTO(d.Domain),
		Topics: clustersToDTO(d.Topics),
	})
}

// GetTopic handles GET /api/topics/{id}?limit&offset.
func (s *Server) GetTopic(w http.ResponseWriter, r *http.Request) {
	var limit, offset int
	if err := bindQuery(r, "limit", &limit); err != nil {
		s.badRequest(w, err)
		return
	}
	if err := bindQuery(r, "offset", &offset); err != nil {
		s.badRequest(w, err)
		return
	}
	page, err := s.query.ExpandTopic(chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topicResponse{
		Topic:    clusterToDTO(page.Topic),
		Total:    page.Total,
		Limit:    page.Limit,
		Offset:   page.Offset,
		HasMore:  page.HasMore,
		Entities: summariesToDTO(page.Entities),
	})
}

// GetEntity handles GET /api/entities/{id}.
func (s *Server) GetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.query.GetEntity(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entityToDTO(e))
}

// GetNeighbors handles GET /api/entities/{id}/neighbors?max.
func (s *Server) GetNeighbors(w http.ResponseWriter, r *http.Request) {
	var maxNeighbors int
	if err := bindQuery(r, "max", &maxNeighbors); err != nil {
		s.badRequest(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	ns, err := s.query.Neighbors(id, maxNeighbors)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := neighborsResponse{EntityID: id, Total: len(ns), Neighbors: make([]neighborDTO, len(ns))}
	for i, n := range ns {
		resp.Neighbors[i] = neighborDTO{
			entitySummaryDTO: summaryToDTO(n.EntitySummary),
			Relation:         n.Relation,
			EdgeType:         string(n.EdgeType),
			Weight:           n.Weight,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Search handles GET /api/search?q&limit.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var q string
	var limit int
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &q); err != nil {
		s.badRequest(w, err)
		return
	}
	if err := bindQuery(r, "limit", &limit); err != nil {
		s.badRequest(w, err)
		return
	}
	res, err := s.query.Search(q, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:        res.Query,
		TotalResults: res.Total,
		Results:      summariesToDTO(res.Entities),
	})
}

// GetStats handles GET /api/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.query.Stats()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsToDTO(st))
}

// GetClusters handles GET /api/clusters/{level}.
func (s *Server) GetClusters(w http.ResponseWriter, r *http.Request) {
	level := chi.URLParam(r, "level")
	cs, err := s.query.Clusters(level)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clustersResponse{
		Level:         level,
		TotalClusters: len(cs),
		Clusters:      clustersToDTO(cs),
	})
}

// GetPath handles GET /api/path/{from}/{to}.
func (s *Server) GetPath(w http.ResponseWriter, r *http.Request) {
	p, err := s.query.Path(chi.URLParam(r, "from"), chi.URLParam(r, "to"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pathResponse{
		PathType:   p.Relation,
		PathLength: len(p.Nodes) - 1,
		Path:       p.Nodes,
		From:       ancestryToDTO(p.From),
		To:         ancestryToDTO(p.To),
	})
}

// GetTemporalDistribution handles GET /api/temporal-distribution.
func (s *Server) GetTemporalDistribution(w http.ResponseWriter, r *http.Request) {
	td, err := s.query.TemporalDistribution()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, temporalToDTO(td))
}

// GetCentrality handles GET /api/centrality.
func (s *Server) GetCentrality(w http.ResponseWriter, r *http.Request) {
	c, err := s.query.Centrality()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, centralityToDTO(c))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

// bindQuery binds an optional form-style query parameter; absent leaves dest untouched.
func bindQuery(r *http.Request, name string, dest any) error {
	return runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, fmt.Sprintf("invalid parameter: %v", err))
}

// safeDomainMessage returns a client-safe message. Input errors carry their own
// detail; everything else is reduced to the sentinel text.
func safeDomainMessage(err error) string {
	var ie *domain.InputError
	if errors.As(err, &ie) {
		return ie.Error()
	}
	sentinels := []error{
		domain.ErrClusterNotFound,
		domain.ErrEntityNotFound,
		domain.ErrNotFound,
		domain.ErrSnapshotUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Debug("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
