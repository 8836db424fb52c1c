package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/biostack-engine/internal/domain"
)

// errorBody is the uniform error envelope. Kind mirrors the pipeline
// error taxonomy so clients can branch without parsing messages.
type errorBody struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindCatalogUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	c.JSON(statusForKind(kind), gin.H{"error": errorBody{
		Kind:          string(kind),
		Message:       err.Error(),
		CorrelationID: c.GetString("correlation_id"),
	}})
}

// handleProtocol runs the full decision pipeline for one request.
func (s *Server) handleProtocol(c *gin.Context) {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()

	var req domain.ProtocolRequest
	if err := decoder.Decode(&req); err != nil {
		s.respondError(c, domain.NewInvalidInput("", "malformed request body: "+err.Error()))
		return
	}

	// The cache key binds the request to the full version set, so hits
	// are only possible while every ruleset and the catalog are
	// unchanged.
	var cacheKey string
	if s.cache != nil {
		key, err := s.cache.Key(&req, s.pipeline.Versions())
		if err == nil {
			cacheKey = key
			if cached, hit, err := s.cache.Get(c.Request.Context(), key); err == nil && hit {
				c.Header("X-Cache", "hit")
				c.JSON(http.StatusOK, cached)
				return
			}
		}
	}

	resp, err := s.pipeline.Run(c.Request.Context(), &req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if s.cache != nil && cacheKey != "" {
		if err := s.cache.Set(c.Request.Context(), cacheKey, resp, 0); err != nil {
			s.logger.WithError(err).Warn("Failed to cache protocol response")
		}
	}

	c.JSON(http.StatusOK, resp)
}

// accessionRequest asks for a protocol built from a lab-provider
// accession instead of an inline panel.
type accessionRequest struct {
	AccessionID  string             `json:"accession_id"`
	User         domain.UserContext `json:"user"`
	Intents      []domain.Intent    `json:"intents,omitempty"`
	Requirements []string           `json:"requirements,omitempty"`
	DeadlineMS   int                `json:"deadline_ms,omitempty"`
}

// handleProtocolFromAccession pulls the panel from the configured lab
// provider, then runs the same pipeline as the inline endpoint.
func (s *Server) handleProtocolFromAccession(c *gin.Context) {
	if s.labs == nil {
		s.respondError(c, domain.NewCatalogUnavailable("lab provider integration is not configured"))
		return
	}

	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()

	var req accessionRequest
	if err := decoder.Decode(&req); err != nil {
		s.respondError(c, domain.NewInvalidInput("", "malformed request body: "+err.Error()))
		return
	}
	if req.AccessionID == "" {
		s.respondError(c, domain.NewInvalidInput("accession_id", "accession_id is required"))
		return
	}

	panel, err := s.labs.Panel(c.Request.Context(), req.AccessionID)
	if err != nil {
		s.respondError(c, domain.NewCatalogUnavailable("lab provider: "+err.Error()))
		return
	}

	resp, err := s.pipeline.Run(c.Request.Context(), &domain.ProtocolRequest{
		Panel:        panel,
		User:         req.User,
		Intents:      req.Intents,
		Requirements: req.Requirements,
		DeadlineMS:   req.DeadlineMS,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleVersions reports the active ruleset and algorithm versions.
func (s *Server) handleVersions(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipeline.Versions())
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	snapshot, err := s.store.Snapshot()
	if err != nil {
		health["status"] = "degraded"
		health["catalog"] = gin.H{"loaded": false}
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	health["catalog"] = gin.H{
		"loaded":    true,
		"version":   snapshot.Version,
		"revision":  snapshot.Revision,
		"skus":      len(snapshot.SKUs),
		"loaded_at": snapshot.LoadedAt,
	}
	c.JSON(http.StatusOK, health)
}

// handleGetRun returns one audited run by id.
func (s *Server) handleGetRun(c *gin.Context) {
	if s.audits == nil {
		s.respondError(c, domain.NewInvalidInput("", "audit store is not configured"))
		return
	}

	record, err := s.audits.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errorBody{
				Kind:    "NOT_FOUND",
				Message: err.Error(),
			}})
			return
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleListRuns returns the most recent audited runs.
func (s *Server) handleListRuns(c *gin.Context) {
	if s.audits == nil {
		s.respondError(c, domain.NewInvalidInput("", "audit store is not configured"))
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			s.respondError(c, domain.NewInvalidInput("limit", "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	records, err := s.audits.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records, "count": len(records)})
}
