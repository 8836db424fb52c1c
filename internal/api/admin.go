package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biostack-engine/internal/domain"
)

// Admin command names. Commands are typed: an unknown name is rejected,
// never interpreted.
const (
	CommandReloadCatalog    = "reload_catalog"
	CommandSuspendSKU       = "suspend_sku"
	CommandActivateSKU      = "activate_sku"
	CommandGovernanceReport = "governance_report"
)

// adminCommand is the request body for POST /admin/commands.
type adminCommand struct {
	Command string `json:"command"`
	SKUID   string `json:"sku_id,omitempty"`
}

// handleAdminCommand dispatches typed admin commands. SKU lifecycle
// commands mutate the backing store, then reload so the next snapshot
// reflects the transition; the result cache is flushed on every
// catalog-changing command.
func (s *Server) handleAdminCommand(c *gin.Context) {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()

	var cmd adminCommand
	if err := decoder.Decode(&cmd); err != nil {
		s.respondError(c, domain.NewInvalidInput("", "malformed command body: "+err.Error()))
		return
	}

	switch cmd.Command {
	case CommandReloadCatalog:
		s.reloadCatalog(c)
	case CommandSuspendSKU:
		s.setSKUStatus(c, cmd.SKUID, domain.StatusSuspended)
	case CommandActivateSKU:
		s.setSKUStatus(c, cmd.SKUID, domain.StatusActive)
	case CommandGovernanceReport:
		s.governanceReport(c)
	default:
		s.respondError(c, domain.NewInvalidInput("command", "unknown command: "+cmd.Command))
	}
}

func (s *Server) reloadCatalog(c *gin.Context) {
	if err := s.store.Reload(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.flushCache(c)

	snapshot, err := s.store.Snapshot()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "reloaded",
		"version":  snapshot.Version,
		"revision": snapshot.Revision,
		"skus":     len(snapshot.SKUs),
	})
}

func (s *Server) setSKUStatus(c *gin.Context, skuID string, status domain.GovernanceStatus) {
	if skuID == "" {
		s.respondError(c, domain.NewInvalidInput("sku_id", "sku_id is required"))
		return
	}
	if s.statuses == nil {
		s.respondError(c, domain.NewInvalidInput("command", "catalog source does not support lifecycle transitions"))
		return
	}

	if err := s.statuses.SetStatus(c.Request.Context(), skuID, status); err != nil {
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

	// The transition only takes effect through a fresh snapshot.
	if err := s.store.Reload(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.flushCache(c)

	c.JSON(http.StatusOK, gin.H{
		"status":            "updated",
		"sku_id":            skuID,
		"governance_status": status,
	})
}

func (s *Server) governanceReport(c *gin.Context) {
	snapshot, err := s.store.Snapshot()
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.governor.Validate(snapshot)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"catalog_version":  snapshot.Version,
		"catalog_revision": snapshot.Revision,
		"coverage_report":  result.Coverage,
		"auto_blocked":     result.AutoBlocked,
		"result_hash":      result.ResultHash,
	})
}

func (s *Server) flushCache(c *gin.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(c.Request.Context()); err != nil {
		s.logger.WithError(err).Warn("Failed to flush result cache")
	}
}
