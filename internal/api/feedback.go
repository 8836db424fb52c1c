package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/feedback"
)

// feedbackBody is the inbound outcome report; the run id comes from
// the path.
type feedbackBody struct {
	SKUID       string           `json:"sku_id"`
	Outcome     feedback.Outcome `json:"outcome"`
	WouldRepeat bool             `json:"would_repeat"`
	Notes       string           `json:"notes,omitempty"`
}

// handleSaveFeedback files an outcome report against an audited run.
func (s *Server) handleSaveFeedback(c *gin.Context) {
	if s.feedback == nil {
		s.respondError(c, domain.NewInvalidInput("", "feedback store is not configured"))
		return
	}

	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()

	var body feedbackBody
	if err := decoder.Decode(&body); err != nil {
		s.respondError(c, domain.NewInvalidInput("", "malformed request body: "+err.Error()))
		return
	}

	runID := c.Param("id")

	// Reports must reference a run we actually audited.
	if s.audits != nil {
		if _, err := s.audits.GetRun(c.Request.Context(), runID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": errorBody{
					Kind:    "NOT_FOUND",
					Message: "run " + runID + " not found",
				}})
				return
			}
			s.respondError(c, err)
			return
		}
	}

	report := &feedback.Report{
		RunID:       runID,
		SKUID:       body.SKUID,
		Outcome:     body.Outcome,
		WouldRepeat: body.WouldRepeat,
		Notes:       body.Notes,
	}
	if err := report.Validate(); err != nil {
		s.respondError(c, domain.NewInvalidInput("", err.Error()))
		return
	}

	if err := s.feedback.Save(c.Request.Context(), report); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleListFeedback returns all outcome reports filed against a run.
func (s *Server) handleListFeedback(c *gin.Context) {
	if s.feedback == nil {
		s.respondError(c, domain.NewInvalidInput("", "feedback store is not configured"))
		return
	}

	reports, err := s.feedback.ListByRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}
