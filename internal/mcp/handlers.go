package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/biostack-engine/internal/domain"
)

// NormalizePanelParams defines parameters for the normalize_panel tool.
type NormalizePanelParams struct {
	Panel []domain.PanelEntry `json:"panel"`
	User  domain.UserContext  `json:"user"`
}

// ExplainConstraintsParams defines parameters for the explain_constraints
// tool.
type ExplainConstraintsParams struct {
	Codes []string   `json:"codes"`
	Sex   domain.Sex `json:"sex,omitempty"`
}

// handleGenerateProtocol runs the full pipeline and returns the complete
// decision trace.
func (s *Server) handleGenerateProtocol(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "generate_protocol").Info("Tool invoked")

	var params domain.ProtocolRequest
	args, _ := req.Params.Arguments.(json.RawMessage)
	if err := json.Unmarshal(args, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}

	resp, err := s.pipeline.Run(ctx, &params)
	if err != nil {
		return s.createErrorResult(string(domain.KindOf(err)), err), nil
	}

	return s.createJSONResult(
		fmt.Sprintf("Protocol generated: %d items, %d SKUs blocked (run %s)",
			len(resp.Protocol), len(resp.Routing.Blocked), resp.RunID),
		resp,
	)
}

// handleNormalizePanel runs only the normalization stage.
func (s *Server) handleNormalizePanel(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "normalize_panel").Info("Tool invoked")

	var params NormalizePanelParams
	args, _ := req.Params.Arguments.(json.RawMessage)
	if err := json.Unmarshal(args, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if err := params.User.Validate(); err != nil {
		return s.createErrorResult("Invalid user context", err), nil
	}

	result, err := s.normalizer.Normalize(ctx, params.Panel, &params.User)
	if err != nil {
		return s.createErrorResult(string(domain.KindOf(err)), err), nil
	}

	return s.createJSONResult(
		fmt.Sprintf("Normalized %d markers (%d unknown, %d computed) against %s",
			len(result.Normalized), len(result.Unknown), len(result.Computed), result.RangesVersion),
		result,
	)
}

// handleExplainConstraints translates constraint codes into their
// enforcement sets without running the rest of the pipeline.
func (s *Server) handleExplainConstraints(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "explain_constraints").Info("Tool invoked")

	var params ExplainConstraintsParams
	args, _ := req.Params.Arguments.(json.RawMessage)
	if err := json.Unmarshal(args, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if len(params.Codes) == 0 {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("codes is required")), nil
	}
	sex := params.Sex
	if sex == "" {
		sex = domain.SexMale
	}
	if !sex.IsValid() {
		return s.createErrorResult("Invalid parameters", fmt.Errorf("sex %q is not supported", params.Sex)), nil
	}

	codes := make([]domain.ConstraintCode, len(params.Codes))
	for i, code := range params.Codes {
		codes[i] = domain.ConstraintCode(code)
	}

	constraints, err := s.translator.Translate(codes, sex)
	if err != nil {
		return s.createErrorResult(string(domain.KindOf(err)), err), nil
	}

	return s.createJSONResult(
		fmt.Sprintf("Translated %d codes: %d blocked ingredients, %d blocked categories, %d cautions",
			len(codes), len(constraints.BlockedIngredients),
			len(constraints.BlockedCategories), len(constraints.CautionFlags)),
		constraints,
	)
}

// handleGovernanceReport validates the current catalog snapshot.
func (s *Server) handleGovernanceReport(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "catalog_governance_report").Info("Tool invoked")

	snapshot, err := s.store.Snapshot()
	if err != nil {
		return s.createErrorResult(string(domain.KindOf(err)), err), nil
	}

	result, err := s.governor.Validate(snapshot)
	if err != nil {
		return s.createErrorResult(string(domain.KindOf(err)), err), nil
	}

	report := map[string]any{
		"catalog_version":  snapshot.Version,
		"catalog_revision": snapshot.Revision,
		"coverage_report":  result.Coverage,
		"auto_blocked":     result.AutoBlocked,
		"result_hash":      result.ResultHash,
	}

	return s.createJSONResult(
		fmt.Sprintf("Governance report for catalog %s: %d valid, %d auto-blocked",
			snapshot.Version, len(result.Valid), len(result.AutoBlocked)),
		report,
	)
}

// createJSONResult packs a summary line plus the full JSON payload into
// a tool result.
func (s *Server) createJSONResult(summary string, payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
