package domain

import "fmt"

// ProtocolRequest is the inbound request shape. The transport decoder
// rejects unknown fields; the pipeline assumes the request has already
// passed Validate.
type ProtocolRequest struct {
	Panel        []PanelEntry `json:"panel"`
	User         UserContext  `json:"user"`
	Intents      []Intent     `json:"intents"`
	Requirements []string     `json:"requirements"`
	DeadlineMS   int          `json:"deadline_ms,omitempty"`
}

// Validate checks the request field by field so INVALID_INPUT errors can
// name the offending path.
func (r *ProtocolRequest) Validate() error {
	if err := r.User.Validate(); err != nil {
		return err
	}
	for i := range r.Panel {
		if err := r.Panel[i].Validate(); err != nil {
			return fmt.Errorf("panel[%d]: %w", i, err)
		}
	}
	for i := range r.Intents {
		if err := r.Intents[i].Validate(); err != nil {
			return fmt.Errorf("intents[%d]: %w", i, err)
		}
	}
	if r.DeadlineMS < 0 {
		return fmt.Errorf("%w: deadline_ms must not be negative", ErrInvalidInput)
	}
	return nil
}

// Versions identifies every ruleset and algorithm that shaped a response.
// Present even on empty inputs.
type Versions struct {
	ReferenceRanges string `json:"reference_ranges"`
	GateRegistry    string `json:"gate_registry"`
	Mapping         string `json:"mapping"`
	Catalog         string `json:"catalog"`
	Routing         string `json:"routing"`
	Matching        string `json:"matching"`
}

// ProtocolResponse is the outbound response shape: the full decision trace
// from normalized markers through the final protocol.
type ProtocolResponse struct {
	RunID             string                `json:"run_id"`
	NormalizedMarkers []NormalizedMarker    `json:"normalized_markers"`
	UnknownMarkers    []UnknownMarker       `json:"unknown_markers"`
	ComputedMarkers   []NormalizedMarker    `json:"computed_markers"`
	ActiveGates       []ActiveGate          `json:"active_gates"`
	ConstraintCodes   []ConstraintCode      `json:"constraint_codes"`
	ReviewRequired    bool                  `json:"review_required"`
	DataMissing       []MissingData         `json:"data_missing,omitempty"`
	Constraints       TranslatedConstraints `json:"translated_constraints"`
	Routing           RoutingResult         `json:"routing"`
	Protocol          []ProtocolItem        `json:"protocol"`
	Unmatched         []UnmatchedIntent     `json:"unmatched_intents"`
	Unfulfilled       []string              `json:"requirements_unfulfilled"`
	PipelineHash      string                `json:"pipeline_hash"`
	Versions          Versions              `json:"versions"`
}
