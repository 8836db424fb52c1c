// Package domain contains the core business entities of the protocol
// decision pipeline: biomarker panels, normalized markers, safety gates,
// translated constraints, catalog SKUs, intents and protocol items, plus
// the audit and error types shared by every stage.
package domain

// Sex of the requesting user. Drives reference-range selection and the
// default product line.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// IsValid validates the sex value. Only the two catalog-supported values
// are accepted; reference ranges are keyed by them.
func (s Sex) IsValid() bool {
	switch s {
	case SexMale, SexFemale:
		return true
	default:
		return false
	}
}

// String returns the string representation of the sex value.
func (s Sex) String() string {
	return string(s)
}

// RangeStatus classifies a canonical marker value against its reference
// range. UNKNOWN means the value could not be classified (unconvertible
// unit, negative or unparseable value) and must never drive a gate.
type RangeStatus string

const (
	RangeOptimal      RangeStatus = "OPTIMAL"
	RangeNormal       RangeStatus = "NORMAL"
	RangeLow          RangeStatus = "LOW"
	RangeHigh         RangeStatus = "HIGH"
	RangeCriticalLow  RangeStatus = "CRITICAL_LOW"
	RangeCriticalHigh RangeStatus = "CRITICAL_HIGH"
	RangeUnknown      RangeStatus = "UNKNOWN"
)

// IsValid validates the range status.
func (r RangeStatus) IsValid() bool {
	switch r {
	case RangeOptimal, RangeNormal, RangeLow, RangeHigh,
		RangeCriticalLow, RangeCriticalHigh, RangeUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the range status.
func (r RangeStatus) String() string {
	return string(r)
}

// IsClassified reports whether the marker carries a usable classification.
func (r RangeStatus) IsClassified() bool {
	return r.IsValid() && r != RangeUnknown
}

// GateTier orders safety gates by severity. Tier 1 gates emit hard blocks,
// Tier 2 cautions, Tier 3 informational flags.
type GateTier int

const (
	TierBlock   GateTier = 1
	TierCaution GateTier = 2
	TierFlag    GateTier = 3
)

// IsValid validates the gate tier.
func (t GateTier) IsValid() bool {
	return t >= TierBlock && t <= TierFlag
}

// GateOutcome is the terminal state of a triggered gate for one request.
// Gates that never trigger produce no outcome.
type GateOutcome string

const (
	GateActive     GateOutcome = "ACTIVE"
	GateSuppressed GateOutcome = "SUPPRESSED"
)

// ConstraintCode is a short identifier from the closed constraint registry
// (BLOCK_IRON, CAUTION_HEPATOTOXIC, ...). Each code has exactly one
// documented meaning; the constraint mapping owns the semantics.
type ConstraintCode string

// String returns the string representation of the constraint code.
func (c ConstraintCode) String() string {
	return string(c)
}

// ProductLine is the sex-targeted subset of the catalog. The empty value
// marks a universal SKU offered to every user.
type ProductLine string

const (
	LineMale      ProductLine = "MALE"
	LineFemale    ProductLine = "FEMALE"
	LineUniversal ProductLine = ""
)

// IsValid validates the product line.
func (p ProductLine) IsValid() bool {
	switch p {
	case LineMale, LineFemale, LineUniversal:
		return true
	default:
		return false
	}
}

// LineForSex returns the default product line for a user's sex.
func LineForSex(s Sex) ProductLine {
	if s == SexFemale {
		return LineFemale
	}
	return LineMale
}

// EvidenceTier grades the clinical evidence behind a SKU. BLOCKED SKUs are
// removed by governance before any constraint is consulted.
type EvidenceTier string

const (
	EvidenceTier1   EvidenceTier = "TIER_1"
	EvidenceTier2   EvidenceTier = "TIER_2"
	EvidenceBlocked EvidenceTier = "BLOCKED"
)

// IsValid validates the evidence tier.
func (e EvidenceTier) IsValid() bool {
	switch e {
	case EvidenceTier1, EvidenceTier2, EvidenceBlocked:
		return true
	default:
		return false
	}
}

// GovernanceStatus is the lifecycle state of a catalog row. Rows are
// append-only; lifecycle is expressed purely through status transitions.
type GovernanceStatus string

const (
	StatusActive    GovernanceStatus = "ACTIVE"
	StatusBlocked   GovernanceStatus = "BLOCKED"
	StatusPending   GovernanceStatus = "PENDING"
	StatusSuspended GovernanceStatus = "SUSPENDED"
)

// IsValid validates the governance status.
func (g GovernanceStatus) IsValid() bool {
	switch g {
	case StatusActive, StatusBlocked, StatusPending, StatusSuspended:
		return true
	default:
		return false
	}
}

// String returns the string representation of the governance status.
func (g GovernanceStatus) String() string {
	return string(g)
}

// BlockSource identifies which check decided a block. Metadata blocks take
// precedence over blood blocks, blood over category, when a SKU trips more
// than one.
type BlockSource string

const (
	BlockedByMetadata BlockSource = "metadata"
	BlockedByBlood    BlockSource = "blood"
	BlockedByCategory BlockSource = "category"
)

// MatchReason explains why a SKU entered the protocol.
type MatchReason string

const (
	ReasonIntentMatch MatchReason = "intent_match"
	ReasonRequirement MatchReason = "requirement"
	ReasonBoth        MatchReason = "both"
)

// IntentSource records where an intent originated.
type IntentSource string

const (
	IntentFromGoal      IntentSource = "goal"
	IntentFromPainpoint IntentSource = "painpoint"
	IntentFromBlood     IntentSource = "blood"
)

// IsValid validates the intent source.
func (s IntentSource) IsValid() bool {
	switch s {
	case IntentFromGoal, IntentFromPainpoint, IntentFromBlood:
		return true
	default:
		return false
	}
}

// Stage names the pipeline stages for deadline errors and audit records.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageGates     Stage = "gates"
	StageTranslate Stage = "translate"
	StageRoute     Stage = "route"
	StageMatch     Stage = "match"
)

// String returns the string representation of the stage name.
func (s Stage) String() string {
	return string(s)
}
