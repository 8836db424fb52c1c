package pipeline

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biostack-engine/internal/catalog"
	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/ruleset"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type captureEmitter struct {
	mu      sync.Mutex
	records []*domain.RunRecord
}

func (c *captureEmitter) Emit(record *domain.RunRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, record)
}

func seededStore(t *testing.T) *catalog.Store {
	t.Helper()
	store := catalog.NewStore(catalog.NewStaticSource(catalog.Seed(), catalog.SeedVersion), testLogger())
	require.NoError(t, store.Reload(context.Background()))
	return store
}

func testPipeline(t *testing.T, emitter Emitter) *Pipeline {
	t.Helper()
	p, err := New(ruleset.Default(), seededStore(t), emitter, Options{}, testLogger())
	require.NoError(t, err)
	return p
}

func entry(code, value, unit string) domain.PanelEntry {
	return domain.PanelEntry{Code: code, Value: domain.MarkerValue(value), Unit: unit}
}

func maleRequest(panel ...domain.PanelEntry) *domain.ProtocolRequest {
	return &domain.ProtocolRequest{
		Panel: panel,
		User:  domain.UserContext{Sex: domain.SexMale, Age: 40},
	}
}

func blockedIDs(resp *domain.ProtocolResponse) map[string]*domain.BlockedSKU {
	out := map[string]*domain.BlockedSKU{}
	for i := range resp.Routing.Blocked {
		out[resp.Routing.Blocked[i].SKUID] = &resp.Routing.Blocked[i]
	}
	return out
}

func allowedIDs(resp *domain.ProtocolResponse) map[string]*domain.AllowedSKU {
	out := map[string]*domain.AllowedSKU{}
	for i := range resp.Routing.Allowed {
		out[resp.Routing.Allowed[i].SKU.SKUID] = &resp.Routing.Allowed[i]
	}
	return out
}

func protocolItem(resp *domain.ProtocolResponse, skuID string) *domain.ProtocolItem {
	for i := range resp.Protocol {
		if resp.Protocol[i].SKUID == skuID {
			return &resp.Protocol[i]
		}
	}
	return nil
}

func TestIronOverloadMale(t *testing.T) {
	p := testPipeline(t, nil)

	resp, err := p.Run(context.Background(), maleRequest(
		entry("ferritin", "420", "ng/mL"),
		entry("crp", "0.8", "mg/L"),
	))
	require.NoError(t, err)

	assert.Contains(t, resp.ConstraintCodes, domain.ConstraintCode("BLOCK_IRON"))
	for _, ing := range []string{"iron", "iron_bisglycinate", "ferrous_sulfate", "heme_iron"} {
		assert.Contains(t, resp.Constraints.BlockedIngredients, ing)
	}

	blocked := blockedIDs(resp)["BSK-IRON-01"]
	require.NotNil(t, blocked)
	assert.Equal(t, domain.BlockedByBlood, blocked.BlockedBy)
	assert.Contains(t, blocked.ReasonCodes, "BLOCK_INGREDIENT_IRON_BISGLYCINATE")
}

func TestIronOverloadWithAcuteInflammation(t *testing.T) {
	p := testPipeline(t, nil)

	resp, err := p.Run(context.Background(), maleRequest(
		entry("ferritin", "420", "ng/mL"),
		entry("crp", "8.0", "mg/L"),
	))
	require.NoError(t, err)

	assert.NotContains(t, resp.ConstraintCodes, domain.ConstraintCode("BLOCK_IRON"))
	assert.Contains(t, resp.ConstraintCodes, domain.ConstraintCode("FLAG_ACUTE_INFLAMMATION"))

	// The iron SKU is no longer blood-blocked.
	_, isBlocked := blockedIDs(resp)["BSK-IRON-01"]
	assert.False(t, isBlocked)
	_, isAllowed := allowedIDs(resp)["BSK-IRON-01"]
	assert.True(t, isAllowed)
}

func TestMethylationImpaired(t *testing.T) {
	p := testPipeline(t, nil)

	resp, err := p.Run(context.Background(), maleRequest(
		entry("mthfr_c677t", "TT", ""),
		entry("homocysteine", "14.5", "umol/L"),
	))
	require.NoError(t, err)

	assert.Contains(t, resp.ConstraintCodes, domain.ConstraintCode("FLAG_METHYLFOLATE_REQUIRED"))
	assert.Contains(t, resp.Constraints.BlockedIngredients, "folic_acid")
	assert.Contains(t, resp.Constraints.RecommendedIngredients, "methylfolate")

	blocked := blockedIDs(resp)["BSK-FOLIC-01"]
	require.NotNil(t, blocked)
	assert.Contains(t, blocked.ReasonCodes, "BLOCK_INGREDIENT_FOLIC_ACID")

	// The methylated-form SKU enters the protocol as a requirement carrier.
	item := protocolItem(resp, "BSK-MFOLATE-01")
	require.NotNil(t, item)
	assert.Equal(t, domain.ReasonRequirement, item.Reason)
	assert.Contains(t, item.MatchedIngredients, "methylfolate")
}

func TestDerivedMarkerTriggersGlycemicGate(t *testing.T) {
	p := testPipeline(t, nil)

	// Glucose and insulin are both in range; only the computed HOMA-IR
	// (90*15/405 = 3.33) crosses the glycemic threshold.
	resp, err := p.Run(context.Background(), maleRequest(
		entry("glucose", "90", "mg/dL"),
		entry("insulin", "15", "uIU/mL"),
	))
	require.NoError(t, err)

	require.Len(t, resp.ComputedMarkers, 1)
	assert.Equal(t, "homa_ir", resp.ComputedMarkers[0].CanonicalCode)
	assert.InDelta(t, 90*15.0/405, resp.ComputedMarkers[0].Value, 1e-9)

	assert.Contains(t, resp.ConstraintCodes, domain.ConstraintCode("FLAG_GLYCEMIC_SUPPORT"))
}

func TestDerivedMarkerTriggersLipidGate(t *testing.T) {
	p := testPipeline(t, nil)

	// 135/40 = 3.375 while both inputs sit inside their reference bands.
	resp, err := p.Run(context.Background(), maleRequest(
		entry("triglycerides", "135", "mg/dL"),
		entry("hdl_cholesterol", "40", "mg/dL"),
	))
	require.NoError(t, err)

	assert.Contains(t, resp.ConstraintCodes, domain.ConstraintCode("FLAG_LIPID_SUPPORT"))
}

func TestHepaticStressCautions(t *testing.T) {
	p := testPipeline(t, nil)

	req := maleRequest(
		entry("alt", "65", "U/L"),
		entry("ast", "55", "U/L"),
	)
	req.Intents = []domain.Intent{{
		Code:              "INTENT_STRESS",
		Priority:          1,
		IngredientTargets: []string{"rhodiola", "ashwagandha"},
		Source:            domain.IntentFromGoal,
	}}

	resp, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Contains(t, resp.ConstraintCodes, domain.ConstraintCode("CAUTION_HEPATOTOXIC"))
	assert.Contains(t, resp.Constraints.BlockedIngredients, "ashwagandha")

	require.NotNil(t, blockedIDs(resp)["BSK-ADAPT-01"])

	allowed := allowedIDs(resp)["BSK-RHOD-01"]
	require.NotNil(t, allowed)
	assert.Contains(t, allowed.CautionReasons, "CAUTION_HEPATIC_SENSITIVE")

	item := protocolItem(resp, "BSK-RHOD-01")
	require.NotNil(t, item)
	assert.Contains(t, item.Warnings, "CAUTION_HEPATIC_SENSITIVE")
}

func TestRoutingCoverageReportsRequirementSupply(t *testing.T) {
	p := testPipeline(t, nil)

	req := maleRequest(
		entry("mthfr_c677t", "TT", ""),
		entry("homocysteine", "14.5", "umol/L"),
	)
	req.Requirements = []string{"obscure_tag"}

	resp, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	byReq := map[string]domain.RequirementCoverage{}
	for _, c := range resp.Routing.Coverage {
		byReq[c.Requirement] = c
	}

	mf, ok := byReq["methylfolate"]
	require.True(t, ok)
	assert.True(t, mf.Covered)
	assert.Contains(t, mf.SKUIDs, "BSK-MFOLATE-01")

	obscure, ok := byReq["obscure_tag"]
	require.True(t, ok)
	assert.False(t, obscure.Covered)
	assert.Empty(t, obscure.SKUIDs)

	assert.Contains(t, resp.Unfulfilled, "obscure_tag")
}

func TestIntentWithoutMatchingSKU(t *testing.T) {
	p := testPipeline(t, nil)

	req := maleRequest()
	req.Intents = []domain.Intent{{
		Code:              "INTENT_SLEEP",
		Priority:          1,
		IngredientTargets: []string{"obscure_tag"},
		Source:            domain.IntentFromGoal,
	}}

	resp, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, resp.Protocol)
	require.Len(t, resp.Unmatched, 1)
	assert.Equal(t, "INTENT_SLEEP", resp.Unmatched[0].Code)
	assert.NotEmpty(t, resp.Unmatched[0].Reason)
}

func TestDeterminismAcrossRuns(t *testing.T) {
	p := testPipeline(t, nil)

	run := func() *domain.ProtocolResponse {
		resp, err := p.Run(context.Background(), maleRequest(
			entry("ferritin", "420", "ng/mL"),
			entry("crp", "0.8", "mg/L"),
		))
		require.NoError(t, err)
		return resp
	}

	first := run()
	second := run()

	assert.Equal(t, first.PipelineHash, second.PipelineHash)
	assert.Equal(t, first.Constraints.InputHash, second.Constraints.InputHash)
	assert.Equal(t, first.Constraints.OutputHash, second.Constraints.OutputHash)
	assert.Equal(t, first.Routing.RoutingHash, second.Routing.RoutingHash)
	assert.Equal(t, first.Protocol, second.Protocol)
	assert.Equal(t, first.Versions, second.Versions)
}

func TestEmptyRequestBoundary(t *testing.T) {
	p := testPipeline(t, nil)

	resp, err := p.Run(context.Background(), maleRequest())
	require.NoError(t, err)

	assert.Empty(t, resp.Protocol)
	assert.Empty(t, resp.Unmatched)
	assert.Empty(t, resp.Unfulfilled)
	assert.Empty(t, resp.ConstraintCodes)
	assert.NotEmpty(t, resp.PipelineHash)
	assert.NotEmpty(t, resp.Versions.ReferenceRanges)
	assert.NotEmpty(t, resp.Versions.Catalog)
}

func TestQualifiedValueNormalization(t *testing.T) {
	p := testPipeline(t, nil)

	resp, err := p.Run(context.Background(), maleRequest(
		entry("crp", "<1.5", "mg/L"),
	))
	require.NoError(t, err)

	require.Len(t, resp.NormalizedMarkers, 1)
	marker := resp.NormalizedMarkers[0]
	assert.InDelta(t, 0.75, marker.Value, 1e-9)
	assert.True(t, marker.ReducedConfidence)
}

func TestInvalidInputRejectedBeforePipeline(t *testing.T) {
	p := testPipeline(t, nil)

	_, err := p.Run(context.Background(), &domain.ProtocolRequest{
		User: domain.UserContext{Sex: "other"},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestCatalogUnavailableFailsFast(t *testing.T) {
	store := catalog.NewStore(catalog.NewStaticSource(nil, "empty"), testLogger())
	p, err := New(ruleset.Default(), store, nil, Options{}, testLogger())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), maleRequest())
	require.Error(t, err)
	assert.Equal(t, domain.KindCatalogUnavailable, domain.KindOf(err))
}

func TestDeadlineExceededReturnsNoPartialProtocol(t *testing.T) {
	p := testPipeline(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := p.Run(ctx, maleRequest(entry("ferritin", "420", "ng/mL")))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, domain.KindDeadlineExceeded, domain.KindOf(err))
}

func TestAuditEmission(t *testing.T) {
	emitter := &captureEmitter{}
	p := testPipeline(t, emitter)

	resp, err := p.Run(context.Background(), maleRequest(
		entry("ferritin", "420", "ng/mL"),
		entry("crp", "0.8", "mg/L"),
	))
	require.NoError(t, err)

	require.Len(t, emitter.records, 1)
	record := emitter.records[0]
	assert.Equal(t, resp.RunID, record.RunID)
	assert.Equal(t, resp.PipelineHash, record.PipelineHash)
	require.Len(t, record.Stages, 5)
	assert.Equal(t, domain.StageNormalize, record.Stages[0].Stage)
	assert.Equal(t, domain.StageMatch, record.Stages[4].Stage)
	assert.Equal(t, 2, record.Stages[0].Counts["normalized"])
}

func TestProductLineDefaultsFromSex(t *testing.T) {
	p := testPipeline(t, nil)

	req := &domain.ProtocolRequest{
		User: domain.UserContext{Sex: domain.SexFemale, Age: 35},
		Intents: []domain.Intent{{
			Code:              "INTENT_IRON",
			Priority:          1,
			IngredientTargets: []string{"lactoferrin"},
			Source:            domain.IntentFromGoal,
		}},
	}

	resp, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	// The female-line SKU matches; male-line SKUs never appear.
	require.NotNil(t, protocolItem(resp, "BSK-FEM-IRON-01"))
	assert.Nil(t, protocolItem(resp, "BSK-ZINC-01"))
}

func TestGovernanceAutoBlockKeepsSKUOutOfProtocol(t *testing.T) {
	p := testPipeline(t, nil)

	req := maleRequest()
	req.Intents = []domain.Intent{{
		Code:              "INTENT_ANY",
		Priority:          1,
		IngredientTargets: []string{"magnesium"},
		Source:            domain.IntentFromGoal,
	}}

	resp, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	// The metadata-free seed SKU is screened by governance before
	// routing, even with no active constraints.
	_, allowed := allowedIDs(resp)["BSK-MYSTERY-01"]
	assert.False(t, allowed)
	assert.Nil(t, protocolItem(resp, "BSK-MYSTERY-01"))
}
