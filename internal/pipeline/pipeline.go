// Package pipeline orchestrates the five decision stages: normalize,
// gates, translate, route, match. One Run is one request: strictly
// sequential, no shared mutable state, every stage output sorted and
// hashed so identical inputs produce byte-identical responses across runs
// and across concurrent workers.
package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/bloodwork"
	"github.com/biostack-engine/internal/catalog"
	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/matching"
	"github.com/biostack-engine/internal/routing"
	"github.com/biostack-engine/internal/ruleset"
	"github.com/biostack-engine/internal/translator"
	"github.com/biostack-engine/pkg/canonhash"
)

// Emitter receives run records after the response is formed. Emission
// must never block the request path.
type Emitter interface {
	Emit(record *domain.RunRecord)
}

// Options bound request execution.
type Options struct {
	DefaultDeadline time.Duration
	MaxDeadline     time.Duration
	TranslatorMemo  int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.DefaultDeadline <= 0 {
		out.DefaultDeadline = 5 * time.Second
	}
	if out.MaxDeadline <= 0 {
		out.MaxDeadline = 30 * time.Second
	}
	return out
}

// Pipeline runs the decision stages against a validated ruleset and the
// current catalog snapshot.
type Pipeline struct {
	rules      *ruleset.Ruleset
	normalizer domain.Normalizer
	gates      domain.GateEngine
	translator domain.Translator
	governor   domain.Governor
	router     domain.Router
	matcher    domain.Matcher
	catalog    domain.CatalogProvider
	emitter    Emitter
	opts       Options
	logger     *logrus.Logger
}

// New builds a pipeline over the given ruleset and catalog provider. The
// ruleset must already have passed Validate; a malformed registry is a
// startup failure, never a request-time one. The emitter may be nil.
func New(rules *ruleset.Ruleset, provider domain.CatalogProvider, emitter Emitter, opts Options, logger *logrus.Logger) (*Pipeline, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	trans, err := translator.NewTranslator(rules, opts.TranslatorMemo, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		rules:      rules,
		normalizer: bloodwork.NewNormalizer(rules, logger),
		gates:      bloodwork.NewEngine(rules, logger),
		translator: trans,
		governor:   catalog.NewGovernor(logger),
		router:     routing.NewRouter(logger),
		matcher:    matching.NewMatcher(logger),
		catalog:    provider,
		emitter:    emitter,
		opts:       opts,
		logger:     logger,
	}, nil
}

// Versions reports the active ruleset and algorithm versions, with the
// catalog version from the current snapshot when one is loaded.
func (p *Pipeline) Versions() domain.Versions {
	versions := domain.Versions{
		ReferenceRanges: p.rules.RangesVersion,
		GateRegistry:    p.rules.GatesVersion,
		Mapping:         p.rules.MappingVersion,
		Routing:         routing.Version,
		Matching:        matching.Version,
	}
	if snapshot, err := p.catalog.Snapshot(); err == nil {
		versions.Catalog = snapshot.Version
	}
	return versions
}

// run tracks per-request state while the stages execute.
type run struct {
	id        string
	startedAt time.Time
	stages    []domain.StageAudit
	hashes    []string
}

// stage records one completed stage's audit row and folds its output hash
// into the pipeline hash input.
func (r *run) stage(name domain.Stage, startedAt time.Time, counts map[string]int, inputHash, outputHash string) {
	r.stages = append(r.stages, domain.StageAudit{
		RunID:       r.id,
		Stage:       name,
		Counts:      counts,
		InputHash:   inputHash,
		OutputHash:  outputHash,
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
	})
	r.hashes = append(r.hashes, string(name), outputHash)
}

// Run executes the full pipeline for one request. The returned response
// is complete or the error is terminal; no partial protocol is ever
// returned.
func (p *Pipeline) Run(ctx context.Context, req *domain.ProtocolRequest) (*domain.ProtocolResponse, error) {
	if req == nil {
		return nil, domain.NewInvalidInput("", "request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user := req.User
	if user.ProductLine == domain.LineUniversal {
		user.ProductLine = domain.LineForSex(user.Sex)
	}

	deadline := p.opts.DefaultDeadline
	if req.DeadlineMS > 0 {
		deadline = time.Duration(req.DeadlineMS) * time.Millisecond
		if deadline > p.opts.MaxDeadline {
			deadline = p.opts.MaxDeadline
		}
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// The snapshot is pinned for the whole request; a concurrent reload
	// swaps the store pointer without touching this one.
	snapshot, err := p.catalog.Snapshot()
	if err != nil {
		return nil, err
	}

	r := &run{
		id:        uuid.New().String(),
		startedAt: time.Now().UTC(),
	}
	log := p.logger.WithField("run_id", r.id)

	// Stage A: normalize.
	stageStart := time.Now().UTC()
	inputHash, err := canonhash.Hash(map[string]any{"panel": req.Panel, "sex": user.Sex, "age": user.Age})
	if err != nil {
		return nil, domain.NewInternalInvariant(domain.StageNormalize, "failed to hash panel input")
	}
	normalized, err := p.normalizer.Normalize(ctx, req.Panel, &user)
	if err != nil {
		return nil, err
	}
	normHash, err := canonhash.Hash(normalized)
	if err != nil {
		return nil, domain.NewInternalInvariant(domain.StageNormalize, "failed to hash normalization output")
	}
	r.stage(domain.StageNormalize, stageStart, map[string]int{
		"normalized": len(normalized.Normalized),
		"unknown":    len(normalized.Unknown),
		"computed":   len(normalized.Computed),
	}, inputHash, normHash)

	// Stage B: gates.
	if err := checkDeadline(ctx, domain.StageGates); err != nil {
		return nil, err
	}
	stageStart = time.Now().UTC()
	// Gates read derived markers (homa_ir, ratios) alongside the directly
	// normalized ones, so both sets feed the same evaluation view.
	gateInput := make([]domain.NormalizedMarker, 0, len(normalized.Normalized)+len(normalized.Computed))
	gateInput = append(gateInput, normalized.Normalized...)
	gateInput = append(gateInput, normalized.Computed...)
	gates, err := p.gates.Evaluate(ctx, gateInput, &user)
	if err != nil {
		return nil, err
	}
	gateHash, err := canonhash.Hash(gates)
	if err != nil {
		return nil, domain.NewInternalInvariant(domain.StageGates, "failed to hash gate output")
	}
	r.stage(domain.StageGates, stageStart, map[string]int{
		"active_gates":     len(gates.ActiveGates),
		"constraint_codes": len(gates.ConstraintCodes),
		"data_missing":     len(gates.DataMissing),
	}, normHash, gateHash)

	// Stage C: translate.
	if err := checkDeadline(ctx, domain.StageTranslate); err != nil {
		return nil, err
	}
	stageStart = time.Now().UTC()
	constraints, err := p.translator.Translate(gates.ConstraintCodes, user.Sex)
	if err != nil {
		return nil, err
	}
	r.stage(domain.StageTranslate, stageStart, map[string]int{
		"blocked_ingredients": len(constraints.BlockedIngredients),
		"blocked_categories":  len(constraints.BlockedCategories),
		"caution_flags":       len(constraints.CautionFlags),
		"recommended":         len(constraints.RecommendedIngredients),
		"unknown_codes":       len(constraints.UnknownCodes),
	}, constraints.InputHash, constraints.OutputHash)

	// Requirements the matcher must fulfill: the user's own plus the
	// bloodwork recommendations. Blocks already dominate recommendations
	// inside the translator output.
	requirements := mergeRequirements(req.Requirements, constraints.RecommendedIngredients)

	// Stage D: governance + routing.
	if err := checkDeadline(ctx, domain.StageRoute); err != nil {
		return nil, err
	}
	stageStart = time.Now().UTC()
	governance, err := p.governor.Validate(snapshot)
	if err != nil {
		return nil, err
	}
	routed, err := p.router.Route(governance.Valid, constraints, requirements)
	if err != nil {
		return nil, err
	}
	routed.Coverage = p.router.Coverage(routed.Allowed, requirements)
	covered := 0
	for i := range routed.Coverage {
		if routed.Coverage[i].Covered {
			covered++
		}
	}
	r.stage(domain.StageRoute, stageStart, map[string]int{
		"catalog_rows":           len(snapshot.SKUs),
		"auto_blocked":           len(governance.AutoBlocked),
		"evaluated":              routed.Audit.Evaluated,
		"allowed":                routed.Audit.Allowed,
		"blocked":                routed.Audit.Blocked,
		"requirements_covered":   covered,
		"requirements_uncovered": len(routed.Coverage) - covered,
	}, governance.ResultHash, routed.RoutingHash)

	// Stage E: match.
	if err := checkDeadline(ctx, domain.StageMatch); err != nil {
		return nil, err
	}
	stageStart = time.Now().UTC()
	matched, err := p.matcher.Match(routed.Allowed, req.Intents, &user, requirements)
	if err != nil {
		return nil, err
	}
	r.stage(domain.StageMatch, stageStart, map[string]int{
		"protocol":                 len(matched.Protocol),
		"unmatched_intents":        len(matched.Unmatched),
		"requirements_unfulfilled": len(matched.RequirementsUnfulfilled),
	}, routed.RoutingHash, matched.MatchHash)

	if err := verifySafety(constraints, routed, matched); err != nil {
		return nil, err
	}

	versions := domain.Versions{
		ReferenceRanges: normalized.RangesVersion,
		GateRegistry:    gates.RegistryVersion,
		Mapping:         constraints.MappingVersion,
		Catalog:         snapshot.Version,
		Routing:         routing.Version,
		Matching:        matching.Version,
	}

	hashParts := append([]string{}, r.hashes...)
	hashParts = append(hashParts,
		versions.ReferenceRanges, versions.GateRegistry, versions.Mapping,
		versions.Catalog, versions.Routing, versions.Matching,
	)
	pipelineHash := canonhash.HashStrings(hashParts...)

	response := &domain.ProtocolResponse{
		RunID:             r.id,
		NormalizedMarkers: normalized.Normalized,
		UnknownMarkers:    normalized.Unknown,
		ComputedMarkers:   normalized.Computed,
		ActiveGates:       gates.ActiveGates,
		ConstraintCodes:   gates.ConstraintCodes,
		ReviewRequired:    gates.ReviewRequired,
		DataMissing:       gates.DataMissing,
		Constraints:       *constraints,
		Routing:           *routed,
		Protocol:          matched.Protocol,
		Unmatched:         matched.Unmatched,
		Unfulfilled:       matched.RequirementsUnfulfilled,
		PipelineHash:      pipelineHash,
		Versions:          versions,
	}

	if p.emitter != nil {
		p.emitter.Emit(&domain.RunRecord{
			RunID:        r.id,
			PipelineHash: pipelineHash,
			Versions:     versions,
			Stages:       r.stages,
			StartedAt:    r.startedAt,
			CompletedAt:  time.Now().UTC(),
		})
	}

	log.WithFields(logrus.Fields{
		"pipeline_hash": pipelineHash,
		"protocol":      len(matched.Protocol),
		"blocked":       routed.Audit.Blocked,
	}).Info("Pipeline run complete")

	return response, nil
}

func checkDeadline(ctx context.Context, stage domain.Stage) error {
	if err := ctx.Err(); err != nil {
		return domain.NewDeadlineExceeded(stage)
	}
	return nil
}

// mergeRequirements unions the user's requirement tags with the
// bloodwork-recommended ingredients into one lowercase sorted set.
func mergeRequirements(user, recommended []string) []string {
	set := make(map[string]bool, len(user)+len(recommended))
	for _, tag := range user {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			set[tag] = true
		}
	}
	for _, tag := range recommended {
		set[tag] = true
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// verifySafety re-checks the cross-stage invariants before the response
// leaves the pipeline. Any violation means a stage is broken and the
// request fails rather than returning an unsafe protocol.
func verifySafety(constraints *domain.TranslatedConstraints, routed *domain.RoutingResult, matched *domain.MatchingResult) error {
	if err := constraints.CheckDominance(); err != nil {
		return err
	}

	allowed := make(map[string]bool, len(routed.Allowed))
	for i := range routed.Allowed {
		allowed[routed.Allowed[i].SKU.SKUID] = true
	}
	for i := range matched.Protocol {
		if !allowed[matched.Protocol[i].SKUID] {
			return domain.NewInternalInvariant(domain.StageMatch,
				"protocol contains a SKU the router did not allow")
		}
	}
	return nil
}
