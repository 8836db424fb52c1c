// Package matching assembles the final protocol from the SKUs that
// survived routing. The matcher never re-examines blocks: its input set is
// already safe, and its job is purely to satisfy prioritized intents and
// biomarker-driven requirements deterministically.
package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/pkg/canonhash"
)

// Version identifies the matching algorithm in responses and audit records.
const Version = "matching-2025.2"

// rankRequirementOnly sorts pure-requirement items after every
// intent-ranked item without colliding with any user priority.
const rankRequirementOnly = 1 << 30

// Matcher selects protocol SKUs for a user's intents and requirements.
type Matcher struct {
	logger *logrus.Logger
}

// NewMatcher creates a protocol matcher.
func NewMatcher(logger *logrus.Logger) *Matcher {
	return &Matcher{logger: logger}
}

// candidate accumulates per-SKU match state during the intent scan.
type candidate struct {
	sku          *domain.AllowedSKU
	tags         map[string]bool
	intents      []string
	overlap      map[string]bool
	targetUnion  map[string]bool
	requirements []string
	rank         int
}

// Match runs the assembly algorithm: product-line filter, intent scan in
// priority order, requirement fulfillment, then deterministic sorting.
// Unmatched intents and unfulfilled requirements are normal output.
func (m *Matcher) Match(allowed []domain.AllowedSKU, intents []domain.Intent, user *domain.UserContext, requirements []string) (*domain.MatchingResult, error) {
	if user == nil {
		return nil, domain.NewInternalInvariant(domain.StageMatch, "matching invoked without user context")
	}
	line := user.Line()

	candidates := make([]*candidate, 0, len(allowed))
	for i := range allowed {
		sku := &allowed[i]
		// SKUs without a product line are universal and serve every user.
		if sku.SKU.ProductLine != domain.LineUniversal && sku.SKU.ProductLine != line {
			continue
		}
		tags := make(map[string]bool, len(sku.SKU.Ingredients))
		for _, t := range sku.SKU.Ingredients {
			tags[strings.ToLower(t)] = true
		}
		candidates = append(candidates, &candidate{
			sku:         sku,
			tags:        tags,
			overlap:     map[string]bool{},
			targetUnion: map[string]bool{},
			rank:        rankRequirementOnly,
		})
	}

	ordered := make([]domain.Intent, len(intents))
	copy(ordered, intents)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].Code < ordered[j].Code
	})

	result := &domain.MatchingResult{
		Protocol:                []domain.ProtocolItem{},
		Unmatched:               []domain.UnmatchedIntent{},
		RequirementsUnfulfilled: []string{},
	}

	for _, intent := range ordered {
		targets := make([]string, 0, len(intent.IngredientTargets))
		for _, t := range intent.IngredientTargets {
			targets = append(targets, strings.ToLower(t))
		}

		matchedAny := false
		for _, c := range candidates {
			var overlap []string
			for _, target := range targets {
				if c.tags[target] {
					overlap = append(overlap, target)
				}
			}
			if len(overlap) == 0 {
				continue
			}
			matchedAny = true
			c.intents = append(c.intents, intent.Code)
			for _, tag := range overlap {
				c.overlap[tag] = true
			}
			for _, target := range targets {
				c.targetUnion[target] = true
			}
			if intent.Priority < c.rank {
				c.rank = intent.Priority
			}
		}
		if !matchedAny {
			result.Unmatched = append(result.Unmatched, domain.UnmatchedIntent{
				Code:   intent.Code,
				Reason: fmt.Sprintf("no allowed %s-line SKU carries any of the intent's ingredient targets", strings.ToLower(string(line))),
			})
		}
	}

	fulfilled := map[string]bool{}
	for _, req := range requirements {
		req = strings.ToLower(req)
		for _, c := range candidates {
			if c.tags[req] {
				c.requirements = append(c.requirements, req)
				fulfilled[req] = true
			}
		}
	}

	for _, c := range candidates {
		if len(c.intents) == 0 && len(c.requirements) == 0 {
			continue
		}
		result.Protocol = append(result.Protocol, m.buildItem(c))
	}

	for _, req := range requirements {
		if !fulfilled[strings.ToLower(req)] {
			result.RequirementsUnfulfilled = append(result.RequirementsUnfulfilled, strings.ToLower(req))
		}
	}
	sort.Strings(result.RequirementsUnfulfilled)

	sort.Slice(result.Protocol, func(i, j int) bool {
		a, b := &result.Protocol[i], &result.Protocol[j]
		if a.PriorityRank != b.PriorityRank {
			return a.PriorityRank < b.PriorityRank
		}
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		return a.SKUID < b.SKUID
	})

	parts := make([]string, 0, len(result.Protocol)+len(result.Unmatched)+2)
	parts = append(parts, "protocol")
	for i := range result.Protocol {
		parts = append(parts, result.Protocol[i].SKUID)
	}
	parts = append(parts, "unmatched")
	unmatchedCodes := make([]string, 0, len(result.Unmatched))
	for i := range result.Unmatched {
		unmatchedCodes = append(unmatchedCodes, result.Unmatched[i].Code)
	}
	sort.Strings(unmatchedCodes)
	parts = append(parts, unmatchedCodes...)
	result.MatchHash = canonhash.HashStrings(parts...)

	m.logger.WithFields(logrus.Fields(result.LogFields())).Debug("Matching complete")
	return result, nil
}

// buildItem converts accumulated candidate state into a protocol item.
// Score is the matched-tag share of the union of matched intents' targets;
// a pure requirement carrier scores 1.0.
func (m *Matcher) buildItem(c *candidate) domain.ProtocolItem {
	item := domain.ProtocolItem{
		SKUID:          c.sku.SKU.SKUID,
		ProductName:    c.sku.SKU.ProductName,
		MatchedIntents: append([]string{}, c.intents...),
		Warnings:       append([]string{}, c.sku.CautionReasons...),
		PriorityRank:   c.rank,
	}
	sort.Strings(item.MatchedIntents)
	sort.Strings(item.Warnings)

	matched := make(map[string]bool, len(c.overlap)+len(c.requirements))
	for tag := range c.overlap {
		matched[tag] = true
	}
	for _, req := range c.requirements {
		matched[req] = true
	}
	item.MatchedIngredients = make([]string, 0, len(matched))
	for tag := range matched {
		item.MatchedIngredients = append(item.MatchedIngredients, tag)
	}
	sort.Strings(item.MatchedIngredients)

	switch {
	case len(c.intents) > 0 && len(c.requirements) > 0:
		item.Reason = domain.ReasonBoth
	case len(c.intents) > 0:
		item.Reason = domain.ReasonIntentMatch
	default:
		item.Reason = domain.ReasonRequirement
	}

	if len(c.intents) > 0 {
		item.MatchScore = float64(len(c.overlap)) / float64(len(c.targetUnion))
	} else {
		item.MatchScore = 1.0
	}
	return item
}
