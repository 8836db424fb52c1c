// Package bloodwork implements the two bloodwork stages of the pipeline:
// panel normalization (alias resolution, unit conversion, range
// classification, derived markers) and safety-gate evaluation. Both stages
// are pure functions of their inputs and the active ruleset; given the same
// panel, user context and ruleset version they produce identical results.
package bloodwork

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/ruleset"
)

// Normalizer converts raw lab panels into canonical markers. It never
// fails on content: entries it cannot place are reported in the result's
// Unknown list rather than raised as errors.
type Normalizer struct {
	rules  *ruleset.Ruleset
	logger *logrus.Logger
}

// NewNormalizer creates a normalizer bound to a validated ruleset.
func NewNormalizer(rules *ruleset.Ruleset, logger *logrus.Logger) *Normalizer {
	return &Normalizer{
		rules:  rules,
		logger: logger,
	}
}

// Normalize maps every panel entry to a canonical marker or an unknown
// report, classifies ranges, and computes derived markers. Output slices
// are sorted by canonical code so identical panels normalize to identical
// bytes regardless of input order.
func (n *Normalizer) Normalize(ctx context.Context, panel []domain.PanelEntry, user *domain.UserContext) (*domain.NormalizeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewDeadlineExceeded(domain.StageNormalize)
	}

	n.logger.WithFields(logrus.Fields{
		"panel_size": len(panel),
		"sex":        user.Sex.String(),
	}).Debug("Normalizing biomarker panel")

	result := &domain.NormalizeResult{
		Normalized:    make([]domain.NormalizedMarker, 0, len(panel)),
		Unknown:       []domain.UnknownMarker{},
		Computed:      []domain.NormalizedMarker{},
		RangesVersion: n.rules.RangesVersion,
	}

	seen := make(map[string]string, len(panel))
	for _, entry := range panel {
		canonical, ok := n.rules.ResolveAlias(entry.Code)
		if !ok {
			result.Unknown = append(result.Unknown, domain.UnknownMarker{
				Code:   entry.Code,
				Unit:   entry.Unit,
				Reason: "code not in canonical allow-list",
			})
			continue
		}
		if first, dup := seen[canonical]; dup {
			result.Unknown = append(result.Unknown, domain.UnknownMarker{
				Code:   entry.Code,
				Unit:   entry.Unit,
				Reason: "duplicate of earlier entry " + first,
			})
			continue
		}
		seen[canonical] = entry.Code

		result.Normalized = append(result.Normalized, n.normalizeEntry(canonical, entry, user))
	}

	n.computeDerived(result, user)

	sort.Slice(result.Normalized, func(i, j int) bool {
		return result.Normalized[i].CanonicalCode < result.Normalized[j].CanonicalCode
	})
	sort.Slice(result.Computed, func(i, j int) bool {
		return result.Computed[i].CanonicalCode < result.Computed[j].CanonicalCode
	})
	sort.Slice(result.Unknown, func(i, j int) bool {
		if result.Unknown[i].Code != result.Unknown[j].Code {
			return result.Unknown[i].Code < result.Unknown[j].Code
		}
		return result.Unknown[i].Reason < result.Unknown[j].Reason
	})

	n.logger.WithFields(logrus.Fields{
		"normalized": len(result.Normalized),
		"unknown":    len(result.Unknown),
		"computed":   len(result.Computed),
	}).Info("Panel normalization complete")

	return result, nil
}

// normalizeEntry produces the canonical marker for one accepted entry.
// Content problems (unknown unit, negative value, unlisted genotype) keep
// the marker in the output with range_status UNKNOWN so downstream stages
// see it was reported without trusting its value.
func (n *Normalizer) normalizeEntry(canonical string, entry domain.PanelEntry, user *domain.UserContext) domain.NormalizedMarker {
	def, _ := n.rules.Marker(canonical)

	m := domain.NormalizedMarker{
		CanonicalCode: canonical,
		Unit:          def.Unit,
		Status:        domain.RangeUnknown,
		OriginalCode:  entry.Code,
		OriginalValue: entry.Value.String(),
		OriginalUnit:  entry.Unit,
	}

	if def.Kind == ruleset.KindCategorical {
		m.Text = strings.ToUpper(strings.TrimSpace(entry.Value.String()))
		if status, ok := n.rules.ClassifyText(canonical, m.Text); ok {
			m.Status = status
		}
		return m
	}

	pv, err := parseValue(entry.Value.String())
	if err != nil {
		return m
	}

	converted, applied, known := n.rules.Convert(canonical, entry.Unit, pv.Value)
	if !known {
		m.Value = pv.Value
		m.ReducedConfidence = pv.Reduced
		return m
	}

	m.Value = converted
	m.ConversionApplied = applied
	m.ReducedConfidence = pv.Reduced

	// Negative concentrations are physically impossible; keep the marker
	// visible but never classify or gate on it.
	if m.Value < 0 {
		return m
	}

	m.Status = n.rules.Classify(canonical, m.Value, user.Sex, user.Age)
	return m
}

// computeDerived evaluates derived-marker formulas over the classified
// numeric markers. A derived marker is produced only when every input is
// present and classified; non-finite results (division by zero) are
// skipped. Reduced confidence propagates from inputs.
func (n *Normalizer) computeDerived(result *domain.NormalizeResult, user *domain.UserContext) {
	values := make(map[string]float64, len(result.Normalized))
	reduced := make(map[string]bool, len(result.Normalized))
	for i := range result.Normalized {
		m := &result.Normalized[i]
		if m.IsCategorical() || !m.Status.IsClassified() {
			continue
		}
		values[m.CanonicalCode] = m.Value
		reduced[m.CanonicalCode] = m.ReducedConfidence
	}

	for _, def := range n.rules.Derived {
		inputs := make(map[string]float64, len(def.Inputs))
		anyReduced := false
		complete := true
		for _, in := range def.Inputs {
			v, ok := values[in]
			if !ok {
				complete = false
				break
			}
			inputs[in] = v
			anyReduced = anyReduced || reduced[in]
		}
		if !complete {
			continue
		}

		v := def.Compute(inputs)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			n.logger.WithField("derived", def.Code).Warn("Derived marker formula produced non-finite value, skipping")
			continue
		}

		result.Computed = append(result.Computed, domain.NormalizedMarker{
			CanonicalCode:     def.Code,
			Value:             v,
			Unit:              def.Unit,
			Status:            n.rules.Classify(def.Code, v, user.Sex, user.Age),
			ReducedConfidence: anyReduced,
			Computed:          true,
			OriginalCode:      def.Code,
			OriginalValue:     "computed",
			OriginalUnit:      def.Unit,
		})
	}
}
