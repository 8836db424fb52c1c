package bloodwork

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/ruleset"
)

// Engine evaluates the safety-gate registry against a normalized panel.
// Gates only ever read markers whose range status is classified; a marker
// that is absent, or present with UNKNOWN status, is missing data.
type Engine struct {
	rules  *ruleset.Ruleset
	logger *logrus.Logger
}

// NewEngine creates a gate engine bound to a validated ruleset.
func NewEngine(rules *ruleset.Ruleset, logger *logrus.Logger) *Engine {
	return &Engine{
		rules:  rules,
		logger: logger,
	}
}

// markerView indexes usable marker values for condition evaluation.
type markerView struct {
	numeric     map[string]float64
	categorical map[string]string
}

func buildView(markers []domain.NormalizedMarker) *markerView {
	v := &markerView{
		numeric:     make(map[string]float64, len(markers)),
		categorical: make(map[string]string),
	}
	for i := range markers {
		m := &markers[i]
		if !m.Status.IsClassified() {
			continue
		}
		if m.IsCategorical() {
			v.categorical[m.CanonicalCode] = m.Text
		} else {
			v.numeric[m.CanonicalCode] = m.Value
		}
	}
	return v
}

// Evaluate runs every applicable gate against the panel. Markers include
// both normalized and computed entries. The result's constraint codes are
// the sorted union of every active gate's emissions; active gates and
// data-missing reports are sorted by gate ID.
func (e *Engine) Evaluate(ctx context.Context, markers []domain.NormalizedMarker, user *domain.UserContext) (*domain.GateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewDeadlineExceeded(domain.StageGates)
	}

	view := buildView(markers)
	e.logger.WithFields(logrus.Fields{
		"usable_markers": len(view.numeric) + len(view.categorical),
		"gates":          len(e.rules.Gates),
	}).Debug("Evaluating safety gates")

	result := &domain.GateResult{
		ActiveGates:     []domain.ActiveGate{},
		ConstraintCodes: []domain.ConstraintCode{},
		DataMissing:     nil,
		RegistryVersion: e.rules.GatesVersion,
	}
	codes := make(map[domain.ConstraintCode]bool)

	for i := range e.rules.Gates {
		g := &e.rules.Gates[i]
		if g.Sex != "" && g.Sex != user.Sex {
			continue
		}

		ev := evaluateTrigger(g, view)
		if !ev.fired {
			// A Tier 1 gate that was not ruled out by the data it could
			// see, but could not finish for lack of markers, demands
			// human review. Lower tiers skip silently.
			if ev.partial && g.Tier == domain.TierBlock {
				result.DataMissing = append(result.DataMissing, domain.MissingData{
					GateID:  g.ID,
					Missing: ev.missing,
				})
				result.ReviewRequired = true
			}
			continue
		}

		gate := domain.ActiveGate{
			GateID:    g.ID,
			Tier:      g.Tier,
			Outcome:   domain.GateActive,
			Emitted:   g.Emits,
			Reason:    g.Description,
			Triggered: ev.satisfied,
		}
		if g.Exception != nil && exceptionHolds(g.Exception, view) {
			gate.Outcome = domain.GateSuppressed
			gate.Emitted = g.Exception.Emits
			gate.Reason = g.Exception.Reason
		}
		for _, c := range gate.Emitted {
			codes[c] = true
		}
		result.ActiveGates = append(result.ActiveGates, gate)
	}

	for c := range codes {
		result.ConstraintCodes = append(result.ConstraintCodes, c)
	}
	sort.Slice(result.ConstraintCodes, func(i, j int) bool {
		return result.ConstraintCodes[i] < result.ConstraintCodes[j]
	})
	sort.Slice(result.ActiveGates, func(i, j int) bool {
		return result.ActiveGates[i].GateID < result.ActiveGates[j].GateID
	})
	sort.Slice(result.DataMissing, func(i, j int) bool {
		return result.DataMissing[i].GateID < result.DataMissing[j].GateID
	})

	e.logger.WithFields(logrus.Fields{
		"active_gates":    len(result.ActiveGates),
		"codes":           len(result.ConstraintCodes),
		"review_required": result.ReviewRequired,
	}).Info("Gate evaluation complete")

	return result, nil
}

// triggerEval is the outcome of running one gate's trigger against the
// available markers.
type triggerEval struct {
	// fired: every All condition held and, when Any is non-empty, at
	// least one Any condition held.
	fired bool
	// partial: the gate did not fire, every condition it could evaluate
	// held, at least one condition was evaluable, and at least one marker
	// the trigger reads was missing.
	partial bool
	// missing lists the absent markers, sorted.
	missing []string
	// satisfied lists markers whose conditions held, sorted.
	satisfied []string
}

func evaluateTrigger(g *ruleset.Gate, view *markerView) triggerEval {
	var ev triggerEval
	missing := map[string]bool{}
	satisfied := map[string]bool{}

	allHold := true     // every All condition present and true
	presentPass := true // every evaluable condition true
	presentCount := 0

	for i := range g.All {
		c := &g.All[i]
		pass, present := evalCondition(c, view)
		if !present {
			missing[c.Marker] = true
			allHold = false
			continue
		}
		presentCount++
		if pass {
			satisfied[c.Marker] = true
		} else {
			allHold = false
			presentPass = false
		}
	}

	anySat := len(g.Any) == 0
	for i := range g.Any {
		c := &g.Any[i]
		pass, present := evalCondition(c, view)
		if !present {
			missing[c.Marker] = true
			continue
		}
		presentCount++
		if pass {
			anySat = true
			satisfied[c.Marker] = true
		} else {
			presentPass = false
		}
	}

	ev.fired = allHold && anySat
	ev.partial = !ev.fired && presentPass && len(missing) > 0 && presentCount > 0
	ev.missing = sortedKeys(missing)
	ev.satisfied = sortedKeys(satisfied)
	return ev
}

// exceptionHolds reports whether every exception condition is present and
// true. A missing exception marker means the exception cannot be
// established and the gate stands; suppression requires proof.
func exceptionHolds(x *ruleset.Exception, view *markerView) bool {
	for i := range x.When {
		pass, present := evalCondition(&x.When[i], view)
		if !present || !pass {
			return false
		}
	}
	return true
}

func evalCondition(c *ruleset.Condition, view *markerView) (pass, present bool) {
	switch c.Op {
	case ruleset.OpEQ, ruleset.OpNEQ:
		text, ok := view.categorical[c.Marker]
		if !ok {
			return false, false
		}
		if c.Op == ruleset.OpEQ {
			return text == c.Text, true
		}
		return text != c.Text, true
	default:
		v, ok := view.numeric[c.Marker]
		if !ok {
			return false, false
		}
		switch c.Op {
		case ruleset.OpGT:
			return v > c.Value, true
		case ruleset.OpGTE:
			return v >= c.Value, true
		case ruleset.OpLT:
			return v < c.Value, true
		case ruleset.OpLTE:
			return v <= c.Value, true
		default:
			return false, false
		}
	}
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
