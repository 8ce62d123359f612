package reconcile

import (
	"fmt"
	"strings"

	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
)

// TargetRevision is the revision of every target delta. Targets are
// immutable, so there is only ever one.
const TargetRevision = 1

// ProducedSource selects which events feed totalProduced. Exactly one is
// active; counting both would double-book output.
type ProducedSource string

const (
	// SourceProduction counts outputQty of production entries at the counting stage.
	SourceProduction ProducedSource = "production"
	// SourceTarget counts hourlyProduction of target events.
	SourceTarget ProducedSource = "target"
)

// ParseProducedSource parses a configuration value.
func ParseProducedSource(s string) (ProducedSource, error) {
	switch ProducedSource(strings.ToLower(strings.TrimSpace(s))) {
	case SourceProduction, "":
		return SourceProduction, nil
	case SourceTarget:
		return SourceTarget, nil
	}
	return "", fmt.Errorf("unknown produced source %q (want production or target)", s)
}

// Policy maps events to deltas.
type Policy struct {
	Source        ProducedSource
	CountingStage entity.Stage
}

// DefaultPolicy counts SEWING output.
func DefaultPolicy() Policy {
	return Policy{Source: SourceProduction, CountingStage: entity.StageSewing}
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.Source != SourceProduction && p.Source != SourceTarget {
		return fmt.Errorf("invalid produced source %q", p.Source)
	}
	if p.Source == SourceProduction && !p.CountingStage.IsValid() {
		return fmt.Errorf("invalid counting stage %q", p.CountingStage)
	}
	return nil
}

// ForTarget returns the delta for creating (APPLY) or deleting (REVERSE) a target.
func (p Policy) ForTarget(t *entity.TargetEvent, dir Direction) Delta {
	d := Delta{
		EventID:     t.ID,
		Revision:    TargetRevision,
		StyleCode:   t.StyleCode,
		TargetDelta: t.LineTarget,
		Direction:   dir,
	}
	if p.Source == SourceTarget {
		d.ProducedDelta = t.HourlyProduction
	}
	return d
}

// CountsStage reports whether entries at stage feed the ledger.
func (p Policy) CountsStage(stage entity.Stage) bool {
	return p.Source == SourceProduction && stage == p.CountingStage
}

// ForEntry returns the delta for one revision of a production entry.
func (p Policy) ForEntry(entryID id.ID, revision int, styleCode string, outputQty int64, dir Direction) Delta {
	return Delta{
		EventID:       entryID,
		Revision:      revision,
		StyleCode:     styleCode,
		ProducedDelta: outputQty,
		Direction:     dir,
	}
}
