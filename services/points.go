package services

import (
	"fmt"

	"libraryhub_go/models"
)

// Award is the outcome of one ledger entry.
type Award struct {
	Kind        ActivityKind `json:"kind"`
	Points      int          `json:"points"`
	NewLevel    int          `json:"newLevel"`
	TotalPoints int          `json:"totalPoints"`
	LeveledUp   bool         `json:"-"`
}

// Ledger prices activities and derives levels. It only mutates the student
// in memory; the calling workflow persists it.
type Ledger struct {
	rules *Rules
}

// NewLedger creates a ledger over validated rules
func NewLedger(rules *Rules) *Ledger {
	return &Ledger{rules: rules}
}

// Award adds table[kind]*multiplier to the student's points and raises the
// level when the new total reaches a higher threshold. Levels never drop.
// kind must be declared in the rules; Validate guarantees that for
// ActivityKinds.
func (l *Ledger) Award(s *models.Student, kind ActivityKind, multiplier int) Award {
	base, ok := l.rules.Points[kind]
	if !ok {
		panic(fmt.Sprintf("services: activity %q has no point value", kind))
	}

	delta := base * multiplier
	s.Points += delta

	leveled := false
	if lvl := l.rules.Level(s.Points); lvl > s.Level {
		s.Level = lvl
		leveled = true
	}

	return Award{
		Kind:        kind,
		Points:      delta,
		NewLevel:    s.Level,
		TotalPoints: s.Points,
		LeveledUp:   leveled,
	}
}
