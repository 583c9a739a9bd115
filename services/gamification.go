package services

import (
	"time"
)

// Gamification bundles the rule driven components a workflow applies.
type Gamification struct {
	Rules  *Rules
	Ledger *Ledger
	Streak *StreakTracker
	Badges *BadgeEvaluator
	Ranker *Ranker
	// Location decides where calendar days start.
	Location *time.Location
}

// NewGamification wires the components over one rule set
func NewGamification(rules *Rules, loc *time.Location) *Gamification {
	if loc == nil {
		loc = time.Local
	}
	ledger := NewLedger(rules)
	return &Gamification{
		Rules:    rules,
		Ledger:   ledger,
		Streak:   NewStreakTracker(ledger, loc),
		Badges:   NewBadgeEvaluator(rules),
		Ranker:   NewRanker(rules),
		Location: loc,
	}
}
