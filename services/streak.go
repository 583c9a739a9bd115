package services

import (
	"time"

	"libraryhub_go/models"
)

// StreakUpdate reports what Touch changed.
type StreakUpdate struct {
	Streak  models.Streak
	Changed bool
	// Bonus is set when the streak is longer than one day.
	Bonus *Award
}

// StreakTracker counts consecutive calendar days of activity. Days are cut
// in the tracker's location.
type StreakTracker struct {
	ledger *Ledger
	loc    *time.Location
}

// NewStreakTracker creates a tracker awarding bonuses through ledger
func NewStreakTracker(ledger *Ledger, loc *time.Location) *StreakTracker {
	if loc == nil {
		loc = time.Local
	}
	return &StreakTracker{ledger: ledger, loc: loc}
}

// startOfDay truncates t to midnight in loc
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// dayNumber counts calendar days, immune to DST length changes
func dayNumber(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// Touch records activity at now. A same day touch changes nothing.
func (t *StreakTracker) Touch(s *models.Student, now time.Time) StreakUpdate {
	today := startOfDay(now, t.loc)
	st := &s.Streak

	if st.LastActiveDate != nil {
		gap := dayNumber(now, t.loc) - dayNumber(*st.LastActiveDate, t.loc)
		switch {
		case gap <= 0:
			return StreakUpdate{Streak: *st}
		case gap == 1:
			st.Current++
			if st.Current > st.Longest {
				st.Longest = st.Current
			}
		default:
			st.Current = 1
		}
	} else {
		st.Current = 1
		st.Longest = 1
	}
	st.LastActiveDate = &today

	update := StreakUpdate{Changed: true}
	if st.Current > 1 {
		award := t.ledger.Award(s, MaintainStreak, st.Current)
		update.Bonus = &award
	}
	update.Streak = *st
	return update
}
