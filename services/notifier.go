package services

import "libraryhub_go/models"

// Notification event types pushed to connected students
const (
	EventBadgeUnlocked = "badge_unlocked"
	EventLevelUp       = "level_up"
	EventStreak        = "streak"
)

// Notifier delivers realtime events to one student. Delivery is best effort.
type Notifier interface {
	Notify(studentID, eventType string, data interface{})
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, interface{}) {}

// notifyProgress pushes badge, level and streak changes of one workflow
func notifyProgress(n Notifier, rules *Rules, s *models.Student, awards []Award, badges []string, streak *StreakUpdate) {
	for _, id := range badges {
		info := rules.Badges[id]
		n.Notify(s.ID, EventBadgeUnlocked, map[string]interface{}{
			"badge":       id,
			"name":        info.Name,
			"description": info.Description,
		})
	}
	for _, a := range awards {
		if a.LeveledUp {
			n.Notify(s.ID, EventLevelUp, map[string]interface{}{
				"level":       a.NewLevel,
				"totalPoints": a.TotalPoints,
			})
			break
		}
	}
	if streak != nil && streak.Changed {
		n.Notify(s.ID, EventStreak, streak.Streak)
	}
}
