package services

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ActivityKind names an event that moves a student's points.
type ActivityKind string

const (
	BorrowBook     ActivityKind = "BORROW_BOOK"
	ReturnOnTime   ActivityKind = "RETURN_ON_TIME"
	ReturnEarly    ActivityKind = "RETURN_EARLY"
	WriteReview    ActivityKind = "WRITE_REVIEW"
	CompleteBook   ActivityKind = "COMPLETE_BOOK"
	MaintainStreak ActivityKind = "MAINTAIN_STREAK"
	LateReturn     ActivityKind = "LATE_RETURN"
)

// ActivityKinds lists every kind a points table must price.
var ActivityKinds = []ActivityKind{
	BorrowBook, ReturnOnTime, ReturnEarly, WriteReview, CompleteBook, MaintainStreak, LateReturn,
}

// Badge ids
const (
	BadgeFirstBook      = "first-book"
	BadgeSpeedReader    = "speed-reader"
	BadgeGenreExplorer  = "genre-explorer"
	BadgeReviewMaster   = "review-master"
	BadgeOnTimeReturner = "on-time-returner"
	BadgeBookworm       = "bookworm"
	BadgeEarlyBird      = "early-bird"
	BadgeNightOwl       = "night-owl"
)

// BadgeInfo is the display data of a badge.
type BadgeInfo struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// BadgeThresholds are the counts each ruled badge needs.
type BadgeThresholds struct {
	Bookworm       int `yaml:"bookworm"`
	SpeedReader    int `yaml:"speedReader"`
	GenreExplorer  int `yaml:"genreExplorer"`
	ReviewMaster   int `yaml:"reviewMaster"`
	OnTimeReturner int `yaml:"onTimeReturner"`
}

// TrendingRule marks a book trending when both counters exceed their minimum.
type TrendingRule struct {
	TotalBorrowsAbove      int `yaml:"totalBorrowsAbove"`
	CurrentlyBorrowedAbove int `yaml:"currentlyBorrowedAbove"`
}

// RecommendationRules tune the bucketed ranker.
type RecommendationRules struct {
	AffinityShare        float64 `yaml:"affinityShare"`
	PopularityShare      float64 `yaml:"popularityShare"`
	QualityMinRating     float64 `yaml:"qualityMinRating"`
	TopCategories        int     `yaml:"topCategories"`
	PopularReasonBorrows int     `yaml:"popularReasonBorrows"`
	HighlyRatedReason    float64 `yaml:"highlyRatedReason"`
}

// Rules is the gamification and lending configuration shared by the services.
type Rules struct {
	Points          map[ActivityKind]int `yaml:"points"`
	LevelThresholds []int                `yaml:"levelThresholds"`
	Badges          map[string]BadgeInfo `yaml:"badges"`
	BadgeThresholds BadgeThresholds      `yaml:"badgeThresholds"`
	LoanDays        int                  `yaml:"loanDays"`
	EarlyReturnDays int                  `yaml:"earlyReturnDays"`
	// AwardReviews grants WRITE_REVIEW for the first review on a loan.
	AwardReviews    bool                 `yaml:"awardReviews"`
	Trending        TrendingRule         `yaml:"trending"`
	Recommendation  RecommendationRules  `yaml:"recommendation"`
}

// DefaultRules returns the built in tables.
func DefaultRules() *Rules {
	return &Rules{
		Points: map[ActivityKind]int{
			BorrowBook:     10,
			ReturnOnTime:   20,
			ReturnEarly:    30,
			WriteReview:    15,
			CompleteBook:   25,
			MaintainStreak: 5,
			LateReturn:     -10,
		},
		LevelThresholds: []int{0, 100, 250, 500, 1000, 2000, 3500, 5000, 7500, 10000},
		Badges: map[string]BadgeInfo{
			BadgeFirstBook:      {Name: "📚 First Book", Description: "Borrowed your first book"},
			BadgeSpeedReader:    {Name: "⚡ Speed Reader", Description: "Read 5 books in a month"},
			BadgeGenreExplorer:  {Name: "🌍 Genre Explorer", Description: "Read books from 5 different genres"},
			BadgeReviewMaster:   {Name: "✍️ Review Master", Description: "Written 10 reviews"},
			BadgeOnTimeReturner: {Name: "⏰ On-Time Champion", Description: "Returned 10 books on time"},
			BadgeBookworm:       {Name: "🐛 Bookworm", Description: "Read 50 books total"},
			BadgeEarlyBird:      {Name: "🌅 Early Bird", Description: "Borrow books before 10 AM"},
			BadgeNightOwl:       {Name: "🦉 Night Owl", Description: "Return books after 8 PM"},
		},
		BadgeThresholds: BadgeThresholds{
			Bookworm:       50,
			SpeedReader:    5,
			GenreExplorer:  5,
			ReviewMaster:   10,
			OnTimeReturner: 10,
		},
		LoanDays:        14,
		EarlyReturnDays: 3,
		AwardReviews:    true,
		Trending: TrendingRule{
			TotalBorrowsAbove:      20,
			CurrentlyBorrowedAbove: 2,
		},
		Recommendation: RecommendationRules{
			AffinityShare:        0.6,
			PopularityShare:      0.75,
			QualityMinRating:     4.0,
			TopCategories:        3,
			PopularReasonBorrows: 50,
			HighlyRatedReason:    4.5,
		},
	}
}

// LoadRules overlays the YAML file at path on the defaults. An empty path
// yields the defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rules, nil
}

// ruledBadges are the badges the evaluator can unlock.
var ruledBadges = []string{
	BadgeFirstBook, BadgeBookworm, BadgeSpeedReader, BadgeGenreExplorer, BadgeReviewMaster, BadgeOnTimeReturner,
}

// Validate rejects tables the services cannot apply.
func (r *Rules) Validate() error {
	var errs []error

	known := make(map[ActivityKind]bool, len(ActivityKinds))
	for _, kind := range ActivityKinds {
		known[kind] = true
		if _, ok := r.Points[kind]; !ok {
			errs = append(errs, fmt.Errorf("points: missing activity %s", kind))
		}
	}
	unknown := make([]string, 0)
	for kind := range r.Points {
		if !known[kind] {
			unknown = append(unknown, string(kind))
		}
	}
	sort.Strings(unknown)
	for _, kind := range unknown {
		errs = append(errs, fmt.Errorf("points: unknown activity %s", kind))
	}

	if len(r.LevelThresholds) == 0 || r.LevelThresholds[0] != 0 {
		errs = append(errs, errors.New("levelThresholds: must start at 0"))
	}
	for i := 1; i < len(r.LevelThresholds); i++ {
		if r.LevelThresholds[i] <= r.LevelThresholds[i-1] {
			errs = append(errs, fmt.Errorf("levelThresholds: not strictly ascending at index %d", i))
			break
		}
	}

	for _, id := range ruledBadges {
		if _, ok := r.Badges[id]; !ok {
			errs = append(errs, fmt.Errorf("badges: missing catalog entry %s", id))
		}
	}

	if r.LoanDays <= 0 {
		errs = append(errs, errors.New("loanDays: must be positive"))
	}
	if r.EarlyReturnDays < 0 {
		errs = append(errs, errors.New("earlyReturnDays: must not be negative"))
	}

	rec := r.Recommendation
	if rec.AffinityShare < 0 || rec.AffinityShare > 1 {
		errs = append(errs, errors.New("recommendation.affinityShare: must be within [0,1]"))
	}
	if rec.PopularityShare < 0 || rec.PopularityShare > 1 {
		errs = append(errs, errors.New("recommendation.popularityShare: must be within [0,1]"))
	}
	if rec.TopCategories <= 0 {
		errs = append(errs, errors.New("recommendation.topCategories: must be positive"))
	}

	return errors.Join(errs...)
}

// Level is the 1-based index of the highest threshold points reach.
func (r *Rules) Level(points int) int {
	for i := len(r.LevelThresholds) - 1; i >= 0; i-- {
		if points >= r.LevelThresholds[i] {
			return i + 1
		}
	}
	return 1
}

// IsTrending applies the trending rule to a book's counters.
func (r *Rules) IsTrending(totalBorrows, currentlyBorrowed int) bool {
	return totalBorrows > r.Trending.TotalBorrowsAbove && currentlyBorrowed > r.Trending.CurrentlyBorrowedAbove
}
