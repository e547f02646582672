// Package progress derives streaks, completion percentage and completion
// detection from an enrollment's completion records. Nothing here performs I/O.
package progress

import (
	"time"

	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/models"
)

// Result is the derived state for one enrollment.
type Result struct {
	Streak             int
	LongestStreak      int
	ProgressPercentage int
	Completed          bool
}

// CurrentDay returns the 1-based logical program day: whole elapsed 24h periods
// since start, plus one. A start in the future still reports day 1.
func CurrentDay(start, now time.Time) int {
	if now.Before(start) {
		return 1
	}
	return int(now.Sub(start)/constants.Day) + 1
}

// Recompute derives streak, percentage and completion for e against the habit's
// current catalog tasks. e is not modified.
func Recompute(e models.Enrollment, tasks TaskSet, now time.Time, loc *time.Location) Result {
	current, longestCandidate := ComputeStreak(e.CompletedDays, now, loc)
	longest := e.LongestStreak
	if longestCandidate > longest {
		longest = longestCandidate
	}
	return Result{
		Streak:             current,
		LongestStreak:      longest,
		ProgressPercentage: ComputeProgressPercentage(e.CompletedDays, tasks, e.ProgressPercentage),
		Completed:          DetectCompletion(e.CompletedDays, tasks),
	}
}

// Apply copies the derived metrics onto e. Completion is left to the caller,
// which owns the terminal transition.
func (r Result) Apply(e *models.Enrollment) {
	e.Streak = r.Streak
	e.LongestStreak = r.LongestStreak
	e.ProgressPercentage = r.ProgressPercentage
}
