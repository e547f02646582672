package progress

import (
	"sort"
	"time"

	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/utils"
)

// ComputeStreak walks the records in logical-day order. A record whose day is
// exactly one past the previous record's day extends the running counter; any
// other step, a repeated day included, resets it to 1. The current streak is the
// counter at the last record completed today or yesterday (calendar dates in
// loc), else 0. longestCandidate is the largest counter value seen.
func ComputeStreak(records []models.CompletionRecord, now time.Time, loc *time.Location) (current, longestCandidate int) {
	if len(records) == 0 {
		return 0, 0
	}

	sorted := make([]models.CompletionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Day < sorted[j].Day
	})

	yesterday := now.AddDate(0, 0, -1)
	counter := 0
	for i, r := range sorted {
		if i > 0 && r.Day == sorted[i-1].Day+1 {
			counter++
		} else {
			counter = 1
		}
		if counter > longestCandidate {
			longestCandidate = counter
		}
		if utils.SameDate(r.CompletedAt, now, loc) || utils.SameDate(r.CompletedAt, yesterday, loc) {
			current = counter
		}
	}
	return current, longestCandidate
}
