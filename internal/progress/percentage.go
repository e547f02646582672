package progress

import (
	"math"

	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/models"
)

// TaskSet holds the task ids a habit currently counts toward completion.
type TaskSet map[string]struct{}

func NewTaskSet(ids ...string) TaskSet {
	set := make(TaskSet, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// CompletedTaskCount counts distinct task ids in the records that belong to
// tasks. Records for tasks dropped from the catalog do not count.
func CompletedTaskCount(records []models.CompletionRecord, tasks TaskSet) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := tasks[r.TaskID]; !ok {
			continue
		}
		seen[r.TaskID] = struct{}{}
	}
	return len(seen)
}

// ComputeProgressPercentage returns round(100 * completed / len(tasks)), clamped
// to [0,100]. With no catalog tasks the previous value is kept.
func ComputeProgressPercentage(records []models.CompletionRecord, tasks TaskSet, previous int) int {
	if len(tasks) == 0 {
		return clampPercentage(previous)
	}
	done := CompletedTaskCount(records, tasks)
	pct := int(math.Round(100 * float64(done) / float64(len(tasks))))
	return clampPercentage(pct)
}

// DetectCompletion is true once every task in tasks has been completed at least once.
func DetectCompletion(records []models.CompletionRecord, tasks TaskSet) bool {
	return len(tasks) > 0 && CompletedTaskCount(records, tasks) == len(tasks)
}

func clampPercentage(pct int) int {
	switch {
	case pct < constants.MinProgress:
		return constants.MinProgress
	case pct > constants.MaxProgress:
		return constants.MaxProgress
	default:
		return pct
	}
}
