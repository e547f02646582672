package models

// BreakdownCounts tallies enrollments of one category or difficulty by status.
type BreakdownCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	GivenUp   int `json:"given_up"`
}

// AggregateStats summarizes every enrollment a user has ever had.
type AggregateStats struct {
	TotalHabits          int                        `json:"total_habits"`
	TotalActiveHabits    int                        `json:"total_active_habits"`
	TotalCompletedHabits int                        `json:"total_completed_habits"`
	TotalGivenUpHabits   int                        `json:"total_given_up_habits"`
	TotalCompletedTasks  int                        `json:"total_completed_tasks"`
	TotalStreak          int                        `json:"total_streak"`
	LongestStreak        int                        `json:"longest_streak"`
	AverageProgress      int                        `json:"average_progress"`
	CompletionRate       int                        `json:"completion_rate"`
	RecentCompletions    int                        `json:"recent_completions"`
	MonthlyCompletions   int                        `json:"monthly_completions"`
	RewardUnits          int                        `json:"reward_units"`
	Categories           map[string]BreakdownCounts `json:"categories"`
	Difficulties         map[string]BreakdownCounts `json:"difficulties"`
}
