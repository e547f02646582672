package constants

import "time"

// EnrollmentStatus represents the lifecycle state of a single enrollment
type EnrollmentStatus string

// Difficulty represents the difficulty band of a habit program
type Difficulty string

const (
	AppName            = "habitrun"
	DefaultKeyringUser = "database-connection"
	DefaultConfigDir   = "~/.config/habitrun"
	DefaultConfigPath  = "~/.config/habitrun/habitrun.db"
	DefaultConfigFile  = "~/.config/habitrun/config.yaml"
	Version            = "v0.1.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Day is the length of one logical program day
	Day = 24 * time.Hour

	// Program bounds
	MinProgramDay  = 1
	MaxProgramDay  = 365
	MinProgramWeek = 1
	MaxProgramWeek = 52
	MinRating      = 1
	MaxRating      = 5
	MaxNotesLength = 500
	MaxTitleLength = 200

	// Progress bounds
	MinProgress = 0
	MaxProgress = 100

	// Reward constants
	RewardUnitsPerCompletion = 1
	RewardUnitName           = "moonstone"

	// Write path constants
	MaxCommitAttempts = 5

	// Reward dispatch constants
	DefaultDispatchInterval    = 5 * time.Second
	DefaultDispatchBatchSize   = 50
	DefaultDispatchMaxAttempts = 10

	// Participants constants
	MaxParticipants = 20

	// Stats windows
	RecentCompletionsWindow  = 7 * Day
	MonthlyCompletionsWindow = 30 * Day

	// Roster constants
	RosterKeyPrefix = "habitrun:roster:"

	// Notify constants
	NotifyMaxRetries       = 3
	NotifyRetryDelay       = 100 * time.Millisecond
	NotifierLockfileName   = "habitrun-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.habitrun"
	TrayAppExecutable      = "habitrun-tray"

	// Enrollment statuses
	StatusNotStarted EnrollmentStatus = "not_started"
	StatusActive     EnrollmentStatus = "active"
	StatusCompleted  EnrollmentStatus = "completed"
	StatusAbandoned  EnrollmentStatus = "given_up"

	// Difficulty constants
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"

	// Fallback labels for stats breakdowns
	UnknownCategory   = "general"
	UnknownDifficulty = DifficultyBeginner
)
