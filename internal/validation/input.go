package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/julianstephens/habitrun/internal/constants"
	apperrors "github.com/julianstephens/habitrun/internal/errors"
)

// Completion carries the caller-supplied fields of a task completion.
// Nil pointers mean "not supplied".
type Completion struct {
	Day            int
	TaskID         string
	CompletionTime *int
	Notes          *string
	Rating         *int
}

// ValidateIDs rejects blank user or habit ids.
func ValidateIDs(op, userID, habitID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.InvalidInput(op, "user id is required")
	}
	if strings.TrimSpace(habitID) == "" {
		return apperrors.InvalidInput(op, "habit id is required")
	}
	return nil
}

// ValidateDay rejects logical days outside the program bounds.
func ValidateDay(op string, day int) error {
	if day < constants.MinProgramDay || day > constants.MaxProgramDay {
		return apperrors.InvalidInput(op, "day %d is outside %d-%d", day, constants.MinProgramDay, constants.MaxProgramDay)
	}
	return nil
}

// ValidateProgress rejects percentages outside 0-100.
func ValidateProgress(op string, progress int) error {
	if progress < constants.MinProgress || progress > constants.MaxProgress {
		return apperrors.InvalidInput(op, "progress %d is outside %d-%d", progress, constants.MinProgress, constants.MaxProgress)
	}
	return nil
}

// ValidateCompletion checks the bounds of every supplied field.
func ValidateCompletion(op string, c Completion) error {
	if err := ValidateDay(op, c.Day); err != nil {
		return err
	}
	if c.Rating != nil && (*c.Rating < constants.MinRating || *c.Rating > constants.MaxRating) {
		return apperrors.InvalidInput(op, "rating %d is outside %d-%d", *c.Rating, constants.MinRating, constants.MaxRating)
	}
	if c.CompletionTime != nil && *c.CompletionTime < 0 {
		return apperrors.InvalidInput(op, "completion time cannot be negative")
	}
	if c.Notes != nil && utf8.RuneCountInString(*c.Notes) > constants.MaxNotesLength {
		return apperrors.InvalidInput(op, "notes exceed %d characters", constants.MaxNotesLength)
	}
	return nil
}
