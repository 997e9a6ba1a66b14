package tasks

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxCategoryLength = 50

// MaxEstimateHours is the largest estimate the INTEGER column holds.
const MaxEstimateHours = math.MaxInt32

// Fields are the caller-editable parts of a task.
type Fields struct {
	Title         string
	IsDone        bool
	DueDate       *time.Time
	Category      string
	EstimateHours *int
}

// ValidationError names the first field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks title, then category, then estimate, and reports only
// the first problem. Values are not trimmed: "  x" is a valid title,
// a title of only spaces is not.
func Validate(f Fields) error {
	if strings.TrimSpace(f.Title) == "" {
		return &ValidationError{Field: "title", Message: "Title is required."}
	}
	if strings.TrimSpace(f.Category) == "" {
		return &ValidationError{Field: "category", Message: "Category is required."}
	}
	if utf8.RuneCountInString(f.Category) > MaxCategoryLength {
		return &ValidationError{Field: "category", Message: "Category must be 50 characters or fewer."}
	}
	if f.EstimateHours != nil && *f.EstimateHours < 0 {
		return &ValidationError{Field: "estimateHours", Message: "Estimate hours must be non-negative."}
	}
	if f.EstimateHours != nil && *f.EstimateHours > MaxEstimateHours {
		return &ValidationError{Field: "estimateHours", Message: "Estimate hours must be at most 2147483647."}
	}
	return nil
}
