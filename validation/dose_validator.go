// Package validation provides input validation for the doselog API.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/doselog/interfaces"
)

const (
	MaxDoseTextLength  = 128
	MaxSubstanceLength = 64
	MaxBatchSize       = 100
	MaxLast            = 10000
	MinYear            = 1900
	MaxYear            = 9999
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// User names double as file names in the JSON store
	userNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

	// Dose strings: letters, digits, whitespace, decimal point, hyphen and the verb prefix
	doseTextRegex = regexp.MustCompile(`^[a-zA-Z0-9\s.@-]+$`)

	substanceRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*$`)
)

// DoseValidatorImpl implements the interfaces.DoseValidator interface
type DoseValidatorImpl struct{}

// NewDoseValidator creates a new dose validator
func NewDoseValidator() interfaces.DoseValidator {
	return &DoseValidatorImpl{}
}

// ValidateUserName checks a user name taken from the URL
func (v *DoseValidatorImpl) ValidateUserName(name string) error {
	if name == "" {
		return fmt.Errorf("user name cannot be empty")
	}
	if !userNameRegex.MatchString(name) {
		return fmt.Errorf("invalid user name. Use 1-64 lower-case letters, digits, '_' or '-', starting with a letter or digit")
	}
	return nil
}

// ValidateDoseText checks a free-text dose before parsing. Grammar errors are
// left to the parser.
func (v *DoseValidatorImpl) ValidateDoseText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("dose text cannot be empty")
	}

	if len(text) > MaxDoseTextLength {
		return fmt.Errorf("dose text too long: maximum %d characters", MaxDoseTextLength)
	}

	if !doseTextRegex.MatchString(text) {
		return fmt.Errorf("dose text contains invalid characters. Only letters, numbers, spaces, '.', '-' and '@' are allowed")
	}

	if v.hasExcessiveRepetition(text) {
		return fmt.Errorf("dose text contains excessive character repetition")
	}

	return nil
}

// ValidateSubstance checks an explicitly given substance name
func (v *DoseValidatorImpl) ValidateSubstance(substance string) error {
	if strings.TrimSpace(substance) == "" {
		return fmt.Errorf("substance cannot be empty")
	}
	if len(substance) > MaxSubstanceLength {
		return fmt.Errorf("substance too long: maximum %d characters", MaxSubstanceLength)
	}
	if !substanceRegex.MatchString(substance) {
		return fmt.Errorf("substance contains invalid characters. Only letters, numbers and hyphens are allowed")
	}
	return nil
}

// ValidateAmount requires a finite, positive amount
func (v *DoseValidatorImpl) ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("amount must be a finite number")
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got: %g", amount)
	}
	return nil
}

// ValidateYear parses a four digit year
func (v *DoseValidatorImpl) ValidateYear(input string) (int, error) {
	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return -1, fmt.Errorf("year cannot be empty")
	}

	// strconv.Atoi() validates that input contains only digits
	year, err := strconv.Atoi(trimmedInput)
	if err != nil {
		return -1, fmt.Errorf("year must be numeric")
	}

	if year < MinYear || year > MaxYear {
		return -1, fmt.Errorf("year must be between %d and %d", MinYear, MaxYear)
	}

	return year, nil
}

// ValidateDate accepts RFC3339 timestamps or plain dates (midnight UTC)
func (v *DoseValidatorImpl) ValidateDate(input string) (time.Time, error) {
	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return time.Time{}, fmt.Errorf("date cannot be empty")
	}

	if t, err := time.Parse(time.RFC3339, trimmedInput); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, trimmedInput); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("invalid date %q: use RFC3339 or YYYY-MM-DD", trimmedInput)
}

// ValidateLast parses the count for a Last filter. Zero is allowed and yields
// an empty view.
func (v *DoseValidatorImpl) ValidateLast(input string) (int, error) {
	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return -1, fmt.Errorf("last cannot be empty")
	}

	n, err := strconv.Atoi(trimmedInput)
	if err != nil {
		return -1, fmt.Errorf("last must be numeric")
	}

	if n < 0 || n > MaxLast {
		return -1, fmt.Errorf("last must be between 0 and %d", MaxLast)
	}

	return n, nil
}

// ValidateBatchSize bounds the number of dose strings in one request
func (v *DoseValidatorImpl) ValidateBatchSize(n int) error {
	if n == 0 {
		return fmt.Errorf("batch cannot be empty")
	}
	if n > MaxBatchSize {
		return fmt.Errorf("batch too large: maximum %d doses", MaxBatchSize)
	}
	return nil
}

// hasExcessiveRepetition checks for the same character repeated more than 10
// times consecutively
func (v *DoseValidatorImpl) hasExcessiveRepetition(input string) bool {
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
