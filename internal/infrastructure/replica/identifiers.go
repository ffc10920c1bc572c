package replica

import (
	"regexp"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_$]{1,64}$`)

// ValidateIdentifier rejects anything that is not a plain MySQL table or
// column name.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return apperrors.Validation(apperrors.CodeInvalidIdentifier, "invalid identifier").
			WithResource(name).
			Build()
	}
	return nil
}

// QuoteIdentifier validates name and wraps it in backticks.
func QuoteIdentifier(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	return "`" + name + "`", nil
}
