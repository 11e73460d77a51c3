// Package phone validates and normalizes Ethiopian mobile numbers.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

const (
	CountryPrefix = "+251"
	TrunkPrefix   = "0"
)

// ErrInvalid is returned for numbers in neither accepted format.
var ErrInvalid = errors.New("invalid phone number")

var (
	internationalPattern = regexp.MustCompile(`^\+251\d{9}$`)
	localPattern         = regexp.MustCompile(`^09\d{8}$`)
	separators           = strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "", "-", "")
)

// Clean strips whitespace and dashes.
func Clean(raw string) string {
	return separators.Replace(raw)
}

// Normalize returns the number in +251XXXXXXXXX form. It accepts the
// international form (+251 followed by 9 digits) or the local form
// (09 followed by 8 digits), after removing whitespace and dashes.
func Normalize(raw string) (string, error) {
	cleaned := Clean(raw)
	switch {
	case internationalPattern.MatchString(cleaned):
		return cleaned, nil
	case localPattern.MatchString(cleaned):
		return CountryPrefix + strings.TrimPrefix(cleaned, TrunkPrefix), nil
	default:
		return "", ErrInvalid
	}
}

// Valid reports whether raw is in an accepted format.
func Valid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}

// FromContact normalizes a transport-shared contact number. Shared numbers are
// trusted; when they do not match an accepted format they are kept as given,
// with a leading plus added to bare international digits.
func FromContact(raw string) string {
	cleaned := Clean(raw)
	if normalized, err := Normalize(cleaned); err == nil {
		return normalized
	}
	if strings.HasPrefix(cleaned, "251") {
		if normalized, err := Normalize("+" + cleaned); err == nil {
			return normalized
		}
	}
	return strings.TrimSpace(raw)
}
