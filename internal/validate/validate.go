// Package validate holds the pure per-field validators used by the entity
// transformers. Each validator takes a raw string and returns either the
// normalized value or an error describing why it was rejected. Malformed
// input is an expected outcome here, never a panic.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// UpperText strips and uppercases free text. Fails on empty after strip.
func UpperText(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	return strings.ToUpper(s), nil
}

// LowerText strips and lowercases free text. Fails on empty after strip.
func LowerText(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	return strings.ToLower(s), nil
}

// TitleText strips and title-cases person names. Fails on empty after strip.
func TitleText(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	return titleCaser.String(strings.ToLower(s)), nil
}

// Text strips free text without case-folding. Fails on empty after strip.
func Text(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	return s, nil
}

// domainRe matches label(.label)+ where every label is alphanumeric with
// inner hyphens and the final segment looks like a TLD.
var domainRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}$`)

// Domain strips, lowercases, and validates a domain name.
func Domain(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	if !domainRe.MatchString(s) {
		return "", fmt.Errorf("%q is not a valid domain", s)
	}
	return s, nil
}

var emailRe = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}$`)

// Email strips, lowercases, and validates a local@domain address.
func Email(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	if !emailRe.MatchString(s) {
		return "", fmt.Errorf("%q is not a valid email address", s)
	}
	return s, nil
}

// phoneSeparators are the characters allowed between digit groups in an
// international phone number.
const phoneSeparators = " -(). "

// Phone validates an international-format phone number (leading +, 7-15
// digits, optional separators) and normalizes it to "+<digits>". The caller
// decides whether an absent value is acceptable; Phone itself rejects empty.
func Phone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	if !strings.HasPrefix(s, "+") {
		return "", fmt.Errorf("%q must be in international format (leading +)", s)
	}
	var digits strings.Builder
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case strings.ContainsRune(phoneSeparators, r):
			// separator, dropped in the normalized form
		default:
			return "", fmt.Errorf("%q contains invalid character %q", s, r)
		}
	}
	n := digits.Len()
	if n < 7 || n > 15 {
		return "", fmt.Errorf("%q must contain 7-15 digits", s)
	}
	return "+" + digits.String(), nil
}

// Size validates a company size: a single integer, a "low-high" range with
// low <= high, or an open-ended "N+".
func Size(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}

	if strings.Contains(s, "+") {
		if !strings.HasSuffix(s, "+") || strings.Count(s, "+") != 1 {
			return "", fmt.Errorf("%q is not a valid size", s)
		}
		if _, err := strconv.Atoi(strings.TrimSuffix(s, "+")); err != nil {
			return "", fmt.Errorf("%q is not a valid size", s)
		}
		return s, nil
	}

	parts := strings.Split(s, "-")
	switch len(parts) {
	case 1:
		if _, err := strconv.Atoi(parts[0]); err != nil {
			return "", fmt.Errorf("%q is not a valid size", s)
		}
		return s, nil
	case 2:
		low, err := strconv.Atoi(parts[0])
		if err != nil {
			return "", fmt.Errorf("%q is not a valid size", s)
		}
		high, err := strconv.Atoi(parts[1])
		if err != nil {
			return "", fmt.Errorf("%q is not a valid size", s)
		}
		if low > high {
			return "", fmt.Errorf("%q lower bound exceeds upper bound", s)
		}
		return s, nil
	default:
		return "", fmt.Errorf("%q is not a valid size", s)
	}
}

// Money parses a non-negative numeric amount. When positive is set, zero is
// also rejected.
func Money(raw string, positive bool) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("must not be empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a valid number", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s cannot be negative", d)
	}
	if positive && d.IsZero() {
		return decimal.Zero, fmt.Errorf("must be greater than zero")
	}
	return d, nil
}

// Probability parses an integer percentage in [0, 100].
func Probability(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("must not be empty")
	}
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid integer", s)
	}
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("%d must be between 0 and 100", p)
	}
	return p, nil
}

// Duration parses a non-negative integer minute count.
func Duration(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("must not be empty")
	}
	d, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid integer", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%d cannot be negative", d)
	}
	return d, nil
}

// Bool parses a boolean flag. Accepts true/false, t/f, yes/no, y/n, 1/0
// in any case.
func Bool(raw string) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	case "":
		return false, fmt.Errorf("must not be empty")
	default:
		return false, fmt.Errorf("%q is not a valid boolean", s)
	}
}
