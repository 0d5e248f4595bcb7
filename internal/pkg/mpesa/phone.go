package mpesa

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid phone number")

var (
	// pushPhonePattern is what callers may submit: 07/01 local or 2547/2541.
	pushPhonePattern = regexp.MustCompile(`^(254|0)[17]\d{8}$`)
	canonicalPattern = regexp.MustCompile(`^254[17]\d{8}$`)
	phoneStripper    = strings.NewReplacer(" ", "", "-", "", "+", "", "(", "", ")", "")
)

// ValidatePushPhone checks the format accepted for a push payment request.
func ValidatePushPhone(raw string) bool {
	return pushPhonePattern.MatchString(phoneStripper.Replace(strings.TrimSpace(raw)))
}

// NormalizePhone rewrites a subscriber number into the 254XXXXXXXXX form the
// gateway expects. A leading 0 or a bare 7/1 subscriber number gets the
// country code.
func NormalizePhone(raw string) (string, error) {
	p := phoneStripper.Replace(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(p, "254"):
	case strings.HasPrefix(p, "0"):
		p = "254" + p[1:]
	case strings.HasPrefix(p, "7"), strings.HasPrefix(p, "1"):
		p = "254" + p
	}
	if !canonicalPattern.MatchString(p) {
		return "", ErrInvalidPhone
	}
	return p, nil
}
