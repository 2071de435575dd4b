// Package etag implements the validator tokens used for conditional
// catalogue requests. A token is the decimal version number of a
// snapshot; quoting and weak-validator prefixes used on the wire are
// stripped before comparison.
package etag

import (
	"strconv"
	"strings"
)

// FromVersion returns the validator token for a version number.
func FromVersion(version uint64) string {
	return strconv.FormatUint(version, 10)
}

// Normalize strips the transport conventions from a client-presented
// validator: surrounding whitespace, a weak-validator prefix ("W/")
// and surrounding double quotes. If the header carries a list of
// validators, only the first one is considered. The empty string means
// no usable validator was supplied.
func Normalize(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	// only the first member of an If-None-Match list is evaluated
	if comma := strings.Index(value, ","); comma >= 0 {
		value = strings.TrimSpace(value[:comma])
	}
	value = strings.TrimPrefix(value, "W/")
	value = strings.TrimPrefix(value, "w/")
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		value = value[1 : len(value)-1]
	}
	return value
}

// Match reports whether a client-presented validator identifies the
// given current token. A malformed or absent validator never matches;
// it is treated the same as no validator at all.
func Match(clientValidator, currentToken string) bool {
	normalized := Normalize(clientValidator)
	if normalized == "" {
		return false
	}
	if _, err := strconv.ParseUint(normalized, 10, 64); err != nil {
		return false
	}
	return normalized == currentToken
}
