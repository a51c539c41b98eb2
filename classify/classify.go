// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package classify recognises visitor codes and email addresses.
package classify

import (
	"regexp"
	"strings"
)

// Kind is the category of a visitor identifier
type Kind string

const (
	KindCode    Kind = "code"
	KindEmail   Kind = "email"
	KindUnknown Kind = "unknown"
)

var (
	visitorCodePattern = regexp.MustCompile(`(?i)^VK-\d+$`)
	emailPattern       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Identifier is a classified, normalized visitor identifier
type Identifier struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// Submittable reports whether the identifier may be sent to the backend
func (id Identifier) Submittable() bool {
	return id.Kind == KindCode || id.Kind == KindEmail
}

// IsVisitorCode reports whether s is a VK-<digits> code (case insensitive)
func IsVisitorCode(s string) bool {
	return visitorCodePattern.MatchString(strings.TrimSpace(s))
}

// IsEmail reports whether s looks like local@domain.tld
func IsEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// Classify identifies raw input as a visitor code, an email, or unknown.
// Codes are uppercased, emails lowercased, unknown input is only trimmed.
// The code check runs first.
func Classify(raw string) Identifier {
	trimmed := strings.TrimSpace(raw)

	if IsVisitorCode(trimmed) {
		return Identifier{Kind: KindCode, Value: strings.ToUpper(trimmed)}
	}

	if IsEmail(trimmed) {
		return Identifier{Kind: KindEmail, Value: strings.ToLower(trimmed)}
	}

	return Identifier{Kind: KindUnknown, Value: trimmed}
}

// ClassifyAny classifies a decoded JSON value; anything that is not a
// string is unknown.
func ClassifyAny(v any) Identifier {
	s, ok := v.(string)
	if !ok {
		return Identifier{Kind: KindUnknown}
	}
	return Classify(s)
}
