// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scan

import (
	"encoding/json"
	"errors"

	"github.com/danielhkuo/scanpoint/classify"
)

var ErrDecodeUnparseable = errors.New("QR code does not carry a valid visitor code")

// Record is the structured content of a visitor QR code
type Record struct {
	VisitorCode string `json:"visitorCode"`
}

// Payload is one camera decode. Parsed is nil when the text is not a
// visitor record.
type Payload struct {
	RawText string  `json:"raw_text"`
	Parsed  *Record `json:"parsed,omitempty"`
}

// ParsePayload interprets decoded QR text as a visitor record
func ParsePayload(raw string) Payload {
	p := Payload{RawText: raw}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return p
	}
	field, ok := fields["visitorCode"]
	if !ok {
		return p
	}
	var code string
	if err := json.Unmarshal(field, &code); err != nil {
		return p
	}

	p.Parsed = &Record{VisitorCode: code}
	return p
}

// Resolve turns a payload into a submittable identifier. A missing record
// and a code that classifies as unknown both fail with ErrDecodeUnparseable.
func Resolve(p Payload) (classify.Identifier, error) {
	if p.Parsed == nil {
		return classify.Identifier{Kind: classify.KindUnknown}, ErrDecodeUnparseable
	}

	id := classify.Classify(p.Parsed.VisitorCode)
	if !id.Submittable() {
		return classify.Identifier{Kind: classify.KindUnknown}, ErrDecodeUnparseable
	}
	return id, nil
}
