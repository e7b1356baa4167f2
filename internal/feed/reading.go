// Package feed receives raw ND alert bus values from NATS.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"xraas_nd/internal/ndalert"
)

// Reading is one bus value as published by a simulator bridge.
type Reading struct {
	Source   string    `json:"source"`
	Value    uint32    `json:"value"`
	Received time.Time `json:"timestamp"`
}

// wireReading is the JSON payload. Value is a number so that negative
// values from a signed int dataref can be accepted.
type wireReading struct {
	Source    string          `json:"source"`
	Value     json.RawMessage `json:"value"`
	Timestamp string          `json:"timestamp"`
}

// ErrEmptyPayload is returned for messages without data.
var ErrEmptyPayload = errors.New("empty payload")

// ParseReading decodes a feed payload. Accepted forms are a bare integer
// ("65", "0x41", "-1") or a JSON object with source, value and an optional
// RFC3339 timestamp. defaultSource is used when the payload names none
// and now when it carries no timestamp.
func ParseReading(data []byte, defaultSource string, now time.Time) (Reading, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Reading{}, ErrEmptyPayload
	}

	r := Reading{Source: defaultSource, Received: now}

	if data[0] != '{' {
		v, err := ndalert.ParseValue(string(data))
		if err != nil {
			return Reading{}, err
		}
		r.Value = v
		return r, nil
	}

	var w wireReading
	if err := json.Unmarshal(data, &w); err != nil {
		return Reading{}, fmt.Errorf("decode payload: %w", err)
	}
	if len(w.Value) == 0 {
		return Reading{}, errors.New("payload has no value")
	}
	// Strings allow hex values in JSON payloads.
	raw := strings.Trim(string(w.Value), `"`)
	v, err := ndalert.ParseValue(raw)
	if err != nil {
		return Reading{}, err
	}
	r.Value = v

	if w.Source != "" {
		r.Source = w.Source
	}
	if w.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
		if err != nil {
			return Reading{}, fmt.Errorf("parse timestamp: %w", err)
		}
		r.Received = ts
	}
	return r, nil
}
