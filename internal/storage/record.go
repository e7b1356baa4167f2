// Package storage provides persistent storage for decoded ND alerts.
package storage

import (
	"context"
	"errors"
	"time"

	"xraas_nd/internal/ndalert"
)

// Record is one bus value as received from a source, with its decode result.
type Record struct {
	Source   string          `json:"source"`
	Raw      uint32          `json:"raw"`
	MsgType  ndalert.MsgType `json:"msg_type"`
	Color    ndalert.Color   `json:"color"`
	Text     string          `json:"text,omitempty"`
	Decoded  bool            `json:"decoded"`
	Received time.Time       `json:"received"`
}

// NewRecord builds a record from a decode result.
func NewRecord(source string, raw uint32, alert ndalert.Alert, ok bool, received time.Time) Record {
	r := Record{
		Source:   source,
		Raw:      raw,
		Decoded:  ok,
		Received: received.UTC(),
	}
	if ok {
		r.MsgType = alert.Type
		r.Color = alert.Color
		r.Text = alert.Text
	} else {
		// Keep the raw fields for undecodable values so they can be analysed.
		f := ndalert.Unpack(raw)
		r.MsgType = f.Type
		r.Color = f.Color
	}
	return r
}

// Sink accepts decoded records.
type Sink interface {
	Record(ctx context.Context, r Record) error
}

// Multi fans records out to several sinks. Every sink is tried; the
// errors are joined.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
