package feed

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xraas_nd/internal/ndalert"
)

func TestParseReading(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		payload    string
		wantSource string
		wantValue  uint32
		wantTime   time.Time
		wantErr    bool
	}{
		{name: "decimal", payload: "65", wantSource: "sim", wantValue: 0x41, wantTime: now},
		{name: "hex", payload: " 0x00142348\n", wantSource: "sim", wantValue: 0x00142348, wantTime: now},
		{name: "negative int dataref", payload: "-1", wantSource: "sim", wantValue: 0xFFFFFFFF, wantTime: now},
		{
			name:       "json",
			payload:    `{"source":"N123AB","value":73,"timestamp":"2024-05-01T12:00:05Z"}`,
			wantSource: "N123AB",
			wantValue:  0x49,
			wantTime:   now.Add(5 * time.Second),
		},
		{name: "json hex string", payload: `{"value":"0x0014E349"}`, wantSource: "sim", wantValue: 0x0014E349, wantTime: now},
		{name: "empty", payload: "  ", wantErr: true},
		{name: "garbage", payload: "FLAPS", wantErr: true},
		{name: "too large", payload: "4294967296", wantErr: true},
		{name: "json without value", payload: `{"source":"x"}`, wantErr: true},
		{name: "bad timestamp", payload: `{"value":1,"timestamp":"yesterday"}`, wantErr: true},
		{name: "broken json", payload: `{"value":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseReading([]byte(tt.payload), "sim", now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, r.Source)
			assert.Equal(t, tt.wantValue, r.Value)
			assert.True(t, tt.wantTime.Equal(r.Received), "received %v, want %v", r.Received, tt.wantTime)
		})
	}
}

func TestHandleMessage(t *testing.T) {
	log := logrus.New()
	log.Out = io.Discard

	type seen struct {
		source string
		text   string
		ok     bool
	}
	var got []seen
	handler := func(_ context.Context, r Reading, a ndalert.Alert, ok bool) {
		got = append(got, seen{r.Source, a.Text, ok})
	}

	s := NewSubscriber(Config{}, handler, logrus.NewEntry(log))
	ctx := context.Background()

	s.HandleMessage(ctx, []byte("0x41"))
	s.HandleMessage(ctx, []byte(`{"source":"N1","value":"0x00086348"}`))
	s.HandleMessage(ctx, []byte("0"))
	s.HandleMessage(ctx, []byte("not a number"))

	assert.Equal(t, []seen{
		{DefaultSubject, "FLAPS", true},
		{"N1", "APP 35R 08", true},
		{DefaultSubject, "", false},
	}, got)

	assert.Equal(t, Stats{Received: 4, Decoded: 2, Idle: 1, Malformed: 1}, s.Stats())
}

func TestCallbackOutlivesCancel(t *testing.T) {
	log := logrus.New()
	log.Out = io.Discard

	var handlerErr error
	var calls int
	handler := func(ctx context.Context, _ Reading, _ ndalert.Alert, _ bool) {
		calls++
		handlerErr = ctx.Err()
	}

	s := NewSubscriber(Config{}, handler, logrus.NewEntry(log))

	ctx, cancel := context.WithCancel(context.Background())
	cb := s.callback(ctx)
	cancel()

	// A message delivered while draining.
	cb(&nats.Msg{Subject: DefaultSubject, Data: []byte("0x41")})

	require.Equal(t, 1, calls)
	assert.NoError(t, handlerErr)
	assert.Equal(t, 10*time.Second, s.drainTimeout())
}
