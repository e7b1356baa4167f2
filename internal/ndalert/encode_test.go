package ndalert

import "testing"

func TestEncode(t *testing.T) {
	metric := EncodeOptions{Enabled: true, Filter: Routine}
	imperial := DefaultEncodeOptions()

	tests := []struct {
		name     string
		req      Request
		opts     EncodeOptions
		want     uint32
		wantText string
	}{
		{
			name:     "routine flaps is green",
			req:      Request{Type: Flaps, Level: Routine, Distance: -1},
			opts:     metric,
			want:     0x00000001,
			wantText: "FLAPS",
		},
		{
			name:     "caution flaps is amber",
			req:      Request{Type: Flaps, Level: Caution, Distance: -1},
			opts:     metric,
			want:     0x00000041,
			wantText: "FLAPS",
		},
		{
			name:     "approach with metric length",
			req:      Request{Type: Approaching, Level: NonRoutine, Runway: "35", Distance: 2000},
			opts:     metric,
			want:     0x00142348,
			wantText: "APP 35 20",
		},
		{
			name:     "on runway with imperial length",
			req:      Request{Type: OnRunway, Level: Routine, Runway: "35R", Distance: 1000},
			opts:     imperial,
			want:     0x00206309,
			wantText: "ON 35R 32",
		},
		{
			name:     "lower case suffix",
			req:      Request{Type: Approaching, Level: Routine, Runway: "27c", Distance: -1},
			opts:     metric,
			want:     0x0000DB08,
			wantText: "APP 27C",
		},
		{
			name:     "zero distance omits length",
			req:      Request{Type: Approaching, Level: Routine, Runway: "09L", Distance: 0},
			opts:     metric,
			want:     0x00008908,
			wantText: "APP 09L",
		},
		{
			name:     "taxiway designator",
			req:      Request{Type: OnRunway, Level: Caution, Runway: "00", Distance: 1500},
			opts:     metric,
			want:     0x000F0049,
			wantText: "ON TAXIWAY",
		},
		{
			name:     "multiple runways",
			req:      Request{Type: Approaching, Level: Routine, Runway: "37", Distance: -1},
			opts:     metric,
			want:     0x00002508,
			wantText: "APP RWYS",
		},
		{
			name:     "length wraps at 8 bits",
			req:      Request{Type: Approaching, Level: Routine, Runway: "01", Distance: 30000},
			opts:     metric,
			want:     0x002C0108,
			wantText: "APP 01 44",
		},
		{
			name:     "runway ignored on fixed message",
			req:      Request{Type: LongLanding, Level: NonRoutine, Runway: "18", Distance: 800},
			opts:     metric,
			want:     0x0008124A,
			wantText: "LONG LANDING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Encode(tt.req, tt.opts)
			if !ok {
				t.Fatalf("Encode(%+v) suppressed", tt.req)
			}
			if got != tt.want {
				t.Errorf("Encode(%+v) = 0x%08x, want 0x%08x", tt.req, got, tt.want)
			}
			alert, ok := Decode(got)
			if !ok {
				t.Fatalf("Decode(0x%08x) failed", got)
			}
			if alert.Text != tt.wantText {
				t.Errorf("Decode(Encode()) = %q, want %q", alert.Text, tt.wantText)
			}
		})
	}
}

func TestEncodeSuppressed(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		opts EncodeOptions
	}{
		{"unknown type", Request{Type: 12, Distance: -1}, DefaultEncodeOptions()},
		{"zero type", Request{Type: 0, Distance: -1}, DefaultEncodeOptions()},
		{"disabled", Request{Type: Flaps, Level: Caution, Distance: -1}, EncodeOptions{Enabled: false}},
		{"below filter", Request{Type: Flaps, Level: Routine, Distance: -1}, EncodeOptions{Enabled: true, Filter: NonRoutine}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v, ok := Encode(tt.req, tt.opts); ok {
				t.Errorf("Encode(%+v) = 0x%08x, want suppressed", tt.req, v)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, l := range []Level{Routine, NonRoutine, Caution} {
		got, err := ParseLevel(l.String())
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", l.String(), err)
		}
		if got != l {
			t.Errorf("ParseLevel(%q) = %v, want %v", l.String(), got, l)
		}
	}
	if _, err := ParseLevel("urgent"); err == nil {
		t.Error("expected error for unknown level")
	}
}
