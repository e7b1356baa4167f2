package ndalert

import (
	"strconv"
	"strings"
)

// metersToFeet is the conversion used for imperial runway lengths.
const metersToFeet = 3.2808398950131

// Request describes an alert as the publishing side raises it.
type Request struct {
	Type  MsgType
	Level Level

	// Runway is the runway designator, e.g. "07", "27L" or "00" for a
	// taxiway. "37" stands for multiple runways. Empty means no runway.
	Runway string

	// Distance is the runway length available in meters. Negative means
	// the length is not displayed.
	Distance int
}

// EncodeOptions mirror the publisher's ND alert settings.
type EncodeOptions struct {
	Enabled  bool  // ND alerts enabled at all
	Filter   Level // alerts below this level are suppressed
	Imperial bool  // report lengths in hundreds of feet instead of meters
}

// DefaultEncodeOptions returns the publisher's default settings.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		Enabled:  true,
		Filter:   Routine,
		Imperial: true,
	}
}

// Encode packs an alert request into a bus value. It returns false when
// the request would not be published: unknown message type, alerts
// disabled, or level below the configured filter.
//
// Any level above Routine is encoded as amber.
func Encode(req Request, opts EncodeOptions) (uint32, bool) {
	if !req.Type.Valid() || !opts.Enabled {
		return 0, false
	}
	if req.Level < opts.Filter {
		return 0, false
	}

	value := uint32(req.Type)
	if req.Level > Routine {
		value |= amberFlag
	}

	if req.Runway != "" {
		num, suffix := splitRunway(req.Runway)
		value |= (uint32(num) & rwyIDMask) << rwyIDShift
		value |= uint32(suffix) << suffixShift
	}

	if req.Distance >= 0 {
		var hundreds int
		if opts.Imperial {
			hundreds = int(float64(req.Distance)*metersToFeet) / 100
		} else {
			hundreds = req.Distance / 100
		}
		value |= (uint32(hundreds) & rwyLenMask) << rwyLenShift
	}

	return value, true
}

// splitRunway returns the numeric part of a runway designator and its
// suffix code. A designator without leading digits yields 0 (taxiway).
// The suffix is only read from three-character designators.
func splitRunway(rwy string) (int, uint8) {
	end := 0
	for end < len(rwy) && rwy[end] >= '0' && rwy[end] <= '9' {
		end++
	}
	num, _ := strconv.Atoi(rwy[:end])

	var suffix uint8
	if len(rwy) == 3 {
		switch strings.ToUpper(rwy[2:]) {
		case "R":
			suffix = 1
		case "L":
			suffix = 2
		case "C":
			suffix = 3
		}
	}
	return num, suffix
}
