package ndalert

import "fmt"

// Field masks and shifts of the bus value.
const (
	typeMask     = 0x3f
	colorShift   = 6
	colorMask    = 0x3
	rwyIDShift   = 8
	rwyIDMask    = 0x3f
	suffixShift  = 14
	suffixMask   = 0x3
	rwyLenShift  = 16
	rwyLenMask   = 0xff
	amberFlag    = uint32(Amber) << colorShift
	rwyIDTaxiway = 0
	rwyIDMulti   = 37
)

// rwySuffixes maps the suffix code to its letter. Code 0 means no suffix.
var rwySuffixes = [4]string{"", "R", "L", "C"}

// fixedTexts holds the messages that carry no runway fields, indexed by
// message type. Empty entries are the runway messages and unused codes.
var fixedTexts = [...]string{
	Flaps:       "FLAPS",
	TooHigh:     "TOO HIGH",
	TooFast:     "TOO FAST",
	Unstable:    "UNSTABLE",
	Taxiway:     "TAXIWAY",
	ShortRunway: "SHORT RUNWAY",
	AltmSetting: "ALTM SETTING",
	LongLanding: "LONG LANDING",
	DeepLanding: "DEEP LANDING",
}

// Fields is the raw bit-field view of a bus value.
type Fields struct {
	Type         MsgType
	Color        Color
	RunwayID     uint8
	RunwaySuffix uint8
	RunwayLength uint8
}

// Unpack splits a bus value into its fields without interpreting them.
func Unpack(value uint32) Fields {
	return Fields{
		Type:         MsgType(value & typeMask),
		Color:        Color((value >> colorShift) & colorMask),
		RunwayID:     uint8((value >> rwyIDShift) & rwyIDMask),
		RunwaySuffix: uint8((value >> suffixShift) & suffixMask),
		RunwayLength: uint8((value >> rwyLenShift) & rwyLenMask),
	}
}

// Decode translates a bus value into the ND message text and its color.
// It returns false when the message type is not one of the known types,
// which callers treat as "display nothing". The color code is passed
// through unchanged, including the undefined values 2 and 3.
func Decode(value uint32) (Alert, bool) {
	f := Unpack(value)

	var text string
	switch {
	case f.Type.HasRunway():
		text = runwayText(f)
	case int(f.Type) < len(fixedTexts) && fixedTexts[f.Type] != "":
		text = fixedTexts[f.Type]
	default:
		return Alert{}, false
	}

	return Alert{
		Raw:   value,
		Type:  f.Type,
		Text:  text,
		Color: f.Color,
	}, true
}

// runwayText builds the composite APP/ON message.
func runwayText(f Fields) string {
	prefix := "APP"
	if f.Type == OnRunway {
		prefix = "ON"
	}

	switch {
	case f.RunwayID == rwyIDTaxiway:
		return prefix + " TAXIWAY"
	case f.RunwayID == rwyIDMulti:
		return prefix + " RWYS"
	case f.RunwayLength == 0:
		return fmt.Sprintf("%s %02d%s", prefix, f.RunwayID, rwySuffixes[f.RunwaySuffix])
	default:
		return fmt.Sprintf("%s %02d%s %02d", prefix, f.RunwayID, rwySuffixes[f.RunwaySuffix], f.RunwayLength)
	}
}

// SampleValues are the reference bus values of the sample table. Every
// one of them decodes.
var SampleValues = []uint32{
	0x00000041,
	0x00000042,
	0x00000043,
	0x00000044,
	0x00000045,
	0x00000046,
	0x00000047,
	0x00002308,
	0x00006308,
	0x00002508,
	0x00142348,
	0x00086348,
	0x00000049,
	0x00002309,
	0x00006309,
	0x00002509,
	0x0014E349,
	0x0008A349,
	0x0000004A,
}
