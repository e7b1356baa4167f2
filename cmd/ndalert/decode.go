package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"xraas_nd/internal/ndalert"
)

// writeSampleTable prints the sample table and returns the number of
// values that failed to decode.
func writeSampleTable(w io.Writer, values []uint32) int {
	fmt.Fprint(w, "RAW VALUE\tCOLOR\tMESSAGE\n"+
		"----------\t-----\t-------\n")

	failed := 0
	for _, v := range values {
		a, ok := ndalert.Decode(v)
		if !ok {
			failed++
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", ndalert.FormatValue(v), a.ColorName(), a.Text)
	}
	return failed
}

func runSample(stdout io.Writer) int {
	if failed := writeSampleTable(stdout, ndalert.SampleValues); failed > 0 {
		return 1
	}
	return 0
}

// DecodeOut is one line of JSON output.
type DecodeOut struct {
	Input   string         `json:"input"`
	Decoded bool           `json:"decoded"`
	Alert   *ndalert.Alert `json:"alert,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func runDecode(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "Print JSON instead of the table")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				inputs = append(inputs, line)
			}
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(stderr, "Input read error: %v\n", err)
			return 1
		}
	}

	out := make([]DecodeOut, 0, len(inputs))
	for _, in := range inputs {
		v, err := ndalert.ParseValue(in)
		if err != nil {
			out = append(out, DecodeOut{Input: in, Error: err.Error()})
			continue
		}
		a, ok := ndalert.Decode(v)
		if !ok {
			out = append(out, DecodeOut{Input: in, Error: ndalert.ErrUndecodable.Error()})
			continue
		}
		out = append(out, DecodeOut{Input: in, Decoded: true, Alert: &a})
	}

	code := 0
	for _, o := range out {
		if !o.Decoded {
			code = 1
		}
	}

	if *asJSON {
		enc, err := marshalJSON(out, *pretty)
		if err != nil {
			fmt.Fprintf(stderr, "JSON encode error: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(enc)
		_, _ = stdout.Write([]byte("\n"))
		return code
	}

	fmt.Fprint(stdout, "RAW VALUE\tCOLOR\tMESSAGE\n"+
		"----------\t-----\t-------\n")
	for _, o := range out {
		if !o.Decoded {
			fmt.Fprintf(stderr, "%s: %s\n", o.Input, o.Error)
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", ndalert.FormatValue(o.Alert.Raw), o.Alert.ColorName(), o.Alert.Text)
	}
	return code
}

func runEncode(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	msgType := fs.Int("type", 0, "Message type (1-11)")
	levelName := fs.String("level", "routine", "Alert level: routine, non-routine, caution")
	runway := fs.String("runway", "", "Runway designator, e.g. 27L (00 = taxiway, 37 = multiple)")
	distance := fs.Int("distance", -1, "Runway length available in meters (-1 = omit)")
	metric := fs.Bool("metric", false, "Report length in hundreds of meters instead of feet")
	filterName := fs.String("filter", "routine", "Suppress alerts below this level")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level, err := ndalert.ParseLevel(*levelName)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	filter, err := ndalert.ParseLevel(*filterName)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if *msgType < 0 || *msgType > 0x3f || !ndalert.MsgType(*msgType).Valid() {
		fmt.Fprintf(stderr, "Error: unknown message type %d\n", *msgType)
		return 2
	}

	opts := ndalert.DefaultEncodeOptions()
	opts.Imperial = !*metric
	opts.Filter = filter

	v, ok := ndalert.Encode(ndalert.Request{
		Type:     ndalert.MsgType(*msgType),
		Level:    level,
		Runway:   *runway,
		Distance: *distance,
	}, opts)
	if !ok {
		fmt.Fprintln(stderr, "Alert not published with these settings")
		return 1
	}

	a, _ := ndalert.Decode(v)
	fmt.Fprintf(stdout, "%s\t%d\t%s\t%s\n", ndalert.FormatValue(v), int32(v), a.ColorName(), a.Text)
	return 0
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
