// Command-line entry point for the ND alert decoder.
//
// The runway awareness plugin publishes its navigation display messages as
// a packed integer on the sim/multiplayer/position/plane19_taxi_light_on
// dataref. This tool decodes such values, prints the reference sample
// table, encodes alerts for testing, and can follow a live feed of values
// published on NATS.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "ndalert - ND alert message bus decoder - commands:")
	fmt.Fprintln(w, "  sample  - decode the reference sample values and print the table")
	fmt.Fprintln(w, "  decode  - decode values given as arguments or on stdin")
	fmt.Fprintln(w, "  encode  - encode an alert into a bus value")
	fmt.Fprintln(w, "  listen  - decode values from a NATS subject and record them")
	fmt.Fprintln(w, "  serve   - run the REST API over the local alert log")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ndalert sample")
	fmt.Fprintln(w, "  ndalert decode [-json] [-pretty] [VALUE...]")
	fmt.Fprintln(w, "  ndalert encode -type N [-level routine|non-routine|caution] [-runway 27L] [-distance M] [-metric]")
	fmt.Fprintln(w, "  ndalert listen [-nats URL] [-subject S] [-db PATH] [-http-port N] ...")
	fmt.Fprintln(w, "  ndalert serve [-db PATH] [-port N] [-auth -api-keys K1,K2]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Values are decimal, 0x-prefixed hex, or negative (signed int dataref).")
	fmt.Fprintln(w, "  - Values that do not decode print nothing and set exit status 1.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	args := os.Args[2:]

	var code int
	switch cmd {
	case "sample":
		code = runSample(os.Stdout)
	case "decode":
		code = runDecode(args, os.Stdin, os.Stdout, os.Stderr)
	case "encode":
		code = runEncode(args, os.Stdout, os.Stderr)
	case "listen":
		code = runListen(args)
	case "serve":
		code = runServe(args)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		code = 2
	}
	os.Exit(code)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
