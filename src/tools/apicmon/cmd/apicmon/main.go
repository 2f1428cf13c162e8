package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	tty "github.com/mattn/go-tty"
	"golang.org/x/term"

	"interrupts/src/lib/platform"
	"interrupts/src/lib/trust"
	"interrupts/src/tools/apicmon"
)

var planFile = flag.String("c", "", "platform plan (yaml); defaults are used if empty")
var device = flag.String("p", "", "serial device to talk on instead of the terminal")
var level = flag.String("v", "error,warn,info", "log levels: comma separated list of error, warn, info, debug, stats")
var quiet = flag.Bool("q", false, "no prompt")

func parseLevel(s string) (trust.MaskLevel, error) {
	var mask trust.MaskLevel
	for _, name := range strings.Split(s, ",") {
		switch strings.TrimSpace(name) {
		case "error":
			mask |= trust.ErrorMask
		case "warn":
			mask |= trust.WarnMask
		case "info":
			mask |= trust.InfoMask
		case "debug":
			mask |= trust.DebugMask
		case "stats":
			mask |= trust.StatsMask
		case "":
		default:
			return 0, fmt.Errorf("unknown log level %q", name)
		}
	}
	return mask, nil
}

func main() {
	flag.Parse()
	mask, err := parseLevel(*level)
	if err != nil {
		trust.Fatalf(2, "%v", err)
	}
	trust.SetLevel(mask)

	plan := platform.Default()
	if *planFile != "" {
		plan, err = platform.LoadFile(*planFile)
		if err != nil {
			trust.Fatalf(1, "%v", err)
		}
	}

	var lines apicmon.LineReader
	out := os.Stdout
	switch {
	case *device != "":
		t, err := tty.OpenDevice(*device)
		if err != nil {
			trust.Fatalf(1, "%s: %v", *device, err)
		}
		defer t.Close()
		lines, out = t, t.Output()
	case term.IsTerminal(int(os.Stdin.Fd())):
		t, err := tty.Open()
		if err != nil {
			trust.Fatalf(1, "opening terminal: %v", err)
		}
		defer t.Close()
		lines = t
	default:
		lines = apicmon.NewScanner(os.Stdin)
		*quiet = true
	}
	if *device == "" && !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}

	m, err := apicmon.New(plan, out, trust.Default)
	if err != nil {
		trust.Fatalf(1, "%v", err)
	}
	var prompt func()
	if !*quiet {
		prompt = func() { fmt.Fprint(out, "apic> ") }
	}
	if err := m.Run(lines, prompt); err != nil {
		trust.Errorf("%v", err)
	}
}
