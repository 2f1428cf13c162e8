package trust

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func captureLog(t *testing.T, mask MaskLevel) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	noColor := color.NoColor
	color.NoColor = true
	prevOut := SetOutput(&buf)
	prevLevel := SetLevel(mask)
	t.Cleanup(func() {
		SetOutput(prevOut)
		SetLevel(prevLevel)
		color.NoColor = noColor
	})
	return &buf
}

func TestMaskedLevelsAreSilent(t *testing.T) {
	buf := captureLog(t, ErrorMask|WarnMask)
	Debugf("should not appear %d", 1)
	Infof("nor this")
	Warnf("route %d masked", 4)
	out := buf.String()
	if strings.Contains(out, "appear") || strings.Contains(out, "nor this") {
		t.Errorf("masked levels leaked into output: %q", out)
	}
	if out != " WARN: route 4 masked\n" {
		t.Errorf("expected one warn line but got %q", out)
	}
}

func TestStatsCategory(t *testing.T) {
	buf := captureLog(t, StatsMask)
	Statsf("ioapic", "%d writes", 48)
	if got := buf.String(); got != "STATS[ioapic]: 48 writes\n" {
		t.Errorf("unexpected stats line %q", got)
	}
}

func TestDefaultLoggerStats(t *testing.T) {
	buf := captureLog(t, StatsMask)
	Default.Statsf("lapic", "%d accesses", 3)
	if got := buf.String(); got != "STATS[lapic]: 3 accesses\n" {
		t.Errorf("unexpected stats line %q", got)
	}
}

func TestFatalfIgnoresMask(t *testing.T) {
	buf := captureLog(t, Nothing)
	code := -1
	prevExit := exit
	exit = func(c int) { code = c }
	defer func() { exit = prevExit }()

	Fatalf(3, "bad plan")
	if code != 3 {
		t.Errorf("expected exit code 3 but got %d", code)
	}
	if !strings.HasSuffix(buf.String(), "FATAL: bad plan\n") {
		t.Errorf("expected fatal line, got %q", buf.String())
	}
}

func TestLevelToString(t *testing.T) {
	captureLog(t, ErrorMask|DebugMask)
	if s := LevelToString(); s != "error debug " {
		t.Errorf("expected 'error debug ' but got %q", s)
	}
}
