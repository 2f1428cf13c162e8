package trust

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

type MaskLevel int

const (
	Nothing   MaskLevel = 0x0
	ErrorMask MaskLevel = 0x1
	WarnMask  MaskLevel = 0x2
	InfoMask  MaskLevel = 0x4
	DebugMask MaskLevel = 0x8
	StatsMask MaskLevel = 0x10
	fatalMask MaskLevel = 0x80
)

// Logger is what packages that log take, so a caller can hand them
// something other than the package level logger (tests, mostly).
type Logger interface {
	Errorf(format string, params ...interface{})
	Warnf(format string, params ...interface{})
	Infof(format string, params ...interface{})
	Debugf(format string, params ...interface{})
	Statsf(category string, format string, params ...interface{})
}

type packageLogger struct{}

// Default is a Logger that goes through the package level functions.
var Default Logger = packageLogger{}

func (packageLogger) Errorf(format string, params ...interface{}) { Errorf(format, params...) }
func (packageLogger) Warnf(format string, params ...interface{})  { Warnf(format, params...) }
func (packageLogger) Infof(format string, params ...interface{})  { Infof(format, params...) }
func (packageLogger) Debugf(format string, params ...interface{}) { Debugf(format, params...) }
func (packageLogger) Statsf(category string, format string, params ...interface{}) {
	Statsf(category, format, params...)
}

var (
	mu     sync.Mutex
	level            = fatalMask | StatsMask | ErrorMask | WarnMask | InfoMask
	output io.Writer = os.Stderr
	exit             = os.Exit
)

var prefix = map[MaskLevel]*color.Color{
	fatalMask: color.New(color.FgRed, color.Bold),
	ErrorMask: color.New(color.FgRed),
	WarnMask:  color.New(color.FgYellow),
	InfoMask:  color.New(color.FgCyan),
	DebugMask: color.New(color.FgBlue),
	StatsMask: color.New(color.FgGreen),
}

// SetLevel lets you set an error mask directly. You can pass in something like
// ErrorMask | DebugMask to control exactly what gets printed.  It returns the
// previous mask.
func SetLevel(mask MaskLevel) MaskLevel {
	mu.Lock()
	defer mu.Unlock()
	if mask&0x1f == 0 {
		fmt.Fprintf(output, " WARN: trust.SetLevel is turning off log messages\n")
	}
	r := level & 0x1f
	level = (mask & 0x1f) | fatalMask
	return r
}

func Level() MaskLevel {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// SetOutput sends log lines to w and returns the previous destination.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := output
	output = w
	return prev
}

func LevelToString() string {
	l := Level()
	result := ""
	if l&ErrorMask > 0 {
		result += "error "
	}
	if l&WarnMask > 0 {
		result += "warn "
	}
	if l&InfoMask > 0 {
		result += "info "
	}
	if l&DebugMask > 0 {
		result += "debug "
	}
	if l&StatsMask > 0 {
		result += "stats"
	}
	return result
}

func logf(l MaskLevel, format string, params ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level&l == 0 {
		return
	}
	tag := ""
	start := 0
	switch {
	case l&fatalMask > 0:
		tag = "FATAL:"
	case l&ErrorMask > 0:
		tag = "ERROR:"
	case l&WarnMask > 0:
		tag = " WARN:"
	case l&InfoMask > 0:
		tag = " INFO:"
	case l&DebugMask > 0:
		tag = "DEBUG:"
	case l&StatsMask > 0:
		s, ok := params[0].(string)
		if !ok {
			s = "unknown"
		}
		tag = fmt.Sprintf("STATS[%s]:", s)
		start = 1
	}
	if len(format) == 0 {
		format = "\n"
	} else if format[len(format)-1] != '\n' {
		format += "\n"
	}
	prefix[l].Fprint(output, tag)
	fmt.Fprintf(output, " "+format, params[start:]...)
}

// Fatalf prints the given log message (format + params) and then
// exits with the exitCode provided.  Fatalf is not maskable.
func Fatalf(exitCode int, format string, params ...interface{}) {
	logf(fatalMask, format, params...)
	exit(exitCode)
}

// Errorf prints the given log message (format + params) using the ErrorMask level.
func Errorf(format string, params ...interface{}) {
	logf(ErrorMask, format, params...)
}

// Warnf prints the given log message (format + params) using the WarnMask level.
func Warnf(format string, params ...interface{}) {
	logf(WarnMask, format, params...)
}

// Infof prints the given log message (format + params) using the InfoMask level.
func Infof(format string, params ...interface{}) {
	logf(InfoMask, format, params...)
}

// Debugf prints the given log message (format + params) using the DebugMask level.
func Debugf(format string, params ...interface{}) {
	logf(DebugMask, format, params...)
}

// Statsf prints the given log message (format + params) using the StatsMask level and
// takes an extra parameter that will be visible in the log message as the category
// of stats that is reported.
func Statsf(category string, format string, params ...interface{}) {
	logf(StatsMask, format, append([]interface{}{category}, params...)...)
}
