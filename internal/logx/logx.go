package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

var (
	current    Level     = Info
	loggerName           = "sigfix"
	stdout     io.Writer = os.Stdout
	stderr     io.Writer = os.Stderr
)

var levelTags = map[Level]string{
	Debug:   color.New(color.FgHiBlack).Sprint("DEBUG"),
	Info:    color.New(color.FgCyan).Sprint("INFO"),
	Warning: color.New(color.FgYellow, color.Bold).Sprint("WARNING"),
	Error:   color.New(color.FgRed, color.Bold).Sprint("ERROR"),
}

func SetLevel(l Level) { current = l }

func CurrentLevel() Level { return current }

// ParseLevel maps a LOG_LEVEL value to a Level. Unknown names return ok=false.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return Debug, true
	case "", "info":
		return Info, true
	case "warn", "warning":
		return Warning, true
	case "error":
		return Error, true
	}
	return Info, false
}

// SetOutput redirects both streams, mainly for tests.
func SetOutput(w io.Writer) {
	stdout = w
	stderr = w
}

func ts() string { return time.Now().Format("15:04:05") }

func write(w io.Writer, l Level, format string, args ...any) {
	if current > l {
		return
	}
	fmt.Fprintf(w, "[%s] %s %s: ", ts(), levelTags[l], loggerName)
	fmt.Fprintf(w, format+"\n", args...)
}

func Debugf(format string, args ...any)   { write(stdout, Debug, format, args...) }
func Infof(format string, args ...any)    { write(stdout, Info, format, args...) }
func Warningf(format string, args ...any) { write(stdout, Warning, format, args...) }
func Errorf(format string, args ...any)   { write(stderr, Error, format, args...) }
