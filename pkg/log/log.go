package log

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"
)

// osExit is a variable for os.Exit to make it mockable in tests
var osExit = os.Exit

// LogLevel define log level
type LogLevel int

const (
	// DEBUG debug level, only shown in verbose mode
	DEBUG LogLevel = iota
	// INFO info level, hidden in quiet mode
	INFO
	// WARN warning level, always show
	WARN
	// ERROR error level, always show
	ERROR
	// FATAL fatal level, always show and exit program
	FATAL
)

var (
	verbose bool
	quiet   bool
	// current log level
	level LogLevel = INFO
	// enable color output
	colorEnabled = true
	// enable stack trace on fatal errors
	stackTraceEnabled bool
)

// Environment variable for controlling stack trace
const (
	EnvStackTrace = "PRINT_STACK_TRACE"
)

func init() {
	stackTraceEnv := os.Getenv(EnvStackTrace)
	stackTraceEnabled = stackTraceEnv == "1" || stackTraceEnv == "true" || stackTraceEnv == "yes"
}

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorPurple = "\033[35m"
)

// SetVerbose enables debug output
func SetVerbose(v bool) {
	verbose = v
	if v {
		quiet = false
		level = DEBUG
	}
}

// IsVerbose return if verbose mode is enabled
func IsVerbose() bool {
	return verbose
}

// SetQuiet hides info output, warnings and errors are still shown
func SetQuiet(q bool) {
	quiet = q
	if q {
		verbose = false
		level = WARN
	}
}

// IsQuiet return if quiet mode is enabled
func IsQuiet() bool {
	return quiet
}

// SetLevel set log level
func SetLevel(l LogLevel) {
	level = l
}

// GetLevel get current log level
func GetLevel() LogLevel {
	return level
}

// EnableColor enables color output
func EnableColor(enabled bool) {
	colorEnabled = enabled
}

// IsColorEnabled returns if color output is enabled
func IsColorEnabled() bool {
	return colorEnabled
}

// EnableStackTrace enables or disables stack trace on fatal errors
func EnableStackTrace(enabled bool) {
	stackTraceEnabled = enabled
}

// IsStackTraceEnabled returns if stack trace is enabled
func IsStackTraceEnabled() bool {
	return stackTraceEnabled
}

func getLevelColor(l LogLevel) string {
	if !colorEnabled {
		return ""
	}

	switch l {
	case DEBUG:
		return ColorCyan
	case INFO:
		return ColorGreen
	case WARN:
		return ColorYellow
	case ERROR:
		return ColorRed
	case FATAL:
		return ColorPurple
	default:
		return ""
	}
}

func getLevelPrefix(prefix string, l LogLevel) string {
	if !colorEnabled {
		return prefix
	}
	return getLevelColor(l) + prefix + ColorReset
}

// output resolves the destination on every call so tests can swap os.Stdout
func output(l LogLevel) io.Writer {
	if l >= WARN {
		return os.Stderr
	}
	return os.Stdout
}

const timeFormat = "2006/01/02 15:04:05"

func write(prefix string, l LogLevel, msg string) {
	if l < level {
		return
	}
	timeStr := time.Now().Format(timeFormat)
	fmt.Fprintf(output(l), "[%s] %s: %s\n", timeStr, getLevelPrefix(prefix, l), msg)
}

func logf(prefix string, l LogLevel, format string, args ...any) {
	write(prefix, l, fmt.Sprintf(format, args...))
}

func log(prefix string, l LogLevel, args ...any) {
	write(prefix, l, fmt.Sprint(args...))
}

// Info output normal info log
func Info(args ...any) {
	log("INFO", INFO, args...)
}

// Infof output formatted normal info log
func Infof(format string, args ...any) {
	logf("INFO", INFO, format, args...)
}

// Warn output warning log
func Warn(args ...any) {
	log("WARN", WARN, args...)
}

// Warnf output formatted warning log
func Warnf(format string, args ...any) {
	logf("WARN", WARN, format, args...)
}

// Error output error log
func Error(args ...any) {
	log("ERROR", ERROR, args...)
}

// Errorf output formatted error log
func Errorf(format string, args ...any) {
	logf("ERROR", ERROR, format, args...)
}

func exitWithTrace() {
	if stackTraceEnabled {
		fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
	} else {
		fmt.Fprintf(os.Stderr, "For detailed stack trace, set %s=1\n", EnvStackTrace)
	}
	osExit(1)
}

// Fatal output fatal log and exit program
func Fatal(args ...any) {
	log("FATAL", FATAL, args...)
	exitWithTrace()
}

// Fatalf output formatted fatal log and exit program
func Fatalf(format string, args ...any) {
	logf("FATAL", FATAL, format, args...)
	exitWithTrace()
}

// Debug output debug log (only effective in verbose mode)
func Debug(args ...any) {
	log("DEBUG", DEBUG, args...)
}

// Debugf output formatted debug log (only effective in verbose mode)
func Debugf(format string, args ...any) {
	logf("DEBUG", DEBUG, format, args...)
}
