package log

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

// capture redirects stdout and stderr while fn runs
func capture(t *testing.T, fn func()) (string, string) {
	t.Helper()
	oldStdout, oldStderr := os.Stdout, os.Stderr
	ro, wo, _ := os.Pipe()
	re, we, _ := os.Pipe()
	os.Stdout, os.Stderr = wo, we

	fn()

	wo.Close()
	we.Close()
	os.Stdout, os.Stderr = oldStdout, oldStderr

	var out, errOut bytes.Buffer
	io.Copy(&out, ro)
	io.Copy(&errOut, re)
	return out.String(), errOut.String()
}

func resetLogger(t *testing.T) {
	t.Helper()
	oldVerbose, oldQuiet, oldLevel, oldColor := verbose, quiet, level, colorEnabled
	t.Cleanup(func() {
		verbose, quiet, level, colorEnabled = oldVerbose, oldQuiet, oldLevel, oldColor
	})
	verbose, quiet, level = false, false, INFO
}

func TestLogLevels(t *testing.T) {
	resetLogger(t)

	stdout, stderr := capture(t, func() {
		Info("This is an info")
		Infof("This is an info with %s", "format")
		Debug("This should not be printed")
		Debugf("This should not be printed with %s", "format")
		Warnf("This is a warning with %s", "format")
		Error("This is an error")
		Errorf("This is an error with %s", "format")

		SetVerbose(true)
		Debug("This should be printed in verbose mode")
		Debugf("This should be printed in verbose mode with %s", "format")
	})

	if !IsVerbose() {
		t.Error("IsVerbose should return true after SetVerbose(true)")
	}
	if GetLevel() != DEBUG {
		t.Errorf("Level should be DEBUG when verbose is true, got %v", GetLevel())
	}

	t.Run("Info logs are printed", func(t *testing.T) {
		if !strings.Contains(stdout, "This is an info") {
			t.Error("Info log should be printed")
		}
		if !strings.Contains(stdout, "This is an info with format") {
			t.Error("Formatted info log should be printed")
		}
	})

	t.Run("Debug logs are not printed without verbose", func(t *testing.T) {
		if strings.Contains(stdout, "This should not be printed") {
			t.Error("Debug log should not be printed when verbose is false")
		}
	})

	t.Run("Warnings and errors go to stderr", func(t *testing.T) {
		if !strings.Contains(stderr, "This is a warning with format") {
			t.Error("Warning log should be printed to stderr")
		}
		if !strings.Contains(stderr, "This is an error with format") {
			t.Error("Formatted error log should be printed to stderr")
		}
		if strings.Contains(stdout, "This is an error") {
			t.Error("Error log should not be printed to stdout")
		}
	})

	t.Run("Debug logs are printed with verbose", func(t *testing.T) {
		if !strings.Contains(stdout, "This should be printed in verbose mode with format") {
			t.Error("Debug log should be printed when verbose is true")
		}
	})
}

func TestLogLevel(t *testing.T) {
	resetLogger(t)

	SetLevel(ERROR)
	if GetLevel() != ERROR {
		t.Errorf("Level should be ERROR, got %v", GetLevel())
	}

	SetVerbose(true)
	if GetLevel() != DEBUG {
		t.Errorf("Level should be DEBUG when verbose is true, got %v", GetLevel())
	}

	SetLevel(ERROR)
	if GetLevel() != ERROR {
		t.Errorf("Level should be ERROR, got %v", GetLevel())
	}
}

func TestQuietMode(t *testing.T) {
	resetLogger(t)
	SetQuiet(true)
	if !IsQuiet() || IsVerbose() {
		t.Fatal("quiet mode should be on and verbose off")
	}

	stdout, stderr := capture(t, func() {
		Info("hidden info")
		Warn("visible warning")
	})

	if strings.Contains(stdout, "hidden info") {
		t.Error("Info log should be hidden in quiet mode")
	}
	if !strings.Contains(stderr, "visible warning") {
		t.Error("Warning log should be shown in quiet mode")
	}
}

func TestFatalStackTrace(t *testing.T) {
	resetLogger(t)

	oldOsExit := osExit
	defer func() { osExit = oldOsExit }()

	exitCalled := false
	osExit = func(code int) {
		exitCalled = true
		if code != 1 {
			t.Errorf("Expected exit code 1, got %d", code)
		}
	}

	oldStackTraceEnabled := IsStackTraceEnabled()
	defer func() { EnableStackTrace(oldStackTraceEnabled) }()
	EnableStackTrace(true)

	_, stderr := capture(t, func() {
		Fatal("Test fatal error")
	})

	if !exitCalled {
		t.Error("os.Exit was not called")
	}
	if !strings.Contains(stderr, "Stack trace:") {
		t.Error("Stack trace not found in stderr output")
	}
	if !strings.Contains(stderr, "goroutine") {
		t.Error("Stack trace does not contain goroutine information")
	}
	if !strings.Contains(stderr, "Test fatal error") {
		t.Error("Fatal log message not found in stderr output")
	}
}

func TestColorOutput(t *testing.T) {
	resetLogger(t)
	SetLevel(DEBUG)

	stdout, stderr := capture(t, func() {
		EnableColor(true)
		Info("Colored info")
		Warn("Colored warning")
		EnableColor(false)
		Info("Non-colored info")
		Warn("Non-colored warning")
	})

	if !strings.Contains(stdout, ColorGreen) {
		t.Error("Green color code not found in colored output")
	}
	if !strings.Contains(stderr, ColorYellow) {
		t.Error("Yellow color code not found in colored warning output")
	}

	nonColoredPos := strings.Index(stdout, "Non-colored")
	if nonColoredPos == -1 {
		t.Fatal("Non-colored log message not found")
	}
	if strings.Contains(stdout[nonColoredPos:], ColorReset) {
		t.Error("Color codes found after disabling colors")
	}
}

func TestProgressBar(t *testing.T) {
	resetLogger(t)

	pb := NewProgressBar("artifacts", 4)
	stdout, _ := capture(t, func() {
		pb.Increment()
		pb.Increment()
	})
	if pb.Current() != 2 {
		t.Errorf("Expected current 2, got %d", pb.Current())
	}
	if !strings.Contains(stdout, "2/4 50%") {
		t.Errorf("Unexpected progress output %q", stdout)
	}

	pb.Update(10)
	if pb.Current() != 4 {
		t.Errorf("Update should clamp to total, got %d", pb.Current())
	}

	SetQuiet(true)
	stdout, _ = capture(t, func() {
		pb.Complete()
	})
	if stdout != "" {
		t.Errorf("Progress should not render in quiet mode, got %q", stdout)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		0:               "0 B",
		1023:            "1023 B",
		1024:            "1.0 KB",
		1536:            "1.5 KB",
		5 * 1024 * 1024: "5.0 MB",
		3 << 30:         "3.0 GB",
	}
	for in, want := range tests {
		if got := FormatSize(in); got != want {
			t.Errorf("FormatSize(%d) = %s, want %s", in, got, want)
		}
	}
}
