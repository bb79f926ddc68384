package log

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ProgressBar renders a one-line counter for batch operations such as
// artifact downloads. Nothing is drawn in quiet mode.
type ProgressBar struct {
	title     string
	total     int
	current   int
	width     int
	startTime time.Time
	completed bool
}

// NewProgressBar creates a new progress bar
func NewProgressBar(title string, total int) *ProgressBar {
	return &ProgressBar{
		title:     title,
		total:     total,
		width:     20,
		startTime: time.Now(),
	}
}

// Update sets the current position and redraws
func (pb *ProgressBar) Update(current int) {
	if current > pb.total {
		current = pb.total
	}
	pb.current = current
	pb.render()
}

// Increment increments the progress by 1
func (pb *ProgressBar) Increment() {
	pb.Update(pb.current + 1)
}

// Current returns the current position
func (pb *ProgressBar) Current() int {
	return pb.current
}

// Complete marks the progress as completed
func (pb *ProgressBar) Complete() {
	pb.current = pb.total
	pb.completed = true
	pb.render()
	if !quiet {
		fmt.Fprintln(os.Stdout)
	}
}

func (pb *ProgressBar) render() {
	if quiet {
		return
	}
	fmt.Fprintf(os.Stdout, "\r%s", pb.String())
}

// String formats the bar without the leading carriage return
func (pb *ProgressBar) String() string {
	filled := pb.width
	percentage := 100.0
	if pb.total > 0 {
		filled = pb.width * pb.current / pb.total
		percentage = float64(pb.current) / float64(pb.total) * 100
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", pb.width-filled)

	status := fmt.Sprintf("%d/%d %.0f%%", pb.current, pb.total, percentage)
	if pb.completed {
		status += fmt.Sprintf(" (%s)", formatDuration(time.Since(pb.startTime)))
	}
	return fmt.Sprintf("%s [%s] %s", pb.title, bar, status)
}

// formatDuration formats duration to human readable string
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// FormatSize formats a size in bytes to a human-readable string
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
