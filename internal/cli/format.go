// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatDuration formats seconds into a human-readable duration.
// e.g., 3725 -> "1h 2m", 125 -> "2m 5s", 45.2 -> "45.2s"
func FormatDuration(secs float64) string {
	if secs <= 0 {
		return "0s"
	}

	whole := int64(secs)
	hours := whole / 3600
	mins := (whole % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm %ds", mins, whole%60)
	}
	return strconv.FormatFloat(secs, 'f', 1, 64) + "s"
}

// FormatHoursMinutes splits a total in seconds into whole hours and minutes.
func FormatHoursMinutes(secs float64) string {
	hours := math.Floor(secs / 3600)
	mins := math.Floor(math.Mod(secs, 3600) / 60)
	return fmt.Sprintf("%.0f hours and %.0f minutes", hours, mins)
}

// FormatMinutesSeconds splits seconds into whole minutes and seconds.
func FormatMinutesSeconds(secs float64) string {
	return fmt.Sprintf("%d minutes and %d seconds", int(secs/60), int(math.Mod(secs, 60)))
}

// FormatMeanStd formats a mean and standard deviation with two decimals.
func FormatMeanStd(mean, std float64) string {
	return fmt.Sprintf("%.2f ± %.2f", mean, std)
}

// FormatSeconds formats a time in seconds with one decimal.
func FormatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatPercent formats a 0-1 float as a percentage string.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
