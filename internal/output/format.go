package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

const (
	// SeparatorWidth is the width of separator lines.
	SeparatorWidth = 60

	// SeparatorChar is the character used for separator lines.
	SeparatorChar = "─"
)

// Separator returns a separator line of the default width.
func Separator() string {
	return strings.Repeat(SeparatorChar, SeparatorWidth)
}

// ColoredSeparator returns a colored separator line.
func ColoredSeparator(c *color.Color) string {
	return c.Sprint(Separator())
}

// CyanSeparator returns a cyan separator line for headings.
func CyanSeparator() string {
	return ColoredSeparator(color.New(color.FgCyan))
}

// ShortSignature abbreviates a base58 signature or address for tables.
func ShortSignature(sig string) string {
	if len(sig) <= 12 {
		return sig
	}
	return sig[:6] + "…" + sig[len(sig)-6:]
}

// Countdown formats a reconnect countdown as "4m05s" or "12s".
func Countdown(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return fmt.Sprintf("%dm%02ds", int(d/time.Minute), int((d%time.Minute)/time.Second))
}

// Percent renders part of total as a whole percentage.
func Percent(part, total int64) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", part*100/total)
}
