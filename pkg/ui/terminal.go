package ui

import (
	"fmt"
	"os"
	"sync"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

var (
	mu    sync.Mutex
	quiet bool
)

// SetQuiet suppresses informational output. Errors still print.
func SetQuiet(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// PrintInfo prints an informational message.
func PrintInfo(format string, args ...interface{}) {
	printColored(colorCyan, "ℹ", format, args...)
}

// PrintSuccess prints a success message.
func PrintSuccess(format string, args ...interface{}) {
	printColored(colorGreen, "✓", format, args...)
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...interface{}) {
	printColored(colorYellow, "⚠", format, args...)
}

// PrintError prints an error message to stderr, quiet or not.
func PrintError(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printColored(color, symbol, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		return
	}
	fmt.Printf("%s%s %s%s\n", color, symbol, fmt.Sprintf(format, args...), colorReset)
}
