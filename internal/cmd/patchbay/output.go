package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var colorEnabled = detectColorEnabled()

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func detectColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func init() {
	if !colorEnabled {
		color.NoColor = true
	}
}

func printSuccess(format string, args ...any) {
	successColor.Printf("✓ "+format+"\n", args...)
}

func printWarn(format string, args ...any) {
	warnColor.Printf("⚠ "+format+"\n", args...)
}

func printError(err error) {
	errorColor.Fprintf(os.Stderr, "✗ %v\n", err)
}

func printLabel(label, value string) {
	labelColor.Printf("  %s: ", label)
	fmt.Println(value)
}
