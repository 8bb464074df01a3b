package utils

import (
	"regexp"
	"strings"
)

// --- Name Sanitization ---
var invalidNameChars = regexp.MustCompile(`[^0-9A-Za-z.-]`) // Anything outside the safe filename charset
var consecutiveUnderscores = regexp.MustCompile(`_+`)       // Pattern to replace multiple underscores with one
const maxNameLength = 100                                   // Max length for sanitized names

// SanitizeName cleans a string to be safe for use as a directory or filename
// component. Characters outside [0-9A-Za-z.-] are replaced with underscores.
func SanitizeName(name string) string {
	sanitized := invalidNameChars.ReplaceAllString(name, "_")           // Replace unsafe chars with underscore
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_") // Collapse multiple underscores
	sanitized = strings.Trim(sanitized, "_")                            // Remove leading/trailing underscores

	// Limit name length (simple byte truncation is sufficient here)
	if len(sanitized) > maxNameLength {
		sanitized = sanitized[:maxNameLength]
		sanitized = strings.Trim(sanitized, "_")
	}

	if sanitized == "" { // Handle cases where sanitization results in an empty string
		sanitized = "untitled"
	}
	return sanitized
}
