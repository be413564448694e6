package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips HTML from user supplied text (check-in notes) to prevent stored XSS.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
