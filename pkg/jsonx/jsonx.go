// Package jsonx parses model output that is supposed to be JSON but often
// arrives wrapped in markdown code fences.
package jsonx

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	openFenceRe  = regexp.MustCompile("^```(?:json)?\\s*")
	closeFenceRe = regexp.MustCompile("\\s*```$")
)

// Parse attempts to decode text as JSON, stripping surrounding code fences
// first. Returns false when the text is not valid JSON.
func Parse(text string) (any, bool) {
	cleaned := strings.TrimSpace(text)
	cleaned = openFenceRe.ReplaceAllString(cleaned, "")
	cleaned = closeFenceRe.ReplaceAllString(cleaned, "")

	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &v); err != nil {
		return nil, false
	}
	return v, true
}
