// Package validate implements the quality rules and export-readiness checks
// run against consensus data. It is the single callable surface for rules
// that gate task progression and downstream export.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Sentinel values used as placeholders in URL and option fields.
const (
	SentinelNotNeeded = "Not Needed"
	SentinelNeeded    = "Needed"
	OptionProvided    = "Provided"
	OptionNotFindable = "Not Findable"
)

// SupportingDocPrefix is the fixed storage path every supporting-document
// link must begin with.
const SupportingDocPrefix = "/uploads/supporting-docs/"

// downloadURLPattern matches acceptable archive download links.
var downloadURLPattern = regexp.MustCompile(`^https://[^/\s]+/\S+\.(zip|tar\.gz)$`)

// markdownImagePattern extracts image URLs embedded in markdown question text.
var markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)

// NonGatingFields are boolean consensus fields that do not gate task
// progression.
var NonGatingFields = map[string]bool{
	"grounded":  true,
	"execution": true,
}

// CanProceedToNextTrack reports whether a task's consensus data passes the
// progression gate: every boolean field outside NonGatingFields must be true.
// Data with zero qualifying boolean fields never passes (fail-closed).
func CanProceedToNextTrack(data map[string]interface{}) bool {
	qualifying := 0
	for k, v := range data {
		b, ok := v.(bool)
		if !ok || NonGatingFields[k] {
			continue
		}
		qualifying++
		if !b {
			return false
		}
	}
	return qualifying > 0
}

// NextTrackGate reports whether a task's consensus satisfies the unlock
// precondition for its successor. Task 1 gates on the progression booleans;
// task 2's completion alone unlocks task 3; task 3 has no successor.
func NextTrackGate(taskID int, data map[string]interface{}) bool {
	switch taskID {
	case 1:
		return CanProceedToNextTrack(data)
	case 2:
		return true
	default:
		return false
	}
}

// ExtractImageURLs returns all markdown-embedded image URLs in text, in order
// of appearance.
func ExtractImageURLs(text string) []string {
	matches := markdownImagePattern.FindAllStringSubmatch(text, -1)
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, m[1])
	}
	return urls
}

// normalizeOption lowercases an option value and strips spaces, underscores
// and hyphens so "Not Findable", "not_findable" and "NotFindable" compare
// equal.
func normalizeOption(v interface{}) string {
	s, _ := v.(string)
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

func isSentinel(s string) bool {
	n := normalizeOption(s)
	return n == normalizeOption(SentinelNotNeeded) || n == normalizeOption(SentinelNeeded)
}

// stringList coerces a JSON array into its string members.
func stringList(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// weightIsThree reports whether a short-answer weight equals 3, accepting
// numeric and string-typed values.
func weightIsThree(v interface{}) bool {
	switch w := v.(type) {
	case float64:
		return w == 3
	case int:
		return w == 3
	case string:
		return strings.TrimSpace(w) == "3"
	default:
		return false
	}
}

// fieldName strips the form-input suffix from a raw data key so errors report
// the logical field ("codeDownloadUrl_text" → "codeDownloadUrl").
func fieldName(key string) string {
	return strings.TrimSuffix(key, "_text")
}

// docLink extracts the link from a supporting-document entry, which may be a
// bare string or an object with a "link" key.
func docLink(v interface{}) string {
	switch d := v.(type) {
	case string:
		return d
	case map[string]interface{}:
		if s, ok := d["link"].(string); ok {
			return s
		}
	}
	return ""
}

// collectForms returns the per-form payloads inside consensus data. Task 3
// consensus carries a "forms" array; earlier tasks use top-level form fields,
// treated as a single implicit form.
func collectForms(data map[string]interface{}) []map[string]interface{} {
	if raw, ok := data["forms"].([]interface{}); ok {
		forms := make([]map[string]interface{}, 0, len(raw))
		for _, f := range raw {
			if m, ok := f.(map[string]interface{}); ok {
				forms = append(forms, m)
			}
		}
		return forms
	}
	for _, k := range []string{"supporting_docs_option", "short_answers", "long_answers"} {
		if _, ok := data[k]; ok {
			return []map[string]interface{}{data}
		}
	}
	return nil
}

func formField(formIndex int, field string) string {
	return fmt.Sprintf("forms[%d].%s", formIndex, field)
}
