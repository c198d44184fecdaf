// Package extract surfaces domain entities from recognized text with keyword
// and pattern heuristics. Both extractors are pure functions over the input
// text: no I/O, no state, and zero matches yield an empty result, never an
// error. Vocabulary and patterns are data so new locales extend the tables,
// not the control flow.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"docpipe/pkg/models"
)

// roomKeywords is the German room vocabulary painter offers are written in.
var roomKeywords = []string{
	"wohnzimmer", "schlafzimmer", "küche", "badezimmer", "bad", "wc",
	"kinderzimmer", "arbeitszimmer", "büro", "flur", "diele", "keller",
	"dachboden", "garage", "balkon", "terrasse", "garten", "zimmer",
}

var roomPatterns = compileRoomPatterns(roomKeywords)

func compileRoomPatterns(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		// Surrounding word characters are captured so compound forms like
		// "kellerzimmer" surface as their full surface form.
		patterns[i] = regexp.MustCompile(`(?i)\b[\p{L}\d]*` + kw + `[\p{L}\d]*\b`)
	}
	return patterns
}

// number matches German-formatted values: decimal comma or point.
const number = `(\d+(?:,\d+)?(?:\.\d+)?)`

// measurementPatterns pair a compiled pattern with the groups it captures.
// Dimension patterns capture width and height; plain patterns capture a
// single value. Units are captured last in all of them.
var measurementPatterns = []struct {
	re        *regexp.Regexp
	dimension bool
}{
	{regexp.MustCompile(`(?i)` + number + `\s*(m²|qm|quadratmeter)`), false},
	{regexp.MustCompile(`(?i)` + number + `\s*x\s*` + number + `\s*(m|cm)\b`), true},
	{regexp.MustCompile(`(?i)` + number + `\s*(m|meter)\b`), false},
	{regexp.MustCompile(`(?i)` + number + `\s*(cm|zentimeter)\b`), false},
}

// Rooms returns the deduplicated set of room surface forms found in text,
// lower-cased and sorted for stable output.
func Rooms(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	for _, pattern := range roomPatterns {
		for _, match := range pattern.FindAllString(lower, -1) {
			seen[match] = true
		}
	}

	rooms := make([]string, 0, len(seen))
	for room := range seen {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// Measurements returns the typed measurement records found in text, in
// pattern order. Decimal commas are normalized to decimal points.
func Measurements(text string) []models.Measurement {
	var measurements []models.Measurement
	for _, p := range measurementPatterns {
		for _, match := range p.re.FindAllStringSubmatch(text, -1) {
			if p.dimension {
				measurements = append(measurements, models.Measurement{
					Width:  normalizeDecimal(match[1]),
					Height: normalizeDecimal(match[2]),
					Unit:   strings.ToLower(match[3]),
					Type:   "dimensions",
				})
			} else {
				measurements = append(measurements, models.Measurement{
					Value: normalizeDecimal(match[1]),
					Unit:  strings.ToLower(match[2]),
					Type:  "measurement",
				})
			}
		}
	}
	return measurements
}

func normalizeDecimal(value string) string {
	return strings.ReplaceAll(value, ",", ".")
}
