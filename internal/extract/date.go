package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "02/01/2006"

var (
	reNumericDate = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4}|\d{2})\b`)
	reOrdinal     = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)\b`)

	longLayouts = []string{
		"2 January 2006", "2 Jan 2006",
		"January 2 2006", "Jan 2 2006",
	}
	shortLayouts = []string{
		"2 January", "2 Jan",
		"January 2", "Jan 2",
	}
)

// ParseDate reads a date keyword, a DD/MM/YYYY or DD-MM-YYYY date, or a long
// form such as "5th March 2025", relative to now. The result is formatted as
// DD/MM/YYYY.
func ParseDate(arg string, now time.Time) (string, error) {
	s := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(arg), ":=-"))
	if s == "" {
		return "", fmt.Errorf("no date given")
	}
	words := strings.Fields(strings.ToLower(s))

	switch words[0] {
	case "today":
		return now.Format(dateLayout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(dateLayout), nil
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(dateLayout), nil
	}

	if m := reNumericDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
		if t.Day() != day || int(t.Month()) != month {
			return "", fmt.Errorf("%s is not a valid date", m[0])
		}
		return t.Format(dateLayout), nil
	}

	cleaned := strings.NewReplacer(",", " ", ".", " ").Replace(strings.ToLower(s))
	cleaned = reOrdinal.ReplaceAllString(cleaned, "$1")
	var fields []string
	for _, w := range strings.Fields(cleaned) {
		if w == "of" {
			continue
		}
		fields = append(fields, w)
	}

	if len(fields) >= 3 {
		candidate := strings.Join(fields[:3], " ")
		for _, layout := range longLayouts {
			if t, err := time.ParseInLocation(layout, candidate, now.Location()); err == nil {
				return t.Format(dateLayout), nil
			}
		}
	}
	if len(fields) >= 2 {
		candidate := strings.Join(fields[:2], " ")
		for _, layout := range shortLayouts {
			if t, err := time.ParseInLocation(layout, candidate, now.Location()); err == nil {
				return time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()).Format(dateLayout), nil
			}
		}
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}
