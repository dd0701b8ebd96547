// Package quota gates metered actions against per-plan monthly limits and
// records usage after the action has run.
package quota

import (
	"fmt"
	"strings"
	"time"
)

// Category is a metered action family.
type Category string

const (
	DiagramUploads Category = "diagram_uploads"
	AIAnalyses     Category = "ai_analyses"
	Exports        Category = "exports"
)

// Categories lists every metered category in display order.
func Categories() []Category {
	return []Category{DiagramUploads, AIAnalyses, Exports}
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown quota category %q", s)
}

// Period is the billing period key for t: the calendar month in loc, "YYYY-MM".
func Period(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}

// periodsAgo returns the period key n calendar months before t's period.
func periodsAgo(t time.Time, loc *time.Location, n int) string {
	local := t.In(loc)
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return first.AddDate(0, -n, 0).Format("2006-01")
}
