package porter

import (
	"strings"
	"time"
)

// Slugify lowercases the title and replaces every character outside
// [a-z0-9] with a dash.
func Slugify(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// WorkspaceFileName names a full workspace export.
func WorkspaceFileName(t time.Time) string {
	return "potion-workspace-" + t.Format("2006-01-02") + ".json"
}

// PageFileName names a single-page export.
func PageFileName(title string, t time.Time) string {
	return "potion-" + Slugify(title) + "-" + t.Format("2006-01-02") + ".json"
}

// MarkdownFileName names a markdown export.
func MarkdownFileName(title string) string {
	return Slugify(title) + ".md"
}
