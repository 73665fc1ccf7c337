// Package duplicates finds likely duplicate tracks in a unified playlist.
//
// Two signals are used. Items whose normalized "name-artist" key matches are grouped
// first; items sharing an ISRC are grouped second, and an ISRC group is dropped when
// any of its items was already reported by a name/artist group. Every item appears in
// at most one group.
package duplicates

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/desertthunder/tunelink/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	ReasonNameArtist = "Same track name and artist"
	ReasonISRC       = "Same ISRC code"
)

var (
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Group is one cluster of items that look like the same recording.
type Group struct {
	Reason string                `json:"reason"`
	Items  []*models.UnifiedItem `json:"items"`
}

// Find groups items by normalized name and artist, then by ISRC.
//
// Groups keep the order in which their first item appears, and items keep input order.
// Items without a loaded track are ignored. Find does not modify items.
func Find(items []*models.UnifiedItem) []Group {
	var groups []Group
	reported := make(map[string]bool)

	for _, g := range group(items, func(t *models.Track) string { return Key(t.Name, t.Artist) }) {
		groups = append(groups, Group{Reason: ReasonNameArtist, Items: g})
		for _, it := range g {
			reported[it.ID] = true
		}
	}

	for _, g := range group(items, func(t *models.Track) string { return t.ISRC }) {
		if overlaps(g, reported) {
			continue
		}
		groups = append(groups, Group{Reason: ReasonISRC, Items: g})
	}
	return groups
}

// group buckets items by key and returns the buckets with two or more members.
// An empty key never groups.
func group(items []*models.UnifiedItem, key func(*models.Track) string) [][]*models.UnifiedItem {
	var order []string
	buckets := make(map[string][]*models.UnifiedItem)

	for _, it := range items {
		if it == nil || it.Track == nil {
			continue
		}
		k := key(it.Track)
		if k == "" {
			continue
		}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], it)
	}

	var out [][]*models.UnifiedItem
	for _, k := range order {
		if len(buckets[k]) > 1 {
			out = append(out, buckets[k])
		}
	}
	return out
}

func overlaps(g []*models.UnifiedItem, reported map[string]bool) bool {
	for _, it := range g {
		if reported[it.ID] {
			return true
		}
	}
	return false
}

// Key normalizes name and artist into a comparison key: case folded, accents
// removed, punctuation stripped and whitespace collapsed.
func Key(name, artist string) string {
	text := norm.NFKD.String(name + "-" + artist)

	var b strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}

	text = cases.Fold().String(b.String())
	text = punctRegex.ReplaceAllString(text, "")
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
