package model

import (
	"regexp"
	"strings"
)

var statusSpaceRe = regexp.MustCompile(`\s+`)

// statusSynonyms maps status phrase variants onto one canonical form.
// Order matters: "sign ups" must collapse before "home sign up" is
// standardized. Ledger keys and category counters are derived from the
// normalized form, so this table is append-only in practice: rewriting
// an existing mapping invalidates comparability with historical ledger
// entries.
var statusSynonyms = []struct {
	old string
	new string
}{
	{"permissions", "permission"},
	{"sign ups", "sign up"},
	{"home sign up", "home signup"},
}

// NormalizeStatus canonicalizes a free-text status for stable
// comparison: lowercase, whitespace collapsed, trimmed, synonyms
// applied. Deterministic and idempotent.
func NormalizeStatus(status string) string {
	s := strings.ToLower(status)
	s = statusSpaceRe.ReplaceAllString(s, " ")
	for _, syn := range statusSynonyms {
		s = strings.ReplaceAll(s, syn.old, syn.new)
	}
	return strings.TrimSpace(s)
}

// StatusBucket reduces a status to its milestone phrase: the normalized
// form truncated at the first ":" qualifier. "Pole Permission" and
// "pole permission: approved" describe the same milestone, so ledger
// claims and conflict grouping key on the bucket, never on the full
// normalized string. Deterministic and idempotent.
func StatusBucket(status string) string {
	s := NormalizeStatus(status)
	if i := strings.Index(s, ":"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
