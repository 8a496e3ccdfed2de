package metadata

import (
	"regexp"
	"strconv"
	"strings"
)

// Reference phrase patterns. Digit ordinals cover "item 2", "number 2",
// "option 2", "#2", "the 2nd one"; written ordinals cover "the second one".
var (
	digitRefRe   = regexp.MustCompile(`(?i)\b(?:item|number|option|no\.?|choice)\s*#?\s*(\d+)\b`)
	suffixRefRe  = regexp.MustCompile(`(?i)\b(?:the\s+)?(\d+)(?:st|nd|rd|th)\s+(?:one|item|option|choice)?\b`)
	writtenRefRe = regexp.MustCompile(`(?i)\b(?:the\s+)?(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|last)\s+(?:one|item|option|choice)\b`)
	bareHashRe   = regexp.MustCompile(`(?i)^#?(\d+)$`)
)

var writtenOrdinals = map[string]int{
	"first":   1,
	"second":  2,
	"third":   3,
	"fourth":  4,
	"fifth":   5,
	"sixth":   6,
	"seventh": 7,
	"eighth":  8,
	"ninth":   9,
	"tenth":   10,
}

// Bare pronouns that bind to the most recently mentioned entity. Plural
// forms resolve to the single most recent mention as well; single-entity
// resolution is the common case in this vocabulary.
var pronouns = map[string]bool{
	"it":    true,
	"that":  true,
	"this":  true,
	"them":  true,
	"those": true,
	"these": true,
}

// embeddedPronounRe matches anaphoric pronouns inside a longer utterance
// ("what is the price of it?"). Demonstratives are excluded here: "that"
// and "this" are only treated as references when they stand alone, since
// they appear constantly in ordinary sentences.
var embeddedPronounRe = regexp.MustCompile(`(?i)\b(it|them|those|these)\b`)

// ResolveReference maps a short, ambiguous user phrase to a tracked entity
// or list item. Three strategies are tried in priority order: ordinal/list
// reference, bare pronoun, then exact/substring name match. A nil result
// means no strategy matched; callers are expected to handle that by asking
// the user to clarify.
func (s *Store) ResolveReference(text string) *Resolution {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if r := s.resolveOrdinal(trimmed); r != nil {
		return r
	}
	if r := s.resolvePronoun(trimmed); r != nil {
		return r
	}
	return s.resolveName(trimmed)
}

// resolveOrdinal matches ordinal phrasings against the active list. When the
// text carries an ordinal but no list is active (or the index is out of
// range), the whole strategy fails and resolution falls through.
func (s *Store) resolveOrdinal(text string) *Resolution {
	index, ok := parseOrdinal(text)
	if !ok {
		return nil
	}

	if index == lastOrdinal {
		if s.list == nil {
			return nil
		}
		index = len(s.list.Items)
	}

	item := s.ResolveListItem(index)
	if item == nil {
		return nil
	}

	return &Resolution{
		Value:     item.Name,
		Metadata:  item.Metadata,
		Source:    SourceList,
		ListIndex: item.Index,
	}
}

// lastOrdinal is the sentinel parseOrdinal returns for "the last one".
const lastOrdinal = -1

// parseOrdinal extracts a 1-based list position from the text. Returns
// lastOrdinal for "the last one/item/option".
func parseOrdinal(text string) (int, bool) {
	if m := digitRefRe.FindStringSubmatch(text); m != nil {
		return atoiOrdinal(m[1])
	}
	if m := suffixRefRe.FindStringSubmatch(text); m != nil {
		return atoiOrdinal(m[1])
	}
	if m := writtenRefRe.FindStringSubmatch(text); m != nil {
		word := strings.ToLower(m[1])
		if word == "last" {
			return lastOrdinal, true
		}
		return writtenOrdinals[word], true
	}
	// A lone number ("2", "#2") is an ordinal only when a list is the sole
	// plausible referent, which the caller decides by strategy order.
	if m := bareHashRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return atoiOrdinal(m[1])
	}
	return 0, false
}

func atoiOrdinal(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// resolvePronoun resolves a bare pronoun to the entity with the highest
// TurnLastMentioned. Ties break by MentionCount, then by most recent
// insertion. Recency is measured by mention turn, not insertion order, so
// re-mentioning an older entity promotes it back to "most recent".
func (s *Store) resolvePronoun(text string) *Resolution {
	word := strings.ToLower(strings.TrimRight(strings.TrimSpace(text), ".!?"))
	if !pronouns[word] && !embeddedPronounRe.MatchString(text) {
		return nil
	}

	best := s.mostRecentEntity()
	if best == nil {
		return nil
	}

	return &Resolution{
		Value:    best.Value,
		Metadata: best.Metadata,
		Source:   SourcePronoun,
	}
}

// mostRecentEntity returns the pronoun antecedent under the recency rule,
// or nil when no entities are tracked.
func (s *Store) mostRecentEntity() *Entity {
	var best *Entity
	for _, key := range s.order {
		e := s.entities[key]
		if best == nil || betterAntecedent(e, best) {
			best = e
		}
	}
	return best
}

// betterAntecedent reports whether candidate outranks current. Iteration
// follows insertion order, so a strict comparison keeps the later insertion
// on ties.
func betterAntecedent(candidate, current *Entity) bool {
	if candidate.TurnLastMentioned != current.TurnLastMentioned {
		return candidate.TurnLastMentioned > current.TurnLastMentioned
	}
	return candidate.MentionCount >= current.MentionCount
}

// resolveName matches the text against tracked entity names: the reference
// resolves when the normalized text contains a tracked name. The longest
// matching name wins, so "ZF5 Hydraulic Pump" beats a bare "Pump".
func (s *Store) resolveName(text string) *Resolution {
	normalized := NormalizeName(text)
	if normalized == "" {
		return nil
	}

	var best *Entity
	bestLen := 0
	for _, key := range s.order {
		if len(key) >= bestLen && strings.Contains(normalized, key) {
			best = s.entities[key]
			bestLen = len(key)
		}
	}
	if best == nil {
		return nil
	}

	return &Resolution{
		Value:    best.Value,
		Metadata: best.Metadata,
		Source:   SourceName,
	}
}
