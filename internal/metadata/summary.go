package metadata

import (
	"fmt"
	"sort"
	"strings"
)

// ContextSummary renders the store into a compact digest for injection into
// the next LLM prompt. Sections appear only when non-empty, in a fixed
// order: recently mentioned entities, the active numbered list, then the
// correction log. An empty store renders as the empty string.
//
// The output is deterministic for a given store state so that prompt
// construction is testable byte-for-byte.
func (s *Store) ContextSummary() string {
	var b strings.Builder

	if recent := s.recentEntities(); len(recent) > 0 {
		b.WriteString("Recently Mentioned:\n")
		for _, e := range recent {
			fmt.Fprintf(&b, "- %s (turn %d)\n", e.Value, e.TurnLastMentioned)
		}
	}

	if s.list != nil && len(s.list.Items) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Active Numbered List:\n")
		for _, item := range s.list.Items {
			fmt.Fprintf(&b, "%d. %s\n", item.Index, item.Name)
		}
	}

	if len(s.corrections) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Important Corrections:\n")
		for _, c := range s.corrections {
			fmt.Fprintf(&b, "- User corrected: %s → %s\n", c.Original, c.Corrected)
		}
	}

	return b.String()
}

// recentEntities returns up to summaryLimit entities ordered by recency.
// Ties break the same way pronoun resolution does (mention count, then
// latest insertion) so the summary and the resolver agree on "recent".
func (s *Store) recentEntities() []*Entity {
	if len(s.entities) == 0 {
		return nil
	}

	// Insertion position per key, for a deterministic final tie-break.
	pos := make(map[string]int, len(s.order))
	for i, key := range s.order {
		pos[key] = i
	}

	keys := make([]string, len(s.order))
	copy(keys, s.order)
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := s.entities[keys[i]], s.entities[keys[j]]
		if a.TurnLastMentioned != b.TurnLastMentioned {
			return a.TurnLastMentioned > b.TurnLastMentioned
		}
		if a.MentionCount != b.MentionCount {
			return a.MentionCount > b.MentionCount
		}
		return pos[keys[i]] > pos[keys[j]]
	})

	limit := s.summaryLimit
	if limit > len(keys) {
		limit = len(keys)
	}

	out := make([]*Entity, 0, limit)
	for _, key := range keys[:limit] {
		out = append(out, s.entities[key])
	}
	return out
}
