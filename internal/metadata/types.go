// Package metadata implements the conversation memory core: turn-indexed
// entity tracking, numbered-list tracking, correction history, reference
// resolution, context summarization, and a fault-tolerant persistence codec.
//
// One Store instance belongs to exactly one conversation session. The store
// is mutated only through its tracking methods and is rehydrated between
// stateless HTTP requests via Marshal/Unmarshal.
package metadata

import "strings"

// Kind classifies what a tracked entity refers to.
type Kind string

// Entity kinds. The conversational-commerce vocabulary is small on purpose:
// anything that is not a product or an order is tracked as "other".
const (
	KindProduct Kind = "product"
	KindOrder   Kind = "order"
	KindOther   Kind = "other"
)

// Known metadata keys. The metadata bag stays open for forward compatibility,
// but these are the keys the rest of the system reads.
const (
	MetaURL   = "url"
	MetaPrice = "price"
)

// Entity is a tracked real-world referent, typically a product the assistant
// mentioned or the user asked about.
type Entity struct {
	// Value is the display name. Entities with an empty value are ignored
	// by the store.
	Value string `json:"value"`

	// Kind classifies the referent (product, order, other).
	Kind Kind `json:"kind"`

	// Metadata holds open string-keyed attributes such as url and price.
	Metadata map[string]string `json:"metadata,omitempty"`

	// TurnIntroduced is the turn on which the entity was first tracked.
	TurnIntroduced int `json:"turn_introduced"`

	// TurnLastMentioned is the most recent turn the entity was mentioned.
	// Always >= TurnIntroduced.
	TurnLastMentioned int `json:"turn_last_mentioned"`

	// MentionCount is the total number of times the entity was tracked.
	MentionCount int `json:"mention_count"`
}

// ListItem is one entry of a numbered list the assistant presented.
type ListItem struct {
	// Index is the 1-based position within the list.
	Index int `json:"index"`

	// Name is the item's display name.
	Name string `json:"name"`

	// Metadata holds open string-keyed attributes such as url and price.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NumberedList is the most recent ordered list of options presented to the
// user. At most one list is active per conversation; a newly presented list
// replaces the previous one wholesale.
type NumberedList struct {
	Items       []ListItem `json:"items"`
	TurnCreated int        `json:"turn_created"`
}

// Correction records a user-initiated replacement of a previously stated
// value ("sorry I meant ZF4 not ZF5"). Corrections are append-only and are
// surfaced in every context summary so the assistant does not repeat the
// mistake.
type Correction struct {
	Original   string `json:"original"`
	Corrected  string `json:"corrected"`
	Turn       int    `json:"turn"`
	SourceText string `json:"source_text,omitempty"`
}

// ResolutionSource identifies which strategy produced a Resolution.
type ResolutionSource string

const (
	// SourceList means the reference matched the active numbered list.
	SourceList ResolutionSource = "list"

	// SourcePronoun means a bare pronoun resolved to the most recently
	// mentioned entity.
	SourcePronoun ResolutionSource = "pronoun"

	// SourceName means the text matched a tracked entity name.
	SourceName ResolutionSource = "name"
)

// Resolution is the result of resolving an ambiguous user phrase against the
// store. A nil Resolution means no strategy matched; that is an expected
// outcome, not an error.
type Resolution struct {
	// Value is the resolved display name.
	Value string `json:"value"`

	// Metadata mirrors the resolved entity's or list item's metadata.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Source identifies the strategy that matched.
	Source ResolutionSource `json:"source"`

	// ListIndex is the 1-based list position when Source is SourceList.
	ListIndex int `json:"list_index,omitempty"`
}

// CorrectionInput is a correction candidate produced by an Extractor, before
// the store stamps it with the current turn.
type CorrectionInput struct {
	Original   string
	Corrected  string
	SourceText string
}

// Extraction is the output of one extraction pass over a user message and
// the assistant response that preceded it.
type Extraction struct {
	// Entities are candidate entities in mention order.
	Entities []Entity

	// Corrections are detected correction phrasings from the user text.
	Corrections []CorrectionInput

	// Lists are detected numbered lists from the assistant text, in
	// document order. Only the last one becomes the active list.
	Lists [][]ListItem
}

// Extractor turns raw conversation text into tracking candidates. The
// matching rules are heuristic and pluggable; the store never parses text
// itself.
type Extractor interface {
	Extract(userText, aiText string) Extraction
}

// NormalizeName produces the identity key for an entity name: lowercased
// with runs of whitespace collapsed to single spaces. Re-mentioning a name
// that normalizes to the same key updates the existing entity instead of
// creating a duplicate.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
