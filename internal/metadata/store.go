package metadata

// defaultSummaryEntities bounds the "Recently Mentioned" section of the
// context summary.
const defaultSummaryEntities = 5

// Store is the aggregate root of one conversation's memory: the turn
// counter, the entity map, the single optional numbered list, and the
// ordered correction log.
//
// A Store is exclusively owned by one conversation session and is used
// strictly sequentially; it performs no locking of its own. The surrounding
// session layer is responsible for ensuring only one request per session
// processes a turn at a time.
type Store struct {
	turn         int
	entities     map[string]*Entity
	order        []string // normalized keys in insertion order, for tie-breaks
	list         *NumberedList
	corrections  []Correction
	summaryLimit int
}

// NewStore returns an empty store at turn 0.
func NewStore() *Store {
	return &Store{
		entities:     make(map[string]*Entity),
		summaryLimit: defaultSummaryEntities,
	}
}

// SetSummaryLimit overrides the number of entities shown in the
// "Recently Mentioned" summary section. Values below 1 are ignored.
func (s *Store) SetSummaryLimit(n int) {
	if n >= 1 {
		s.summaryLimit = n
	}
}

// CurrentTurn returns the conversation's turn counter.
func (s *Store) CurrentTurn() int {
	return s.turn
}

// IncrementTurn advances the turn counter by one. It must run exactly once
// per conversational exchange, before that exchange's tracking calls, so
// entities introduced within a turn share the turn's index. ProcessTurn
// sequences this correctly; callers driving the store manually must
// preserve the ordering themselves.
func (s *Store) IncrementTurn() {
	s.turn++
}

// TrackEntity inserts a new entity or merges into an existing one matched by
// normalized name. On merge the recency stamp and mention count advance and
// metadata is shallow-merged with new keys overwriting old. Entities with an
// empty name are silently ignored; extraction is heuristic and can misfire.
func (s *Store) TrackEntity(e Entity) {
	key := NormalizeName(e.Value)
	if key == "" {
		return
	}

	if existing, ok := s.entities[key]; ok {
		existing.TurnLastMentioned = s.turn
		existing.MentionCount++
		if len(e.Metadata) > 0 {
			if existing.Metadata == nil {
				existing.Metadata = make(map[string]string, len(e.Metadata))
			}
			for k, v := range e.Metadata {
				existing.Metadata[k] = v
			}
		}
		// A specific kind wins over "other"; a merge never downgrades.
		if existing.Kind == KindOther && e.Kind != KindOther && e.Kind != "" {
			existing.Kind = e.Kind
		}
		return
	}

	kind := e.Kind
	if kind == "" {
		kind = KindOther
	}

	var meta map[string]string
	if len(e.Metadata) > 0 {
		meta = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
	}

	s.entities[key] = &Entity{
		Value:             e.Value,
		Kind:              kind,
		Metadata:          meta,
		TurnIntroduced:    s.turn,
		TurnLastMentioned: s.turn,
		MentionCount:      1,
	}
	s.order = append(s.order, key)
}

// TrackList replaces the active numbered list wholesale with one built from
// items, stamped with the current turn. Items are re-indexed 1..n in the
// order given; entries with empty names are dropped. An empty items slice
// clears the active list.
func (s *Store) TrackList(items []ListItem) {
	kept := make([]ListItem, 0, len(items))
	for _, item := range items {
		if NormalizeName(item.Name) == "" {
			continue
		}
		var meta map[string]string
		if len(item.Metadata) > 0 {
			meta = make(map[string]string, len(item.Metadata))
			for k, v := range item.Metadata {
				meta[k] = v
			}
		}
		kept = append(kept, ListItem{
			Index:    len(kept) + 1,
			Name:     item.Name,
			Metadata: meta,
		})
	}

	if len(kept) == 0 {
		s.list = nil
		return
	}

	s.list = &NumberedList{Items: kept, TurnCreated: s.turn}
}

// TrackCorrection appends a correction record stamped with the current turn.
// Repeated identical corrections each append; repetition is a signal worth
// preserving in order. Records with an empty side, or where both sides are
// the same value, are ignored.
func (s *Store) TrackCorrection(original, corrected, sourceText string) {
	if NormalizeName(original) == "" || NormalizeName(corrected) == "" {
		return
	}
	if NormalizeName(original) == NormalizeName(corrected) {
		return
	}

	s.corrections = append(s.corrections, Correction{
		Original:   original,
		Corrected:  corrected,
		Turn:       s.turn,
		SourceText: sourceText,
	})
}

// ResolveListItem returns a copy of the active list's item at the 1-based
// index, or nil when no list is active or the index is out of range.
func (s *Store) ResolveListItem(index int) *ListItem {
	if s.list == nil || index < 1 || index > len(s.list.Items) {
		return nil
	}
	item := s.list.Items[index-1]
	return &item
}

// ActiveList returns the active numbered list, or nil.
func (s *Store) ActiveList() *NumberedList {
	return s.list
}

// Corrections returns the correction log in chronological order. The
// returned slice is shared; callers must not modify it.
func (s *Store) Corrections() []Correction {
	return s.corrections
}

// EntityCount returns the number of distinct tracked entities.
func (s *Store) EntityCount() int {
	return len(s.entities)
}

// Entity returns a copy of the tracked entity whose name normalizes to the
// same key as name, or nil.
func (s *Store) Entity(name string) *Entity {
	e, ok := s.entities[NormalizeName(name)]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// ProcessTurn runs one full conversational exchange against the store: the
// turn increment, reference resolution of the user message against the
// previous turns' state, then extraction and correction/list/entity
// tracking. Using ProcessTurn instead of the raw tracking calls keeps the
// "increment exactly once per turn" protocol in one place.
//
// userText is the user message that opened the turn; aiText is the
// assistant response for it (may be empty when the assistant has not
// replied yet). The returned resolution grounds phrases like "item 2" or
// "it" and is nil when nothing matched.
func (s *Store) ProcessTurn(userText, aiText string, ex Extractor) *Resolution {
	s.IncrementTurn()

	var extracted Extraction
	if ex != nil {
		extracted = ex.Extract(userText, aiText)
	}

	// Resolving the user's reference counts as a mention: "tell me more
	// about item 2" promotes that item to the freshest antecedent. A
	// correction utterance is not a reference — phrasings like "it's ZF4
	// not ZF5" contain pronouns that must not re-promote the entity being
	// corrected away from.
	var res *Resolution
	if len(extracted.Corrections) == 0 {
		res = s.ResolveReference(userText)
		if res != nil {
			kind := KindOther
			if res.Source == SourceList {
				kind = KindProduct
			}
			s.TrackEntity(Entity{Value: res.Value, Kind: kind, Metadata: res.Metadata})
		}
	}

	for _, c := range extracted.Corrections {
		original := c.Original
		if original == "" {
			// "no, I meant X" names no original; the most recently
			// mentioned entity is what the user is correcting away from.
			if prev := s.mostRecentEntity(); prev != nil {
				original = prev.Value
			}
		}
		s.TrackCorrection(original, c.Corrected, c.SourceText)
		// The corrected value is what the user actually means now, so it
		// becomes the freshest mention for pronoun resolution.
		s.TrackEntity(Entity{Value: c.Corrected, Kind: KindOther})
	}

	// Only the last presented list survives; earlier ones in the same
	// response are superseded immediately.
	for _, list := range extracted.Lists {
		s.TrackList(list)
	}

	for _, e := range extracted.Entities {
		s.TrackEntity(e)
	}

	return res
}
