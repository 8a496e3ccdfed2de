package metadata

import "encoding/json"

// codecVersion is bumped whenever the blob layout changes incompatibly.
// Unmarshal treats an unknown version as corruption and starts fresh; a
// stale blob must never break a conversation.
const codecVersion = 1

// storeSnapshot is the wire form of a Store. Entities are written in
// insertion order so rehydration reproduces the resolver's tie-break
// behavior exactly.
type storeSnapshot struct {
	Version     int           `json:"version"`
	Turn        int           `json:"turn"`
	Entities    []Entity      `json:"entities,omitempty"`
	List        *NumberedList `json:"list,omitempty"`
	Corrections []Correction  `json:"corrections,omitempty"`
}

// Marshal serializes the store to a transportable string. It is a pure
// function of store state: no I/O, no timestamps, no randomness.
func (s *Store) Marshal() string {
	snap := storeSnapshot{
		Version:     codecVersion,
		Turn:        s.turn,
		List:        s.list,
		Corrections: s.corrections,
	}
	for _, key := range s.order {
		snap.Entities = append(snap.Entities, *s.entities[key])
	}

	// Marshaling plain structs of strings and ints cannot fail.
	b, _ := json.Marshal(snap)
	return string(b)
}

// Unmarshal parses a blob produced by Marshal and returns a populated
// store. Malformed, truncated, or otherwise unparseable input yields a
// fresh empty store at turn 0 — never an error. A conversation whose stored
// blob got corrupted degrades to "no memory" instead of failing every
// subsequent turn.
//
// Individual invalid records inside an otherwise well-formed blob are
// dropped rather than rejecting the whole blob.
func Unmarshal(blob string) *Store {
	store := NewStore()

	var snap storeSnapshot
	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		return store
	}
	if snap.Version != codecVersion || snap.Turn < 0 {
		return store
	}

	store.turn = snap.Turn

	for _, e := range snap.Entities {
		key := NormalizeName(e.Value)
		if key == "" {
			continue
		}
		if _, dup := store.entities[key]; dup {
			continue
		}
		store.entities[key] = sanitizeEntity(e, snap.Turn)
		store.order = append(store.order, key)
	}

	if snap.List != nil {
		items := make([]ListItem, 0, len(snap.List.Items))
		for _, item := range snap.List.Items {
			if NormalizeName(item.Name) == "" {
				continue
			}
			item.Index = len(items) + 1
			items = append(items, item)
		}
		if len(items) > 0 {
			turnCreated := snap.List.TurnCreated
			if turnCreated < 0 || turnCreated > snap.Turn {
				turnCreated = 0
			}
			store.list = &NumberedList{Items: items, TurnCreated: turnCreated}
		}
	}

	for _, c := range snap.Corrections {
		if NormalizeName(c.Original) == "" || NormalizeName(c.Corrected) == "" {
			continue
		}
		if NormalizeName(c.Original) == NormalizeName(c.Corrected) {
			continue
		}
		if c.Turn < 0 {
			c.Turn = 0
		}
		store.corrections = append(store.corrections, c)
	}

	return store
}

// sanitizeEntity clamps a deserialized entity back into its invariants:
// non-negative turns, last-mention >= introduction, mention count >= 1.
func sanitizeEntity(e Entity, currentTurn int) *Entity {
	if e.TurnIntroduced < 0 {
		e.TurnIntroduced = 0
	}
	if e.TurnIntroduced > currentTurn {
		e.TurnIntroduced = currentTurn
	}
	if e.TurnLastMentioned < e.TurnIntroduced {
		e.TurnLastMentioned = e.TurnIntroduced
	}
	if e.TurnLastMentioned > currentTurn {
		e.TurnLastMentioned = currentTurn
	}
	if e.MentionCount < 1 {
		e.MentionCount = 1
	}
	switch e.Kind {
	case KindProduct, KindOrder, KindOther:
	default:
		e.Kind = KindOther
	}
	return &e
}
