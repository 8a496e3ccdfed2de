package metadata

import (
	"strings"
	"testing"
)

func populatedStore() *Store {
	s := NewStore()
	s.IncrementTurn()
	s.TrackEntity(Entity{Value: "ZF4 Hydraulic Pump", Kind: KindProduct, Metadata: map[string]string{MetaURL: "https://shop.example/zf4"}})
	s.TrackList([]ListItem{
		{Name: "ZF4 Hydraulic Pump"},
		{Name: "ZF5 Hydraulic Pump"},
	})
	s.IncrementTurn()
	s.TrackEntity(Entity{Value: "ZF5 Hydraulic Pump", Kind: KindProduct})
	s.TrackCorrection("ZF5", "ZF4", "I meant ZF4 not ZF5")
	return s
}

func TestMarshalRoundTrip(t *testing.T) {
	s := populatedStore()
	blob := s.Marshal()

	restored := Unmarshal(blob)

	if restored.CurrentTurn() != s.CurrentTurn() {
		t.Errorf("turn mismatch: got %d, want %d", restored.CurrentTurn(), s.CurrentTurn())
	}
	if restored.EntityCount() != s.EntityCount() {
		t.Errorf("entity count mismatch: got %d, want %d", restored.EntityCount(), s.EntityCount())
	}
	if restored.ContextSummary() != s.ContextSummary() {
		t.Errorf("summary mismatch after round trip:\ngot:\n%s\nwant:\n%s",
			restored.ContextSummary(), s.ContextSummary())
	}
	if restored.Marshal() != blob {
		t.Error("expected round trip to be byte-identical")
	}

	// Resolution behavior must survive the round trip.
	res := restored.ResolveReference("item 2")
	if res == nil || res.Value != "ZF5 Hydraulic Pump" {
		t.Errorf("expected list resolution after round trip, got %+v", res)
	}
	res = restored.ResolveReference("it")
	if res == nil || res.Value != "ZF5 Hydraulic Pump" {
		t.Errorf("expected pronoun resolution after round trip, got %+v", res)
	}
}

func TestUnmarshalCorruptedBlob(t *testing.T) {
	for _, blob := range []string{
		"corrupted-data",
		"",
		"{",
		`{"version":1,"turn":`,
		"null",
		`[1,2,3]`,
	} {
		s := Unmarshal(blob)
		if s == nil {
			t.Fatalf("Unmarshal(%q) returned nil", blob)
		}
		if s.CurrentTurn() != 0 {
			t.Errorf("Unmarshal(%q): expected turn 0, got %d", blob, s.CurrentTurn())
		}
		if s.ContextSummary() != "" {
			t.Errorf("Unmarshal(%q): expected empty summary", blob)
		}
	}
}

func TestUnmarshalVersionMismatch(t *testing.T) {
	s := Unmarshal(`{"version":99,"turn":5,"entities":[{"value":"ZF4"}]}`)
	if s.CurrentTurn() != 0 || s.EntityCount() != 0 {
		t.Errorf("expected fresh store for unknown version, got turn %d, %d entities",
			s.CurrentTurn(), s.EntityCount())
	}
}

func TestUnmarshalNegativeTurn(t *testing.T) {
	s := Unmarshal(`{"version":1,"turn":-3}`)
	if s.CurrentTurn() != 0 {
		t.Errorf("expected fresh store for negative turn, got %d", s.CurrentTurn())
	}
}

func TestUnmarshalDropsInvalidRecords(t *testing.T) {
	blob := `{"version":1,"turn":5,"entities":[` +
		`{"value":"ZF4","kind":"product","turn_introduced":1,"turn_last_mentioned":2,"mention_count":2},` +
		`{"value":"   "},` +
		`{"value":"zf4","kind":"product"},` +
		`{"value":"ZF5","kind":"martian","turn_introduced":-1,"turn_last_mentioned":99,"mention_count":0}` +
		`],"corrections":[` +
		`{"original":"ZF5","corrected":"ZF4","turn":-2},` +
		`{"original":"","corrected":"ZF4"},` +
		`{"original":"ZF4","corrected":"zf4"}` +
		`]}`

	s := Unmarshal(blob)

	if s.CurrentTurn() != 5 {
		t.Errorf("expected turn 5, got %d", s.CurrentTurn())
	}
	if s.EntityCount() != 2 {
		t.Fatalf("expected blank and duplicate entities dropped, got %d", s.EntityCount())
	}

	zf5 := s.Entity("ZF5")
	if zf5.Kind != KindOther {
		t.Errorf("expected unknown kind clamped to other, got %q", zf5.Kind)
	}
	if zf5.TurnIntroduced != 0 || zf5.TurnLastMentioned != 5 || zf5.MentionCount != 1 {
		t.Errorf("expected clamped stamps, got %+v", zf5)
	}

	got := s.Corrections()
	if len(got) != 1 {
		t.Fatalf("expected invalid corrections dropped, got %d", len(got))
	}
	if got[0].Turn != 0 {
		t.Errorf("expected negative correction turn clamped to 0, got %d", got[0].Turn)
	}
}

func TestUnmarshalSanitizesList(t *testing.T) {
	blob := `{"version":1,"turn":3,"list":{"items":[` +
		`{"index":9,"name":"ZF4"},{"index":2,"name":"  "},{"index":1,"name":"ZF5"}` +
		`],"turn_created":7}}`

	s := Unmarshal(blob)
	list := s.ActiveList()
	if list == nil {
		t.Fatal("expected a list")
	}
	if len(list.Items) != 2 || list.Items[0].Index != 1 || list.Items[1].Index != 2 {
		t.Errorf("expected re-indexed list without blanks, got %+v", list.Items)
	}
	if list.TurnCreated != 0 {
		t.Errorf("expected implausible turn_created clamped to 0, got %d", list.TurnCreated)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	s := populatedStore()
	if s.Marshal() != s.Marshal() {
		t.Error("expected repeated Marshal calls to agree")
	}
	if !strings.Contains(s.Marshal(), `"version":1`) {
		t.Errorf("expected version field in blob: %s", s.Marshal())
	}
}
