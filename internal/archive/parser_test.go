package archive

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseTopLevelArray(t *testing.T) {
	raw := []byte(`[
		{"id": "c1", "title": "Cooking", "create_time": 1700000000, "messages": [
			{"role": "user", "content": "How do I make a roux?", "create_time": 1700000001},
			{"role": "assistant", "content": "Melt butter...", "create_time": 1700000002},
			{"role": "user", "content": "Thanks!", "create_time": 1700000003}
		]}
	]`)

	records, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.ID != "c1" || rec.Title != "Cooking" {
		t.Fatalf("unexpected record identity: %+v", rec)
	}
	want := []string{"How do I make a roux?", "Thanks!"}
	if !reflect.DeepEqual(rec.UserMessages, want) {
		t.Fatalf("expected user messages %v, got %v", want, rec.UserMessages)
	}
	if rec.CreatedAt == nil {
		t.Fatal("expected createdAt to be populated")
	}
}

func TestParseNestedUnderKey(t *testing.T) {
	raw := []byte(`{
		"version": "1.0",
		"conversations": [
			{"id": "c1", "messages": [{"role": "user", "text": "hello"}]}
		]
	}`)

	records, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(records) != 1 || records[0].UserMessages[0] != "hello" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestParseMappingTakesPrecedence(t *testing.T) {
	raw := []byte(`[{
		"id": "c1",
		"mapping": {
			"b": {"message": {"author": {"role": "user"}, "content": {"parts": ["second"]}, "create_time": 200}},
			"a": {"message": {"author": {"role": "user"}, "content": {"parts": ["first"]}, "create_time": 100}},
			"c": {"message": {"author": {"role": "assistant"}, "content": {"parts": ["ignored"]}, "create_time": 150}}
		},
		"messages": [{"role": "user", "text": "from flat list"}]
	}]`)

	records, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := []string{"first", "second"}
	if !reflect.DeepEqual(records[0].UserMessages, want) {
		t.Fatalf("expected mapping messages %v, got %v", want, records[0].UserMessages)
	}
}

func TestParseSkipsConversationsWithoutUserText(t *testing.T) {
	raw := []byte(`[
		{"id": "assistant-only", "messages": [{"role": "assistant", "content": "hi"}]},
		{"id": "empty-content", "messages": [{"role": "user", "content": ""}]},
		{"id": "kept", "messages": [{"role": "user", "content": "real question"}]}
	]`)

	records, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(records) != 1 || records[0].ID != "kept" {
		t.Fatalf("expected only the conversation with user text, got %+v", records)
	}
}

func TestParseClaudeStyleExport(t *testing.T) {
	raw := []byte(`{"chats": [
		{"uuid": "u-1", "name": "Trip planning", "created_at": "2024-03-01T10:00:00Z", "chat_messages": [
			{"sender": "human", "text": "Plan a trip to Kyoto"},
			{"sender": "assistant", "text": "Sure..."}
		]}
	]}`)

	records, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != "u-1" || records[0].Title != "Trip planning" {
		t.Fatalf("unexpected identity: %+v", records[0])
	}
	if records[0].UserMessages[0] != "Plan a trip to Kyoto" {
		t.Fatalf("unexpected messages: %v", records[0].UserMessages)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "this is not json"},
		{"no array anywhere", `{"a": 1, "b": {"c": 2}}`},
		{"scalar root", `42`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			if !errors.Is(err, ErrMalformedArchive) {
				t.Fatalf("expected ErrMalformedArchive, got %v", err)
			}
		})
	}
}

func TestParseFallbackIDStable(t *testing.T) {
	raw := []byte(`[{"title": "No id here", "messages": [{"role": "user", "content": "hello"}]}]`)

	first, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	second, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if first[0].ID == "" {
		t.Fatal("expected synthesized id")
	}
	if first[0].ID != second[0].ID {
		t.Fatalf("fallback id not stable: %s vs %s", first[0].ID, second[0].ID)
	}
}

func TestParseIdempotent(t *testing.T) {
	raw := []byte(`[
		{"id": "c2", "mapping": {
			"n1": {"message": {"author": {"role": "user"}, "content": {"parts": ["alpha"]}}},
			"n2": {"message": {"author": {"role": "user"}, "content": {"parts": ["beta"]}}}
		}},
		{"id": "c1", "messages": [
			{"role": "user", "content": "late", "create_time": 300},
			{"role": "user", "content": "early", "create_time": 100}
		]}
	]`)

	first, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	second, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("parsing is not idempotent:\n%s\n%s", a, b)
	}
	if !reflect.DeepEqual(first[1].UserMessages, []string{"early", "late"}) {
		t.Fatalf("expected timestamp ordering, got %v", first[1].UserMessages)
	}
}

func TestParsePreservesEncounterOrderWithoutTimestamps(t *testing.T) {
	raw := []byte(`[{"id": "c1", "messages": [
		{"role": "user", "content": "one"},
		{"role": "user", "content": "two"},
		{"role": "user", "content": "three"}
	]}]`)

	records, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(records[0].UserMessages, want) {
		t.Fatalf("expected encounter order %v, got %v", want, records[0].UserMessages)
	}
}
