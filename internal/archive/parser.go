package archive

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedArchive indicates the archive bytes are not valid JSON or no
// conversation array could be discovered. This is the only pipeline-fatal
// parse outcome; individual unusable conversations are skipped instead.
var ErrMalformedArchive = errors.New("archive: malformed archive")

// Parse normalizes an export archive into conversation records. It accepts a
// top-level array or an object whose first array-valued key (in document
// order) holds the conversations. Conversations without user-authored text
// are skipped, never fabricated.
func Parse(raw []byte) ([]ConversationRecord, error) {
	items, err := conversationArray(raw)
	if err != nil {
		return nil, err
	}

	records := make([]ConversationRecord, 0, len(items))
	for i, item := range items {
		rec, ok := parseConversation(item, i)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// conversationArray locates the conversation list. A token-stream walk keeps
// "first array-valued key" deterministic; map decoding would lose key order.
func conversationArray(raw []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not an array or object", ErrMalformedArchive)
	}

	switch delim {
	case '[':
		var items []json.RawMessage
		for dec.More() {
			var item json.RawMessage
			if err := dec.Decode(&item); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
			}
			items = append(items, item)
		}
		return items, nil
	case '{':
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
			}
			var value json.RawMessage
			if err := dec.Decode(&value); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
			}
			if isJSONArray(value) {
				var items []json.RawMessage
				if err := json.Unmarshal(value, &items); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
				}
				return items, nil
			}
		}
		return nil, fmt.Errorf("%w: no conversation array found", ErrMalformedArchive)
	default:
		return nil, fmt.Errorf("%w: unexpected top-level delimiter", ErrMalformedArchive)
	}
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

type rawConversation struct {
	ID             string                `json:"id"`
	ConversationID string                `json:"conversation_id"`
	UUID           string                `json:"uuid"`
	Title          string                `json:"title"`
	Name           string                `json:"name"`
	CreateTime     flexTime              `json:"create_time"`
	CreatedAt      flexTime              `json:"created_at"`
	Mapping        map[string]rawNode    `json:"mapping"`
	Messages       []rawMessage          `json:"messages"`
	ChatMessages   []rawMessage          `json:"chat_messages"`
}

type rawNode struct {
	Message *rawMessage `json:"message"`
}

type rawMessage struct {
	Author struct {
		Role string `json:"role"`
	} `json:"author"`
	Role       string     `json:"role"`
	Sender     string     `json:"sender"`
	Content    rawContent `json:"content"`
	Text       string     `json:"text"`
	CreateTime flexTime   `json:"create_time"`
	CreatedAt  flexTime   `json:"created_at"`
	Timestamp  flexTime   `json:"timestamp"`
}

func (m *rawMessage) role() string {
	switch {
	case m.Author.Role != "":
		return m.Author.Role
	case m.Role != "":
		return m.Role
	default:
		return m.Sender
	}
}

func (m *rawMessage) text() string {
	if t := strings.TrimSpace(m.Text); t != "" {
		return t
	}
	return strings.TrimSpace(m.Content.text)
}

func (m *rawMessage) time() time.Time {
	for _, t := range []time.Time{m.CreateTime.t, m.CreatedAt.t, m.Timestamp.t} {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

func isUserRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "human":
		return true
	default:
		return false
	}
}

func parseConversation(raw json.RawMessage, index int) (ConversationRecord, bool) {
	var conv rawConversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return ConversationRecord{}, false
	}

	created := conv.CreateTime.t
	if created.IsZero() {
		created = conv.CreatedAt.t
	}

	type timedText struct {
		text string
		at   time.Time
	}

	var entries []timedText
	collect := func(msg *rawMessage) {
		if msg == nil || !isUserRole(msg.role()) {
			return
		}
		text := msg.text()
		if text == "" {
			return
		}
		at := msg.time()
		if at.IsZero() {
			at = created
		}
		entries = append(entries, timedText{text: text, at: at})
	}

	// A mapping of nodes takes precedence over a flat message list. Mapping
	// iteration order is randomized, so walk keys sorted before the
	// timestamp sort to keep parsing idempotent.
	switch {
	case len(conv.Mapping) > 0:
		keys := make([]string, 0, len(conv.Mapping))
		for k := range conv.Mapping {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collect(conv.Mapping[k].Message)
		}
	case len(conv.Messages) > 0:
		for i := range conv.Messages {
			collect(&conv.Messages[i])
		}
	default:
		for i := range conv.ChatMessages {
			collect(&conv.ChatMessages[i])
		}
	}

	if len(entries) == 0 {
		return ConversationRecord{}, false
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].at.IsZero() || entries[j].at.IsZero() {
			return false
		}
		return entries[i].at.Before(entries[j].at)
	})

	messages := make([]string, len(entries))
	for i, e := range entries {
		messages[i] = e.text
	}

	rec := ConversationRecord{
		Title:        firstNonEmpty(conv.Title, conv.Name),
		UserMessages: messages,
	}
	if !created.IsZero() {
		t := created
		rec.CreatedAt = &t
	}

	rec.ID = firstNonEmpty(conv.ID, conv.ConversationID, conv.UUID)
	if rec.ID == "" {
		rec.ID = fallbackID(rec.Title, messages[0], index)
	}
	return rec, true
}

// fallbackID derives a stable id for archives that omit one, so repeated
// parses of the same bytes produce identical records.
func fallbackID(title, firstMessage string, index int) string {
	sum := sha256.Sum256([]byte(title + "\x00" + firstMessage + "\x00" + strconv.Itoa(index)))
	return "conv-" + hex.EncodeToString(sum[:])[:12]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// rawContent tolerates the content shapes seen across export formats: a bare
// string, an object with parts or text, or a list of text blocks.
type rawContent struct {
	text string
}

func (c *rawContent) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c.text = s
		return nil
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(b, &blocks); err == nil {
		c.text = joinTextBlocks(blocks)
		return nil
	}

	var obj struct {
		Text  string            `json:"text"`
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		// Unknown content shape; treat as empty rather than failing the record.
		return nil
	}
	if obj.Text != "" {
		c.text = obj.Text
		return nil
	}
	c.text = joinTextBlocks(obj.Parts)
	return nil
}

func joinTextBlocks(blocks []json.RawMessage) string {
	var sb strings.Builder
	for _, block := range blocks {
		var s string
		if err := json.Unmarshal(block, &s); err == nil {
			appendPart(&sb, s)
			continue
		}
		var nested struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(block, &nested); err == nil {
			appendPart(&sb, nested.Text)
		}
	}
	return sb.String()
}

func appendPart(sb *strings.Builder, part string) {
	part = strings.TrimSpace(part)
	if part == "" {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(part)
}

// flexTime accepts epoch seconds (integer or fractional) and RFC3339 strings.
// Unparseable values stay zero instead of failing the conversation.
type flexTime struct {
	t time.Time
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}

	var seconds float64
	if err := json.Unmarshal(trimmed, &seconds); err == nil {
		if seconds > 0 {
			sec := int64(seconds)
			nsec := int64((seconds - float64(sec)) * float64(time.Second))
			f.t = time.Unix(sec, nsec).UTC()
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			f.t = t.UTC()
			return nil
		}
	}
	return nil
}
