package organize

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// SessionRecord is one conversation from a ChatGPT export. The export stores
// messages as a graph of nodes keyed by opaque ids; only the node's optional
// message payload matters here.
type SessionRecord struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	CreateTime *float64            `json:"create_time"`
	UpdateTime *float64            `json:"update_time"`
	Mapping    map[string]*MapNode `json:"mapping"`
}

// MapNode is one entry in a conversation's message graph.
type MapNode struct {
	Message *MessageNode `json:"message"`
}

// MessageNode is the message payload of a graph node. Content is usually
// { "content_type": ..., "parts": [...] } but some exports carry a plain
// string, or the text under a sibling field.
type MessageNode struct {
	CreateTime *float64        `json:"create_time"`
	Content    json.RawMessage `json:"content"`
	Text       string          `json:"text"`
	Body       string          `json:"message"`
}

// SessionSummary is the read-only projection of a session used in results.
// Times have the canonical shape "YYYY-MM-DD HH:MM", or "Unknown".
type SessionSummary struct {
	Title        string `json:"title"`
	ID           string `json:"id"`
	CreateTime   string `json:"create_time"`
	UpdateTime   string `json:"update_time"`
	MessageCount int    `json:"message_count"`
}

// CategorizedSession is a SessionSummary plus its assigned category.
type CategorizedSession struct {
	SessionSummary
	Category string `json:"category"`
}

// ParseExport decodes an export document, which is either a single session
// object or an array of session objects.
func ParseExport(data []byte) ([]SessionRecord, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("ParseExport: empty document")
	}
	if strings.HasPrefix(trimmed, "[") {
		var sessions []SessionRecord
		if err := json.Unmarshal(data, &sessions); err != nil {
			return nil, fmt.Errorf("ParseExport: unmarshal array: %w", err)
		}
		return sessions, nil
	}
	var one SessionRecord
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("ParseExport: unmarshal object: %w", err)
	}
	return []SessionRecord{one}, nil
}

// LoadExport reads and decodes an export file.
func LoadExport(path string) ([]SessionRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadExport: read export: %w", err)
	}
	return ParseExport(b)
}

// SortedMessages returns the session's message nodes ordered by their own
// create_time; a missing timestamp sorts as zero.
func (s SessionRecord) SortedMessages() []*MessageNode {
	if len(s.Mapping) == 0 {
		return nil
	}
	msgs := make([]*MessageNode, 0, len(s.Mapping))
	for _, node := range s.Mapping {
		if node != nil && node.Message != nil {
			msgs = append(msgs, node.Message)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return messageTime(msgs[i]) < messageTime(msgs[j])
	})
	return msgs
}

func messageTime(m *MessageNode) float64 {
	if m == nil || m.CreateTime == nil {
		return 0
	}
	return *m.CreateTime
}

// Summary builds the display projection for a session.
func (s SessionRecord) Summary() SessionSummary {
	return SessionSummary{
		Title:        s.DisplayTitle(),
		ID:           s.DisplayID(),
		CreateTime:   FormatUnixTime(s.CreateTime),
		UpdateTime:   FormatUnixTime(s.UpdateTime),
		MessageCount: len(s.SortedMessages()),
	}
}

// DisplayTitle returns the session title, defaulting to "Untitled".
func (s SessionRecord) DisplayTitle() string {
	if s.Title == "" {
		return "Untitled"
	}
	return s.Title
}

// DisplayID returns the session id, defaulting to "unknown".
func (s SessionRecord) DisplayID() string {
	if s.ID == "" {
		return "unknown"
	}
	return s.ID
}

const (
	digestMaxMessages  = 5
	digestMaxPartChars = 300
	digestMaxParts     = 2
	digestMaxChars     = 2000
)

// Digest renders a short textual summary of the session for classification:
// the title plus the opening messages, capped hard so a batch of digests
// stays inside the model's context comfortably.
func (s SessionRecord) Digest() string {
	parts := []string{"Title: " + s.DisplayTitle()}

	msgs := s.SortedMessages()
	if len(msgs) > digestMaxMessages {
		msgs = msgs[:digestMaxMessages]
	}
	for _, m := range msgs {
		parts = append(parts, m.textFragments()...)
	}
	return clip(strings.Join(parts, "\n"), digestMaxChars)
}

// textFragments extracts up to two short text snippets from a message.
func (m *MessageNode) textFragments() []string {
	if m == nil {
		return nil
	}

	if len(m.Content) > 0 {
		var probe struct {
			ContentType string `json:"content_type"`
			Parts       []any  `json:"parts"`
		}
		if err := json.Unmarshal(m.Content, &probe); err == nil && len(probe.Parts) > 0 {
			var out []string
			for _, p := range probe.Parts {
				if len(out) == digestMaxParts {
					break
				}
				if str, ok := p.(string); ok && str != "" {
					out = append(out, clip(str, digestMaxPartChars))
				}
			}
			if len(out) > 0 {
				return out
			}
		}

		var plain string
		if err := json.Unmarshal(m.Content, &plain); err == nil && plain != "" {
			return []string{clip(plain, digestMaxPartChars)}
		}
	}

	if m.Text != "" {
		return []string{clip(m.Text, digestMaxPartChars)}
	}
	if m.Body != "" {
		return []string{clip(m.Body, digestMaxPartChars)}
	}
	return nil
}

// clip truncates s to at most max bytes, without an ellipsis marker.
func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
