package classifier

import (
	"bytes"
	"encoding/json"
	"strings"
)

// extractJSON pulls a JSON document out of free model text. Models often
// wrap their answer in a fenced code block or surround it with prose.
func extractJSON(text string) (json.RawMessage, bool) {
	s := strings.TrimSpace(text)
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := strings.TrimPrefix(s[idx+3:], "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), true
	}
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i && json.Valid([]byte(s[i:j+1])) {
			return json.RawMessage(s[i : j+1]), true
		}
	}
	if bytes.EqualFold(bytes.TrimSpace([]byte(s)), []byte("null")) {
		return json.RawMessage("null"), true
	}
	return nil, false
}
