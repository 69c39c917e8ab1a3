package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const cueSeparator = ";"

var cueHeader = regexp.MustCompile(`\[(\d+(?:\.\d+)?)-(\d+(?:\.\d+)?)\]:`)

// Serialize renders cues as "[start-end]:text" joined by ";". Times use the
// shortest decimal form, so 1.5 renders as "1.5" and 2 as "2".
func Serialize(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		if i > 0 {
			b.WriteString(cueSeparator)
		}
		b.WriteByte('[')
		b.WriteString(formatSeconds(cue.StartTime))
		b.WriteByte('-')
		b.WriteString(formatSeconds(cue.EndTime))
		b.WriteString("]:")
		b.WriteString(cue.Text)
	}
	return b.String()
}

// ParseSerialized reverses Serialize. Cue text must not itself contain a
// "[n-m]:" sequence, which is indistinguishable from a cue header.
func ParseSerialized(s string) ([]Cue, error) {
	if s == "" {
		return nil, nil
	}

	matches := cueHeader.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 || matches[0][0] != 0 {
		return nil, fmt.Errorf("serialized subtitles must start with a cue header")
	}

	cues := make([]Cue, 0, len(matches))
	for i, m := range matches {
		start, err := strconv.ParseFloat(s[m[2]:m[3]], 64)
		if err != nil {
			return nil, fmt.Errorf("cue %d start: %w", i, err)
		}
		end, err := strconv.ParseFloat(s[m[4]:m[5]], 64)
		if err != nil {
			return nil, fmt.Errorf("cue %d end: %w", i, err)
		}

		textEnd := len(s)
		if i+1 < len(matches) {
			textEnd = matches[i+1][0]
			if textEnd == 0 || s[textEnd-1:textEnd] != cueSeparator {
				return nil, fmt.Errorf("cue %d is not followed by %q", i, cueSeparator)
			}
			textEnd--
		}
		cues = append(cues, Cue{StartTime: start, EndTime: end, Text: s[m[1]:textEnd]})
	}
	return cues, nil
}

func formatSeconds(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
