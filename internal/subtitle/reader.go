package subtitle

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/MimeLyc/subtitle-adskip/internal/errs"
)

// trackDocument is the subtitle document served at a track URL.
type trackDocument struct {
	Body []struct {
		From    float64 `json:"from"`
		To      float64 `json:"to"`
		Content string  `json:"content"`
	} `json:"body"`
}

// ReadCues parses a subtitle track document into time-ascending cues.
func ReadCues(data []byte) ([]Cue, error) {
	var doc trackDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(err, errs.Parse, "decode subtitle document")
	}

	cues := make([]Cue, 0, len(doc.Body))
	for _, item := range doc.Body {
		cues = append(cues, Cue{
			StartTime: item.From,
			EndTime:   item.To,
			Text:      strings.TrimSpace(item.Content),
		})
	}
	sort.SliceStable(cues, func(i, j int) bool {
		return cues[i].StartTime < cues[j].StartTime
	})
	return cues, nil
}

// detectLanguage returns the most common language among cues.
func detectLanguage(cues []Cue) language.Tag {
	if len(cues) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, cue := range cues {
		lang := whatlanggo.DetectLang(cue.Text).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount || (count == topCount && lang < topLang) {
			topLang = lang
			topCount = count
		}
	}

	return language.All.Make(topLang)
}
