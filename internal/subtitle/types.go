package subtitle

import "golang.org/x/text/language"

// Cue is one subtitle line with its time span in seconds.
type Cue struct {
	StartTime float64
	EndTime   float64
	Text      string
}

// Document is a normalized subtitle track ready for classification.
type Document struct {
	Cues []Cue
	// Text is the serialized form of Cues, see Serialize.
	Text     string
	Language language.Tag
	// Track is the language label the page gave the track, e.g. "中文（自动生成）".
	Track string
	URL   string
}
