package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/subtitle-adskip/internal/errs"
)

func TestDetectLanguage(t *testing.T) {
	cues := []Cue{
		{Text: "Hello, world!"},
		{Text: "こんにちは、世界!"},
		{Text: "こんにちは、世界!"},
		{Text: "Привет, мир!"},
	}
	assert.Equal(t, language.Japanese, detectLanguage(cues))
	assert.Equal(t, language.Und, detectLanguage(nil))
}

func TestReadCues(t *testing.T) {
	data := []byte(`{"font_size":0.4,"body":[
		{"from":3.2,"to":5.0,"sid":2,"content":" 今天的视频由某某赞助 "},
		{"from":0.5,"to":3.1,"sid":1,"content":"大家好"}
	]}`)

	cues, err := ReadCues(data)
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, Cue{StartTime: 0.5, EndTime: 3.1, Text: "大家好"}, cues[0])
	assert.Equal(t, Cue{StartTime: 3.2, EndTime: 5, Text: "今天的视频由某某赞助"}, cues[1])

	_, err = ReadCues([]byte(`{"body":"nope"}`))
	assert.True(t, errs.Is(err, errs.Parse))
}
