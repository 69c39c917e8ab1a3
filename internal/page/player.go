package page

import (
	"encoding/json"
	"strings"

	"github.com/MimeLyc/subtitle-adskip/internal/errs"
)

// PlayerInfo is the parsed player metadata API response.
type PlayerInfo struct {
	Code int `json:"code"`
	Data struct {
		BVID     string `json:"bvid"`
		Name     string `json:"name"`
		Subtitle struct {
			Subtitles []SubtitleTrack `json:"subtitles"`
		} `json:"subtitle"`
	} `json:"data"`
}

// SubtitleTrack describes one subtitle track offered for the video.
type SubtitleTrack struct {
	Lan    string `json:"lan"`
	LanDoc string `json:"lan_doc"`
	Type   int    `json:"type"`
	URL    string `json:"subtitle_url"`
}

func ParsePlayerInfo(data []byte) (*PlayerInfo, error) {
	var info PlayerInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, errs.Wrap(err, errs.Parse, "decode player metadata")
	}
	return &info, nil
}

func (p *PlayerInfo) BVID() string {
	return p.Data.BVID
}

// LoggedIn reports whether the response was made for a logged-in user.
func (p *PlayerInfo) LoggedIn() bool {
	return strings.TrimSpace(p.Data.Name) != ""
}

func (p *PlayerInfo) Tracks() []SubtitleTrack {
	return p.Data.Subtitle.Subtitles
}

// AbsoluteURL resolves a protocol-relative track URL to https.
func (t SubtitleTrack) AbsoluteURL() string {
	if strings.HasPrefix(t.URL, "//") {
		return "https:" + t.URL
	}
	return t.URL
}
