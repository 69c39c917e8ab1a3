package classifier

import (
	"strings"

	"golang.org/x/text/language"
)

const systemPromptZH = "你的作用是识别视频中的广告内容，并返回广告的起止时间。"

const instructionZH = `接下我会分享给你一段视频字幕，该段字幕由多个字幕语句组成。
每一句字幕包含三部分内容，分别是起始时间，结束时间，以及字幕内容，格式如下：[{起始时间}-{结束时间}]:{字幕内容}。语句之间由分号（;）隔开。
帮助我分析其中哪些是与视频无关的广告内容，给出其中连续广告内容起始时间和终止时间。我可能还会分享给你视频的标题以及视频的描述，用于辅助你判断广告内容

如果存在广告内容，请将广告的起止时间返回给我，返回格式为：{"startTime": number, "endTime": number}
如果不存在广告内容，返回null

字幕内容如下：`

const systemPromptEN = "You identify advertisement segments in videos and return their start and end time."

const instructionEN = `I will share the subtitles of a video. They consist of several subtitle lines.
Each line has three parts, a start time, an end time and the text, written as [{start}-{end}]:{text}. Lines are separated by a semicolon (;).
Find the content that is an advertisement unrelated to the video and give the start and end time of the contiguous advertisement. I may also share the video title and description to help you decide.

If there is an advertisement, return its time range as {"startTime": number, "endTime": number}
If there is none, return null

The subtitles are:`

type prompts struct {
	system      string
	instruction string
	title       string
	description string
}

var (
	promptsZH = prompts{system: systemPromptZH, instruction: instructionZH, title: "视频标题如下：", description: "视频描述如下："}
	promptsEN = prompts{system: systemPromptEN, instruction: instructionEN, title: "The video title is:", description: "The video description is:"}
)

var chineseBase, _ = language.Chinese.Base()

// promptsFor picks English only for a detected non-Chinese language.
func promptsFor(tag language.Tag) prompts {
	if tag == language.Und {
		return promptsZH
	}
	if base, _ := tag.Base(); base == chineseBase {
		return promptsZH
	}
	return promptsEN
}

// BuildPrompt returns the system prompt and the user prompt for req. Title
// and description sections are only added when present.
func BuildPrompt(req Request) (system, user string) {
	p := promptsFor(req.Language)

	var b strings.Builder
	b.WriteString(p.instruction)
	b.WriteString("\n------\n")
	b.WriteString(req.Subtitles)
	if title := strings.TrimSpace(req.Title); title != "" {
		b.WriteString("\n------\n")
		b.WriteString(p.title)
		b.WriteString("\n")
		b.WriteString(title)
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		b.WriteString("\n------\n")
		b.WriteString(p.description)
		b.WriteString("\n")
		b.WriteString(desc)
	}
	return p.system, b.String()
}
