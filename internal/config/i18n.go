package config

import (
	"maps"

	"golang.org/x/text/language"
)

var supportedLocales = []language.Tag{
	language.English, // first entry is the fallback
	language.SimplifiedChinese,
}

var localeMatcher = language.NewMatcher(supportedLocales)

var catalogs = map[language.Tag]map[string]string{
	language.English: {
		"noApiKeyProvided":       "No API key provided. Open the extension settings to add one.",
		"aiNotInitialized":       "The AI model is not initialized yet, ads cannot be detected.",
		"aiServiceFailed":        "Failed to reach the AI service.",
		"notLoginYet":            "Log in to let subtitles be analyzed for ads.",
		"workflowNotInitialized": "The external workflow endpoint or key is missing.",
	},
	language.SimplifiedChinese: {
		"noApiKeyProvided":       "未提供 API Key，请在插件设置中填写。",
		"aiNotInitialized":       "AI 尚未初始化，无法识别广告。",
		"aiServiceFailed":        "无法连接 AI 服务。",
		"notLoginYet":            "请先登录，以便分析字幕中的广告。",
		"workflowNotInitialized": "外部工作流地址或密钥未配置。",
	},
}

// Messages returns the notification strings best matching locale.
// The returned map is a copy and may be modified.
func Messages(locale language.Tag) map[string]string {
	_, idx, _ := localeMatcher.Match(locale)
	return maps.Clone(catalogs[supportedLocales[idx]])
}
