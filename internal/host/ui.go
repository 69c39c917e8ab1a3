package host

import (
	"time"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// warningDuration is how long the no-subtitles warning stays visible.
const warningDuration = 3 * time.Second

// UI is the page surface the pipeline drives. Rendering is not this
// program's concern; implementations forward to whatever draws the page.
type UI interface {
	// ShowAdRange marks r on the progress bar; autoSkip asks the player to
	// jump over it.
	ShowAdRange(videoID string, r adrange.Range, autoSkip bool)
	ShowThinking(videoID string)
	ShowWarning(videoID string, d time.Duration)
	ClearAffordance()
	// Cleanup removes everything drawn for the previous video.
	Cleanup()
	Toast(message string)
}

// LogUI renders nothing and logs every UI effect.
type LogUI struct {
	logger *log.Logger
}

func NewLogUI() *LogUI {
	return &LogUI{logger: log.GetLogger().With("ui")}
}

func (u *LogUI) ShowAdRange(videoID string, r adrange.Range, autoSkip bool) {
	u.logger.Info("Ad range for %s: %.3f-%.3f (auto skip: %t)", videoID, r.StartTime, r.EndTime, autoSkip)
}

func (u *LogUI) ShowThinking(videoID string) {
	u.logger.Info("Analyzing subtitles of %s", videoID)
}

func (u *LogUI) ShowWarning(videoID string, d time.Duration) {
	u.logger.Warn("No subtitles for %s (warning shown for %s)", videoID, d)
}

func (u *LogUI) ClearAffordance() {
	u.logger.Debug("Affordance cleared")
}

func (u *LogUI) Cleanup() {
	u.logger.Debug("Page cleaned up")
}

func (u *LogUI) Toast(message string) {
	u.logger.Warn("%s", message)
}

// toastNotifier turns message keys into localized toasts.
type toastNotifier struct {
	gate *ConfigGate
	ui   UI
}

func (n toastNotifier) Notify(key string) {
	n.ui.Toast(n.gate.Message(key))
}
