package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_FormatAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(cause, BackendUnreachable, "probe failed").
		WithContext("video", "BV1xx").
		WithContext("backend", "cloud")

	assert.Equal(t,
		"[BackendUnreachable] probe failed | context: backend=cloud, video=BV1xx | cause: dial tcp: timeout",
		err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", New(NoSubtitles, "no subtitle track"))

	assert.True(t, Is(err, NoSubtitles))
	assert.False(t, Is(err, NotAuthenticated))
	assert.Equal(t, NoSubtitles, TypeOf(err))
	assert.Equal(t, Unknown, TypeOf(errors.New("plain")))
}

func TestType_Notification(t *testing.T) {
	assert.Equal(t, MsgNotLoginYet, NotAuthenticated.Notification())
	assert.Equal(t, MsgAIServiceFailed, BackendUnreachable.Notification())
	assert.Equal(t, MsgAINotInitialized, NotInitialized.Notification())
	assert.Empty(t, InvalidResult.Notification())
	assert.Empty(t, NavigationRace.Notification())
}
