package main

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/storage"
)

type fakeSweeper struct {
	started bool
	stopped bool
}

func (f *fakeSweeper) Start() {
	f.started = true
}

func (f *fakeSweeper) Stop() {
	f.stopped = true
}

type fakeHTTP struct {
	listenCalled chan struct{}
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	addr         string
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(addr string) error {
	f.addr = addr
	close(f.listenCalled)
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func TestMain_StartsSweeperAndHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Addr: "127.0.0.1:0",
		},
	}
	sweeper := &fakeSweeper{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, cfg, sweeper, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.Equal(t, "127.0.0.1:0", httpSrv.addr)
	assert.True(t, sweeper.started)
	assert.True(t, sweeper.stopped)
}

func TestMain_RunsWithoutSweeper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, &config.Config{}, nil, httpSrv)
	}()
	<-httpSrv.listenCalled
	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}
}

func TestApplySettings(t *testing.T) {
	kv, err := storage.NewSQLiteKV(filepath.Join(t.TempDir(), "adskip.db"))
	require.NoError(t, err)
	defer kv.Close()
	ctx := context.Background()

	require.NoError(t, applySettings(ctx, kv, nil))

	require.NoError(t, applySettings(ctx, kv, []string{
		"apiKey=secret",
		"autoSkip=false",
		"aiModel=gemini-2.0-flash",
	}))

	cfg, err := config.LoadUserConfig(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.False(t, cfg.AutoSkip)
	assert.Equal(t, "gemini-2.0-flash", cfg.AIModel)
	assert.True(t, cfg.IgnoreShortVideos)

	assert.Error(t, applySettings(ctx, kv, []string{"nope=1"}))
	assert.Error(t, applySettings(ctx, kv, []string{"autoSkip=maybe"}))
	assert.Error(t, applySettings(ctx, kv, []string{"cloudProvider=other"}))
}

func TestSettingFlags(t *testing.T) {
	var sets settingFlags
	require.NoError(t, sets.Set("apiKey=a=b"))
	assert.Error(t, sets.Set("apiKey"))
	assert.Equal(t, "apiKey=a=b", sets.String())
}
