package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/page"
)

func TestRequestPlayerInfo_Status(t *testing.T) {
	var gotQuery, gotReferer, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotReferer = r.Header.Get("Referer")
		gotCookie = r.Header.Get("Cookie")
		if r.URL.Path == "/broken" {
			http.Error(w, "upstream", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{}}`))
	}))
	defer srv.Close()

	data := &page.VideoData{BVID: "BV1xx", CID: 42}
	ctx := context.Background()

	err := requestPlayerInfo(ctx, srv.Client(), srv.URL+"/ok", data, "SESSDATA=abc")
	require.NoError(t, err)
	assert.Equal(t, "bvid=BV1xx&cid=42", gotQuery)
	assert.Equal(t, "https://www.bilibili.com/video/BV1xx/", gotReferer)
	assert.Equal(t, "SESSDATA=abc", gotCookie)

	err = requestPlayerInfo(ctx, srv.Client(), srv.URL+"/broken", data, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestAwaitResult(t *testing.T) {
	results := make(chan watchOutcome, 1)

	start := time.Now()
	_, err := awaitResult(context.Background(), "BV1", results, 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no result for BV1")
	assert.Less(t, time.Since(start), time.Second)

	want := &adrange.Range{StartTime: 1, EndTime: 4}
	results <- watchOutcome{r: want}
	r, err := awaitResult(context.Background(), "BV1", results, time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, r)

	failure := errors.New("classification failed")
	results <- watchOutcome{err: failure}
	_, err = awaitResult(context.Background(), "BV1", results, time.Second)
	assert.ErrorIs(t, err, failure)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = awaitResult(ctx, "BV1", results, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultWait(t *testing.T) {
	cfg := &config.Config{}
	cfg.Host.ConfigWait = 10 * time.Second
	cfg.Host.ProbeTimeout = 15 * time.Second
	cfg.Host.ClassifyTimeout = 60 * time.Second
	assert.Equal(t, 145*time.Second, resultWait(cfg))
}
