package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/internal/cache"
	"github.com/MimeLyc/subtitle-adskip/internal/channel"
	"github.com/MimeLyc/subtitle-adskip/internal/classifier"
	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/host"
	"github.com/MimeLyc/subtitle-adskip/internal/page"
	"github.com/MimeLyc/subtitle-adskip/internal/privileged"
	"github.com/MimeLyc/subtitle-adskip/internal/storage"
	"github.com/MimeLyc/subtitle-adskip/internal/subtitle"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type settingFlags []string

func (s *settingFlags) String() string {
	return strings.Join(*s, ",")
}

func (s *settingFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	*s = append(*s, v)
	return nil
}

func main() {
	var sets settingFlags
	fs := flag.NewFlagSet("adskip", flag.ExitOnError)
	fs.Var(&sets, "set", "write a user setting before serving, key=value (repeatable)")
	cookie := fs.String("cookie", "", "Cookie header sent with the player metadata request (watch)")
	dataDir := fs.String("data-dir", "", "data directory, overrides ADSKIP_DATA_DIR")
	addr := fs.String("addr", "", "privileged server listen address, overrides ADSKIP_ADDR")
	channelURL := fs.String("channel", "", "privileged channel url for watch, overrides ADSKIP_CHANNEL_URL")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] serve | watch <video-url>\n", os.Args[0])
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.NewFromEnv(
		config.WithDataDir(*dataDir),
		config.WithAddr(*addr),
		config.WithChannelURL(*channelURL),
	)
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch fs.Arg(0) {
	case "serve":
		err = serve(ctx, cfg, sets)
	case "watch":
		if fs.NArg() < 2 {
			fs.Usage()
			os.Exit(2)
		}
		err = watch(ctx, cfg, fs.Arg(1), *cookie)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("%v", err)
	}
}

type cacheSweeper interface {
	Start()
	Stop()
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func serve(ctx context.Context, cfg *config.Config, sets []string) error {
	if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	kv, err := storage.NewSQLiteKV(cfg.DBPath())
	if err != nil {
		return err
	}
	defer kv.Close()

	if err := applySettings(ctx, kv, sets); err != nil {
		return err
	}

	store := cache.NewStore(kv, cache.WithTTL(cfg.Cache.TTL))
	sweeper, err := cache.NewSweeper(store, cfg.Cache.SweepCron)
	if err != nil {
		return err
	}
	srv := privileged.NewServer(store, config.StoredUserConfig{KV: kv},
		privileged.WithLocale(cfg.System.Locale),
		privileged.WithSettingsStore(kv),
	)

	var sw cacheSweeper
	if sweeper != nil {
		sw = sweeper
	}
	return runWithComponents(ctx, cfg, sw, srv)
}

// runWithComponents serves until ctx is done, then shuts everything down.
func runWithComponents(ctx context.Context, cfg *config.Config, sweeper cacheSweeper, srv httpServer) error {
	if sweeper != nil {
		sweeper.Start()
		defer sweeper.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("privileged server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// applySettings writes key=value pairs over the stored user config. Values
// of boolean keys must parse as booleans.
func applySettings(ctx context.Context, kv storage.KV, sets []string) error {
	if len(sets) == 0 {
		return nil
	}
	cfg, err := config.LoadUserConfig(ctx, kv)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}

	for _, set := range sets {
		key, value, _ := strings.Cut(set, "=")
		key = strings.TrimSpace(key)
		if !slices.Contains(config.UserConfigKeys, key) {
			return fmt.Errorf("unknown setting %q", key)
		}
		if _, isBool := fields[key].(bool); isBool {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("setting %s: %w", key, err)
			}
			fields[key] = b
			continue
		}
		fields[key] = value
	}

	raw, err = json.Marshal(fields)
	if err != nil {
		return err
	}
	var next config.UserConfig
	if err := json.Unmarshal(raw, &next); err != nil {
		return err
	}
	if err := config.SaveUserConfig(ctx, kv, next); err != nil {
		return err
	}
	log.Info("Updated %d user settings", len(sets))
	return nil
}

// watch plays the host side for one video page: it connects to the
// privileged server, issues the player metadata request through the
// intercepting client and reports the detected range.
func watch(ctx context.Context, cfg *config.Config, videoURL, cookie string) error {
	u, err := url.Parse(videoURL)
	if err != nil {
		return fmt.Errorf("invalid video url: %w", err)
	}
	videoID := page.VideoIDFromPath(u.Path)
	if videoID == "" {
		return fmt.Errorf("%s is not a video page", videoURL)
	}
	loc := host.NewPageLocation(u.Path)
	siteURL := u.Scheme + "://" + u.Host

	conn, err := channel.Dial(ctx, cfg.HTTP.ChannelURL)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.HTTP.ChannelURL, err)
	}

	httpClient := &http.Client{Timeout: cfg.Host.ClassifyTimeout}
	videos := page.NewFetcher(httpClient, siteURL)

	results := make(chan watchOutcome, 1)
	h := host.New(conn, loc,
		host.WithVideoData(videos),
		host.WithNormalizer(subtitle.NewNormalizer(httpClient)),
		host.WithPollInterval(cfg.Host.PollInterval),
		host.WithConfigWait(cfg.Host.ConfigWait),
		host.WithMetadataEndpoint(cfg.Host.MetadataEndpoint),
		host.WithClassifierOptions(
			classifier.WithHTTPClient(httpClient),
			classifier.WithTimeouts(cfg.Host.ProbeTimeout, cfg.Host.ClassifyTimeout),
			classifier.WithRateLimit(cfg.Host.BackendRPS, cfg.Host.BackendBurst),
		),
		host.WithResultFunc(func(id string, r *adrange.Range, err error) {
			if id != videoID {
				return
			}
			select {
			case results <- watchOutcome{r: r, err: err}:
			default:
			}
		}),
	)
	defer h.Close()

	if err := h.Start(ctx); err != nil {
		return err
	}
	go func() { _ = h.Watch(ctx) }()

	data, err := videos.VideoData(ctx, videoID)
	if err != nil {
		return fmt.Errorf("read page state: %w", err)
	}
	if err := requestPlayerInfo(ctx, h.Client(http.DefaultTransport), cfg.Host.MetadataEndpoint, data, cookie); err != nil {
		return err
	}

	r, err := awaitResult(ctx, videoID, results, resultWait(cfg))
	if err != nil {
		return err
	}
	if r == nil {
		fmt.Printf("%s: no ad detected\n", videoID)
		return nil
	}
	fmt.Printf("%s: ad from %.3fs to %.3fs\n", videoID, r.StartTime, r.EndTime)
	return nil
}

type watchOutcome struct {
	r   *adrange.Range
	err error
}

// resultWait bounds one pipeline run: the CONFIG wait, the connectivity
// check, the subtitle fetch and the classification call.
func resultWait(cfg *config.Config) time.Duration {
	return cfg.Host.ConfigWait + cfg.Host.ProbeTimeout + 2*cfg.Host.ClassifyTimeout
}

// awaitResult waits for the pipeline outcome of videoID. A response the
// interceptor could not use never produces one, so the wait is bounded.
func awaitResult(ctx context.Context, videoID string, results <-chan watchOutcome, wait time.Duration) (*adrange.Range, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("no result for %s within %s", videoID, wait)
	case res := <-results:
		return res.r, res.err
	}
}

func requestPlayerInfo(ctx context.Context, client *http.Client, endpoint string, data *page.VideoData, cookie string) error {
	q := url.Values{}
	q.Set("bvid", data.BVID)
	q.Set("cid", strconv.FormatInt(data.CID, 10))
	base := endpoint
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	reqURL := base + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Referer", "https://www.bilibili.com/video/"+data.BVID+"/")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("player metadata request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("player metadata request: status %d", resp.StatusCode)
	}
	return nil
}
