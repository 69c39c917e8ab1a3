// Package host is the page-side context: it watches the page's own traffic
// and navigation, runs the detection pipeline, and talks to the privileged
// context only through a channel.
package host

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/internal/channel"
	"github.com/MimeLyc/subtitle-adskip/internal/classifier"
	"github.com/MimeLyc/subtitle-adskip/internal/errs"
	"github.com/MimeLyc/subtitle-adskip/internal/page"
	"github.com/MimeLyc/subtitle-adskip/internal/protocol"
	"github.com/MimeLyc/subtitle-adskip/internal/subtitle"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// ResultFunc observes the outcome of every pipeline run.
type ResultFunc func(videoID string, r *adrange.Range, err error)

type options struct {
	window         string
	ui             UI
	normalizer     Normalizer
	classifier     Classifier
	videos         VideoDataSource
	languageModel  classifier.LanguageModel
	classifierOpts []classifier.Option
	pollInterval   time.Duration
	configWait     time.Duration
	endpoint       string
	onResult       ResultFunc
}

type Option func(*options)

func WithWindow(id string) Option {
	return func(o *options) { o.window = id }
}

func WithUI(ui UI) Option {
	return func(o *options) { o.ui = ui }
}

func WithNormalizer(n Normalizer) Option {
	return func(o *options) { o.normalizer = n }
}

// WithClassifier replaces the backend orchestrator entirely.
func WithClassifier(c Classifier) Option {
	return func(o *options) { o.classifier = c }
}

func WithVideoData(src VideoDataSource) Option {
	return func(o *options) { o.videos = src }
}

func WithLanguageModel(model classifier.LanguageModel) Option {
	return func(o *options) { o.languageModel = model }
}

func WithClassifierOptions(opts ...classifier.Option) Option {
	return func(o *options) { o.classifierOpts = append(o.classifierOpts, opts...) }
}

func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

func WithConfigWait(d time.Duration) Option {
	return func(o *options) { o.configWait = d }
}

func WithMetadataEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

func WithResultFunc(fn ResultFunc) Option {
	return func(o *options) { o.onResult = fn }
}

// Host wires the page-side components together.
type Host struct {
	conn   channel.Conn
	loc    Location
	window string

	gate      *ConfigGate
	mirror    *RangeMirror
	responses *ResponseCache
	ui        UI
	notifier  classifier.Notifier
	pipeline  *Pipeline
	watcher   *Watcher

	endpoint          string
	onDeviceAvailable bool
	onResult          ResultFunc

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(conn channel.Conn, loc Location, opts ...Option) *Host {
	o := options{
		window:       uuid.NewString(),
		pollInterval: DefaultPollInterval,
		configWait:   DefaultConfigWait,
		endpoint:     DefaultMetadataEndpoint,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ui == nil {
		o.ui = NewLogUI()
	}
	if o.normalizer == nil {
		o.normalizer = subtitle.NewNormalizer(nil)
	}

	h := &Host{
		conn:              channel.Scope(conn, o.window),
		loc:               loc,
		window:            o.window,
		gate:              NewConfigGate(),
		mirror:            NewRangeMirror(),
		responses:         NewResponseCache(),
		ui:                o.ui,
		endpoint:          o.endpoint,
		onDeviceAvailable: o.languageModel != nil,
		onResult:          o.onResult,
	}
	h.notifier = toastNotifier{gate: h.gate, ui: h.ui}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	cls := o.classifier
	if cls == nil {
		clsOpts := append([]classifier.Option{classifier.WithLanguageModel(o.languageModel)}, o.classifierOpts...)
		cls = classifier.NewOrchestrator(h.gate, h, h.notifier, clsOpts...)
	}

	h.pipeline = &Pipeline{
		loc:        loc,
		gate:       h.gate,
		mirror:     h.mirror,
		normalizer: o.normalizer,
		classifier: cls,
		videos:     o.videos,
		ui:         h.ui,
		notifier:   h.notifier,
		configWait: o.configWait,
	}
	h.watcher = NewWatcher(loc, h.responses, h.ui, o.pollInterval, h.Process)
	return h
}

// Start announces the host to the privileged side, asks for the cache
// snapshot and begins handling replies. The host runs until ctx is done or
// Close is called.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	h.cancel()
	h.ctx, h.cancel = context.WithCancel(ctx)
	runCtx := h.ctx
	h.mu.Unlock()

	if err := h.conn.Send(ctx, protocol.NewReady()); err != nil {
		return err
	}
	if err := h.conn.Send(ctx, protocol.NewRequestCacheSnapshot()); err != nil {
		return err
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.receive(runCtx)
	}()
	log.Info("Host started in window %s", h.window)
	return nil
}

// Transport wraps next so player metadata responses feed the pipeline.
func (h *Host) Transport(next http.RoundTripper) http.RoundTripper {
	return NewInterceptor(next, h.loc, h.endpoint, h.responses, h.Process)
}

// Client returns an HTTP client for the page's own requests.
func (h *Host) Client(next http.RoundTripper) *http.Client {
	return &http.Client{Transport: h.Transport(next)}
}

// Watch runs the navigation watcher until ctx is done.
func (h *Host) Watch(ctx context.Context) error {
	return h.watcher.Run(ctx)
}

// Process runs the pipeline for videoID in the background.
// Calls after Close are dropped.
func (h *Host) Process(videoID string, info *page.PlayerInfo) {
	h.mu.Lock()
	ctx := h.ctx
	if ctx.Err() != nil {
		h.mu.Unlock()
		log.Debug("Host closed, dropping player metadata of %s", videoID)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	go func() {
		defer h.wg.Done()
		r, err := h.pipeline.Run(ctx, videoID, info)
		if err != nil && !errs.Is(err, errs.NavigationRace) {
			log.Warn("Pipeline for %s stopped: %v", videoID, err)
		}
		if h.onResult != nil {
			h.onResult(videoID, r, err)
		}
	}()
}

// SaveAdRange sends SAVE_AD_RANGE. It does not wait for the write.
func (h *Host) SaveAdRange(ctx context.Context, videoID string, r adrange.Range) error {
	msg, err := protocol.NewSaveAdRange(videoID, r)
	if err != nil {
		return err
	}
	return h.conn.Send(ctx, msg)
}

func (h *Host) Gate() *ConfigGate {
	return h.gate
}

func (h *Host) Mirror() *RangeMirror {
	return h.mirror
}

// Wait blocks until every background run has finished.
func (h *Host) Wait() {
	h.wg.Wait()
}

func (h *Host) Close() error {
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()
	err := h.conn.Close()
	h.wg.Wait()
	return err
}

func (h *Host) receive(ctx context.Context) {
	for {
		msg, err := h.conn.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, channel.ErrClosed) {
				log.Error("Channel receive failed: %v", err)
			}
			return
		}

		switch msg.Type {
		case protocol.TypeConfig:
			h.handleConfig(msg)
		case protocol.TypeCacheSnapshot:
			h.handleSnapshot(msg)
		default:
			log.Debug("Ignoring %s message", msg.Type)
		}
	}
}

func (h *Host) handleConfig(msg protocol.Message) {
	payload, err := msg.DecodeConfig()
	if err != nil {
		log.Error("Bad CONFIG message: %v", err)
		return
	}
	if !h.gate.Set(payload) {
		return
	}
	cfg := payload.Config
	log.Info("Config received: model=%s autoSkip=%t ignoreShort=%t workflow=%t onDevice=%t",
		cfg.AIModel, cfg.AutoSkip, cfg.IgnoreShortVideos, cfg.UsingExternalWorkflow, cfg.UsingBrowserModel)

	kind, err := classifier.Select(cfg, h.onDeviceAvailable)
	if err != nil {
		log.Warn("The %s backend is not usable: %v", kind, err)
		if key := classifier.NotificationFor(kind, err); key != "" {
			h.notifier.Notify(key)
		}
		return
	}
	log.Info("Using the %s backend", kind)
}

func (h *Host) handleSnapshot(msg protocol.Message) {
	snapshot, err := msg.DecodeCacheSnapshot()
	if err != nil {
		log.Error("Bad CACHE_SNAPSHOT message: %v", err)
		return
	}
	ranges := make(map[string]adrange.Range, len(snapshot))
	for id, entry := range snapshot {
		ranges[id] = entry.Range
	}
	h.mirror.Merge(ranges)
	log.Info("Retrieved ad time cache with %d entries", h.mirror.Len())
}
