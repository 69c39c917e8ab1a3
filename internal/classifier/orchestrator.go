package classifier

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/errs"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

const (
	DefaultProbeTimeout    = 15 * time.Second
	DefaultClassifyTimeout = 60 * time.Second
)

// ConfigSource yields the user configuration snapshot, if one has arrived.
type ConfigSource interface {
	Config() (config.UserConfig, bool)
}

// Orchestrator selects a backend, calls it, validates the candidate, and
// forwards every valid range to the sink.
type Orchestrator struct {
	configs  ConfigSource
	sink     Sink
	notifier Notifier

	factory  BackendFactory
	onDevice LanguageModel

	httpClient    *http.Client
	geminiBaseURL string

	limiter         *rate.Limiter
	group           singleflight.Group
	probeTimeout    time.Duration
	classifyTimeout time.Duration
}

type Option func(*Orchestrator)

func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) {
		o.httpClient = client
	}
}

// WithGeminiBaseURL overrides the Generative Language API root.
func WithGeminiBaseURL(url string) Option {
	return func(o *Orchestrator) {
		o.geminiBaseURL = url
	}
}

func WithLanguageModel(model LanguageModel) Option {
	return func(o *Orchestrator) {
		o.onDevice = model
	}
}

func WithBackendFactory(factory BackendFactory) Option {
	return func(o *Orchestrator) {
		o.factory = factory
	}
}

func WithTimeouts(probe, classify time.Duration) Option {
	return func(o *Orchestrator) {
		if probe > 0 {
			o.probeTimeout = probe
		}
		if classify > 0 {
			o.classifyTimeout = classify
		}
	}
}

// WithRateLimit bounds backend calls per second across all videos.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *Orchestrator) {
		if rps > 0 && burst > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func NewOrchestrator(configs ConfigSource, sink Sink, notifier Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		configs:         configs,
		sink:            sink,
		notifier:        notifier,
		limiter:         rate.NewLimiter(rate.Inf, 1),
		probeTimeout:    DefaultProbeTimeout,
		classifyTimeout: DefaultClassifyTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.factory == nil {
		o.factory = DefaultBackendFactory(o.httpClient, o.geminiBaseURL, o.onDevice, int(o.classifyTimeout/time.Second))
	}
	return o
}

// Classify returns the advertisement range of req.VideoID, or nil when the
// backend found none.
//
// It refuses with errs.NotInitialized until a configuration snapshot has
// arrived. Concurrent calls for the same video share one backend call.
// Backend failures are reported to the user and returned; an invalid
// candidate is not an error and yields nil. A nil result is not forwarded
// to the sink.
func (o *Orchestrator) Classify(ctx context.Context, req Request) (*AdTimeRange, error) {
	cfg, ok := o.configs.Config()
	if !ok {
		return nil, errs.New(errs.NotInitialized, "configuration has not arrived yet").
			WithContext("video", req.VideoID)
	}

	v, err, shared := o.group.Do(req.VideoID, func() (any, error) {
		return o.classify(ctx, cfg, req)
	})
	if shared {
		log.Debug("Classification of %s shared with a concurrent caller", req.VideoID)
	}
	if err != nil {
		return nil, err
	}
	r, _ := v.(*AdTimeRange)
	return adrange.Normalize(r), nil
}

func (o *Orchestrator) classify(ctx context.Context, cfg config.UserConfig, req Request) (*AdTimeRange, error) {
	kind, err := Select(cfg, o.onDevice != nil)
	if err != nil {
		o.notify(NotificationFor(kind, err))
		return nil, err
	}

	backend, err := o.factory(kind, cfg)
	if err != nil {
		o.notify(NotificationFor(kind, err))
		return nil, err
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reported := false
	if prober, ok := backend.(Prober); ok && kind == KindCloud {
		reported = !o.probe(ctx, prober)
	}

	log.Info("Classifying video %s with %s backend", req.VideoID, kind)
	callCtx, cancel := context.WithTimeout(ctx, o.classifyTimeout)
	defer cancel()

	candidate, err := backend.Classify(callCtx, req)
	if err != nil {
		// one aiServiceFailed per attempt
		if !reported {
			o.notify(errs.MsgAIServiceFailed)
		}
		if errs.Is(err, errs.InvalidResult) {
			log.Warn("Discarding unreadable result for %s: %v", req.VideoID, err)
			return nil, nil
		}
		log.Error("Classification of %s failed: %v", req.VideoID, err)
		return nil, errs.Wrap(err, errs.BackendUnreachable, "classification failed").
			WithContext("video", req.VideoID).
			WithContext("backend", kind.String())
	}

	r := adrange.Validate(candidate)
	if r == nil {
		log.Info("No ad found in video %s", req.VideoID)
		return nil, nil
	}

	log.Info("Ad detected in video %s: %.3f-%.3f", req.VideoID, r.StartTime, r.EndTime)
	if o.sink != nil {
		if err := o.sink.SaveAdRange(ctx, req.VideoID, *r); err != nil {
			log.Warn("Failed to forward ad range of %s: %v", req.VideoID, err)
		}
	}
	return r, nil
}

// probe is advisory: a failure is reported but the real call still runs.
// It returns false once the failure has been reported.
func (o *Orchestrator) probe(ctx context.Context, prober Prober) bool {
	probeCtx, cancel := context.WithTimeout(ctx, o.probeTimeout)
	defer cancel()

	if err := prober.Probe(probeCtx); err != nil {
		log.Warn("Backend connectivity probe failed: %v", err)
		o.notify(errs.MsgAIServiceFailed)
		return false
	}
	log.Debug("Backend connectivity probe succeeded")
	return true
}

func (o *Orchestrator) notify(key string) {
	if key == "" || o.notifier == nil {
		return
	}
	o.notifier.Notify(key)
}
