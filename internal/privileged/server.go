package privileged

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/MimeLyc/subtitle-adskip/internal/cache"
	"github.com/MimeLyc/subtitle-adskip/internal/channel"
	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/storage"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

type Server struct {
	store    *cache.Store
	configs  config.Source
	settings storage.KV
	locale   language.Tag

	router chi.Router
	server *http.Server

	// ctx outlives single requests: channel connections are hijacked and
	// are not tracked by http.Server.Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

type Option func(*Server)

func WithLocale(locale language.Tag) Option {
	return func(s *Server) {
		s.locale = locale
	}
}

// WithSettingsStore enables GET and PUT /api/settings backed by kv.
func WithSettingsStore(kv storage.KV) Option {
	return func(s *Server) {
		s.settings = kv
	}
}

func NewServer(store *cache.Store, configs config.Source, opts ...Option) *Server {
	s := &Server{
		store:   store,
		configs: configs,
		locale:  language.English,
		router:  chi.NewRouter(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("Privileged server listening on %s", addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then closes every channel connection
// and waits for their loops to end.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/channel", s.handleChannel)
	s.router.Get("/cache", s.handleCache)
	s.router.Route("/api/settings", func(r chi.Router) {
		r.Get("/", s.handleGetSettings)
		r.Put("/", s.handlePutSettings)
	})
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	conn, err := channel.Accept(w, r)
	if err != nil {
		log.Warn("Channel upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	s.conns.Add(1)
	defer s.conns.Done()

	log.Info("Host connected from %s", r.RemoteAddr)
	if err := NewService(conn, s.store, s.configs, s.locale).Run(s.ctx); err != nil && s.ctx.Err() == nil {
		log.Warn("Channel from %s ended: %v", r.RemoteAddr, err)
		return
	}
	log.Info("Host from %s disconnected", r.RemoteAddr)
}
