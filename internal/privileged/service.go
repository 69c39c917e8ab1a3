// Package privileged is the context that owns durable state: the ad range
// cache and the user configuration. Host pages reach it only through
// channel messages.
package privileged

import (
	"context"
	"errors"

	"golang.org/x/text/language"

	"github.com/MimeLyc/subtitle-adskip/internal/cache"
	"github.com/MimeLyc/subtitle-adskip/internal/channel"
	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/protocol"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// Service answers one host connection. Messages are handled one at a time
// in arrival order.
type Service struct {
	conn    channel.Conn
	store   *cache.Store
	configs config.Source
	locale  language.Tag
	logger  *log.Logger
}

func NewService(conn channel.Conn, store *cache.Store, configs config.Source, locale language.Tag) *Service {
	return &Service{
		conn:    channel.Scope(conn, ""),
		store:   store,
		configs: configs,
		locale:  locale,
		logger:  log.GetLogger().With("privileged"),
	}
}

// Run handles messages until the connection closes or ctx is done. A closed
// connection is not an error.
func (s *Service) Run(ctx context.Context) error {
	for {
		msg, err := s.conn.Receive(ctx)
		if err != nil {
			if errors.Is(err, channel.ErrClosed) {
				return nil
			}
			return err
		}
		s.handle(ctx, msg)
	}
}

func (s *Service) handle(ctx context.Context, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeReady:
		s.sendConfig(ctx, msg)
	case protocol.TypeRequestCacheSnapshot:
		s.sendSnapshot(ctx, msg)
	case protocol.TypeSaveAdRange:
		s.saveAdRange(ctx, msg)
	default:
		s.logger.Debug("Ignoring %s message from window %s", msg.Type, msg.Window)
	}
}

func (s *Service) sendConfig(ctx context.Context, msg protocol.Message) {
	cfg, err := s.configs.UserConfig(ctx)
	if err != nil {
		// the host gives up after its config wait and reports it
		s.logger.Error("Loading user config failed: %v", err)
		return
	}
	reply, err := protocol.NewConfig(cfg, config.Messages(s.locale))
	if err != nil {
		s.logger.Error("Encoding CONFIG failed: %v", err)
		return
	}
	if err := s.conn.Send(ctx, protocol.ReplyTo(msg, reply)); err != nil {
		s.logger.Warn("Sending CONFIG to window %s failed: %v", msg.Window, err)
	}
}

func (s *Service) sendSnapshot(ctx context.Context, msg protocol.Message) {
	entries, err := s.store.Snapshot(ctx)
	if err != nil {
		s.logger.Error("Reading ad range cache failed: %v", err)
		return
	}
	reply, err := protocol.NewCacheSnapshot(entries)
	if err != nil {
		s.logger.Error("Encoding CACHE_SNAPSHOT failed: %v", err)
		return
	}
	if err := s.conn.Send(ctx, protocol.ReplyTo(msg, reply)); err != nil {
		s.logger.Warn("Sending CACHE_SNAPSHOT to window %s failed: %v", msg.Window, err)
		return
	}
	s.logger.Debug("Sent %d cached ranges to window %s", len(entries), msg.Window)
}

func (s *Service) saveAdRange(ctx context.Context, msg protocol.Message) {
	payload, err := msg.DecodeSaveAdRange()
	if err != nil {
		s.logger.Warn("Dropping SAVE_AD_RANGE: %v", err)
		return
	}
	if err := s.store.Put(ctx, payload.VideoID, payload.Range()); err != nil {
		s.logger.Warn("Not caching range of %s: %v", payload.VideoID, err)
		return
	}
	s.logger.Info("Cached ad range of %s: %.3f-%.3f", payload.VideoID, payload.StartTime, payload.EndTime)
}
