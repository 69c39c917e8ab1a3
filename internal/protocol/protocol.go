// Package protocol defines the tagged messages exchanged between the host and
// privileged contexts.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/internal/cache"
	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/errs"
)

// Source tags every envelope sent by this program. Envelopes carrying any
// other source are not ours and are dropped by the receiver.
const Source = "subtitle-adskip"

type Type string

const (
	// TypeReady is sent once by the host at startup. The privileged side
	// answers with TypeConfig.
	TypeReady Type = "READY"
	// TypeRequestCacheSnapshot asks for the whole cache. The privileged
	// side answers with TypeCacheSnapshot.
	TypeRequestCacheSnapshot Type = "REQUEST_CACHE_SNAPSHOT"
	TypeConfig               Type = "CONFIG"
	TypeCacheSnapshot        Type = "CACHE_SNAPSHOT"
	// TypeSaveAdRange is fire-and-forget; there is no reply.
	TypeSaveAdRange Type = "SAVE_AD_RANGE"
)

func (t Type) Valid() bool {
	switch t {
	case TypeReady, TypeRequestCacheSnapshot, TypeConfig, TypeCacheSnapshot, TypeSaveAdRange:
		return true
	default:
		return false
	}
}

// Message is one envelope on the channel.
type Message struct {
	ID      uuid.UUID       `json:"id"`
	Source  string          `json:"source"`
	Window  string          `json:"window,omitempty"`
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ConfigPayload is the body of TypeConfig.
type ConfigPayload struct {
	Config config.UserConfig `json:"config"`
	I18n   map[string]string `json:"i18n"`
}

// SaveAdRangePayload is the body of TypeSaveAdRange.
type SaveAdRangePayload struct {
	VideoID   string  `json:"videoId"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

func (p SaveAdRangePayload) Range() adrange.Range {
	return adrange.Range{StartTime: p.StartTime, EndTime: p.EndTime}
}

// CacheSnapshotPayload is the body of TypeCacheSnapshot, keyed by video id.
type CacheSnapshotPayload map[string]cache.Entry

func newMessage(t Type, payload any) (Message, error) {
	msg := Message{
		ID:     uuid.New(),
		Source: Source,
		Type:   t,
	}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, errs.Wrap(err, errs.Parse, fmt.Sprintf("encode %s payload", t))
	}
	msg.Payload = data
	return msg, nil
}

func NewReady() Message {
	msg, _ := newMessage(TypeReady, nil)
	return msg
}

func NewRequestCacheSnapshot() Message {
	msg, _ := newMessage(TypeRequestCacheSnapshot, nil)
	return msg
}

func NewConfig(cfg config.UserConfig, i18n map[string]string) (Message, error) {
	return newMessage(TypeConfig, ConfigPayload{Config: cfg, I18n: i18n})
}

func NewCacheSnapshot(entries map[string]cache.Entry) (Message, error) {
	if entries == nil {
		entries = map[string]cache.Entry{}
	}
	return newMessage(TypeCacheSnapshot, CacheSnapshotPayload(entries))
}

func NewSaveAdRange(videoID string, r adrange.Range) (Message, error) {
	return newMessage(TypeSaveAdRange, SaveAdRangePayload{
		VideoID:   videoID,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	})
}

// ReplyTo addresses reply to the window that sent m.
func ReplyTo(m Message, reply Message) Message {
	reply.Window = m.Window
	return reply
}

func (m Message) DecodeConfig() (ConfigPayload, error) {
	var p ConfigPayload
	err := m.decode(TypeConfig, &p)
	return p, err
}

func (m Message) DecodeCacheSnapshot() (CacheSnapshotPayload, error) {
	var p CacheSnapshotPayload
	if err := m.decode(TypeCacheSnapshot, &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = CacheSnapshotPayload{}
	}
	return p, nil
}

func (m Message) DecodeSaveAdRange() (SaveAdRangePayload, error) {
	var p SaveAdRangePayload
	err := m.decode(TypeSaveAdRange, &p)
	return p, err
}

func (m Message) decode(want Type, dst any) error {
	if m.Type != want {
		return errs.Newf(errs.Parse, "expected %s message, got %s", want, m.Type)
	}
	if len(m.Payload) == 0 {
		return errs.Newf(errs.Parse, "%s message has no payload", want)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return errs.Wrap(err, errs.Parse, fmt.Sprintf("decode %s payload", want))
	}
	return nil
}
