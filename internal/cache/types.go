package cache

import (
	"encoding/json"
	"time"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
)

// StorageKey is the storage key holding the whole per-video cache.
const StorageKey = "AD_TIME_RANGE_CACHE"

// DefaultTTL is how long an entry survives before a write evicts it.
const DefaultTTL = 3 * 24 * time.Hour

// Entry is one cached classification result.
type Entry struct {
	Range     adrange.Range
	CreatedAt time.Time
}

// entryJSON is the stored shape: flat range fields plus a unix-millisecond
// creation stamp.
type entryJSON struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	CreateAt  int64   `json:"createAt"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		StartTime: e.Range.StartTime,
		EndTime:   e.Range.EndTime,
		CreateAt:  e.CreatedAt.UnixMilli(),
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Range = adrange.Range{StartTime: raw.StartTime, EndTime: raw.EndTime}
	if raw.CreateAt > 0 {
		e.CreatedAt = time.UnixMilli(raw.CreateAt)
	} else {
		e.CreatedAt = time.Time{}
	}
	return nil
}
