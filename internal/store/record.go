package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"newsdigest/internal/domain"
)

var ErrInvalidRecord = errors.New("invalid user record")

// Table is the whole persisted document keyed by string-encoded user ID.
type Table map[string]*Record

type Record struct {
	// Topics is nil when the key is missing from the document.
	Topics   []string       `json:"topics"`
	Settings StoredSettings `json:"settings"`

	// Raw holds the stored bytes of a record that did not decode. Such a
	// record is written back unchanged until its owner touches it.
	Raw json.RawMessage `json:"-"`
}

// DecodeRecord decodes one stored record. On failure it still returns a
// record that keeps the raw bytes, together with an ErrInvalidRecord error.
func DecodeRecord(raw []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return &Record{Raw: append(json.RawMessage{}, raw...)},
			fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	return &rec, nil
}

// Invalid reports whether the record failed to decode.
func (r *Record) Invalid() bool {
	return r.Raw != nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.Raw != nil {
		return r.Raw, nil
	}

	type plain Record

	return json.Marshal(plain(r))
}

// StoredSettings keeps every field optional so that partially written
// records can be defaulted field by field.
type StoredSettings struct {
	LatestCount *int         `json:"latest_count,omitempty"`
	DailyCount  *int         `json:"daily_count,omitempty"`
	Schedule    *domain.Slot `json:"schedule,omitempty"`
	Subscribed  *bool        `json:"subscribed,omitempty"`
}

// Backend loads and saves the complete table. Implementations never apply
// partial writes.
type Backend interface {
	Load(ctx context.Context) (Table, error)
	Save(ctx context.Context, table Table) error
}

type Defaults struct {
	Topics   []string
	Settings domain.Settings
}

// applyDefaults fills every missing field.
func (r *Record) applyDefaults(d Defaults) {
	if r.Topics == nil {
		r.Topics = append([]string{}, d.Topics...)
	}

	s := &r.Settings
	if s.LatestCount == nil {
		s.LatestCount = ptr(d.Settings.LatestCount)
	}
	if s.DailyCount == nil {
		s.DailyCount = ptr(d.Settings.DailyCount)
	}
	if s.Schedule == nil {
		s.Schedule = ptr(d.Settings.Schedule)
	}
	if s.Subscribed == nil {
		s.Subscribed = ptr(d.Settings.Subscribed)
	}
}

func (r *Record) settings() domain.Settings {
	var s domain.Settings

	if r.Settings.LatestCount != nil {
		s.LatestCount = *r.Settings.LatestCount
	}
	if r.Settings.DailyCount != nil {
		s.DailyCount = *r.Settings.DailyCount
	}
	if r.Settings.Schedule != nil {
		s.Schedule = *r.Settings.Schedule
	}
	if r.Settings.Subscribed != nil {
		s.Subscribed = *r.Settings.Subscribed
	}

	return s
}

func (r *Record) merge(patch domain.SettingsPatch) {
	if patch.LatestCount != nil {
		r.Settings.LatestCount = ptr(*patch.LatestCount)
	}
	if patch.DailyCount != nil {
		r.Settings.DailyCount = ptr(*patch.DailyCount)
	}
	if patch.Schedule != nil {
		r.Settings.Schedule = ptr(*patch.Schedule)
	}
	if patch.Subscribed != nil {
		r.Settings.Subscribed = ptr(*patch.Subscribed)
	}
}

func ptr[T any](v T) *T {
	return &v
}
