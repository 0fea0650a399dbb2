// Package store keeps per-user topics and settings.
//
// Every accessor is a read-modify-write of the whole table: the table is
// loaded, the user's record is defaulted and mutated, and the complete table
// is saved back. All accessors are serialized by a single mutex, so two
// commands racing inside one process cannot lose each other's update.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"

	"newsdigest/internal/domain"
)

var ErrInvalidUserID = errors.New("invalid user ID")

type Subscription struct {
	UserID int64
	Slot   domain.Slot
}

type Store struct {
	mu       sync.Mutex
	backend  Backend
	defaults Defaults
	log      *slog.Logger
}

func New(backend Backend, defaults Defaults, log *slog.Logger) *Store {
	defaults.Topics = domain.UniqueTopics(defaults.Topics)

	return &Store{
		backend:  backend,
		defaults: defaults,
		log:      log,
	}
}

func (s *Store) Defaults() Defaults {
	return Defaults{
		Topics:   slices.Clone(s.defaults.Topics),
		Settings: s.defaults.Settings,
	}
}

func (s *Store) GetTopics(ctx context.Context, userID int64) ([]string, error) {
	var topics []string

	err := s.update(ctx, userID, func(r *Record) {
		topics = slices.Clone(r.Topics)
	})

	return topics, err
}

func (s *Store) SetTopics(ctx context.Context, userID int64, topics []string) error {
	return s.update(ctx, userID, func(r *Record) {
		r.Topics = domain.UniqueTopics(topics)
	})
}

// UpdateTopics applies fn to the user's topics inside one read-modify-write
// and returns the stored result.
func (s *Store) UpdateTopics(
	ctx context.Context,
	userID int64,
	fn func(topics []string) []string,
) ([]string, error) {
	var topics []string

	err := s.update(ctx, userID, func(r *Record) {
		r.Topics = domain.UniqueTopics(fn(slices.Clone(r.Topics)))
		topics = slices.Clone(r.Topics)
	})

	return topics, err
}

func (s *Store) GetSettings(ctx context.Context, userID int64) (domain.Settings, error) {
	var settings domain.Settings

	err := s.update(ctx, userID, func(r *Record) {
		settings = r.settings()
	})

	return settings, err
}

// UpdateSettings merges the non-nil fields of patch and returns the full
// resulting settings.
func (s *Store) UpdateSettings(
	ctx context.Context,
	userID int64,
	patch domain.SettingsPatch,
) (domain.Settings, error) {
	var settings domain.Settings

	err := s.update(ctx, userID, func(r *Record) {
		r.merge(patch)
		settings = r.settings()
	})

	return settings, err
}

// Subscriptions lists every subscribed user. Records with a malformed key or
// body are skipped and reported in the joined error.
func (s *Store) Subscriptions(ctx context.Context) ([]Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load table: %w", err)
	}

	var subs []Subscription
	var errs []error

	for _, key := range slices.Sorted(maps.Keys(table)) {
		rec := table[key]
		if rec != nil && rec.Invalid() {
			errs = append(errs, fmt.Errorf("%w %q", ErrInvalidRecord, key))
			continue
		}
		if rec == nil || rec.Settings.Subscribed == nil || !*rec.Settings.Subscribed {
			continue
		}

		userID, parseErr := strconv.ParseInt(key, 10, 64)
		if parseErr != nil {
			errs = append(errs, fmt.Errorf("%w %q: %w", ErrInvalidUserID, key, parseErr))
			continue
		}

		slot := s.defaults.Settings.Schedule
		if rec.Settings.Schedule != nil {
			slot = *rec.Settings.Schedule
		}

		subs = append(subs, Subscription{UserID: userID, Slot: slot})
	}

	return subs, errors.Join(errs...)
}

// update runs fn on the defaulted record and saves the whole table back,
// reads included.
func (s *Store) update(ctx context.Context, userID int64, fn func(r *Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load table: %w", err)
	}
	if table == nil {
		table = make(Table)
	}

	key := strconv.FormatInt(userID, 10)

	rec, ok := table[key]
	if ok && rec != nil && rec.Invalid() {
		s.log.WarnContext(ctx, "Resetting corrupt user record",
			"userID", userID)

		rec = nil
	}
	if rec == nil {
		rec = &Record{}
		table[key] = rec
	}

	rec.applyDefaults(s.defaults)
	fn(rec)

	if err = s.backend.Save(ctx, table); err != nil {
		s.log.ErrorContext(ctx, "Failed to save user table",
			"error", err,
			"userID", userID)

		return fmt.Errorf("save table: %w", err)
	}

	return nil
}
