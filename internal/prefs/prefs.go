// Package prefs persists user preferences across daemon restarts.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const keyVoiceEnabled = "voice.enabled"

// Store is a badger-backed preference store.
type Store struct {
	db *badger.DB
}

// Open opens the store under dir, or an in-memory store when dir is empty.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	var opts badger.Options
	if strings.TrimSpace(dir) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create preference dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(badgerLogger{logger: logger}).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open preference store: %w", err)
	}
	return &Store{db: db}, nil
}

// Enabled returns the persisted voice preference and whether one was stored.
func (s *Store) Enabled() (bool, bool, error) {
	var (
		enabled bool
		found   bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyVoiceEnabled))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			parsed, perr := strconv.ParseBool(string(val))
			if perr != nil {
				return fmt.Errorf("decode %s: %w", keyVoiceEnabled, perr)
			}
			enabled = parsed
			found = true
			return nil
		})
	})
	if err != nil {
		return false, false, fmt.Errorf("read preference: %w", err)
	}
	return enabled, found, nil
}

// SetEnabled persists the voice preference.
func (s *Store) SetEnabled(enabled bool) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyVoiceEnabled), []byte(strconv.FormatBool(enabled)))
	})
	if err != nil {
		return fmt.Errorf("write preference: %w", err)
	}
	return nil
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's internal logging into slog at debug level or above.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) log(level slog.Level, format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Log(context.Background(), level, strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.log(slog.LevelError, format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.log(slog.LevelWarn, format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.log(slog.LevelDebug, format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.log(slog.LevelDebug, format, args...) }
