// Package storage defines the object store abstraction used to persist
// session records and images. Keys are slash-separated and relative; each
// backend maps them onto its own namespace (a directory, a bucket prefix, a
// table).
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/GuyChahine/deeplogs/internal/record"
)

// ErrNotFound signals that the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for empty, absolute or escaping keys.
var ErrInvalidKey = errors.New("invalid object key")

// RecordFile is the object name of a session's serialized record.
const RecordFile = ".log"

// ImageDir is the directory holding a session's images.
const ImageDir = "images"

// Store is implemented by every persistence backend. Put must replace the
// object atomically: a concurrent Get observes either the old or the new
// bytes, never a mix.
type Store interface {
	// Put writes data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte) error
	// Get reads the object at key or returns ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// NoOp is a Store that discards writes and holds nothing.
type NoOp struct{}

// Put discards the data.
func (NoOp) Put(_ context.Context, key string, _ []byte) error {
	return CheckKey(key)
}

// Get always reports ErrNotFound.
func (NoOp) Get(_ context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
}

// List returns no keys.
func (NoOp) List(context.Context, string) ([]string, error) {
	return nil, nil
}

// CheckKey validates an object key.
func CheckKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// CheckSessionName validates a session name, which becomes one key segment.
func CheckSessionName(name string) error {
	if strings.Contains(name, "/") {
		return fmt.Errorf("%w: session name %q contains a slash", ErrInvalidKey, name)
	}
	if err := CheckKey(name); err != nil {
		return fmt.Errorf("session name: %w", err)
	}
	return nil
}

// RecordKey returns "<name>/.log".
func RecordKey(name string) string {
	return path.Join(name, RecordFile)
}

// ImageKey returns "<name>/images/<tag>_<timestep>.png".
func ImageKey(name, tag string, timestep float64) string {
	return path.Join(name, ImageDir, tag+"_"+strconv.FormatFloat(timestep, 'f', -1, 64)+".png")
}

// SaveRecord serializes rec and stores it under its record key.
func SaveRecord(ctx context.Context, s Store, rec *record.Record) error {
	data, err := record.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.Put(ctx, RecordKey(rec.Name), data); err != nil {
		return fmt.Errorf("save record %q: %w", rec.Name, err)
	}
	return nil
}

// LoadRecord reads and decodes the record of session name. Missing objects
// wrap ErrNotFound; undecodable ones wrap record.ErrMalformedRecord.
func LoadRecord(ctx context.Context, s Store, name string) (*record.Record, error) {
	data, err := s.Get(ctx, RecordKey(name))
	if err != nil {
		return nil, fmt.Errorf("load record %q: %w", name, err)
	}
	rec, err := record.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load record %q: %w", name, err)
	}
	return rec, nil
}

// Sessions lists the names of every session that has a record in s.
func Sessions(ctx context.Context, s Store) ([]string, error) {
	keys, err := s.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var names []string
	for _, key := range keys {
		dir, file := path.Split(key)
		dir = strings.TrimSuffix(dir, "/")
		if file != RecordFile || dir == "" || strings.Contains(dir, "/") {
			continue
		}
		names = append(names, dir)
	}
	sort.Strings(names)
	return names, nil
}
