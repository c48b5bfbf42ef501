// Package watermark persists the "last successful run" timestamps that make
// extraction and loading incremental.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a parameter has never been written.
	ErrNotFound = errors.New("watermark not found")
)

const (
	// ExtractLayout is the stored format of the extract watermark.
	ExtractLayout = "2006_01_02-15_04"

	// LoadLayout is the stored format of the load watermark.
	LoadLayout = "2006_01_02-15_04_05"

	// Sentinel is the stored value meaning "no previous run".
	Sentinel = "None"
)

// Watermark is either a UTC timestamp or the "no previous run" sentinel.
type Watermark struct {
	Time time.Time
	Set  bool
}

// None returns the "no previous run" watermark.
func None() Watermark { return Watermark{} }

// At returns a watermark at t, truncated to what layout can represent.
func At(t time.Time, layout string) Watermark {
	t = t.UTC()
	parsed, err := time.Parse(layout, t.Format(layout))
	if err != nil {
		return Watermark{Time: t, Set: true}
	}
	return Watermark{Time: parsed, Set: true}
}

// Parse decodes a stored value written with layout.
func Parse(value, layout string) (Watermark, error) {
	if value == Sentinel {
		return None(), nil
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return Watermark{}, fmt.Errorf("parse watermark %q: %w", value, err)
	}
	return Watermark{Time: t.UTC(), Set: true}, nil
}

// Format encodes w with layout.
func (w Watermark) Format(layout string) string {
	if !w.Set {
		return Sentinel
	}
	return w.Time.UTC().Format(layout)
}

// Admits reports whether something modified at t is newer than w.
// Everything is newer than the sentinel.
func (w Watermark) Admits(t time.Time) bool {
	return !w.Set || t.After(w.Time)
}

func (w Watermark) String() string {
	if !w.Set {
		return Sentinel
	}
	return w.Time.Format(time.RFC3339)
}

// Store reads and writes named string parameters.
type Store interface {
	// Get returns the value of name, or ErrNotFound.
	Get(ctx context.Context, name string) (string, error)

	// Put overwrites the value of name.
	Put(ctx context.Context, name, value string) error
}

// Read fetches and parses the watermark called name.
func Read(ctx context.Context, s Store, name, layout string) (Watermark, error) {
	value, err := s.Get(ctx, name)
	if err != nil {
		return Watermark{}, fmt.Errorf("get %s: %w", name, err)
	}
	return Parse(value, layout)
}

// Write stores w under name.
func Write(ctx context.Context, s Store, name, layout string, w Watermark) error {
	if err := s.Put(ctx, name, w.Format(layout)); err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}
