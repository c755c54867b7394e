// Package models defines the core domain entities: entries, aura checks, and oracle draws.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation marks an input-contract violation. Callers can test for it
// with errors.Is; nothing wrapping it is retryable.
var ErrValidation = errors.New("validation failed")

// EntryKind identifies which practice surface an entry belongs to.
type EntryKind string

const (
	KindDream         EntryKind = "dream"
	KindShadow        EntryKind = "shadow"
	KindSynchronicity EntryKind = "synchronicity"
	KindAnchor        EntryKind = "anchor"
	KindScript        EntryKind = "script"
	KindPractice      EntryKind = "practice"
)

// AllEntryKinds returns every entry kind in canonical order.
func AllEntryKinds() []EntryKind {
	return []EntryKind{
		KindDream,
		KindShadow,
		KindSynchronicity,
		KindAnchor,
		KindScript,
		KindPractice,
	}
}

// Known reports whether k is one of the declared entry kinds.
func (k EntryKind) Known() bool {
	switch k {
	case KindDream, KindShadow, KindSynchronicity, KindAnchor, KindScript, KindPractice:
		return true
	}
	return false
}

// Entry represents a single reflective record: one dream, one shadow-work
// session, one logged synchronicity, and so on. RecordedAt is when the
// activity happened; CreatedAt is when the entry was stored.
type Entry struct {
	ID         string    `json:"id"`
	Kind       EntryKind `json:"kind"`
	Title      string    `json:"title"`
	Body       string    `json:"body,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Intensity  int       `json:"intensity"`
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks entry field constraints.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: entry ID must not be empty", ErrValidation)
	}
	if !e.Kind.Known() {
		return fmt.Errorf("%w: unknown entry kind %q", ErrValidation, e.Kind)
	}
	if e.Title == "" {
		return fmt.Errorf("%w: entry title must not be empty", ErrValidation)
	}
	if e.Intensity < 0 || e.Intensity > 10 {
		return fmt.Errorf("%w: intensity must be between 0 and 10", ErrValidation)
	}
	for _, tag := range e.Tags {
		if tag == "" {
			return fmt.Errorf("%w: tags must not be empty strings", ErrValidation)
		}
	}
	if e.RecordedAt.IsZero() {
		return fmt.Errorf("%w: recorded at must be set", ErrValidation)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created at must be set", ErrValidation)
	}
	if e.RecordedAt.After(e.CreatedAt.Add(time.Minute)) {
		return fmt.Errorf("%w: recorded at must not be after created at", ErrValidation)
	}
	return nil
}
