package session

import (
	"context"
	"fmt"
	"time"
)

// Session is the per-visitor state kept between requests. UserID is empty
// until the visitor authenticates; Values carries short-lived flow state
// such as a staged identity or OAuth tokens.
type Session struct {
	SessionID         string            `json:"session_id"`
	UserID            string            `json:"user_id,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	AbsoluteExpiresAt time.Time         `json:"absolute_expires_at"`
	ExpiresAt         time.Time         `json:"expires_at"`
	Values            map[string]string `json:"values,omitempty"`

	previousID string
	dirty      bool
	destroyed  bool
}

// New starts an anonymous session valid for ttl.
func New(ttl time.Duration) (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Session{
		SessionID:         id,
		CreatedAt:         now,
		AbsoluteExpiresAt: now.Add(ttl),
		ExpiresAt:         now.Add(ttl),
	}, nil
}

// Store defines how sessions are stored and retrieved.
// Get returns (nil, nil) for unknown ids.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}

func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *Session) Get(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	s.Values[key] = value
	s.dirty = true
}

// Pop returns the value for key and removes it.
func (s *Session) Pop(key string) (string, bool) {
	v, ok := s.Values[key]
	if ok {
		delete(s.Values, key)
		s.dirty = true
	}
	return v, ok
}

func (s *Session) Delete(keys ...string) {
	for _, k := range keys {
		if _, ok := s.Values[k]; ok {
			delete(s.Values, k)
			s.dirty = true
		}
	}
}

// Login binds the session to userID under a fresh session id. The caller
// must reissue the cookie; the old id is removed from the store on save.
func (s *Session) Login(userID string) error {
	if userID == "" {
		return fmt.Errorf("session: login with empty user id")
	}

	id, err := GenerateID()
	if err != nil {
		return err
	}

	if s.previousID == "" {
		s.previousID = s.SessionID
	}
	s.SessionID = id
	s.UserID = userID
	s.dirty = true
	return nil
}

// Destroy marks the session for deletion.
func (s *Session) Destroy() {
	s.destroyed = true
	s.dirty = true
}

func (s *Session) Dirty() bool {
	return s.dirty
}

func (s *Session) Destroyed() bool {
	return s.destroyed
}

// PreviousID is the id the session had before Login rotated it.
func (s *Session) PreviousID() string {
	return s.previousID
}
