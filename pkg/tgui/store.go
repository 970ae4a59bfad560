package tgui

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultTokenTTL = 15 * time.Minute
	defaultTokenMax = 5000
)

// TokenStore keeps callback payloads that do not fit in 64 bytes
// server-side and hands out short tokens instead. Entries expire after the
// TTL; the least recently used entry goes first when the store is full.
//
// Tokens never contain ':' so they are safe as a callback payload.
type TokenStore struct {
	lru *expirable.LRU[string, string]
}

// NewTokenStore creates a store; non-positive arguments use the defaults
// (5000 entries, 15m).
func NewTokenStore(maxEntries int, ttl time.Duration) *TokenStore {
	if maxEntries <= 0 {
		maxEntries = defaultTokenMax
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenStore{lru: expirable.NewLRU[string, string](maxEntries, nil, ttl)}
}

// Put stores v and returns a token of the form "~xxxxxxxx".
func (s *TokenStore) Put(v string) string {
	var buf [6]byte
	for {
		_, _ = rand.Read(buf[:])
		tok := "~" + base64.RawURLEncoding.EncodeToString(buf[:])
		if s.lru.Contains(tok) {
			continue
		}
		s.lru.Add(tok, v)
		return tok
	}
}

// Get returns the value for tok if it is still live.
func (s *TokenStore) Get(tok string) (string, bool) {
	if tok == "" {
		return "", false
	}
	return s.lru.Get(tok)
}

// Take returns the value and removes the token.
func (s *TokenStore) Take(tok string) (string, bool) {
	v, ok := s.Get(tok)
	if ok {
		s.lru.Remove(tok)
	}
	return v, ok
}

func (s *TokenStore) Len() int { return s.lru.Len() }
