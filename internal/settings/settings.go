// Package settings holds the user preferences the pipeline and views read.
package settings

import (
	"fmt"
	"sync"
)

// Chat background keys
const (
	BackgroundClassic = "classic"
	BackgroundOcean   = "ocean"
	BackgroundMint    = "mint"
	BackgroundSunset  = "sunset"
)

var backgrounds = map[string]bool{
	BackgroundClassic: true,
	BackgroundOcean:   true,
	BackgroundMint:    true,
	BackgroundSunset:  true,
}

// Defaults seeds a Store
type Defaults struct {
	ShowUnreadBadges           bool
	NotificationContentVisible bool
	ChatBackground             string
}

// Store is an in-memory settings holder safe for concurrent use
type Store struct {
	mu                         sync.RWMutex
	showUnreadBadges           bool
	notificationContentVisible bool
	chatBackground             string
	pinned                     map[int64]bool
	muted                      map[int64]bool
}

// New creates a store from defaults. Unknown backgrounds fall back to classic.
func New(d Defaults) *Store {
	bg := d.ChatBackground
	if !backgrounds[bg] {
		bg = BackgroundClassic
	}
	return &Store{
		showUnreadBadges:           d.ShowUnreadBadges,
		notificationContentVisible: d.NotificationContentVisible,
		chatBackground:             bg,
		pinned:                     make(map[int64]bool),
		muted:                      make(map[int64]bool),
	}
}

func (s *Store) ShowUnreadBadges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showUnreadBadges
}

func (s *Store) SetShowUnreadBadges(v bool) {
	s.mu.Lock()
	s.showUnreadBadges = v
	s.mu.Unlock()
}

func (s *Store) NotificationContentVisible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notificationContentVisible
}

func (s *Store) SetNotificationContentVisible(v bool) {
	s.mu.Lock()
	s.notificationContentVisible = v
	s.mu.Unlock()
}

func (s *Store) ChatBackground() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatBackground
}

// SetChatBackground validates and stores the background key
func (s *Store) SetChatBackground(key string) error {
	if !backgrounds[key] {
		return fmt.Errorf("unknown chat background %q", key)
	}
	s.mu.Lock()
	s.chatBackground = key
	s.mu.Unlock()
	return nil
}

// TogglePinned flips the pinned state of a thread and returns the new state
func (s *Store) TogglePinned(threadID int64) bool {
	return s.toggle(s.pinned, threadID)
}

// ToggleMuted flips the muted state of a thread and returns the new state
func (s *Store) ToggleMuted(threadID int64) bool {
	return s.toggle(s.muted, threadID)
}

func (s *Store) IsPinned(threadID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinned[threadID]
}

func (s *Store) IsMuted(threadID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted[threadID]
}

func (s *Store) toggle(set map[int64]bool, threadID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set[threadID] {
		delete(set, threadID)
		return false
	}
	set[threadID] = true
	return true
}
