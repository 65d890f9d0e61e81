// Package state holds the observable in-memory stores: the friends table,
// the instances table, and the current-instance ref. Each store notifies
// subscribers on change with non-blocking sends.
package state

import (
	"sync"

	"github.com/angelware-net/spectre/internal/proto"
)

// FriendEvent is pushed to subscribers on every observable change.
// Type is "update" for a single-record change and "replace" for a full
// snapshot swap; Friends is only set on "replace".
type FriendEvent struct {
	Type    string                  `json:"type"`
	UserID  string                  `json:"user_id,omitempty"`
	Friend  *proto.Friend           `json:"friend,omitempty"`
	Friends map[string]proto.Friend `json:"friends,omitempty"`
}

// FriendTable is the friends mapping, keyed by user ID. Writes go through
// the reconciler and the snapshot loader only; readers get copies. Entries
// are never removed; offline friends stay in the table with the offline
// sentinel location.
type FriendTable struct {
	mu        sync.Mutex
	friends   map[string]proto.Friend
	listeners []chan FriendEvent
}

func NewFriendTable() *FriendTable {
	return &FriendTable{
		friends:   map[string]proto.Friend{},
		listeners: make([]chan FriendEvent, 0),
	}
}

func (t *FriendTable) Get(id string) (proto.Friend, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.friends[id]
	return f, ok
}

// Set unconditionally stores a record and notifies subscribers.
func (t *FriendTable) Set(id string, f proto.Friend) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.friends[id] = f
	t.notifyListeners(FriendEvent{Type: "update", UserID: id, Friend: &f})
}

// Update applies fn to the current record if present. If fn returns false
// the record is unchanged and no event fires. This is the equality gate
// for redundant patches.
func (t *FriendTable) Update(id string, fn func(f *proto.Friend) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.friends[id]
	if !ok {
		return false
	}
	if !fn(&f) {
		return true
	}
	t.friends[id] = f
	t.notifyListeners(FriendEvent{Type: "update", UserID: id, Friend: &f})
	return true
}

// Replace swaps the whole mapping in one step, so observers never see a
// half-populated snapshot mid-load. The event carries its own copy; a
// listener mutating it cannot touch the table's backing map.
func (t *FriendTable) Replace(friends map[string]proto.Friend) {
	cp := make(map[string]proto.Friend, len(friends))
	evCp := make(map[string]proto.Friend, len(friends))
	for k, v := range friends {
		cp[k] = v
		evCp[k] = v
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.friends = cp
	t.notifyListeners(FriendEvent{Type: "replace", Friends: evCp})
}

func (t *FriendTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.friends)
}

func (t *FriendTable) Snapshot() map[string]proto.Friend {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make(map[string]proto.Friend, len(t.friends))
	for k, v := range t.friends {
		cp[k] = v
	}
	return cp
}

func (t *FriendTable) Subscribe() chan FriendEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan FriendEvent, 16)
	t.listeners = append(t.listeners, ch)
	return ch
}

func (t *FriendTable) Unsubscribe(ch chan FriendEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, listener := range t.listeners {
		if listener == ch {
			close(listener)
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			return
		}
	}
}

func (t *FriendTable) notifyListeners(evt FriendEvent) {
	for _, ch := range t.listeners {
		select {
		case ch <- evt:
		default:
		}
	}
}
