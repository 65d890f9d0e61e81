package state

import (
	"sync"

	"github.com/angelware-net/spectre/internal/proto"
)

// InstanceEvent mirrors FriendEvent for the instances mapping. Type is
// "update", "remove", or "replace".
type InstanceEvent struct {
	Type      string                    `json:"type"`
	UserID    string                    `json:"user_id,omitempty"`
	Instance  *proto.Instance           `json:"instance,omitempty"`
	Instances map[string]proto.Instance `json:"instances,omitempty"`
}

// InstanceTable maps a friend's user ID to the instance they occupy. An
// entry exists iff the friend's last known location is public and
// resolvable; private and offline transitions remove it.
type InstanceTable struct {
	mu        sync.Mutex
	instances map[string]proto.Instance
	listeners []chan InstanceEvent
}

func NewInstanceTable() *InstanceTable {
	return &InstanceTable{
		instances: map[string]proto.Instance{},
		listeners: make([]chan InstanceEvent, 0),
	}
}

func (t *InstanceTable) Get(userID string) (proto.Instance, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.instances[userID]
	return inst, ok
}

func (t *InstanceTable) Set(userID string, inst proto.Instance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.instances[userID] = inst
	t.notifyListeners(InstanceEvent{Type: "update", UserID: userID, Instance: &inst})
}

// Delete removes the entry for a friend. Deleting an absent entry is a
// no-op and fires no event.
func (t *InstanceTable) Delete(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.instances[userID]; !ok {
		return
	}
	delete(t.instances, userID)
	t.notifyListeners(InstanceEvent{Type: "remove", UserID: userID})
}

// Replace swaps the whole mapping in one step. The event carries its own
// copy; a listener mutating it cannot touch the table's backing map.
func (t *InstanceTable) Replace(instances map[string]proto.Instance) {
	cp := make(map[string]proto.Instance, len(instances))
	evCp := make(map[string]proto.Instance, len(instances))
	for k, v := range instances {
		cp[k] = v
		evCp[k] = v
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.instances = cp
	t.notifyListeners(InstanceEvent{Type: "replace", Instances: evCp})
}

func (t *InstanceTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.instances)
}

func (t *InstanceTable) Snapshot() map[string]proto.Instance {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make(map[string]proto.Instance, len(t.instances))
	for k, v := range t.instances {
		cp[k] = v
	}
	return cp
}

func (t *InstanceTable) Subscribe() chan InstanceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan InstanceEvent, 16)
	t.listeners = append(t.listeners, ch)
	return ch
}

func (t *InstanceTable) Unsubscribe(ch chan InstanceEvent) {
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

func (t *InstanceTable) notifyListeners(evt InstanceEvent) {
	for _, ch := range t.listeners {
		select {
		case ch <- evt:
		default:
		}
	}
}
