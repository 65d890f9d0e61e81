package state

import "sync"

// InstanceRef holds the local user's own current instance location as a
// single observable value.
type InstanceRef struct {
	mu        sync.Mutex
	location  string
	listeners []chan string
}

func NewInstanceRef() *InstanceRef {
	return &InstanceRef{listeners: make([]chan string, 0)}
}

func (r *InstanceRef) Get() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

func (r *InstanceRef) Set(location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.location == location {
		return
	}
	r.location = location
	for _, ch := range r.listeners {
		select {
		case ch <- location:
		default:
		}
	}
}

func (r *InstanceRef) Subscribe() chan string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan string, 4)
	r.listeners = append(r.listeners, ch)
	return ch
}

func (r *InstanceRef) Unsubscribe(ch chan string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, listener := range r.listeners {
		if listener == ch {
			close(listener)
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}
