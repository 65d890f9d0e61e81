package loader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/angelware-net/spectre/internal/proto"
	"github.com/angelware-net/spectre/internal/state"
)

type fakeAPI struct {
	mu        sync.Mutex
	friends   []proto.Friend
	users     map[string]proto.User
	instances map[string]proto.Instance
	listErr   error

	userCalls int
}

func (a *fakeAPI) ListFriends(context.Context) ([]proto.Friend, error) {
	if a.listErr != nil {
		return nil, a.listErr
	}
	return a.friends, nil
}

func (a *fakeAPI) GetUser(_ context.Context, userID string) (*proto.User, error) {
	a.mu.Lock()
	a.userCalls++
	a.mu.Unlock()
	u, ok := a.users[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return &u, nil
}

func (a *fakeAPI) GetInstance(_ context.Context, instanceID string) (*proto.Instance, error) {
	inst, ok := a.instances[instanceID]
	if !ok {
		return nil, errors.New("instance not found")
	}
	return &inst, nil
}

func TestLoadSnapshot(t *testing.T) {
	api := &fakeAPI{
		friends: []proto.Friend{
			{ID: "usr_public"},
			{ID: "usr_private"},
			{ID: "usr_offline"},
		},
		users: map[string]proto.User{
			"usr_public":  {ID: "usr_public", DisplayName: "Alice", Location: "wrld_a:1"},
			"usr_private": {ID: "usr_private", DisplayName: "Bob", Location: "private"},
			"usr_offline": {ID: "usr_offline", DisplayName: "Carol", Location: "offline"},
		},
		instances: map[string]proto.Instance{
			"wrld_a:1": {ID: "1", WorldID: "wrld_a", UserCount: 3},
		},
	}
	friends := state.NewFriendTable()
	instances := state.NewInstanceTable()

	l := New(api, friends, instances, 150, 0)
	if err := l.LoadSnapshot(context.Background()); err != nil {
		t.Fatal(err)
	}

	if friends.Len() != 3 {
		t.Fatalf("friends = %d, want 3", friends.Len())
	}
	got, _ := friends.Get("usr_public")
	if got.DisplayName != "Alice" {
		t.Fatalf("detail fetch not applied: %+v", got)
	}

	// Only the public friend gets an instance entry.
	if instances.Len() != 1 {
		t.Fatalf("instances = %d, want 1", instances.Len())
	}
	inst, ok := instances.Get("usr_public")
	if !ok || inst.UserCount != 3 {
		t.Fatalf("instance = %+v, %v", inst, ok)
	}
}

func TestLoadSnapshotBatches(t *testing.T) {
	api := &fakeAPI{users: map[string]proto.User{}}
	for i := 0; i < 7; i++ {
		id := string(rune('a' + i))
		api.friends = append(api.friends, proto.Friend{ID: id})
		api.users[id] = proto.User{ID: id}
	}
	friends := state.NewFriendTable()
	instances := state.NewInstanceTable()

	l := New(api, friends, instances, 3, 0)
	if err := l.LoadSnapshot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if api.userCalls != 7 {
		t.Fatalf("userCalls = %d, want 7", api.userCalls)
	}
	if friends.Len() != 7 {
		t.Fatalf("friends = %d, want 7", friends.Len())
	}
}

func TestLoadSnapshotPerItemFailureIsSkipped(t *testing.T) {
	api := &fakeAPI{
		friends: []proto.Friend{
			{ID: "usr_ok", DisplayName: "stale name"},
			{ID: "usr_broken", DisplayName: "listed name"},
		},
		users: map[string]proto.User{
			"usr_ok": {ID: "usr_ok", DisplayName: "Alice"},
		},
	}
	friends := state.NewFriendTable()
	instances := state.NewInstanceTable()

	l := New(api, friends, instances, 150, 0)
	if err := l.LoadSnapshot(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The broken friend keeps its listing record rather than vanishing.
	got, ok := friends.Get("usr_broken")
	if !ok || got.DisplayName != "listed name" {
		t.Fatalf("broken friend = %+v, %v", got, ok)
	}
	got, _ = friends.Get("usr_ok")
	if got.DisplayName != "Alice" {
		t.Fatalf("ok friend = %+v", got)
	}
}

func TestLoadSnapshotListFailure(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("401")}
	l := New(api, state.NewFriendTable(), state.NewInstanceTable(), 150, 0)
	if err := l.LoadSnapshot(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestReload(t *testing.T) {
	api := &fakeAPI{
		friends: []proto.Friend{{ID: "usr_1"}},
		users:   map[string]proto.User{"usr_1": {ID: "usr_1", Location: "wrld_a:1"}},
		instances: map[string]proto.Instance{
			"wrld_a:1": {ID: "1"},
		},
	}
	friends := state.NewFriendTable()
	instances := state.NewInstanceTable()
	l := New(api, friends, instances, 150, 0)

	// Empty tables: Reload loads.
	if err := l.Reload(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	calls := api.userCalls

	// Populated and unforced: no-op.
	if err := l.Reload(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if api.userCalls != calls {
		t.Fatal("unforced reload refetched")
	}

	// Forced: loads again.
	if err := l.Reload(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if api.userCalls == calls {
		t.Fatal("forced reload did not refetch")
	}
}
