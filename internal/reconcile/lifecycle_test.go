package reconcile

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/angelware-net/spectre/internal/dispatch"
	"github.com/angelware-net/spectre/internal/proto"
)

func frame(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	content, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(proto.Envelope{Type: typ, Content: string(content)})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

// Drives a full friend lifecycle through the dispatcher: online, into a
// public instance, into a private one, offline. The tables must converge at
// every step.
func TestFriendLifecycle(t *testing.T) {
	f := newFixture()
	f.api.users["usr_1"] = proto.User{ID: "usr_1", DisplayName: "Alice", Location: "private"}
	f.api.instances["wrld_a:1"] = proto.Instance{ID: "1", WorldID: "wrld_a", UserCount: 4}

	d := dispatch.New(f.rec)
	ctx := context.Background()

	d.Dispatch(ctx, frame(t, proto.TypeFriendOnline, proto.FriendOnline{UserID: "usr_1"}))
	got, ok := f.friends.Get("usr_1")
	if !ok || got.DisplayName != "Alice" {
		t.Fatalf("after online: %+v, %v", got, ok)
	}
	if f.instances.Len() != 0 {
		t.Fatal("instance entry for a private friend")
	}

	d.Dispatch(ctx, frame(t, proto.TypeFriendLocation, proto.FriendLocation{
		UserID:   "usr_1",
		Location: "wrld_a:1",
		User:     proto.User{ID: "usr_1", DisplayName: "Alice"},
	}))
	got, _ = f.friends.Get("usr_1")
	if got.Location != "wrld_a:1" {
		t.Fatalf("after move: location = %q", got.Location)
	}
	if inst, ok := f.instances.Get("usr_1"); !ok || inst.UserCount != 4 {
		t.Fatalf("after move: instance = %+v, %v", inst, ok)
	}

	d.Dispatch(ctx, frame(t, proto.TypeFriendLocation, proto.FriendLocation{
		UserID:   "usr_1",
		Location: "private",
		User:     proto.User{ID: "usr_1", DisplayName: "Alice"},
	}))
	if _, ok := f.instances.Get("usr_1"); ok {
		t.Fatal("instance entry survived private move")
	}

	d.Dispatch(ctx, frame(t, proto.TypeFriendOffline, proto.FriendOffline{UserID: "usr_1"}))
	got, _ = f.friends.Get("usr_1")
	if got.Location != proto.LocationOffline {
		t.Fatalf("after offline: location = %q", got.Location)
	}
	if f.friends.Len() != 1 {
		t.Fatalf("friend count = %d, want 1 (offline friends stay)", f.friends.Len())
	}
	if f.instances.Len() != 0 {
		t.Fatal("instances not empty after offline")
	}

	// A keep-alive and an unknown type change nothing.
	d.Dispatch(ctx, []byte(`{}`))
	d.Dispatch(ctx, frame(t, "group-joined", map[string]string{"groupId": "grp_1"}))
	if f.friends.Len() != 1 || f.instances.Len() != 0 {
		t.Fatal("stray frames changed state")
	}
}
