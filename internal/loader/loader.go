// Package loader populates the friends and instances tables from the bulk
// API: one friend-list call, then per-friend detail fetches in rate-limited
// batches. The tables are swapped in atomically at the end so observers
// never see a half-built snapshot.
package loader

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/angelware-net/spectre/internal/proto"
	"github.com/angelware-net/spectre/internal/state"
)

// API is the subset of the bulk data provider the loader needs.
type API interface {
	ListFriends(ctx context.Context) ([]proto.Friend, error)
	GetUser(ctx context.Context, userID string) (*proto.User, error)
	GetInstance(ctx context.Context, instanceID string) (*proto.Instance, error)
}

type Loader struct {
	api       API
	friends   *state.FriendTable
	instances *state.InstanceTable

	batchSize  int
	batchDelay time.Duration

	// Serializes concurrent LoadSnapshot calls; the heartbeat and an explicit
	// reload may race otherwise.
	mu sync.Mutex
}

func New(api API, friends *state.FriendTable, instances *state.InstanceTable, batchSize int, batchDelay time.Duration) *Loader {
	if batchSize <= 0 {
		batchSize = 150
	}
	return &Loader{
		api:        api,
		friends:    friends,
		instances:  instances,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

// LoadSnapshot fetches the authoritative friend list and, for every friend
// in a resolvable public location, the occupied instance. Per-item failures
// are logged and skipped; only the friend-list call itself can fail the load.
func (l *Loader) LoadSnapshot(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	list, err := l.api.ListFriends(ctx)
	if err != nil {
		return err
	}
	log.Printf("LOADER: loading snapshot for %d friends", len(list))

	friendMap := make(map[string]proto.Friend, len(list))
	for _, f := range list {
		friendMap[f.ID] = f
	}

	instanceMap := make(map[string]proto.Instance)
	var mapMu sync.Mutex // guards friendMap and instanceMap during batch fetches

	// Detail fetches run concurrently within a batch, batches sequentially
	// with a short delay, to stay under the upstream rate limit.
	for start := 0; start < len(list); start += l.batchSize {
		end := start + l.batchSize
		if end > len(list) {
			end = len(list)
		}

		var wg sync.WaitGroup
		for _, f := range list[start:end] {
			wg.Add(1)
			go func(f proto.Friend) {
				defer wg.Done()

				user, err := l.api.GetUser(ctx, f.ID)
				if err != nil {
					log.Printf("LOADER: user %s: %v", f.ID, err)
					return
				}

				mapMu.Lock()
				friendMap[f.ID] = proto.FriendFromUser(*user)
				mapMu.Unlock()

				if !proto.IsResolvable(user.Location) {
					return
				}
				inst, err := l.api.GetInstance(ctx, user.Location)
				if err != nil {
					log.Printf("LOADER: instance %s for %s: %v", user.Location, f.ID, err)
					return
				}
				mapMu.Lock()
				instanceMap[f.ID] = *inst
				mapMu.Unlock()
			}(f)
		}
		wg.Wait()

		if end < len(list) && l.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.batchDelay):
			}
		}
	}

	l.friends.Replace(friendMap)
	l.instances.Replace(instanceMap)
	log.Printf("LOADER: snapshot complete: %d friends, %d instances", len(friendMap), len(instanceMap))
	return nil
}

// Reload re-runs the snapshot only when forced or when either table is
// still empty.
func (l *Loader) Reload(ctx context.Context, force bool) error {
	if !force && l.friends.Len() > 0 && l.instances.Len() > 0 {
		return nil
	}
	return l.LoadSnapshot(ctx)
}
