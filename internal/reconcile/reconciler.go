// Package reconcile applies typed pipeline events to the friends and
// instances tables. Handlers run one at a time, in arrival order, on the
// session's read loop, so table writes are serialized here and nowhere
// else. Every handler is safe against duplicate delivery.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"

	"github.com/angelware-net/spectre/internal/proto"
	"github.com/angelware-net/spectre/internal/settings"
	"github.com/angelware-net/spectre/internal/state"
)

// API is the subset of the bulk data provider the reconciler needs.
type API interface {
	GetUser(ctx context.Context, userID string) (*proto.User, error)
	GetInstance(ctx context.Context, instanceID string) (*proto.Instance, error)
}

// History is the append-only history log sink.
type History interface {
	Append(entryType, message, userID, location string) error
}

// Notifier raises user-facing notifications. Delivery is best-effort.
type Notifier interface {
	Notify(title, body string)
}

// Settings exposes the user preferences the reconciler consults.
type Settings interface {
	Bool(key string, def bool) bool
}

type Reconciler struct {
	api       API
	friends   *state.FriendTable
	instances *state.InstanceTable
	current   *state.InstanceRef
	history   History
	notifier  Notifier
	settings  Settings
}

func New(api API, friends *state.FriendTable, instances *state.InstanceTable, current *state.InstanceRef, history History, notifier Notifier, prefs Settings) *Reconciler {
	return &Reconciler{
		api:       api,
		friends:   friends,
		instances: instances,
		current:   current,
		history:   history,
		notifier:  notifier,
		settings:  prefs,
	}
}

// HandleFriendLocation patches a known friend from the event's embedded user
// snapshot and keeps the instances table in step with the new location. An
// unknown friend means we missed their online event; self-heal with a full
// fetch and skip the patch this round.
func (r *Reconciler) HandleFriendLocation(ctx context.Context, ev proto.FriendLocation) {
	cur, ok := r.friends.Get(ev.UserID)
	if !ok {
		r.insertFriend(ctx, ev.UserID)
		return
	}

	patched := applyLocationPatch(cur, ev)
	if !reflect.DeepEqual(cur, patched) {
		r.friends.Set(ev.UserID, patched)
	}

	if proto.IsResolvable(ev.Location) {
		inst, err := r.api.GetInstance(ctx, ev.Location)
		if err != nil {
			log.Printf("RECONCILE: instance %s for %s: %v", ev.Location, ev.UserID, err)
		} else {
			r.instances.Set(ev.UserID, *inst)
		}
	} else if !proto.IsTraveling(ev.Location) {
		r.instances.Delete(ev.UserID)
	}

	r.maybeNotifyEnRoute(ctx, ev)
}

// maybeNotifyEnRoute raises a notification when a friend is traveling to the
// local user's current instance and the preference is enabled.
func (r *Reconciler) maybeNotifyEnRoute(ctx context.Context, ev proto.FriendLocation) {
	if ev.TravelingToLocation == "" {
		return
	}
	if !r.settings.Bool(settings.KeyNotifyOnJoin, true) {
		return
	}
	here := r.current.Get()
	if here == "" || here != ev.TravelingToLocation {
		return
	}

	name := r.displayName(ctx, ev.UserID)
	title := fmt.Sprintf("%s is heading to your current location!", name)
	r.notifier.Notify(title, title)
}

// HandleFriendOffline marks a known friend offline. The friend record stays
// in the table; the instance entry is removed so the "entry iff public
// resolvable location" invariant holds immediately rather than waiting for
// the next location event.
func (r *Reconciler) HandleFriendOffline(ev proto.FriendOffline) {
	r.friends.Update(ev.UserID, func(f *proto.Friend) bool {
		if f.Location == proto.LocationOffline && f.Platform == proto.LocationOffline {
			return false
		}
		f.Location = proto.LocationOffline
		f.Platform = proto.LocationOffline
		return true
	})
	r.instances.Delete(ev.UserID)
}

// HandleFriendOnline upserts the friend from a full record fetch; the event
// itself carries only an identifier.
func (r *Reconciler) HandleFriendOnline(ctx context.Context, ev proto.FriendOnline) {
	r.insertFriend(ctx, ev.UserID)
}

// HandleFriendActive is identical to online: fetch and upsert.
func (r *Reconciler) HandleFriendActive(ctx context.Context, ev proto.FriendActive) {
	r.insertFriend(ctx, ev.UserID)
}

// HandleUserLocation tracks the local user's own instance. Travel frames are
// transient and ignored; real moves update the current-instance ref and are
// recorded in the history log.
func (r *Reconciler) HandleUserLocation(ctx context.Context, ev proto.UserLocation) {
	if proto.IsTraveling(ev.Location) {
		return
	}

	r.current.Set(ev.Location)
	log.Printf("RECONCILE: current location changed to %s", ev.Location)

	if proto.IsOffline(ev.Location) {
		return
	}
	inst, err := r.api.GetInstance(ctx, ev.Location)
	if err != nil {
		log.Printf("RECONCILE: instance %s: %v", ev.Location, err)
		return
	}
	if err := r.history.Append("User Location", inst.World.Name, "", inst.WorldID); err != nil {
		log.Printf("RECONCILE: history append: %v", err)
	}
}

// HandleNotification decodes the nested payload per notification kind,
// resolves the sender's display name, and raises a notification plus a
// history entry. Unknown kinds are silently ignored.
func (r *Reconciler) HandleNotification(ctx context.Context, n proto.Notification) {
	if n.SenderUserID == "" {
		return
	}
	name := r.displayName(ctx, n.SenderUserID)

	var title, entryType string
	switch n.Type {
	case proto.NotifInvite:
		var details proto.InviteDetails
		if err := decodeDetails(n.Details, &details); err != nil {
			log.Printf("RECONCILE: invite details: %v", err)
			return
		}
		title = fmt.Sprintf("%s sent you an invite to %s", name, details.WorldName)
		entryType = "Invite"
	case proto.NotifRequestInvite:
		title = fmt.Sprintf("%s is requesting an invite!", name)
		entryType = "Invite Request"
	case proto.NotifFriendRequest:
		title = fmt.Sprintf("%s sent you a friend request!", name)
		entryType = "Friend Request"
	case proto.NotifMessage:
		title = fmt.Sprintf("%s sent you a message!", name)
		entryType = "Message"
	case proto.NotifRequestInviteRespond:
		title = fmt.Sprintf("%s responded to your invite request!", name)
		entryType = "Invite Response"
	default:
		return
	}

	r.notifier.Notify(title, n.Message)
	if err := r.history.Append(entryType, title, n.SenderUserID, ""); err != nil {
		log.Printf("RECONCILE: history append: %v", err)
	}
}

// insertFriend fetches the full record and upserts it. Naturally idempotent.
func (r *Reconciler) insertFriend(ctx context.Context, userID string) {
	user, err := r.api.GetUser(ctx, userID)
	if err != nil {
		log.Printf("RECONCILE: fetch user %s: %v", userID, err)
		return
	}
	r.friends.Set(userID, proto.FriendFromUser(*user))
}

// displayName resolves a user ID to a display name, falling back to the raw
// ID when the lookup fails.
func (r *Reconciler) displayName(ctx context.Context, userID string) string {
	user, err := r.api.GetUser(ctx, userID)
	if err != nil {
		log.Printf("RECONCILE: resolve name for %s: %v", userID, err)
		return userID
	}
	return user.DisplayName
}

// applyLocationPatch merges the status and location fields a friend-location
// event carries into the current record. Fields the event doesn't carry
// (fallbackAvatar, friendKey) are preserved.
func applyLocationPatch(cur proto.Friend, ev proto.FriendLocation) proto.Friend {
	u := ev.User
	patched := cur
	patched.Bio = u.Bio
	patched.BioLinks = u.BioLinks
	patched.CurrentAvatarImageURL = u.CurrentAvatarImageURL
	patched.CurrentAvatarThumbnailImageURL = u.CurrentAvatarThumbnailImageURL
	patched.CurrentAvatarTags = u.CurrentAvatarTags
	patched.DeveloperType = u.DeveloperType
	patched.DisplayName = u.DisplayName
	patched.IsFriend = u.IsFriend
	patched.LastPlatform = u.LastPlatform
	patched.ProfilePicOverride = u.ProfilePicOverride
	patched.Pronouns = u.Pronouns
	patched.Status = u.Status
	patched.StatusDescription = u.StatusDescription
	patched.Tags = u.Tags
	patched.UserIcon = u.UserIcon
	patched.Location = ev.Location
	patched.Platform = ev.Platform
	return patched
}

func decodeDetails(raw []byte, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty details payload")
	}
	return json.Unmarshal(raw, v)
}
