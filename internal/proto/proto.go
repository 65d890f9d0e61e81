// Package proto holds the wire types shared by the session, dispatcher, and
// reconciler: the pipeline envelope, per-type event payloads, and the user,
// friend, and instance records.
package proto

import (
	"encoding/json"
	"strings"
)

// Envelope is the outer frame of every pipeline message. Content is itself a
// JSON document, encoded per Type. Frames without a type are keep-alives.
type Envelope struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Known envelope types. Anything else is logged and ignored.
const (
	TypeNotification   = "notification"
	TypeUserLocation   = "user-location"
	TypeFriendLocation = "friend-location"
	TypeFriendOnline   = "friend-online"
	TypeFriendOffline  = "friend-offline"
	TypeFriendActive   = "friend-active"
)

// Friend status values as sent by the API.
const (
	StatusJoinMe = "join me"
	StatusActive = "active"
	StatusAskMe  = "ask me"
	StatusBusy   = "busy"
)

// LocationOffline is the sentinel written to a friend record when an offline
// event arrives. Friends are never removed from the table, only marked.
const LocationOffline = "offline"

// DecodeEnvelope parses the outer frame of a raw pipeline message.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(raw, &env)
	return env, err
}

// DecodeContent parses an envelope's inner JSON document into v.
func (e Envelope) DecodeContent(v any) error {
	return json.Unmarshal([]byte(e.Content), v)
}

// FriendLocation is sent when a friend moves between instances. It embeds a
// full user snapshot, so known friends can be patched without a fetch.
type FriendLocation struct {
	UserID              string `json:"userId"`
	Platform            string `json:"platform"`
	Location            string `json:"location"`
	TravelingToLocation string `json:"travelingToLocation"`
	WorldID             string `json:"worldId"`
	CanRequestInvite    bool   `json:"canRequestInvite"`
	User                User   `json:"user"`
}

// FriendOnline and FriendActive carry an identifier only; the full record
// must be fetched.
type FriendOnline struct {
	UserID   string `json:"userId"`
	Platform string `json:"platform"`
	Location string `json:"location"`
}

type FriendActive struct {
	UserID   string `json:"userId"`
	Platform string `json:"platform"`
}

type FriendOffline struct {
	UserID   string `json:"userId"`
	Platform string `json:"platform"`
}

// UserLocation describes the local user's own movement.
type UserLocation struct {
	UserID   string `json:"userId"`
	Location string `json:"location"`
	Instance string `json:"instance"`
}

// Notification is the nested payload of a "notification" frame. Details is
// kept raw; its shape depends on the notification type.
type Notification struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	SenderUserID string          `json:"senderUserId"`
	ReceiverID   string          `json:"receiverUserId"`
	Message      string          `json:"message"`
	Seen         bool            `json:"seen"`
	Details      json.RawMessage `json:"details"`
}

// Notification types we raise desktop notifications for.
const (
	NotifInvite               = "invite"
	NotifRequestInvite        = "requestInvite"
	NotifFriendRequest        = "friendRequest"
	NotifMessage              = "message"
	NotifRequestInviteRespond = "requestInviteResponse"
)

// InviteDetails is the Details payload of an invite notification.
type InviteDetails struct {
	WorldID   string `json:"worldId"`
	WorldName string `json:"worldName"`
}

// User is the API user record (also embedded in friend-location frames).
type User struct {
	ID                             string   `json:"id"`
	DisplayName                    string   `json:"displayName"`
	UserIcon                       string   `json:"userIcon"`
	Bio                            string   `json:"bio"`
	BioLinks                       []string `json:"bioLinks"`
	ProfilePicOverride             string   `json:"profilePicOverride"`
	StatusDescription              string   `json:"statusDescription"`
	Pronouns                       string   `json:"pronouns"`
	CurrentAvatarImageURL          string   `json:"currentAvatarImageUrl"`
	CurrentAvatarThumbnailImageURL string   `json:"currentAvatarThumbnailImageUrl"`
	CurrentAvatarTags              []string `json:"currentAvatarTags"`
	State                          string   `json:"state"`
	Tags                           []string `json:"tags"`
	DeveloperType                  string   `json:"developerType"`
	LastLogin                      string   `json:"last_login"`
	LastPlatform                   string   `json:"last_platform"`
	Status                         string   `json:"status"`
	IsFriend                       bool     `json:"isFriend"`
	FriendKey                      string   `json:"friendKey"`
	Location                       string   `json:"location"`
	Platform                       string   `json:"platform"`
}

// Friend is the record kept in the friends table, keyed by user ID.
type Friend struct {
	ID                             string   `json:"id"`
	DisplayName                    string   `json:"displayName"`
	Bio                            string   `json:"bio"`
	BioLinks                       []string `json:"bioLinks"`
	CurrentAvatarImageURL          string   `json:"currentAvatarImageUrl"`
	CurrentAvatarThumbnailImageURL string   `json:"currentAvatarThumbnailImageUrl"`
	CurrentAvatarTags              []string `json:"currentAvatarTags"`
	DeveloperType                  string   `json:"developerType"`
	FallbackAvatar                 string   `json:"fallbackAvatar"`
	IsFriend                       bool     `json:"isFriend"`
	LastPlatform                   string   `json:"last_platform"`
	ProfilePicOverride             string   `json:"profilePicOverride"`
	Pronouns                       string   `json:"pronouns"`
	Status                         string   `json:"status"`
	StatusDescription              string   `json:"statusDescription"`
	Tags                           []string `json:"tags"`
	UserIcon                       string   `json:"userIcon"`
	FriendKey                      string   `json:"friendKey"`
	Location                       string   `json:"location"`
	Platform                       string   `json:"platform"`
}

// FriendFromUser builds a friend record from a full API user record.
func FriendFromUser(u User) Friend {
	return Friend{
		ID:                             u.ID,
		DisplayName:                    u.DisplayName,
		Bio:                            u.Bio,
		BioLinks:                       u.BioLinks,
		CurrentAvatarImageURL:          u.CurrentAvatarImageURL,
		CurrentAvatarThumbnailImageURL: u.CurrentAvatarThumbnailImageURL,
		CurrentAvatarTags:              u.CurrentAvatarTags,
		DeveloperType:                  u.DeveloperType,
		IsFriend:                       u.IsFriend,
		LastPlatform:                   u.LastPlatform,
		ProfilePicOverride:             u.ProfilePicOverride,
		Pronouns:                       u.Pronouns,
		Status:                         u.Status,
		StatusDescription:              u.StatusDescription,
		Tags:                           u.Tags,
		UserIcon:                       u.UserIcon,
		FriendKey:                      u.FriendKey,
		Location:                       u.Location,
		Platform:                       u.Platform,
	}
}

// World describes the world an instance runs.
type World struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Capacity     int    `json:"capacity"`
	ImageURL     string `json:"imageUrl"`
	ThumbnailURL string `json:"thumbnailImageUrl"`
}

// Instance is a live world session. In the instances table it is keyed by
// the *friend's* user ID, not by the instance ID.
type Instance struct {
	ID        string `json:"id"`
	WorldID   string `json:"worldId"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Capacity  int    `json:"capacity"`
	UserCount int    `json:"n_users"`
	World     World  `json:"world"`
}

// IsPrivate reports whether a location string hides the instance.
func IsPrivate(location string) bool {
	return strings.EqualFold(location, "private")
}

// IsOffline reports whether a location string means the user is offline.
func IsOffline(location string) bool {
	return strings.Contains(location, "offline")
}

// IsTraveling reports whether a location string is a transient travel state.
func IsTraveling(location string) bool {
	return strings.HasPrefix(location, "travel")
}

// IsResolvable reports whether a location can be fetched as an instance:
// non-empty, not private, not offline, not a travel placeholder.
func IsResolvable(location string) bool {
	return location != "" && !IsPrivate(location) && !IsOffline(location) && !IsTraveling(location)
}
