// Package dispatch decodes raw pipeline frames and routes them to the
// matching reconciler handler. A frame that fails to decode is logged and
// dropped; the stream keeps flowing.
package dispatch

import (
	"context"
	"log"

	"github.com/angelware-net/spectre/internal/proto"
)

// Handler receives fully decoded pipeline events.
type Handler interface {
	HandleFriendLocation(ctx context.Context, ev proto.FriendLocation)
	HandleFriendOnline(ctx context.Context, ev proto.FriendOnline)
	HandleFriendOffline(ev proto.FriendOffline)
	HandleFriendActive(ctx context.Context, ev proto.FriendActive)
	HandleUserLocation(ctx context.Context, ev proto.UserLocation)
	HandleNotification(ctx context.Context, n proto.Notification)
}

type Dispatcher struct {
	handler Handler
}

func New(handler Handler) *Dispatcher {
	return &Dispatcher{handler: handler}
}

// Dispatch decodes one raw frame and invokes the handler for its type.
// Frames without a type field are server keep-alives and are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) {
	env, err := proto.DecodeEnvelope(raw)
	if err != nil {
		log.Printf("DISPATCH: bad envelope: %v", err)
		return
	}
	if env.Type == "" {
		return
	}

	switch env.Type {
	case proto.TypeFriendLocation:
		var ev proto.FriendLocation
		if err := env.DecodeContent(&ev); err != nil {
			log.Printf("DISPATCH: %s content: %v", env.Type, err)
			return
		}
		d.handler.HandleFriendLocation(ctx, ev)

	case proto.TypeFriendOnline:
		var ev proto.FriendOnline
		if err := env.DecodeContent(&ev); err != nil {
			log.Printf("DISPATCH: %s content: %v", env.Type, err)
			return
		}
		d.handler.HandleFriendOnline(ctx, ev)

	case proto.TypeFriendOffline:
		var ev proto.FriendOffline
		if err := env.DecodeContent(&ev); err != nil {
			log.Printf("DISPATCH: %s content: %v", env.Type, err)
			return
		}
		d.handler.HandleFriendOffline(ev)

	case proto.TypeFriendActive:
		var ev proto.FriendActive
		if err := env.DecodeContent(&ev); err != nil {
			log.Printf("DISPATCH: %s content: %v", env.Type, err)
			return
		}
		d.handler.HandleFriendActive(ctx, ev)

	case proto.TypeUserLocation:
		var ev proto.UserLocation
		if err := env.DecodeContent(&ev); err != nil {
			log.Printf("DISPATCH: %s content: %v", env.Type, err)
			return
		}
		d.handler.HandleUserLocation(ctx, ev)

	case proto.TypeNotification:
		var n proto.Notification
		if err := env.DecodeContent(&n); err != nil {
			log.Printf("DISPATCH: %s content: %v", env.Type, err)
			return
		}
		d.handler.HandleNotification(ctx, n)

	default:
		log.Printf("DISPATCH: unhandled event type %q", env.Type)
	}
}
