package channels

import (
	"context"
	"fmt"

	"github.com/formwatch/dispatchkit/pkg/delivery"
	"github.com/formwatch/dispatchkit/pkg/notification"
)

// Registry routes notifications to the sender registered for their
// channel. It implements delivery.ChannelSender itself so a tracker can
// be wired with a single multi-channel sender.
type Registry struct {
	senders map[notification.Channel]delivery.ChannelSender
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[notification.Channel]delivery.ChannelSender)}
}

// Register binds a sender to a channel, replacing any previous binding.
func (r *Registry) Register(ch notification.Channel, sender delivery.ChannelSender) error {
	if !ch.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
	if sender == nil {
		return ErrNilSender
	}
	r.senders[ch] = sender
	return nil
}

// Sender returns the sender registered for the channel.
func (r *Registry) Sender(ch notification.Channel) (delivery.ChannelSender, error) {
	s, ok := r.senders[ch]
	if !ok {
		return nil, fmt.Errorf("%w: no sender for %q", ErrUnknownChannel, ch)
	}
	return s, nil
}

// Channels lists the channels with a registered sender.
func (r *Registry) Channels() []notification.Channel {
	out := make([]notification.Channel, 0, len(r.senders))
	for ch := range r.senders {
		out = append(out, ch)
	}
	return out
}

// Send dispatches the request to its channel's sender. A missing sender
// is a configuration error, not a transient failure, so it is wrapped
// with delivery.ErrPermanent to stop retries.
func (r *Registry) Send(ctx context.Context, req notification.Request) (delivery.SendResult, error) {
	s, ok := r.senders[req.Channel]
	if !ok {
		return delivery.SendResult{}, fmt.Errorf("%w: %w: no sender for %q", delivery.ErrPermanent, ErrUnknownChannel, req.Channel)
	}
	return s.Send(ctx, req)
}
