package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/model"
)

// Topics on the in-process bus. Detection is decoupled from policy: the
// proctoring monitor publishes classified events, the reporter ships them
// to the authority, and the WS layer fans advisories/snapshots out to the UI.
const (
	TopicProctoring = "proctoring.events"
	TopicAdvisories = "session.advisories"
	TopicSnapshots  = "session.snapshots"
	TopicLifecycle  = "session.lifecycle"
)

// LifecycleEvent announces a terminal transition so the UI can be routed
// out of the exam view.
type LifecycleEvent struct {
	AttemptID string              `json:"attempt_id"`
	Status    model.AttemptStatus `json:"status"`
	Reason    string              `json:"reason,omitempty"`
	// ShowDialog is false for auto-submit: the session is already over,
	// so the success dialog is suppressed and the user is routed out.
	ShowDialog bool `json:"show_dialog"`
}

// Bus is a thin wrapper around an in-process Watermill Pub/Sub.
type Bus struct {
	pubsub *gochannel.GoChannel
	log    zerolog.Logger
}

// NewBus creates the in-process event bus.
func NewBus(log zerolog.Logger) *Bus {
	l := log.With().Str("component", "event_bus").Logger()
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, newWatermillLogger(l)),
		log:    l,
	}
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

func (b *Bus) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("Marshal event failed")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("Publish failed")
	}
}

// PublishProctoring emits a classified proctoring event.
func (b *Bus) PublishProctoring(ev model.ProctoringEvent) {
	b.publish(TopicProctoring, ev)
}

// PublishAdvisory emits a transient user-visible notice.
func (b *Bus) PublishAdvisory(adv model.Advisory) {
	b.publish(TopicAdvisories, adv)
}

// PublishSnapshot emits the per-tick session snapshot.
func (b *Bus) PublishSnapshot(snap *model.Snapshot) {
	b.publish(TopicSnapshots, snap)
}

// PublishLifecycle emits a terminal-transition event.
func (b *Bus) PublishLifecycle(ev LifecycleEvent) {
	b.publish(TopicLifecycle, ev)
}

// Subscribe returns the raw message channel for a topic.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Decode unmarshals a bus message payload into dst and acks the message.
func Decode(msg *message.Message, dst interface{}) error {
	defer msg.Ack()
	return json.Unmarshal(msg.Payload, dst)
}
