package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/conditions"
)

// UpdatedMessageType is the type of every update notification.
const UpdatedMessageType = "conditions.updated"

// Publisher announces a saved snapshot.
type Publisher interface {
	PublishSnapshot(ctx context.Context, snap *conditions.Snapshot) error
	Close() error
}

// UpdateMessage is the body of an update notification.
type UpdateMessage struct {
	Type      string             `json:"type"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Rating    *conditions.Rating `json:"rating"`
	Errors    []string           `json:"errors"`
}

// NewUpdateMessage builds the notification for snap.
func NewUpdateMessage(snap *conditions.Snapshot) UpdateMessage {
	errs := snap.Errors
	if errs == nil {
		errs = []string{}
	}
	return UpdateMessage{
		Type:      UpdatedMessageType,
		UpdatedAt: snap.UpdatedAt,
		Rating:    snap.Rating,
		Errors:    errs,
	}
}

// NoopPublisher drops every message. It is used when no topic is configured.
type NoopPublisher struct{}

// PublishSnapshot does nothing.
func (NoopPublisher) PublishSnapshot(context.Context, *conditions.Snapshot) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() error { return nil }

// PubSubPublisherConfig holds configuration for the Pub/Sub publisher.
type PubSubPublisherConfig struct {
	ProjectID string
	Topic     string
	Logger    zerolog.Logger
}

// PubSubPublisher publishes update notifications to a Pub/Sub topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// NewPubSubPublisher creates a new Pub/Sub publisher.
func NewPubSubPublisher(ctx context.Context, cfg PubSubPublisherConfig) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(cfg.Topic),
		topic:     cfg.Topic,
		logger:    cfg.Logger,
	}, nil
}

// PublishSnapshot publishes the update notification and waits for the
// server to accept it.
func (p *PubSubPublisher) PublishSnapshot(ctx context.Context, snap *conditions.Snapshot) error {
	data, err := json.Marshal(NewUpdateMessage(snap))
	if err != nil {
		return fmt.Errorf("encoding update message: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type": UpdatedMessageType,
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}

	p.logger.Debug().
		Str("topic", p.topic).
		Str("message_id", id).
		Msg("published conditions update")
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

var (
	_ Publisher = NoopPublisher{}
	_ Publisher = (*PubSubPublisher)(nil)
)
