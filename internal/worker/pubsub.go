package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

// Refresher runs the poll pipeline on demand.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Decision is what to do with a received message.
type Decision int

const (
	Ack Decision = iota
	Nack
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	jobs             *JobHandler
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Refresher        Refresher
	Registry         *resilience.Registry
	Logger           zerolog.Logger
}

// JobMessage represents a worker job message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// One refresh at a time is all the pipeline can usefully do.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		jobs:             NewJobHandler(cfg.Refresher, cfg.Registry, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.logger.Debug().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Msg("received pubsub message")

		if h.jobs.Handle(ctx, msg.Data) == Nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// JobHandler decides and runs worker jobs independent of the transport.
type JobHandler struct {
	refresher Refresher
	registry  *resilience.Registry
	logger    zerolog.Logger
}

// NewJobHandler creates a job handler. registry may be nil.
func NewJobHandler(refresher Refresher, registry *resilience.Registry, logger zerolog.Logger) *JobHandler {
	return &JobHandler{
		refresher: refresher,
		registry:  registry,
		logger:    logger,
	}
}

// Handle runs the job in data. Unparseable messages are nacked; unknown job
// types are acked so they are not redelivered.
func (h *JobHandler) Handle(ctx context.Context, data []byte) Decision {
	startTime := time.Now()
	logger := h.logger

	var jobMsg JobMessage
	if err := json.Unmarshal(data, &jobMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return Nack
	}

	var err error
	switch jobMsg.JobType {
	case JobConditionsRefresh:
		err = h.refresher.Refresh(ctx)
	case JobHealthCheck:
		err = h.healthCheck()
	default:
		logger.Warn().Str("job_type", jobMsg.JobType).Msg("unknown job type")
		return Ack
	}

	if err != nil {
		logger.Error().Err(err).Str("job_type", jobMsg.JobType).Msg("job failed")
		return Nack
	}

	logger.Info().
		Str("job_type", jobMsg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return Ack
}

// healthCheck fails when every registered feed is down.
func (h *JobHandler) healthCheck() error {
	if h.registry == nil || h.registry.Len() == 0 {
		return nil
	}

	down := 0
	all := h.registry.All()
	for _, feed := range all {
		if feed.Status() == resilience.StatusDown {
			down++
		}
	}
	if down == len(all) {
		return fmt.Errorf("health check failed: all %d feeds down", down)
	}

	h.logger.Debug().Int("feeds_down", down).Msg("health check passed")
	return nil
}
