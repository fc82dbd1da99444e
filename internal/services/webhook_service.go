package services

import (
	"context"

	"github.com/cockroachdb/errors"

	"habitloop/internal/billing"
	"habitloop/internal/logger"
	"habitloop/pkg/memcache"
	"habitloop/pkg/utils"
)

type WebhookServiceInterface interface {
	// Handle authenticates and applies one webhook delivery. A nil error means
	// the delivery should be acknowledged, including events deliberately dropped.
	Handle(ctx context.Context, payload []byte, signature string) error
}

type WebhookSettings struct {
	Secret string
	// Production refuses unsigned deliveries when no secret is configured.
	Production bool
}

type WebhookService struct {
	gateway   billing.Gateway
	processor WebhookProcessorInterface
	processed mem.ProcessedEventStore
	settings  WebhookSettings
	log       *logger.Logger
}

func NewWebhookService(
	gateway billing.Gateway,
	processor WebhookProcessorInterface,
	processed mem.ProcessedEventStore,
	settings WebhookSettings,
	log *logger.Logger,
) WebhookServiceInterface {
	return &WebhookService{
		gateway:   gateway,
		processor: processor,
		processed: processed,
		settings:  settings,
		log:       log,
	}
}

func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := s.parse(payload, signature)
	if err != nil {
		return err
	}

	log := s.log.With("event_id", event.ID, "type", event.Type)

	if s.processed.Seen(event.ID) {
		log.Infow("duplicate delivery acknowledged")
		return nil
	}

	err = s.processor.Process(ctx, event)
	switch {
	case err == nil:
		s.processed.Mark(event.ID)
		return nil
	case utils.IsWebhookDrop(err):
		log.Warnw("webhook event dropped", "reason", err)
		s.processed.Mark(event.ID)
		return nil
	default:
		log.Errorw("webhook event failed", "error", err)
		return err
	}
}

func (s *WebhookService) parse(payload []byte, signature string) (*billing.Event, error) {
	if s.settings.Secret != "" {
		event, err := s.gateway.ParseEvent(payload, signature, s.settings.Secret)
		if err != nil {
			s.log.Warnw("rejected webhook with bad signature", "error", err)
			return nil, err
		}
		return event, nil
	}

	if s.settings.Production {
		return nil, errors.Wrap(utils.ErrWebhookSecretMissing, "refusing unsigned webhook in production")
	}

	s.log.Warnw("webhook secret not configured, processing delivery without signature verification")
	return s.gateway.ParseUnverifiedEvent(payload)
}
