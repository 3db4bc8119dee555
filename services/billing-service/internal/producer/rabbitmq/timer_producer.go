package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"LegalPracticePlatform/pkg/logger"
	"LegalPracticePlatform/pkg/rabbitmq"
	"LegalPracticePlatform/services/billing-service/internal/domain"
)

// serviceName значение заголовка source в событиях
const serviceName = "billing-service"

// MessagePublisher публикует готовое сообщение в брокер
type MessagePublisher interface {
	Publish(ctx context.Context, body []byte, options ...rabbitmq.PublishOption) error
}

// TimerEventProducer публикует события таймеров в topic exchange
type TimerEventProducer struct {
	publisher MessagePublisher
	logger    logger.Logger
}

// NewTimerEventProducer создает новый producer событий таймеров
func NewTimerEventProducer(publisher MessagePublisher, log logger.Logger) *TimerEventProducer {
	return &TimerEventProducer{publisher: publisher, logger: log}
}

// PublishTimerEvent сериализует событие и публикует его с ключом маршрутизации по типу
func (p *TimerEventProducer) PublishTimerEvent(ctx context.Context, event *domain.TimerEvent) error {
	if event == nil {
		return fmt.Errorf("timer event cannot be nil")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal timer event: %w", err)
	}

	headers := amqp091.Table{
		"tenant_id": event.TenantID,
		"source":    serviceName,
	}
	if traceID, ok := logger.TraceID(ctx); ok {
		headers["trace_id"] = traceID
	}

	if err := p.publisher.Publish(ctx, body,
		rabbitmq.WithRoutingKey(event.RoutingKey()),
		rabbitmq.WithMessageID(event.ID),
		rabbitmq.WithType(string(event.Type)),
		rabbitmq.WithHeaders(headers),
	); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.logger.Debug("Timer event published",
		logger.CtxField(ctx),
		logger.String("event_type", string(event.Type)),
		logger.String("timer_id", event.TimerID),
		logger.String("tenant_id", event.TenantID),
	)
	return nil
}
