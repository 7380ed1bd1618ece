package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/teamshares/internal/ports"
)

// LogPublisher escribe los eventos en el logger. Es el publisher por defecto
// cuando no hay brokers configurados.
type LogPublisher struct {
	logger *slog.Logger
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher usa slog.Default() si logger es nil.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events.Publish: marshal %s: %w", topic, err)
	}
	p.logger.InfoContext(ctx, "event", "topic", topic, "payload", string(data))
	return nil
}
