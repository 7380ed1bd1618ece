package ports

import "context"

// Topics de eventos publicados tras cada commit.
const (
	TopicTradeExecuted = "trade_executed"
	TopicPayoutIssued  = "payout_issued"
)

// EventPublisher publica eventos de dominio. Fire-and-forget: un error de
// publicación nunca deshace un trade ya commiteado.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}
