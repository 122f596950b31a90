package worker

import (
	"context"
	"log"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/recovery"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// CompletionWorker consumes payment outcome events relayed from the
// payment backend's webhooks and completes orders: it records the order,
// clears the session cart exactly once per marker, and logs failures.
type CompletionWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewCompletionWorker creates a new completion worker
func NewCompletionWorker(
	consumer *broker.Consumer,
	orders service.OrderRecorder,
	cartService *service.CartService,
	markers recovery.MarkerStore,
) *CompletionWorker {
	logger := util.GetLogger()

	watcher := recovery.NewCompletionWatcher(markers, func(ctx context.Context, sessionID, marker string) error {
		return cartService.Clear(ctx, sessionID, "order_completed")
	})

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentSucceeded(func(ctx context.Context, event *models.PaymentSucceededEvent) error {
		order := &models.Order{
			SessionMarker: event.SessionMarker,
			AmountCents:   event.AmountCents,
			Currency:      event.Currency,
			Status:        models.OrderStatusCompleted,
		}
		if err := orders.CreateOrder(ctx, order); err != nil {
			logger.Error("Failed to record order from event",
				zap.String("marker", event.SessionMarker),
				zap.Error(err))
			return err
		}
		util.OrdersCompletedTotal.Inc()

		target := recovery.SuccessPath + "?" + recovery.MarkerParam + "=" + event.SessionMarker
		if _, err := watcher.Observe(ctx, event.SessionID, target); err != nil {
			logger.Error("Failed to clear cart for completed order",
				zap.String("session_id", event.SessionID),
				zap.Error(err))
		}
		return nil
	})
	eventHandler.OnPaymentFailed(func(ctx context.Context, event *models.PaymentFailedEvent) error {
		logger.Warn("Payment failed for session",
			zap.String("session_id", event.SessionID),
			zap.String("intent_id", event.PaymentIntentID),
			zap.String("reason", event.Reason))
		return nil
	})

	return &CompletionWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *CompletionWorker) Start(ctx context.Context) error {
	log.Println("Starting completion worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CompletionWorker) Stop() error {
	log.Println("Stopping completion worker...")
	return w.consumer.Close()
}
