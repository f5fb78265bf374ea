package worker

import (
	"context"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the slice of persistence the worker needs.
type Store interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	GetProductStock(ctx context.Context, productID int64) (int, error)
	GetProductByID(ctx context.Context, productID int64) (*models.Product, error)
}

// Publisher emits the depletion events the worker produces.
type Publisher interface {
	PublishStockDepleted(ctx context.Context, event *models.StockDepletedEvent) error
}

// StockAlertWorker consumes order events and raises an alert whenever a
// purchased product's stock has reached zero.
type StockAlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        Store
	publisher    Publisher
	logger       *zap.Logger
}

// NewStockAlertWorker creates a new stock alert worker
func NewStockAlertWorker(consumer *broker.Consumer, store Store, publisher Publisher) *StockAlertWorker {
	w := &StockAlertWorker{
		consumer:  consumer,
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *StockAlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockAlertWorker) Stop() error {
	w.logger.Info("Stopping stock alert worker")
	return w.consumer.Close()
}

// handleOrderCreated checks the remaining stock of every purchased
// product. Events are deduplicated so a redelivered message does not
// raise a second alert.
func (w *StockAlertWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	for _, item := range event.Items {
		stock, err := w.store.GetProductStock(ctx, item.ProductID)
		if err != nil {
			w.logger.Error("Failed to read product stock",
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
			continue
		}
		if stock > 0 {
			continue
		}

		name := ""
		if product, err := w.store.GetProductByID(ctx, item.ProductID); err == nil {
			name = product.Name
		}

		util.StockDepletedTotal.Inc()
		w.logger.Warn("Product stock depleted",
			zap.Int64("product_id", item.ProductID),
			zap.String("product_name", name),
			zap.Int64("order_id", event.OrderID))

		depleted := &models.StockDepletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeStockDepleted,
				Timestamp: time.Now(),
			},
			ProductID:   item.ProductID,
			ProductName: name,
		}
		if err := w.publisher.PublishStockDepleted(ctx, depleted); err != nil {
			w.logger.Error("Failed to publish StockDepleted event", zap.Error(err))
		}
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
