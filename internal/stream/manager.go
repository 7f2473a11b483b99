// Package stream drives batched order ingestion: one streaming manager and
// driver per worker, fanned out across disjoint customer-id partitions by
// the orchestrator.
package stream

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"snowstream/internal/config"
	"snowstream/internal/ingest"
	"snowstream/pkg/models"
)

// Offset token prefixes, one logical stream per target table.
const (
	orderOffsetPrefix = "order_"
	itemOffsetPrefix  = "item_"
)

// Manager owns the channel pair (orders, order items) for one worker. It is
// not shared across workers; each instance opens distinctly named channels
// so concurrent writers never collide on offset tokens.
type Manager struct {
	instanceID int
	orders     *ingest.ChannelWrapper
	items      *ingest.ChannelWrapper

	ordersClient ingest.Client
	itemsClient  ingest.Client

	log *logrus.Entry
}

// NewManager opens both channels. instanceID < 0 means a single-instance
// run and leaves the configured channel names unsuffixed.
func NewManager(ctx context.Context, cfg *config.Config, ordersClient, itemsClient ingest.Client, instanceID int, log *logrus.Entry) (*Manager, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("instance", instanceID)

	suffix := ""
	if instanceID >= 0 {
		suffix = fmt.Sprintf("_instance_%d", instanceID)
	}

	policy := ingest.RetryPolicy{
		MaxAttempts:  cfg.BackpressureMaxAttempts(),
		InitialDelay: cfg.BackpressureInitialDelay(),
		MaxDelay:     cfg.BackpressureMaxDelay(),
	}

	ordersCh, err := openChannel(ctx, ordersClient, cfg.OrdersChannel()+suffix, log)
	if err != nil {
		return nil, err
	}

	itemsCh, err := openChannel(ctx, itemsClient, cfg.ItemsChannel()+suffix, log)
	if err != nil {
		ordersCh.Close()
		return nil, err
	}

	log.Info("streaming channels opened")

	return &Manager{
		instanceID:   instanceID,
		orders:       ingest.NewChannelWrapper(ordersCh, policy, log),
		items:        ingest.NewChannelWrapper(itemsCh, policy, log),
		ordersClient: ordersClient,
		itemsClient:  itemsClient,
		log:          log,
	}, nil
}

func openChannel(ctx context.Context, client ingest.Client, name string, log *logrus.Entry) (ingest.Channel, error) {
	ch, err := client.OpenChannel(ctx, name, "0")
	if err != nil {
		return nil, err
	}

	offset, err := ch.LatestCommittedOffset(ctx)
	if err != nil {
		ch.Close()
		return nil, err
	}
	if offset == "" {
		offset = "NULL (new channel)"
	}
	log.WithFields(logrus.Fields{
		"channel": name,
		"offset":  offset,
	}).Info("channel opened")

	return ch, nil
}

// InsertOrders appends an order batch, tokened by the first and last order
// in the batch.
func (m *Manager) InsertOrders(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	rows := make([]ingest.Row, len(orders))
	for i, o := range orders {
		rows[i] = o.Row()
	}

	start := orderOffsetPrefix + orders[0].OrderID
	end := orderOffsetPrefix + orders[len(orders)-1].OrderID
	return m.orders.AppendBatch(ctx, rows, start, end)
}

// InsertOrderItems appends an item batch, tokened by the first and last
// item in the batch.
func (m *Manager) InsertOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]ingest.Row, len(items))
	for i, item := range items {
		rows[i] = item.Row()
	}

	start := itemOffsetPrefix + items[0].OrderItemID
	end := itemOffsetPrefix + items[len(items)-1].OrderItemID
	return m.items.AppendBatch(ctx, rows, start, end)
}

// LatestOrderOffset returns the orders channel's committed watermark.
func (m *Manager) LatestOrderOffset(ctx context.Context) (string, error) {
	return m.orders.LatestCommittedOffset(ctx)
}

// LatestOrderItemOffset returns the items channel's committed watermark.
func (m *Manager) LatestOrderItemOffset(ctx context.Context) (string, error) {
	return m.items.LatestCommittedOffset(ctx)
}

// Close closes both channels and clients. Errors are logged, not returned;
// teardown must not mask an ingestion result.
func (m *Manager) Close() {
	for name, c := range map[string]interface{ Close() error }{
		"orders channel":      m.orders,
		"order items channel": m.items,
		"orders client":       m.ordersClient,
		"order items client":  m.itemsClient,
	} {
		if err := c.Close(); err != nil {
			m.log.WithError(err).Warnf("failed to close %s", name)
		}
	}
}
