package stream

import (
	"context"
	"fmt"
	"sync"

	"snowstream/internal/config"
	"snowstream/internal/ingest"
)

// scriptedChannel is an in-memory ingest.Channel whose failures are
// injected per call.
type scriptedChannel struct {
	name string

	mu        sync.Mutex
	failures  []error
	calls     int
	batches   [][]ingest.Row
	offsets   [][2]string
	committed string
}

func (c *scriptedChannel) Name() string { return c.name }

func (c *scriptedChannel) AppendRows(ctx context.Context, rows []ingest.Row, start, end string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.calls <= len(c.failures) && c.failures[c.calls-1] != nil {
		return c.failures[c.calls-1]
	}
	c.batches = append(c.batches, rows)
	c.offsets = append(c.offsets, [2]string{start, end})
	c.committed = end
	return nil
}

func (c *scriptedChannel) LatestCommittedOffset(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed, nil
}

func (c *scriptedChannel) Close() error { return nil }

func (c *scriptedChannel) rowCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

// scriptedClient hands out pre-built channels by name.
type scriptedClient struct {
	mu       sync.Mutex
	channels map[string]*scriptedChannel
	pending  []error
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{channels: map[string]*scriptedChannel{}}
}

func (c *scriptedClient) OpenChannel(ctx context.Context, name, initialOffset string) (ingest.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := &scriptedChannel{name: name, committed: "", failures: c.pending}
	c.pending = nil
	c.channels[name] = ch
	return ch, nil
}

func (c *scriptedClient) Close() error { return nil }

func (c *scriptedClient) channel(name string) *scriptedChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[name]
}

func (c *scriptedClient) only() *scriptedChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.channels {
		return ch
	}
	return nil
}

func backpressure(channel string) error {
	return ingest.NewError(ingest.KindBackpressure, channel, fmt.Errorf("receiver saturated"))
}

func hardError(channel string) error {
	return ingest.NewError(ingest.KindSchema, channel, fmt.Errorf("numeric value not recognized"))
}

// testConfig builds a config with zeroed delays so tests never sleep.
func testConfig(overrides map[string]string) *config.Config {
	props := map[string]string{
		config.KeyOrdersPipe:             "ORDERS_PIPE",
		config.KeyItemsPipe:              "ORDER_ITEMS_PIPE",
		config.KeyOrdersChannel:          "ORDERS_CHANNEL",
		config.KeyItemsChannel:           "ORDER_ITEMS_CHANNEL",
		config.KeyBatchSize:              "5",
		config.KeyInsertPauseMillis:      "0",
		config.KeyFlushWaitSeconds:       "0",
		config.KeyWorkerFlushWaitSeconds: "0",
		config.KeyBatchMaxRetries:        "3",
		config.KeyBatchRetryDelayMillis:  "0",
		config.KeyBackpressureAttempts:   "1",
		config.KeyBackpressureInitMillis: "0",
		config.KeyBackpressureMaxMillis:  "0",
	}
	for k, v := range overrides {
		props[k] = v
	}
	return config.New(props, config.Profile{
		Account: "test", User: "u", URL: "https://test", PrivateKey: "k",
		Database: "DB", Schema: "RAW", Warehouse: "WH",
	})
}
