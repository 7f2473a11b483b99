package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"snowstream/pkg/errors"
)

// RetryPolicy bounds the channel-layer backpressure retry loop.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy matches the ingestion backend's observed saturation
// recovery times: 5 attempts, 1s initial delay doubling to a 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// ChannelWrapper owns one open channel and provides batch append with
// backpressure-aware retry. Backpressure is retried with exponential
// backoff; every other error kind is surfaced immediately because it will
// not self-resolve.
type ChannelWrapper struct {
	ch     Channel
	policy RetryPolicy
	log    *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
}

// NewChannelWrapper wraps an open channel with the given retry policy.
func NewChannelWrapper(ch Channel, policy RetryPolicy, log *logrus.Entry) *ChannelWrapper {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ChannelWrapper{
		ch:     ch,
		policy: policy,
		log:    log.WithField("channel", ch.Name()),
		sleep:  errors.Sleep,
	}
}

// Name returns the wrapped channel's name.
func (w *ChannelWrapper) Name() string {
	return w.ch.Name()
}

// AppendBatch appends rows with the given offset token range, retrying
// transient backpressure. On exhaustion it returns an error carrying
// ErrCodeBackpressureExhausted, distinct from hard ingestion failures, so
// the caller can decide whether to keep retrying at a higher level.
func (w *ChannelWrapper) AppendBatch(ctx context.Context, rows []Row, startOffset, endOffset string) error {
	if len(rows) == 0 {
		return nil
	}

	delay := w.policy.InitialDelay

	for attempt := 1; ; attempt++ {
		err := w.ch.AppendRows(ctx, rows, startOffset, endOffset)
		if err == nil {
			if attempt > 1 {
				w.log.WithFields(logrus.Fields{
					"rows":     len(rows),
					"attempts": attempt,
				}).Info("append succeeded after backpressure retries")
			}
			return nil
		}

		if !IsBackpressure(err) {
			w.log.WithError(err).WithField("kind", KindOf(err).String()).
				Error("append failed with non-retryable error")
			return errors.Wrap(err, errors.ErrCodeIngestFailed, "append rows failed").
				WithContext("channel", w.ch.Name())
		}

		if attempt >= w.policy.MaxAttempts {
			w.log.WithFields(logrus.Fields{
				"rows":     len(rows),
				"attempts": attempt,
			}).Error("channel buffers remain saturated, giving up")
			return errors.Wrap(err, errors.ErrCodeBackpressureExhausted,
				"receiver still saturated after retries").
				WithContext("channel", w.ch.Name()).
				WithContext("attempts", attempt)
		}

		w.log.WithFields(logrus.Fields{
			"attempt":  attempt,
			"max":      w.policy.MaxAttempts,
			"retry_in": delay.String(),
			"rows":     len(rows),
		}).Warn("backpressure detected, channel buffers full")

		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
		delay = nextDelay(delay, w.policy.MaxDelay)
	}
}

// LatestCommittedOffset returns the channel's committed watermark.
func (w *ChannelWrapper) LatestCommittedOffset(ctx context.Context) (string, error) {
	return w.ch.LatestCommittedOffset(ctx)
}

// Close closes the underlying channel.
func (w *ChannelWrapper) Close() error {
	return w.ch.Close()
}

// nextDelay doubles the delay, capped at max.
func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
