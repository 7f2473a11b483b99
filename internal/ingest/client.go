// Package ingest abstracts the streaming ingestion backend behind a narrow
// two-resource client: open a channel, append offset-tokened row batches,
// read the committed-offset watermark, close.
package ingest

import (
	"context"
	"errors"
	"fmt"
)

// Row is one ingestion row keyed by column name.
type Row = map[string]interface{}

// ErrorKind classifies ingestion failures so that retry-vs-abort decisions
// are a switch on an enum rather than message sniffing.
type ErrorKind int

const (
	// KindInternal is an unclassified failure. Not retried.
	KindInternal ErrorKind = iota
	// KindBackpressure means the receiver is saturated (rate limited).
	// Expected to clear after a delay; the only retryable kind.
	KindBackpressure
	// KindSchema means the rows do not match the target table. Never
	// self-resolves.
	KindSchema
	// KindAuth means credentials were rejected or expired.
	KindAuth
	// KindConnection means the backend was unreachable.
	KindConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindBackpressure:
		return "backpressure"
	case KindSchema:
		return "schema"
	case KindAuth:
		return "auth"
	case KindConnection:
		return "connection"
	default:
		return "internal"
	}
}

// Error is a classified ingestion failure.
type Error struct {
	Kind    ErrorKind
	Channel string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ingest %s error on channel %s: %v", e.Kind, e.Channel, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a classified ingestion error.
func NewError(kind ErrorKind, channel string, cause error) *Error {
	return &Error{Kind: kind, Channel: channel, Cause: cause}
}

// KindOf extracts the error kind, defaulting to KindInternal.
func KindOf(err error) ErrorKind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindInternal
}

// IsBackpressure reports whether err is a transient receiver-saturated
// signal.
func IsBackpressure(err error) bool {
	return KindOf(err) == KindBackpressure
}

// Channel is a named, stateful append-only stream bound to one destination
// table, tracking a committed-offset watermark.
type Channel interface {
	// Name returns the channel name.
	Name() string
	// AppendRows appends rows tagged with the [startOffset, endOffset]
	// token range. Errors are *Error values classified by kind.
	AppendRows(ctx context.Context, rows []Row, startOffset, endOffset string) error
	// LatestCommittedOffset returns the committed watermark, or "" for a
	// new channel with no committed data.
	LatestCommittedOffset(ctx context.Context) (string, error)
	// Close releases the channel.
	Close() error
}

// Client opens channels against one target table/pipe.
type Client interface {
	OpenChannel(ctx context.Context, name, initialOffset string) (Channel, error)
	Close() error
}
