package redistransport

import (
	"time"

	"go.uber.org/zap"
)

// Defaults for Options.
const (
	DefaultReplyTimeout = 5 * time.Second
	DefaultMaxStreamLen = 10000
)

// Options configures a Dialer or a Server.
type Options struct {
	// Prefix is prepended to every key. Empty means DefaultPrefix.
	Prefix string

	// ReplyTimeout bounds how long a client waits for the reply to a
	// blocking request, and how long the server keeps an unread reply.
	ReplyTimeout time.Duration

	// MaxStreamLen approximately caps every command stream.
	MaxStreamLen int64

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.ReplyTimeout <= 0 {
		o.ReplyTimeout = DefaultReplyTimeout
	}
	if o.MaxStreamLen <= 0 {
		o.MaxStreamLen = DefaultMaxStreamLen
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
