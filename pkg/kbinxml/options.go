package kbinxml

import "log/slog"

// options holds per-call codec settings
type options struct {
	logger       *slog.Logger
	compression  Compression
	encoding     Encoding
	maxInputSize int
}

// Option configures a Decode or Encode call
type Option func(*options)

// WithLogger sets the logger used for debug events
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCompression overrides the compression mode chosen by the tree reader
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithEncoding overrides the text encoding chosen by the tree reader
func WithEncoding(e Encoding) Option {
	return func(o *options) {
		o.encoding = e
	}
}

// WithMaxInputSize rejects decode input larger than n bytes (0 disables the check)
func WithMaxInputSize(n int) Option {
	return func(o *options) {
		o.maxInputSize = n
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
