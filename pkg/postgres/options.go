package postgres

import "time"

type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

type Option func(*Options)

// WithPoolSize sets pool bounds; non-positive values keep the defaults.
func WithPoolSize(minConns, maxConns int32) Option {
	return func(o *Options) {
		if minConns > 0 {
			o.MinConns = minConns
		}
		if maxConns > 0 {
			o.MaxConns = maxConns
		}
	}
}

func WithMaxConnLifetime(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.MaxConnLifetime = d
		}
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ConnectTimeout = d
		}
	}
}
