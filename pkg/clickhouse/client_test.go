package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{
		Host:         "ch.internal",
		Port:         9000,
		Database:     "coinpulse",
		User:         "writer",
		Password:     "p@ss",
		DialTimeout:  2 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	}

	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)

	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.internal:9000", u.Host)
	assert.Equal(t, "/coinpulse", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "2s", u.Query().Get("dial_timeout"))
	assert.Equal(t, "1", u.Query().Get("async_insert"))
	assert.Equal(t, "1", u.Query().Get("wait_for_async_insert"))
}

func TestOptionsKeepDefaultsForZeroValues(t *testing.T) {
	cfg := &ClientConfig{Port: 9000, Database: "default", DialTimeout: time.Second}
	for _, opt := range []ClientOption{WithPort(0), WithDatabase(""), WithTimeouts(0, 0, 0)} {
		opt(cfg)
	}
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, time.Second, cfg.DialTimeout)
}
