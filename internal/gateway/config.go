package gateway

import "time"

// Config holds HTTP gateway settings. The daemon assembles it from the
// server section of the main configuration.
type Config struct {
	Bind            string
	AuthToken       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// defaults fills zero values with sensible defaults. The write timeout is
// long because a consultation holds its response open for the full engine
// run.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8787"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 300 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// AuthConfigured reports whether bearer-token auth is enabled. An empty
// token leaves every endpoint open, which is only sane on a loopback bind.
func (c *Config) AuthConfigured() bool {
	return c.AuthToken != ""
}
