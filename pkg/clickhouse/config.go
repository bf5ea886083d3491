package clickhouse

import (
	"fmt"
	"time"
)

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds ClickHouse connection settings.
type ClientConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	UseHTTP         bool
	Compress        bool
	// Settings are sent with every query, e.g. max_execution_time.
	Settings map[string]any
}

func (c *ClientConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = 9000
		if c.UseHTTP {
			port = 8123
		}
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

func (c *ClientConfig) set(key string, v any) {
	if c.Settings == nil {
		c.Settings = make(map[string]any)
	}
	c.Settings[key] = v
}

// WithHost sets database host.
func WithHost(host string) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
	}
}

// WithPort sets database port. Zero picks 9000 (native) or 8123 (HTTP).
func WithPort(port int) ClientOption {
	return func(c *ClientConfig) {
		c.Port = port
	}
}

// WithDatabase sets database name.
func WithDatabase(database string) ClientOption {
	return func(c *ClientConfig) {
		c.Database = database
	}
}

// WithCredentials sets username and password.
func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

// WithMaxConnections sets max open and idle connections.
func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
	}
}

// WithTimeouts sets dial and read timeouts.
func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.DialTimeout = dial
		c.ReadTimeout = read
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(useHTTP bool) ClientOption {
	return func(c *ClientConfig) {
		c.UseHTTP = useHTTP
	}
}

// WithCompression enables LZ4 block compression.
func WithCompression(enabled bool) ClientOption {
	return func(c *ClientConfig) {
		c.Compress = enabled
	}
}

// WithMaxExecutionTime caps every query server side.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if d > 0 {
			c.set("max_execution_time", int(d.Seconds()))
		}
	}
}

// WithSetting adds an arbitrary query setting.
func WithSetting(key string, v any) ClientOption {
	return func(c *ClientConfig) {
		c.set(key, v)
	}
}
