package clickhouse

import "time"

// Option configures Client.
type Option func(*Config)

// Config holds ClickHouse connection settings.
type Config struct {
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	UseHTTP      bool
	AsyncInsert  bool
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	PingTimeout  time.Duration
}

func defaultConfig() *Config {
	return &Config{
		Port:         9000,
		Database:     "default",
		User:         "default",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		ConnMaxLife:  10 * time.Minute,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		PingTimeout:  5 * time.Second,
	}
}

// WithAddr sets host and port.
func WithAddr(host string, port int) Option {
	return func(c *Config) {
		c.Host = host
		if port > 0 {
			c.Port = port
		}
	}
}

func WithDatabase(db string) Option {
	return func(c *Config) {
		if db != "" {
			c.Database = db
		}
	}
}

// WithCredentials sets username and password.
func WithCredentials(user, password string) Option {
	return func(c *Config) {
		if user != "" {
			c.User = user
		}
		c.Password = password
	}
}

// WithPool sets max open and idle connections.
func WithPool(maxOpen, maxIdle int) Option {
	return func(c *Config) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
	}
}

// WithTimeouts sets dial and read timeouts. Zero keeps the default.
func WithTimeouts(dial, read time.Duration) Option {
	return func(c *Config) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(on bool) Option {
	return func(c *Config) { c.UseHTTP = on }
}

// WithAsyncInsert enables server-side async inserts, waiting for the flush.
func WithAsyncInsert(on bool) Option {
	return func(c *Config) { c.AsyncInsert = on }
}
