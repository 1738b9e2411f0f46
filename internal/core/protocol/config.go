package protocol

import "time"

// Config holds transport settings shared by the bridges.
type Config struct {
	// Network settings
	WebSocketAddr string        `yaml:"websocket_addr" toml:"websocket_addr"`
	QUICAddr      string        `yaml:"quic_addr" toml:"quic_addr"`
	WriteTimeout  time.Duration `yaml:"write_timeout" toml:"write_timeout"`

	// Frame settings
	MaxFrameSize uint32 `yaml:"max_frame_size" toml:"max_frame_size"`

	// Per-client buffering; frames are dropped for a client whose queue is full
	ClientQueueSize int `yaml:"client_queue_size" toml:"client_queue_size"`

	// TLS for QUIC. A self-signed certificate is generated when unset.
	CertFile string `yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `yaml:"key_file" toml:"key_file"`
}

// DefaultConfig returns the transport defaults. Empty addresses disable a
// bridge.
func DefaultConfig() Config {
	return Config{
		WebSocketAddr:   ":9090",
		QUICAddr:        "",
		WriteTimeout:    2 * time.Second,
		MaxFrameSize:    1 << 20,
		ClientQueueSize: 256,
	}
}

// WithDefaults fills zero values from DefaultConfig. Addresses are left as
// given.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = d.MaxFrameSize
	}
	if c.ClientQueueSize <= 0 {
		c.ClientQueueSize = d.ClientQueueSize
	}
	return c
}
