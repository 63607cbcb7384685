package osc

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a Server.
type Config struct {
	// TCPAddr is the address of the SLIP framed stream listener.
	TCPAddr string `yaml:"tcp_addr"`
	// UDPAddr is the address datagrams are received on.
	UDPAddr string `yaml:"udp_addr"`
	// ReplyPort is the port replies to datagrams are sent to, on the
	// sender's host. Zero means the port the datagram came from.
	ReplyPort int `yaml:"reply_port"`
	// ReadBufferSize is the size of each read from a stream connection.
	ReadBufferSize int `yaml:"read_buffer_size"`
	// LogLevel is used by programs that set up logging from the config.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		TCPAddr:        ":53000",
		UDPAddr:        ":53000",
		ReplyPort:      53001,
		ReadBufferSize: 4096,
		LogLevel:       "info",
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the configuration can be served.
func (c Config) Validate() error {
	if c.TCPAddr == "" {
		return errors.New("config: tcp_addr is empty")
	}
	if c.UDPAddr == "" {
		return errors.New("config: udp_addr is empty")
	}
	if c.ReplyPort < 0 || c.ReplyPort > 65535 {
		return errors.Errorf("config: reply_port %d out of range", c.ReplyPort)
	}
	if c.ReadBufferSize < 0 {
		return errors.Errorf("config: read_buffer_size %d is negative", c.ReadBufferSize)
	}
	return nil
}
