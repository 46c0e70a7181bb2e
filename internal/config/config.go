// Package config resolves the server configuration from the command line.
package config

import (
	"net"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

const (
	// DefaultHost is the only interface the server binds to.
	DefaultHost = "127.0.0.1"
	// DefaultPort is used when no port argument is given.
	DefaultPort = 8000
	// Protocol is the HTTP version written in every status line.
	Protocol = "HTTP/1.0"
)

// ErrInvalidArgument is returned when the port argument is not an integer.
var ErrInvalidArgument = errors.New("invalid argument")

// Config is the resolved server configuration.
// It is created once at start-up and passed explicitly to the listener and handler.
type Config struct {
	// Host is the IP address the listener binds to.
	Host string
	// Port is the TCP port. 0 lets the operating system choose one.
	Port int
	// Protocol is the protocol version the server answers with.
	Protocol string
	// Root is the serving root request paths are resolved against.
	Root string
}

// FromArgs builds a Config from the positional arguments (without the program name).
// Only the first argument is consulted; it must parse as a decimal integer.
// No range check is done here, an unusable port surfaces when binding.
func FromArgs(args []string) (*Config, error) {
	cfg := &Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Protocol: Protocol,
	}

	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidArgument, "port %q", args[0])
		}
		cfg.Port = port
	}

	root, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "resolve working directory")
	}
	cfg.Root = root

	return cfg, nil
}

// Address returns the host:port pair to listen on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
