package server

import (
	"net"
	"strconv"
	"time"
)

// DefaultReadHeaderTimeout bounds the time to read request headers.
const DefaultReadHeaderTimeout = 10 * time.Second

type HttpConfig struct {
	Host string `conf:"host"`
	Port int    `conf:"port"`
	H2c  bool   `conf:"h2c"`

	// ReadHeaderTimeout bounds reading request headers. Request bodies
	// and task execution are not bounded by the server.
	ReadHeaderTimeout time.Duration `conf:"read_header_timeout"`
}

func (c HttpConfig) address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
