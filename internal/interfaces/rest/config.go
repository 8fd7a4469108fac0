package rest_interface

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	minPort = 1024
	maxPort = 49151

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type ServiceConfig struct {
	Address string
	Port    int
}

func (c ServiceConfig) validate() error {
	if c.Port < minPort || c.Port > maxPort {
		return fmt.Errorf("port must be in range [%d, %d]", minPort, maxPort)
	}
	if c.Address != "" && net.ParseIP(c.Address) == nil {
		return fmt.Errorf("invalid listening address %s", c.Address)
	}
	return nil
}

func (c ServiceConfig) address() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}
