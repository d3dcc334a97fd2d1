package util

import (
	"fmt"
	"net"
	"strconv"
)

// ListenAddr returns the wildcard listen address for port.
func ListenAddr(port int) string {
	return net.JoinHostPort("", strconv.Itoa(port))
}

// PortOf extracts the TCP port from addr, or 0.
func PortOf(addr net.Addr) int {
	if ta, ok := addr.(*net.TCPAddr); ok {
		return ta.Port
	}
	return 0
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
