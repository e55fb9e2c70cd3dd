//go:build windows

package api

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// listenPipe backs the admin control plane's npipe: address on
// Windows, where a named pipe stands in for the unix: socket used
// elsewhere.
func listenPipe(addr string) (net.Listener, error) {
	return winio.ListenPipe(addr, nil)
}
