//go:build windows

package hub

import "syscall"

// clearV6Only is a no-op on Windows; dual-stack sockets there default to
// IPV6_V6ONLY=false already, unlike most Unix stacks.
func clearV6Only(network, address string, c syscall.RawConn) error {
	return nil
}
