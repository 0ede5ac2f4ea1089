//go:build !windows

package hub

import "syscall"

// clearV6Only is a net.ListenConfig.Control callback that clears
// IPV6_V6ONLY before bind, so IPv4 peers reach the hub through v4-mapped
// addresses on a dual-stack socket. Grounded on chaosc.py's server_bind
// override (setsockopt(IPPROTO_IPV6, IPV6_V6ONLY, False)). Kept on the
// standard library's syscall package directly: no pack example wraps this
// option at a higher level, and pulling in a sockopt-helper module for one
// setsockopt call would be its own kind of overkill.
func clearV6Only(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IPV6, syscall.IPV6_V6ONLY, 0)
	})
	if err != nil {
		return err
	}
	return sockErr
}
