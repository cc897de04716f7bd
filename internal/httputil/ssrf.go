package httputil

import (
	"fmt"
	"net"
)

// ValidateIP rejects private, loopback, link-local, multicast, and
// unspecified addresses. host is carried only for the error message.
func ValidateIP(ip net.IP, host string) error {
	switch {
	case ip.IsPrivate():
		return fmt.Errorf("private IP blocked: %s (%s)", host, ip)
	case ip.IsLoopback():
		return fmt.Errorf("loopback IP blocked: %s (%s)", host, ip)
	case ip.IsLinkLocalUnicast():
		return fmt.Errorf("link-local IP blocked: %s (%s)", host, ip)
	case ip.IsLinkLocalMulticast():
		return fmt.Errorf("link-local multicast blocked: %s (%s)", host, ip)
	case ip.IsMulticast():
		return fmt.Errorf("multicast IP blocked: %s (%s)", host, ip)
	case ip.IsUnspecified():
		return fmt.Errorf("unspecified IP blocked: %s (%s)", host, ip)
	default:
		return nil
	}
}
