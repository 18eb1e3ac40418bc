// Package hostport validates and joins the host and port a ledger client
// targets. It is the single place where target authorities are checked.
package hostport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

const (
	MinPort = 1
	MaxPort = 65535
)

var (
	ErrEmptyHost   = errors.New("hostport: empty host")
	ErrInvalidHost = errors.New("hostport: invalid host")
	ErrInvalidPort = errors.New("hostport: port out of range")
)

// lookup is a lenient IDNA profile: it maps unicode labels to ASCII without
// enforcing STD3 rules, so names like "ledger_node" keep working.
var lookup = idna.New(idna.MapForLookup(), idna.Transitional(false), idna.StrictDomainName(false))

// ValidateHost checks that host is a bare hostname or IP literal.
//
// Rejects values containing a scheme, a path, or a port. IPv6 literals are
// accepted with or without brackets. Hostnames must be IDNA-convertible.
func ValidateHost(host string) error {
	if strings.TrimSpace(host) == "" {
		return ErrEmptyHost
	}
	if host != strings.TrimSpace(host) {
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidHost, host)
	}
	if strings.Contains(host, "://") {
		return fmt.Errorf("%w: %q must not contain a scheme", ErrInvalidHost, host)
	}
	if strings.ContainsAny(host, "/?#@") {
		return fmt.Errorf("%w: %q must not contain a path or userinfo", ErrInvalidHost, host)
	}

	bare := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if _, err := netip.ParseAddr(bare); err == nil {
		return nil
	}
	if strings.ContainsAny(host, "[]") {
		return fmt.Errorf("%w: %q is not a valid IPv6 literal", ErrInvalidHost, host)
	}
	if strings.Contains(host, ":") {
		return fmt.Errorf("%w: %q must not contain a port", ErrInvalidHost, host)
	}
	if _, err := lookup.ToASCII(host); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidHost, host, err)
	}
	return nil
}

// ValidatePort checks that port is within 1..65535.
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("%w: %d (must be %d..%d)", ErrInvalidPort, port, MinPort, MaxPort)
	}
	return nil
}

// Join returns host:port, bracketing IPv6 literals.
func Join(host string, port int) string {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Split parses a host:port authority into its parts and validates both.
func Split(authority string) (string, int, error) {
	authority = strings.TrimSpace(authority)
	if authority == "" {
		return "", 0, ErrEmptyHost
	}
	host, portStr, err := net.SplitHostPort(authority)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrInvalidHost, authority, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidPort, portStr)
	}
	if err := ValidateHost(host); err != nil {
		return "", 0, err
	}
	if err := ValidatePort(port); err != nil {
		return "", 0, err
	}
	return host, port, nil
}
