// Package hostport splits and completes network addresses given as "host",
// "host:port", "[host]" or "[host]:port".
package hostport

import (
	"errors"
	"net"
	"strings"
)

// Split splits a network address of the form "host", "host:port", "[host]",
// "[host]:port", "[ipv6-host%zone]", or "[ipv6-host%zone]:port" into host or
// ipv6-host%zone and port. Port will be an empty string if not supplied.
func Split(hostport string) (host string, port string, err error) {
	if hostport == "" {
		return "", "", nil
	}

	open := strings.Index(hostport, "[")
	if open != strings.LastIndex(hostport, "[") {
		return "", "", errors.New("too many '['")
	}
	closing := strings.Index(hostport, "]")
	if closing != strings.LastIndex(hostport, "]") {
		return "", "", errors.New("too many ']'")
	}

	var rest string
	switch {
	case open > 0:
		return "", "", errors.New("nothing can come before '['")
	case open == 0 && closing == -1:
		return "", "", errors.New("missing ']'")
	case open == 0:
		host, rest = hostport[1:closing], hostport[closing+1:]
	case closing > -1:
		return "", "", errors.New("missing '['")
	default:
		// unbracketed, the port follows the last colon
		if i := strings.LastIndex(hostport, ":"); i >= 0 {
			host, rest = hostport[:i], hostport[i:]
		} else {
			host = hostport
		}
	}

	if rest != "" {
		if strings.LastIndex(rest, ":") != 0 {
			return "", "", errors.New("poorly separated or formatted port")
		}
		port = rest[1:]
	}
	return host, port, nil
}

// WithDefaultPort returns hostport as a dialable "host:port" address, using
// defaultPort when it carries no port of its own
func WithDefaultPort(hostport, defaultPort string) (string, error) {
	host, port, err := Split(hostport)
	if err != nil {
		return "", err
	}
	if host == "" {
		return "", errors.New("missing host")
	}
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(host, port), nil
}
