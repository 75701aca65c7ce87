// Package ipchecker resolves the client address of a request and tells
// whether it belongs to the trusted subnet. The auth rate limiter keys its
// buckets by this address and lets the trusted subnet through unlimited.
package ipchecker

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrNoClientIP is returned when no header and no remote address yield a parseable IP.
var ErrNoClientIP = errors.New("unable to determine client IP")

// IPChecker resolves client IPs and matches them against an optional trusted subnet.
type IPChecker struct {
	trustedSubnet *net.IPNet
}

// New parses trustedSubnet in CIDR notation. An empty string disables the
// trusted subnet: Check then reports false for every address.
func New(trustedSubnet string) (*IPChecker, error) {
	if trustedSubnet == "" {
		return &IPChecker{}, nil
	}

	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
	}

	return &IPChecker{
		trustedSubnet: allowedNet,
	}, nil
}

// Check reports whether clientIP lies in the trusted subnet.
func (checker *IPChecker) Check(clientIP net.IP) bool {
	return checker.trustedSubnet != nil && checker.trustedSubnet.Contains(clientIP)
}

// GetClientIP takes the first parseable address out of X-Real-IP, the first
// X-Forwarded-For hop and RemoteAddr, in that order.
func (checker *IPChecker) GetClientIP(request *http.Request) (net.IP, error) {
	if ip := net.ParseIP(strings.TrimSpace(request.Header.Get("X-Real-IP"))); ip != nil {
		return ip, nil
	}

	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip, nil
		}
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/GetClientIP(): error while `net.SplitHostPort()` calling: %w", err)
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	return nil, ErrNoClientIP
}
