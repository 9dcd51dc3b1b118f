// Package proxydial implements C19: dialing outbound connections (for the
// OAuth token exchange and the Graph client) through an optional SOCKS5
// or HTTP proxy, per spec.md §4.19. The IMAP client does not use it and
// always dials directly. SOCKS5 takes precedence when both are
// configured.
package proxydial

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ConnectTimeout bounds how long a SOCKS5 dial is allowed to take.
const ConnectTimeout = 10 * time.Second

// Options names the two proxy knobs a mail fetch request may carry.
type Options struct {
	SOCKS5 string
	HTTP   string
}

// DialContextFunc matches net.Dialer.DialContext and http.Transport's
// DialContext field, so it can be plugged into a net/http transport.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Resolve returns the dial function and, for an HTTP proxy, the transport
// to attach it to an *http.Client with. At most one of the two return
// values is non-nil: a direct connection sets neither.
func Resolve(opts Options) (DialContextFunc, *http.Transport, error) {
	if opts.SOCKS5 != "" {
		dialFn, err := socks5Dialer(opts.SOCKS5)
		if err != nil {
			return nil, nil, err
		}
		return dialFn, nil, nil
	}

	if opts.HTTP != "" {
		proxyURL, err := normalizeURL(opts.HTTP, "http")
		if err != nil {
			return nil, nil, fmt.Errorf("proxydial: parse http proxy: %w", err)
		}
		return nil, &http.Transport{Proxy: http.ProxyURL(proxyURL)}, nil
	}

	return nil, nil, nil
}

// socks5Dialer builds a DialContextFunc that routes through a SOCKS5
// proxy with a bounded connect timeout.
func socks5Dialer(address string) (DialContextFunc, error) {
	proxyURL, err := normalizeURL(address, "socks5")
	if err != nil {
		return nil, fmt.Errorf("proxydial: parse socks5 proxy: %w", err)
	}

	var auth *proxy.Auth
	if proxyURL.User != nil {
		password, _ := proxyURL.User.Password()
		auth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
	}

	baseDialer := &net.Dialer{Timeout: ConnectTimeout}
	dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, baseDialer)
	if err != nil {
		return nil, fmt.Errorf("proxydial: build socks5 dialer: %w", err)
	}

	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		// golang.org/x/net/proxy.SOCKS5 always returns a ContextDialer in
		// practice; this guards against a future API change silently
		// losing context cancellation.
		return func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}, nil
	}
	return contextDialer.DialContext, nil
}

// normalizeURL coerces a schemeless address like "proxy.example.com:1080"
// into "{scheme}://proxy.example.com:1080", per spec.md §4.19.
func normalizeURL(address, scheme string) (*url.URL, error) {
	if !strings.Contains(address, "://") {
		address = scheme + "://" + address
	}
	return url.Parse(address)
}
