// Package fingerprint builds HTTP transports whose TLS ClientHello mimics a
// real browser. Article hosts are the most aggressive about challenging
// default Go TLS stacks, so the extractor fetches through one of these.
package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/http"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// ParseProfile maps a config string to a Profile. Empty defaults to chrome.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case "":
		return ProfileChrome, nil
	case ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom:
		return Profile(s), nil
	default:
		return "", fmt.Errorf("unknown tls profile %q", s)
	}
}

// Transport returns an http.RoundTripper configured with the specified TLS
// fingerprint profile. The "go" profile returns a plain cloned
// http.Transport; every other profile performs the handshake through
// utls.UClient.
func Transport(p Profile) (http.RoundTripper, error) {
	if p == ProfileGo {
		return http.DefaultTransport.(*http.Transport).Clone(), nil
	}

	var clientHelloID utls.ClientHelloID
	switch p {
	case ProfileChrome:
		clientHelloID = utls.HelloChrome_Auto
	case ProfileFirefox:
		clientHelloID = utls.HelloFirefox_Auto
	case ProfileSafari:
		clientHelloID = utls.HelloIOS_Auto
	case ProfileRandom:
		clientHelloID = utls.HelloRandomizedALPN
	default:
		return nil, fmt.Errorf("unknown profile %q", p)
	}

	// Dial TCP with the transport's own dialer, then run the uTLS handshake
	// over that connection.
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := transport.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr // fallback if no port
		}

		uConn := utls.UClient(tcpConn, &utls.Config{ServerName: host}, clientHelloID)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("utls handshake failed: %w", err)
		}

		return uConn, nil
	}

	return transport, nil
}
