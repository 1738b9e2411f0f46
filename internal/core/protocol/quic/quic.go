// Package quic streams published frames to QUIC subscribers.
//
// A subscriber opens a bidirectional stream and writes one newline-terminated
// JSON request, {"topics":["/sim/robot1/collision"]}. The bridge then writes
// frames in the protocol.Frame binary encoding until either side closes.
package quic

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"time"
)

const (
	// NextProto is the ALPN identifier of the frame stream.
	NextProto = "arenasim-frames"

	// DefaultIdleTimeout is the connection idle timeout
	DefaultIdleTimeout = 30 * time.Second

	// DefaultKeepAlive is the keep-alive interval
	DefaultKeepAlive = 10 * time.Second

	maxRequestSize = 64 * 1024
)

// SubscribeRequest is the first line a subscriber writes.
type SubscribeRequest struct {
	Topics []string `json:"topics"`
}

// GenerateSelfSignedTLS generates a self-signed certificate for development.
func GenerateSelfSignedTLS() (*tls.Config, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{Organization: []string{"arenasim"}},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{certDER}, PrivateKey: privateKey}},
		NextProtos:   []string{NextProto},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// LoadTLS loads a certificate pair for the bridge.
func LoadTLS(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{NextProto},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
