package acceptor_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/acmetls/core/acceptor"
)

// generateTestCert creates a self-signed certificate for the domain.
func generateTestCert(t *testing.T, domain string) tls.Certificate {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: domain,
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{domain},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
		Leaf:        leaf,
	}
}

// captureClientHello records the raw bytes a real TLS client sends as its
// ClientHello for the given configuration.
func captureClientHello(t *testing.T, config *tls.Config) []byte {
	t.Helper()

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn := tls.Client(client, config)
		_ = conn.Handshake() // fails once the peer side closes
		conn.Close()
	}()

	require.NoError(t, server.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 64<<10)
	n, err := server.Read(buf)
	require.NoError(t, err)
	require.Positive(t, n)

	server.Close()
	client.Close()
	<-done
	return buf[:n]
}

// beginFromBytes feeds previously captured handshake bytes into Begin.
func beginFromBytes(t *testing.T, raw []byte) (*acceptor.Handshake, error) {
	t.Helper()

	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	go func() {
		client.Write(raw)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return acceptor.Begin(ctx, server)
}

// newTestAcceptor builds an acceptor with distinct self-signed certificates
// behind the challenge and default configurations.
func newTestAcceptor(t *testing.T) (*acceptor.Acceptor, tls.Certificate, tls.Certificate) {
	t.Helper()

	challengeCert := generateTestCert(t, "domain.example")
	defaultCert := generateTestCert(t, "domain.example")

	// Session tickets are disabled because most tests run over net.Pipe,
	// where the server's post-handshake ticket write would block until the
	// client reads.
	challengeCfg := &tls.Config{
		MinVersion:             tls.VersionTLS12,
		Certificates:           []tls.Certificate{challengeCert},
		NextProtos:             []string{"acme-tls/1"},
		SessionTicketsDisabled: true,
	}
	defaultCfg := &tls.Config{
		MinVersion:             tls.VersionTLS12,
		Certificates:           []tls.Certificate{defaultCert},
		NextProtos:             []string{"h2", "http/1.1"},
		SessionTicketsDisabled: true,
	}

	a, err := acceptor.New(challengeCfg, defaultCfg,
		acceptor.WithHandshakeTimeout(5*time.Second))
	require.NoError(t, err)
	return a, challengeCert, defaultCert
}

func clientConfig(alpn ...string) *tls.Config {
	return &tls.Config{
		ServerName:         "domain.example",
		NextProtos:         alpn,
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	}
}
