package ami

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfSignedPBXCert issues a certificate valid for 127.0.0.1 so the client
// can fully verify the fake manager endpoint
func selfSignedPBXCert(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "pbx.test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func TestClient_ConnectsOverTLS(t *testing.T) {
	certPEM, keyPEM := selfSignedPBXCert(t)

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))

	serverCert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{serverCert},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		if _, err := conn.Write([]byte("Asterisk Call Manager/5.0.2\r\n")); err != nil {
			return
		}
		reader := NewFrameReader(conn)
		login, err := reader.Next()
		if err != nil {
			return
		}
		writeFrame(t, conn,
			"Response: Success",
			"ActionID: "+login.Get("ActionID"),
			"Message: Authentication accepted")
		// Hold the session open until the client disconnects
		_, _ = reader.Next()
	}()

	cfg := testConfig(ln.Addr().(*net.TCPAddr).Port)
	cfg.UseTLS = true
	cfg.TLS.CAFiles = []string{caFile}

	connected := make(chan struct{}, 1)
	client := startClient(t, ClientDeps{
		Name:      "test",
		Config:    cfg,
		OnConnect: func() { connected <- struct{}{} },
	})
	waitConnected(t, connected)
	assert.True(t, client.Connected())
}
