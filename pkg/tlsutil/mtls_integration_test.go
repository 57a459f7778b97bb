package tlsutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/c360/callstreams/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scrapeResult captures what the fake metrics endpoint observed during one
// scrape over a real TLS handshake
type scrapeResult struct {
	status   int
	body     string
	peerCert string
}

// runScrape stands up an HTTPS endpoint with the given server-side mTLS
// policy and scrapes it once with the given client identity. clientCN names
// the certificate the scraper presents; empty means no client certificate.
func runScrape(t *testing.T, mtls func(clientCAFile string) security.ServerMTLSConfig, clientCN string) (*scrapeResult, error) {
	t.Helper()
	dir := t.TempDir()

	serverCertPEM, serverKeyPEM := generateTestCert(t, "metrics.callstreams.local")
	serverCertFile, serverKeyFile := writeKeyPair(t, dir, "server", serverCertPEM, serverKeyPEM)

	// Self-signed client cert doubles as the CA the server trusts. When the
	// scenario sends no cert, a throwaway identity still seeds the CA pool.
	caCN := clientCN
	if caCN == "" {
		caCN = "prometheus-scraper"
	}
	clientCertPEM, clientKeyPEM := generateTestCert(t, caCN)
	clientCertFile, clientKeyFile := writeKeyPair(t, dir, "client", clientCertPEM, clientKeyPEM)

	serverTLSConfig, err := LoadServerTLSConfigWithMTLS(security.ServerTLSConfig{
		Enabled:  true,
		CertFile: serverCertFile,
		KeyFile:  serverKeyFile,
	}, mtls(clientCertFile))
	require.NoError(t, err)

	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
			w.Header().Set("X-Peer-Cert", r.TLS.PeerCertificates[0].Subject.CommonName)
		} else {
			w.Header().Set("X-Peer-Cert", "none")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("scrape ok"))
	}))
	server.TLS = serverTLSConfig
	server.StartTLS()
	t.Cleanup(server.Close)

	clientMTLS := security.ClientMTLSConfig{}
	if clientCN != "" {
		clientMTLS = security.ClientMTLSConfig{
			Enabled:  true,
			CertFile: clientCertFile,
			KeyFile:  clientKeyFile,
		}
	}

	// The server cert carries no SAN for 127.0.0.1, so hostname
	// verification is off; the handshake under test is the client cert one
	clientTLSConfig, err := LoadClientTLSConfigWithMTLS(security.ClientTLSConfig{
		InsecureSkipVerify: true,
	}, clientMTLS)
	require.NoError(t, err)

	httpClient := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: clientTLSConfig},
	}

	resp, err := httpClient.Get(server.URL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return &scrapeResult{
		status:   resp.StatusCode,
		body:     string(body),
		peerCert: resp.Header.Get("X-Peer-Cert"),
	}, nil
}

func TestScrapeOverMTLS_RequiredCertAccepted(t *testing.T) {
	result, err := runScrape(t, func(caFile string) security.ServerMTLSConfig {
		return security.ServerMTLSConfig{
			Enabled:           true,
			ClientCAFiles:     []string{caFile},
			RequireClientCert: true,
		}
	}, "prometheus-scraper")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.status)
	assert.Equal(t, "scrape ok", result.body)
	assert.Equal(t, "prometheus-scraper", result.peerCert)
}

func TestScrapeOverMTLS_RequiredCertMissing(t *testing.T) {
	_, err := runScrape(t, func(caFile string) security.ServerMTLSConfig {
		return security.ServerMTLSConfig{
			Enabled:           true,
			ClientCAFiles:     []string{caFile},
			RequireClientCert: true,
		}
	}, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls")
}

func TestScrapeOverMTLS_AllowlistedCNAccepted(t *testing.T) {
	result, err := runScrape(t, func(caFile string) security.ServerMTLSConfig {
		return security.ServerMTLSConfig{
			Enabled:           true,
			ClientCAFiles:     []string{caFile},
			RequireClientCert: true,
			AllowedClientCNs:  []string{"prometheus-scraper", "ops-dashboard"},
		}
	}, "prometheus-scraper")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.status)
}

func TestScrapeOverMTLS_UnknownCNRejected(t *testing.T) {
	_, err := runScrape(t, func(caFile string) security.ServerMTLSConfig {
		return security.ServerMTLSConfig{
			Enabled:           true,
			ClientCAFiles:     []string{caFile},
			RequireClientCert: true,
			AllowedClientCNs:  []string{"prometheus-scraper", "ops-dashboard"},
		}
	}, "rogue-scraper")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls")
}

func TestScrapeOverMTLS_OptionalCertSupplied(t *testing.T) {
	result, err := runScrape(t, func(caFile string) security.ServerMTLSConfig {
		return security.ServerMTLSConfig{
			Enabled:       true,
			ClientCAFiles: []string{caFile},
		}
	}, "ops-dashboard")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.status)
	assert.Equal(t, "ops-dashboard", result.peerCert)
}

func TestScrapeOverMTLS_OptionalCertOmitted(t *testing.T) {
	result, err := runScrape(t, func(caFile string) security.ServerMTLSConfig {
		return security.ServerMTLSConfig{
			Enabled:       true,
			ClientCAFiles: []string{caFile},
		}
	}, "")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.status)
	assert.Equal(t, "none", result.peerCert)
}

func TestScrapeOverTLS_MTLSDisabled(t *testing.T) {
	result, err := runScrape(t, func(string) security.ServerMTLSConfig {
		return security.ServerMTLSConfig{}
	}, "")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.status)
	assert.Equal(t, "none", result.peerCert)
	assert.Equal(t, "scrape ok", result.body)
}
