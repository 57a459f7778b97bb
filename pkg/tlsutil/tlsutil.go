// Package tlsutil builds tls.Config values from the security section of
// the gateway config. The metrics listener terminates TLS through the
// server helpers; the manager client dials the PBX through the client
// helpers.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/callstreams/errors"
	"github.com/c360/callstreams/pkg/security"
)

// LoadServerTLSConfig builds a server-side tls.Config. Returns (nil, nil)
// when TLS is disabled so callers can fall through to plain listeners.
func LoadServerTLSConfig(cfg security.ServerTLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerTLSConfig", "load certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseTLSVersion(cfg.MinVersion),
	}, nil
}

// LoadServerTLSConfigWithMTLS builds a server-side tls.Config that also
// verifies client certificates when mTLS is enabled. RequireClientCert
// decides whether a scraper without a certificate is rejected outright or
// only verified when it presents one.
func LoadServerTLSConfigWithMTLS(cfg security.ServerTLSConfig, mtlsCfg security.ServerMTLSConfig) (*tls.Config, error) {
	tlsConfig, err := LoadServerTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	if !mtlsCfg.Enabled {
		return tlsConfig, nil
	}

	clientCAs, err := loadCertPool(x509.NewCertPool(), mtlsCfg.ClientCAFiles, "LoadServerTLSConfigWithMTLS")
	if err != nil {
		return nil, err
	}
	tlsConfig.ClientCAs = clientCAs

	if mtlsCfg.RequireClientCert {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	} else {
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	}

	if len(mtlsCfg.AllowedClientCNs) > 0 {
		tlsConfig.VerifyPeerCertificate = func(_ [][]byte, verifiedChains [][]*x509.Certificate) error {
			return verifyAllowedClientCN(verifiedChains, mtlsCfg.AllowedClientCNs)
		}
	}

	return tlsConfig, nil
}

// LoadClientTLSConfig builds a client-side tls.Config. The system CA
// bundle is always trusted; CAFiles add private anchors on top, which is
// how a self-signed PBX certificate gets trusted without disabling
// verification.
func LoadClientTLSConfig(cfg security.ClientTLSConfig) (*tls.Config, error) {
	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}

	rootCAs, err = loadCertPool(rootCAs, cfg.CAFiles, "LoadClientTLSConfig")
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:         parseTLSVersion(cfg.MinVersion),
		RootCAs:            rootCAs,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, nil
}

// LoadClientTLSConfigWithMTLS additionally loads a client certificate for
// servers that demand one.
func LoadClientTLSConfigWithMTLS(cfg security.ClientTLSConfig, mtlsCfg security.ClientMTLSConfig) (*tls.Config, error) {
	tlsConfig, err := LoadClientTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	if !mtlsCfg.Enabled {
		return tlsConfig, nil
	}

	clientCert, err := tls.LoadX509KeyPair(mtlsCfg.CertFile, mtlsCfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfigWithMTLS",
			"load client certificate")
	}
	tlsConfig.Certificates = []tls.Certificate{clientCert}

	return tlsConfig, nil
}

// loadCertPool appends each PEM file to pool. A file that reads but does
// not parse is an error; silently ignoring it would leave the endpoint
// trusting less than the operator configured.
func loadCertPool(pool *x509.CertPool, caFiles []string, op string) (*x509.CertPool, error) {
	for _, caFile := range caFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", op,
				fmt.Sprintf("read CA file %s", caFile))
		}
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(fmt.Errorf("invalid PEM data"), "tlsutil", op,
				fmt.Sprintf("parse CA certificate from %s", caFile))
		}
	}
	return pool, nil
}

// verifyAllowedClientCN enforces the CN allowlist on top of chain
// verification, which has already succeeded by the time this runs.
func verifyAllowedClientCN(chains [][]*x509.Certificate, allowedCNs []string) error {
	if len(chains) == 0 {
		return fmt.Errorf("no verified certificate chains")
	}

	leaf := chains[0][0]
	for _, cn := range allowedCNs {
		if leaf.Subject.CommonName == cn {
			return nil
		}
	}

	return fmt.Errorf("client certificate CN '%s' not in allowed list",
		leaf.Subject.CommonName)
}

// parseTLSVersion maps the configured minimum version to a crypto/tls
// constant. Anything unrecognized falls back to TLS 1.2.
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
