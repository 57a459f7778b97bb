// Package security defines the TLS configuration types shared across the
// gateway. The metrics listener consumes the server side; the manager
// client and a secured NATS broker consume the client side.
package security

// Config is the security section of the gateway config
type Config struct {
	TLS TLSConfig `json:"tls,omitempty"`
}

// TLSConfig groups server and client TLS settings
type TLSConfig struct {
	Server ServerTLSConfig `json:"server,omitempty"`
	Client ClientTLSConfig `json:"client,omitempty"`
}

// ServerTLSConfig configures a TLS-terminating listener
type ServerTLSConfig struct {
	Enabled    bool   `json:"enabled"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	MinVersion string `json:"min_version,omitempty"` // "1.2" or "1.3"

	MTLS ServerMTLSConfig `json:"mtls,omitempty"`
}

// ServerMTLSConfig configures client-certificate verification on a
// listener, for locking the metrics endpoint down to known scrapers
type ServerMTLSConfig struct {
	Enabled           bool     `json:"enabled"`
	ClientCAFiles     []string `json:"client_ca_files,omitempty"`
	RequireClientCert bool     `json:"require_client_cert,omitempty"` // false verifies a cert only when presented
	AllowedClientCNs  []string `json:"allowed_client_cns,omitempty"`  // empty allows any verified CN
}

// ClientTLSConfig configures outbound TLS. The system CA bundle is always
// trusted; CAFiles add anchors on top, typically the PBX's self-signed
// certificate.
type ClientTLSConfig struct {
	CAFiles            []string `json:"ca_files,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty"` // dev/test only
	MinVersion         string   `json:"min_version,omitempty"`

	MTLS ClientMTLSConfig `json:"mtls,omitempty"`
}

// ClientMTLSConfig supplies the certificate an outbound connection
// presents when the server demands one
type ClientMTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
}
