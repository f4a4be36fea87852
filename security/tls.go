package security

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/kbukum/lifecycle/errors"
)

// TLSConfig holds server-side TLS settings.
type TLSConfig struct {
	// CertFile and KeyFile hold the server certificate. Setting them enables TLS.
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`

	// ClientCAFile, when set, requires clients to present a certificate
	// signed by one of its CAs.
	ClientCAFile string `yaml:"client_ca_file" mapstructure:"client_ca_file"`

	// MinVersion is "1.2" or "1.3". Defaults to 1.2.
	MinVersion string `yaml:"min_version" mapstructure:"min_version"`
}

var versions = map[string]uint16{
	"":    tls.VersionTLS12,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

// Enabled reports whether a certificate is configured.
func (c *TLSConfig) Enabled() bool {
	return c != nil && c.CertFile != ""
}

// Validate checks that the configuration is consistent without touching
// the filesystem.
func (c *TLSConfig) Validate() error {
	if c == nil {
		return nil
	}
	if (c.CertFile != "") != (c.KeyFile != "") {
		return errors.InvalidInput("tls", "cert_file and key_file must be set together")
	}
	if c.ClientCAFile != "" && c.CertFile == "" {
		return errors.InvalidInput("tls.client_ca_file", "requires cert_file and key_file")
	}
	if _, ok := versions[c.MinVersion]; !ok {
		return errors.InvalidInput("tls.min_version", fmt.Sprintf("unsupported version %q", c.MinVersion))
	}
	return nil
}

// Build loads the certificate and client CAs. It returns nil when TLS is
// not enabled.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("security/tls: failed to load server certificate: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   versions[c.MinVersion],
		NextProtos:   []string{"h2", "http/1.1"},
	}

	if c.ClientCAFile != "" {
		pool, err := loadPool(c.ClientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("security/tls: failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("security/tls: no certificates in %s", path)
	}
	return pool, nil
}
