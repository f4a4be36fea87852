// Package security builds the TLS settings of the admin server.
//
//	cfg := security.TLSConfig{
//	    CertFile:     "/etc/lifecycled/tls.crt",
//	    KeyFile:      "/etc/lifecycled/tls.key",
//	    ClientCAFile: "/etc/lifecycled/clients.pem", // optional, enables mTLS
//	}
//
//	tlsConfig, err := cfg.Build()
package security
