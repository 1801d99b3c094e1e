package httpx

import "golang.org/x/crypto/acme/autocert"

const certCacheDir = "assets/cache"

type TLS struct {
	CertManager *autocert.Manager
}

// NewTLSConfig sets up Let's Encrypt certificates for the host,
// an empty host accepts any name.
func NewTLSConfig(host string) *TLS {
	tls := TLS{
		CertManager: &autocert.Manager{
			Prompt: autocert.AcceptTOS,
			Cache:  autocert.DirCache(certCacheDir),
		},
	}
	if host != "" {
		tls.CertManager.HostPolicy = autocert.HostWhitelist(host)
	}
	return &tls
}
