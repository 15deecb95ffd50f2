package memory

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"sync"
)

// TLSProvider holds the certificate in process memory. Every restart with
// auto-generation yields a fresh self-signed certificate.
type TLSProvider struct {
	cert *tls.Certificate
	mu   sync.RWMutex
}

func NewTLSProvider() *TLSProvider {
	return &TLSProvider{}
}

func (p *TLSProvider) GetCertificate(ctx context.Context) (*tls.Certificate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cert == nil {
		return nil, fmt.Errorf("no certificate stored in memory: %w", os.ErrNotExist)
	}
	return p.cert, nil
}

func (p *TLSProvider) Store(ctx context.Context, certPEM, keyPEM []byte) error {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return fmt.Errorf("failed to parse x509 key pair: %w", err)
	}
	p.mu.Lock()
	p.cert = &cert
	p.mu.Unlock()
	return nil
}
