package factory

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/config"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/core"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/logger"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/secrets/kubernetes"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/secrets/memory"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/storage/filesystem"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/utils"

	k8s "k8s.io/client-go/kubernetes"
)

// RenewalThreshold is how close to expiry a stored certificate may get before
// auto-generation replaces it.
const RenewalThreshold = 30 * 24 * time.Hour

// TLSFactory creates TLS providers based on configuration
type TLSFactory struct {
	cfg *config.Config
}

// NewTLSFactory creates a new TLS factory
func NewTLSFactory(cfg *config.Config) *TLSFactory {
	return &TLSFactory{cfg: cfg}
}

// Create creates a TLS provider based on configuration. clientset is only
// required by the kubernetes mode.
func (f *TLSFactory) Create(clientset k8s.Interface) (core.TLSProvider, error) {
	switch f.cfg.TLSMode {
	case config.TLSModeFile:
		logger.Info("Creating File-based TLS Provider",
			"cert", f.cfg.TLSCertFile,
			"key", f.cfg.TLSKeyFile)
		return filesystem.NewFileTLSProvider(f.cfg.TLSCertFile, f.cfg.TLSKeyFile), nil
	case config.TLSModeKubernetes:
		if clientset == nil {
			return nil, fmt.Errorf("kubernetes TLS mode requires a kubernetes client")
		}
		logger.Info("Creating Kubernetes TLS Provider",
			"namespace", f.cfg.Namespace,
			"secret", f.cfg.TLSSecretName)
		return kubernetes.NewSecretTLSProvider(clientset, f.cfg.Namespace, f.cfg.TLSSecretName), nil
	case config.TLSModeMemory:
		logger.Info("Creating Memory TLS Provider")
		return memory.NewTLSProvider(), nil
	default:
		return nil, fmt.Errorf("unknown TLS mode: %s", f.cfg.TLSMode)
	}
}

// EnsureCertificate makes sure provider holds a usable certificate,
// generating a self-signed one when allowed.
func (f *TLSFactory) EnsureCertificate(ctx context.Context, provider core.TLSProvider) error {
	cert, err := provider.GetCertificate(ctx)
	if err != nil {
		if !f.cfg.TLSAutoGenerate {
			return fmt.Errorf("certificate not found and TLS_AUTO_GENERATE=false: %w", err)
		}
		logger.Info("Certificate not found. Generating new self-signed certificate...")
		return f.generateAndStoreCertificate(ctx, provider)
	}

	expiring, notAfter, err := CertificateExpiring(cert, RenewalThreshold)
	if err != nil {
		return err
	}
	if expiring {
		if !f.cfg.TLSAutoGenerate {
			logger.Warn("Certificate is expiring soon", "not_after", notAfter)
			return nil
		}
		logger.Info("Certificate is expiring soon. Regenerating...", "not_after", notAfter)
		return f.generateAndStoreCertificate(ctx, provider)
	}

	logger.Info("Certificate loaded and validated successfully", "not_after", notAfter)
	return nil
}

// ServerConfig builds the listener TLS configuration. In kubernetes mode the
// certificate is served from an informer cache; the returned stop function
// releases it.
func (f *TLSFactory) ServerConfig(ctx context.Context, provider core.TLSProvider, clientset k8s.Interface) (*tls.Config, func(), error) {
	if f.cfg.TLSMode == config.TLSModeKubernetes && clientset != nil {
		watcher, err := kubernetes.NewSecretWatcher(ctx, clientset, f.cfg.Namespace, f.cfg.TLSSecretName)
		if err != nil {
			return nil, nil, err
		}
		return &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: watcher.GetCertificate,
		}, watcher.Stop, nil
	}

	cert, err := provider.GetCertificate(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{*cert},
	}, func() {}, nil
}

func (f *TLSFactory) generateAndStoreCertificate(ctx context.Context, provider core.TLSProvider) error {
	certPEM, keyPEM, err := utils.GenerateSelfSignedCert()
	if err != nil {
		return fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}

	// Another replica may have stored one first.
	if err := provider.Store(ctx, certPEM, keyPEM); err != nil {
		logger.Warn("Failed to store certificate, attempting to load existing cert", "error", err)
		if _, loadErr := provider.GetCertificate(ctx); loadErr != nil {
			return fmt.Errorf("failed to load certificate after store failure: %w", loadErr)
		}
		logger.Info("Successfully loaded certificate created by another instance")
		return nil
	}

	logger.Info("Successfully generated and stored self-signed certificate")
	return nil
}

// CertificateExpiring reports whether the leaf certificate expires within threshold.
func CertificateExpiring(cert *tls.Certificate, threshold time.Duration) (bool, time.Time, error) {
	if cert == nil || len(cert.Certificate) == 0 {
		return false, time.Time{}, fmt.Errorf("empty certificate chain")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return leaf.NotAfter.Before(time.Now().Add(threshold)), leaf.NotAfter, nil
}
