package kubernetes

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
)

// SecretWatcher serves the TLS certificate from an informer cache so that a
// rotated Secret is picked up by new handshakes without a restart.
type SecretWatcher struct {
	store  cache.Store
	key    string
	stopCh chan struct{}
}

// CacheSyncTimeout bounds the initial list of the Secret when the caller's
// context carries no earlier deadline.
const CacheSyncTimeout = 30 * time.Second

// NewSecretWatcher starts the informer and waits for its first sync. It fails
// when the sync does not complete before ctx ends or CacheSyncTimeout elapses,
// typically because the service account may not list or watch Secrets.
func NewSecretWatcher(ctx context.Context, clientset kubernetes.Interface, namespace, secretName string) (*SecretWatcher, error) {
	factory := informers.NewSharedInformerFactoryWithOptions(clientset, 10*time.Minute,
		informers.WithNamespace(namespace),
		informers.WithTweakListOptions(func(opts *metav1.ListOptions) {
			opts.FieldSelector = fields.OneTermEqualSelector("metadata.name", secretName).String()
		}),
	)
	secretInformer := factory.Core().V1().Secrets().Informer()

	key := namespace + "/" + secretName

	// Start the informer in the background
	stopCh := make(chan struct{})
	factory.Start(stopCh)

	syncCtx, cancel := context.WithTimeout(ctx, CacheSyncTimeout)
	defer cancel()
	for informerType, synced := range factory.WaitForCacheSync(syncCtx.Done()) {
		if !synced {
			close(stopCh)
			return nil, fmt.Errorf("failed to sync %v cache for secret %s: %w", informerType, key, syncCtx.Err())
		}
	}

	return &SecretWatcher{
		store:  secretInformer.GetStore(),
		key:    key,
		stopCh: stopCh,
	}, nil
}

// GetCertificate has the signature of tls.Config.GetCertificate.
func (w *SecretWatcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	obj, exists, err := w.store.GetByKey(w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s from cache: %w", w.key, err)
	}
	if !exists {
		return nil, fmt.Errorf("secret %s not found", w.key)
	}
	secret, ok := obj.(*corev1.Secret)
	if !ok {
		return nil, fmt.Errorf("unexpected object %T in secret cache", obj)
	}
	return certificateFromSecret(secret)
}

// Stop shuts the informer down.
func (w *SecretWatcher) Stop() {
	close(w.stopCh)
}
