package kubernetes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/utils"
)

func TestSecretTLSProviderStoreAndGet(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	p := NewSecretTLSProvider(clientset, "apps", "xtransform-tls")

	_, err := p.GetCertificate(ctx)
	require.Error(t, err, "missing secret")

	certPEM, keyPEM, err := utils.GenerateSelfSignedCert()
	require.NoError(t, err)
	require.NoError(t, p.Store(ctx, certPEM, keyPEM))

	cert, err := p.GetCertificate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)

	// A second store takes the update path.
	certPEM2, keyPEM2, err := utils.GenerateSelfSignedCert()
	require.NoError(t, err)
	require.NoError(t, p.Store(ctx, certPEM2, keyPEM2))

	secret, err := clientset.CoreV1().Secrets("apps").Get(ctx, "xtransform-tls", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, certPEM2, secret.Data["tls.crt"])
	assert.Equal(t, "xtransform-server", secret.Labels["app.kubernetes.io/managed-by"])
}

func TestSecretWatcherServesCachedCertificate(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()

	certPEM, keyPEM, err := utils.GenerateSelfSignedCert()
	require.NoError(t, err)
	require.NoError(t, NewSecretTLSProvider(clientset, "apps", "xtransform-tls").Store(ctx, certPEM, keyPEM))

	w, err := NewSecretWatcher(ctx, clientset, "apps", "xtransform-tls")
	require.NoError(t, err)
	defer w.Stop()

	cert, err := w.GetCertificate(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)

	missing, err := NewSecretWatcher(ctx, clientset, "apps", "absent")
	require.NoError(t, err)
	defer missing.Stop()
	_, err = missing.GetCertificate(nil)
	assert.Error(t, err)
}

func TestSecretWatcherFailsWhenListForbidden(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	clientset.PrependReactor("list", "secrets", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "secrets"}, "", errors.New("rbac denied"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	w, err := NewSecretWatcher(ctx, clientset, "apps", "xtransform-tls")
	require.Error(t, err)
	assert.Nil(t, w)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
