package kube

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func service(ns, name string) *corev1.Service {
	return &corev1.Service{ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name}}
}

func TestVerifyServicesPresent(t *testing.T) {
	cs := fake.NewClientset(service("default", "cp"), service("default", "dp"))
	require.NoError(t, VerifyServices(context.Background(), cs, "default", "cp", "dp"))
}

func TestVerifyServicesMissing(t *testing.T) {
	cs := fake.NewClientset(service("default", "cp"), service("other", "dp"))
	err := VerifyServices(context.Background(), cs, "default", "cp", "dp")
	require.Error(t, err)
	assert.Equal(t, "service default/dp not found", err.Error())
}

func TestVerifyServicesAPIError(t *testing.T) {
	cs := fake.NewClientset()
	cs.PrependReactor("get", "services", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("connection refused")
	})
	err := VerifyServices(context.Background(), cs, "stack", "cp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service stack/cp: connection refused")
}

func TestNewClientsetFromKubeconfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	kubeconfig := `apiVersion: v1
kind: Config
clusters:
- name: test
  cluster:
    server: https://127.0.0.1:6443
contexts:
- name: test
  context:
    cluster: test
    user: test
current-context: test
users:
- name: test
  user:
    token: abc
`
	require.NoError(t, os.WriteFile(path, []byte(kubeconfig), 0o600))
	cs, err := NewClientset(path)
	require.NoError(t, err)
	assert.NotNil(t, cs)
}

func TestNewClientsetBadPath(t *testing.T) {
	_, err := NewClientset(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "load kubeconfig")
}
