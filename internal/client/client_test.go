package client

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeKeypair writes a self-signed certificate and key; good enough
// to exercise NewSession's loading paths.
func writeKeypair(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "espstream-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "client.crt")
	keyPath = filepath.Join(dir, "client.key")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0644))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))
	return certPath, keyPath
}

func TestNewSession(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeypair(t, dir)

	session, err := NewSession(Config{
		BaseURL:  "https://esp-test.local:443/",
		CAPath:   certPath, // self-signed: the cert doubles as its own CA
		CertPath: certPath,
		KeyPath:  keyPath,
	})
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, "https://esp-test.local:443", session.BaseURL)
	assert.NotNil(t, session.HTTP)
}

func TestNewSessionTimeoutsLeaveBodyUnbounded(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeypair(t, dir)

	session, err := NewSession(Config{
		BaseURL:  "https://esp-test.local:443",
		CAPath:   certPath,
		CertPath: certPath,
		KeyPath:  keyPath,
		Timeout:  45 * time.Second,
	})
	require.NoError(t, err)
	defer session.Close()

	// A client-level timeout would abort long streams mid-body; the
	// deadline belongs to the response-header phase only.
	assert.Zero(t, session.HTTP.Timeout)
	transport, ok := session.HTTP.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, transport.ResponseHeaderTimeout)
	assert.NotNil(t, transport.DialContext)
	assert.Equal(t, 10*time.Second, transport.TLSHandshakeTimeout)
}

func TestNewSessionMissingCA(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeypair(t, dir)
	_, err := NewSession(Config{
		CAPath:   filepath.Join(dir, "missing.crt"),
		CertPath: certPath,
		KeyPath:  keyPath,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CA certificate")
}

func TestNewSessionGarbageCA(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeypair(t, dir)
	garbage := filepath.Join(dir, "garbage.crt")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pem"), 0644))
	_, err := NewSession(Config{CAPath: garbage, CertPath: certPath, KeyPath: keyPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no certificates found")
}

func TestFetchBuildsRequest(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
	}))
	defer srv.Close()

	session := &Session{HTTP: srv.Client(), BaseURL: srv.URL}
	resp, err := session.Fetch(context.Background(), "/dir_stream", map[string]string{"from": "a", "to": "z"})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/dir_stream", gotPath)
	assert.Equal(t, "from=a&to=z", gotQuery)
}

func TestFetchRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	session := &Session{HTTP: srv.Client(), BaseURL: srv.URL}
	_, err := session.Fetch(context.Background(), "dir_stream", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 404")
}
