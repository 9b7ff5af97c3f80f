package tls

import (
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDetails() CADetails {
	return CADetails{
		Country:            "US",
		Organization:       "EYES",
		OrganizationalUnit: "tests",
		CommonName:         "EYES Test Root",
	}
}

func TestGenerateSelfSigned(t *testing.T) {
	generated, err := GenerateSelfSigned(testDetails(), []string{"127.0.0.1", "localhost"}, time.Hour)
	require.NoError(t, err)

	block, _ := pem.Decode(generated.CertPEM)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)

	assert.Equal(t, "EYES Test Root", cert.Subject.CommonName)
	assert.Equal(t, []string{"localhost"}, cert.DNSNames)
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", cert.IPAddresses[0].String())
	assert.True(t, cert.NotAfter.After(time.Now()))
}

func TestClientConfigTrustsGeneratedCertificate(t *testing.T) {
	generated, err := GenerateSelfSigned(testDetails(), []string{"127.0.0.1"}, time.Hour)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile := filepath.Join(dir, "mock.crt")
	require.NoError(t, generated.WriteFiles(certFile, filepath.Join(dir, "mock.key")))

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	srv.TLS = ServerConfig(generated.Certificate)
	srv.StartTLS()
	defer srv.Close()

	cfg, err := ClientConfig(certFile)
	require.NoError(t, err)
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: cfg}, Timeout: 5 * time.Second}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestClientConfig(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0644))

	tests := []struct {
		name    string
		caFile  string
		wantNil bool
		wantErr string
	}{
		{name: "empty path uses defaults", caFile: "", wantNil: true},
		{name: "missing file", caFile: filepath.Join(dir, "missing.pem"), wantErr: "failed to read CA certificate"},
		{name: "no certificates", caFile: garbage, wantErr: "no certificates found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ClientConfig(tt.caFile)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, cfg)
			}
		})
	}
}

func TestLoadOrCreateReusesFiles(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "mock.crt")
	keyFile := filepath.Join(dir, "mock.key")

	first, err := LoadOrCreate(certFile, keyFile, []string{"localhost"})
	require.NoError(t, err)

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrCreate(certFile, keyFile, []string{"localhost"})
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0])
}
