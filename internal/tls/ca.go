package tls

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/eyes-gesture/eyes-client/pkg/debug"
	"github.com/eyes-gesture/eyes-client/pkg/env"
)

// CADetails holds the subject used for generated certificates
type CADetails struct {
	Country            string
	Organization       string
	OrganizationalUnit string
	CommonName         string
}

// DefaultCADetails loads the subject from the environment
func DefaultCADetails() CADetails {
	return CADetails{
		Country:            env.GetOrDefault("CA_COUNTRY", "US"),
		Organization:       env.GetOrDefault("CA_ORGANIZATION", "EYES"),
		OrganizationalUnit: env.GetOrDefault("CA_ORGANIZATIONAL_UNIT", "EYES mock backend"),
		CommonName:         env.GetOrDefault("CA_COMMON_NAME", "EYES Mock Root"),
	}
}

// SelfSigned is a server certificate that is its own root. Clients trust it
// by loading CertPEM as a CA.
type SelfSigned struct {
	Certificate tls.Certificate
	CertPEM     []byte
	KeyPEM      []byte
}

// GenerateSelfSigned creates a certificate valid for hosts, which may be DNS
// names or IP addresses
func GenerateSelfSigned(details CADetails, hosts []string, validFor time.Duration) (*SelfSigned, error) {
	debug.Info("Generating self-signed certificate for %v", hosts)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Country:            []string{details.Country},
			Organization:       []string{details.Organization},
			OrganizationalUnit: []string{details.OrganizationalUnit},
			CommonName:         details.CommonName,
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certBytes})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to build key pair: %w", err)
	}

	return &SelfSigned{Certificate: pair, CertPEM: certPEM, KeyPEM: keyPEM}, nil
}

// WriteFiles saves the certificate and key. The key is only readable by the
// owner.
func (s *SelfSigned) WriteFiles(certFile, keyFile string) error {
	if err := os.WriteFile(certFile, s.CertPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(keyFile, s.KeyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	return nil
}

// LoadOrCreate loads the key pair from disk or generates and saves a new one
func LoadOrCreate(certFile, keyFile string, hosts []string) (tls.Certificate, error) {
	if exists(certFile) && exists(keyFile) {
		debug.Info("Loading existing certificate from %s", certFile)
		pair, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load certificate: %w", err)
		}
		return pair, nil
	}

	generated, err := GenerateSelfSigned(DefaultCADetails(), hosts, 365*24*time.Hour)
	if err != nil {
		return tls.Certificate{}, err
	}
	if err := generated.WriteFiles(certFile, keyFile); err != nil {
		return tls.Certificate{}, err
	}
	debug.Info("Wrote new certificate to %s", certFile)
	return generated.Certificate, nil
}

// exists checks if a file exists
func exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
