// Package certificate issues and checks the ECDSA certificates used for mutual TLS between pixelctl and pixelwired.
package certificate

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/sierrasoftworks/humane-errors-go"
)

// Usage is the role a certificate is issued for.
type Usage int

const (
	UsageCA Usage = iota
	UsageServer
	UsageClient
)

func (u Usage) String() string {
	switch u {
	case UsageCA:
		return "ca"
	case UsageServer:
		return "server"
	case UsageClient:
		return "client"
	default:
		return fmt.Sprintf("usage(%d)", int(u))
	}
}

const (
	pemTypeCertificate = "CERTIFICATE"
	pemTypeECKey       = "EC PRIVATE KEY"
)

// LoadAndValidateCertificate reads a PEM certificate and key and checks that they belong together.
func LoadAndValidateCertificate(certPath, keyPath string) (cert *x509.Certificate, key *ecdsa.PrivateKey, herr humane.Error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, humane.Wrap(err, "failed to read certificate",
			fmt.Sprintf("ensure the certificate file %s exists and is readable by the daemon user", certPath),
		)
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, humane.Wrap(err, "failed to read private key",
			fmt.Sprintf("ensure the key file %s exists and is readable by the daemon user", keyPath),
		)
	}

	return ValidateCertificate(
		WithCertData(certPEM),
		WithCertKey(keyPEM),
	)
}

func ValidateCertificate(opts ...Option) (cert *x509.Certificate, key *ecdsa.PrivateKey, herr humane.Error) {
	options := &options{}

	for _, opt := range opts {
		opt(options)
	}

	certBlock, _ := pem.Decode(options.CertData)
	if certBlock == nil {
		return nil, nil, humane.New("failed to decode certificate",
			"verify the certificate with: openssl x509 -in /path/to/certificate.pem -text -noout",
		)
	}

	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, nil, humane.Wrap(err, "failed to parse certificate",
			"verify the certificate with: openssl x509 -in /path/to/certificate.pem -text -noout",
		)
	}

	keyBlock, _ := pem.Decode(options.KeyData)
	if keyBlock == nil {
		return nil, nil, humane.New("failed to decode private key",
			"verify the key with: openssl ec -in /path/to/keyfile.pem -check",
		)
	}

	key, err = x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, humane.Wrap(err, "failed to parse private key",
			"verify the key with: openssl ec -in /path/to/keyfile.pem -check",
		)
	}

	certPub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok || !certPub.Equal(&key.PublicKey) {
		return nil, nil, humane.New("private key does not match certificate",
			"regenerate the pair or restore the key that was issued with this certificate",
		)
	}

	return cert, key, nil
}

// GenerateCertificate creates a key and a certificate in DER form. CA certificates are self-signed,
// server and client certificates are signed by WithCaCert and WithCaKey.
func GenerateCertificate(opts ...Option) (certDER, keyDER []byte, herr humane.Error) {
	options := &options{Validity: 365 * 24 * time.Hour}

	for _, opt := range opts {
		opt(options)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(now.UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"pixelwire"},
			CommonName:   options.CommonName,
		},
		NotBefore: now.Add(-time.Minute),
		NotAfter:  now.Add(options.Validity),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}

	switch options.Usage {
	case UsageCA:
		template.IsCA = true
		template.BasicConstraintsValid = true
		template.KeyUsage |= x509.KeyUsageCertSign

	case UsageServer:
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
		for _, host := range options.Hosts {
			if ip := net.ParseIP(host); ip != nil {
				template.IPAddresses = append(template.IPAddresses, ip)
			} else {
				template.DNSNames = append(template.DNSNames, host)
			}
		}

	case UsageClient:
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}

	default:
		return nil, nil, humane.New(fmt.Sprintf("invalid certificate usage %s", options.Usage.String()),
			"this should never happen",
		)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, humane.Wrap(err, "failed to generate private key", "this should never happen")
	}

	parent, signer := options.CaCert, options.CaKey
	if options.Usage == UsageCA {
		parent, signer = template, key
	} else if parent == nil || signer == nil {
		return nil, nil, humane.New(fmt.Sprintf("a %s certificate needs a CA to sign it", options.Usage.String()),
			"pass the CA certificate and key",
		)
	}

	certDER, err = x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signer)
	if err != nil {
		return nil, nil, humane.Wrap(err, fmt.Sprintf("failed to create %s certificate", options.Usage.String()),
			"this should never happen",
		)
	}

	keyDER, err = x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, humane.Wrap(err, "failed to marshal private key", "this should never happen")
	}

	return certDER, keyDER, nil
}

// EncodePEM converts a DER certificate and EC key into PEM blocks.
func EncodePEM(certDER, keyDER []byte) (certPEM, keyPEM []byte) {
	certPEM = pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: pemTypeECKey, Bytes: keyDER})
	return certPEM, keyPEM
}

// WriteCertificate writes the certificate and its key as PEM files readable only by the owner.
func WriteCertificate(certPath, keyPath string, certDER, keyDER []byte) humane.Error {
	certPEM, keyPEM := EncodePEM(certDER, keyDER)

	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		return humane.Wrap(err, "failed to write certificate file",
			"ensure the certificate directory exists and is writable by the daemon user",
		)
	}

	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return humane.Wrap(err, "failed to write key file",
			"ensure the certificate directory exists and is writable by the daemon user",
		)
	}

	return nil
}

// CertPool builds a pool from PEM encoded CA certificates.
func CertPool(caPEM []byte) (*x509.CertPool, humane.Error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, humane.New("failed to append CA certificate to pool",
			"verify the CA certificate with: openssl x509 -in /path/to/ca.pem -text -noout",
		)
	}

	return pool, nil
}

// GetCertPoolFrom reads a PEM CA certificate and returns a pool holding it.
func GetCertPoolFrom(caPath string) (*x509.CertPool, humane.Error) {
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, humane.Wrap(err, "failed to read CA certificate",
			fmt.Sprintf("ensure %s exists and is readable by the daemon user", caPath),
		)
	}

	return CertPool(caPEM)
}
