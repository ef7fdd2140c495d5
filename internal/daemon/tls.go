package daemon

import (
	"context"
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/compute-blade-community/pixelwire/pkg/certificate"
	"github.com/compute-blade-community/pixelwire/pkg/log"
	"github.com/sierrasoftworks/humane-errors-go"
	"go.uber.org/zap"
)

const (
	caFile         = "ca.pem"
	caKeyFile      = "ca-key.pem"
	serverCertFile = "server.pem"
	serverKeyFile  = "server-key.pem"

	caValidity = 10 * 365 * 24 * time.Hour
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadOrCreateCA returns the CA in dir, creating it on first use.
func loadOrCreateCA(ctx context.Context, dir string) (*x509.Certificate, *ecdsa.PrivateKey, humane.Error) {
	caPath, caKeyPath := filepath.Join(dir, caFile), filepath.Join(dir, caKeyFile)
	if fileExists(caPath) && fileExists(caKeyPath) {
		return certificate.LoadAndValidateCertificate(caPath, caKeyPath)
	}

	log.FromContext(ctx).Info("Generating certificate authority", zap.String("dir", dir))

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, humane.Wrap(err, "failed to create certificate directory",
			"set listen.cert_dir to a directory writable by the daemon user",
		)
	}

	certDER, keyDER, herr := certificate.GenerateCertificate(
		certificate.WithUsage(certificate.UsageCA),
		certificate.WithCommonName("pixelwire CA"),
		certificate.WithValidity(caValidity),
	)
	if herr != nil {
		return nil, nil, herr
	}

	if herr := certificate.WriteCertificate(caPath, caKeyPath, certDER, keyDER); herr != nil {
		return nil, nil, herr
	}

	return certificate.LoadAndValidateCertificate(caPath, caKeyPath)
}

// ServerTLSConfig loads or issues the server certificate in dir and requires clients to present a
// certificate signed by the same CA.
func ServerTLSConfig(ctx context.Context, dir string, hosts []string) (*tls.Config, humane.Error) {
	caCert, caKey, herr := loadOrCreateCA(ctx, dir)
	if herr != nil {
		return nil, herr
	}

	certPath, keyPath := filepath.Join(dir, serverCertFile), filepath.Join(dir, serverKeyFile)
	if !fileExists(certPath) || !fileExists(keyPath) {
		log.FromContext(ctx).Info("Generating server certificate", zap.Strings("hosts", hosts))

		certDER, keyDER, herr := certificate.GenerateCertificate(
			certificate.WithServerUsage(),
			certificate.WithCommonName("pixelwired"),
			certificate.WithHosts(hosts...),
			certificate.WithCaCert(caCert),
			certificate.WithCaKey(caKey),
		)
		if herr != nil {
			return nil, herr
		}
		if herr := certificate.WriteCertificate(certPath, keyPath, certDER, keyDER); herr != nil {
			return nil, herr
		}
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, humane.Wrap(err, "failed to load server key pair",
			"remove "+certPath+" and "+keyPath+" to have them issued again",
		)
	}

	pool, herr := certificate.GetCertPoolFrom(filepath.Join(dir, caFile))
	if herr != nil {
		return nil, herr
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// IssueClientCertificate signs a new client certificate with the CA in dir and returns it
// in PEM form together with the CA certificate.
func IssueClientCertificate(ctx context.Context, dir, commonName string) (caPEM, certPEM, keyPEM []byte, herr humane.Error) {
	caCert, caKey, herr := loadOrCreateCA(ctx, dir)
	if herr != nil {
		return nil, nil, nil, herr
	}

	certDER, keyDER, herr := certificate.GenerateCertificate(
		certificate.WithClientUsage(),
		certificate.WithCommonName(commonName),
		certificate.WithCaCert(caCert),
		certificate.WithCaKey(caKey),
	)
	if herr != nil {
		return nil, nil, nil, herr
	}

	caPEM, err := os.ReadFile(filepath.Join(dir, caFile))
	if err != nil {
		return nil, nil, nil, humane.Wrap(err, "failed to read CA certificate",
			"ensure listen.cert_dir is readable by the current user",
		)
	}

	certPEM, keyPEM = certificate.EncodePEM(certDER, keyDER)
	return caPEM, certPEM, keyPEM, nil
}

// serverHosts lists the names a server certificate is issued for: localhost, the host name,
// the host of the listen address and every interface address.
func serverHosts(listenAddr string) []string {
	hosts := []string{"localhost"}
	if hostname, err := os.Hostname(); err == nil {
		hosts = append(hosts, hostname, hostname+".local")
	}

	if host, _, err := net.SplitHostPort(listenAddr); err == nil && host != "" {
		if ip := net.ParseIP(host); ip == nil || !ip.IsUnspecified() {
			hosts = append(hosts, host)
		}
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return hosts
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			hosts = append(hosts, ipNet.IP.String())
		}
	}
	return hosts
}
