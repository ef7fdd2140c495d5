package certificate

import (
	"crypto/ecdsa"
	"crypto/x509"
	"time"
)

type options struct {
	CaCert     *x509.Certificate
	CaKey      *ecdsa.PrivateKey
	CommonName string
	Usage      Usage
	Hosts      []string
	Validity   time.Duration
	CertData   []byte
	KeyData    []byte
}

type Option func(*options)

func WithCommonName(name string) Option {
	return func(o *options) {
		o.CommonName = name
	}
}

func WithUsage(usage Usage) Option {
	return func(o *options) {
		o.Usage = usage
	}
}

func WithClientUsage() Option {
	return WithUsage(UsageClient)
}

func WithServerUsage() Option {
	return WithUsage(UsageServer)
}

// WithHosts sets the DNS names and IP addresses a server certificate is valid for.
func WithHosts(hosts ...string) Option {
	return func(o *options) {
		o.Hosts = append(o.Hosts, hosts...)
	}
}

func WithValidity(d time.Duration) Option {
	return func(o *options) {
		o.Validity = d
	}
}

func WithCaCert(cert *x509.Certificate) Option {
	return func(o *options) {
		o.CaCert = cert
	}
}

func WithCaKey(key *ecdsa.PrivateKey) Option {
	return func(o *options) {
		o.CaKey = key
	}
}

func WithCertData(data []byte) Option {
	return func(o *options) {
		o.CertData = data
	}
}

func WithCertKey(data []byte) Option {
	return func(o *options) {
		o.KeyData = data
	}
}
