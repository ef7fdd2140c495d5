package ctlconfig

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"

	"github.com/compute-blade-community/pixelwire/pkg/certificate"
	"github.com/sierrasoftworks/humane-errors-go"
	"gopkg.in/yaml.v3"
)

type PixelctlConfig struct {
	Strips       []NamedStrip `yaml:"strips" mapstructure:"strips"`
	CurrentStrip string       `yaml:"current-strip" mapstructure:"current-strip"`
}

type NamedStrip struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Strip Strip  `yaml:"strip" mapstructure:"strip"`
}

type Strip struct {
	Server     string `yaml:"server" mapstructure:"server"`
	Brightness uint8  `yaml:"brightness,omitempty" mapstructure:"brightness,omitempty"`

	// Certificate data is base64 encoded PEM. All three are set for servers that require mutual TLS.
	CertificateAuthorityData string `yaml:"certificate-authority-data,omitempty" mapstructure:"certificate-authority-data"`
	ClientCertificateData    string `yaml:"client-certificate-data,omitempty" mapstructure:"client-certificate-data"`
	ClientKeyData            string `yaml:"client-key-data,omitempty" mapstructure:"client-key-data"`
}

// Authenticated reports whether the strip carries client credentials.
func (s Strip) Authenticated() bool {
	return s.CertificateAuthorityData != "" && s.ClientCertificateData != "" && s.ClientKeyData != ""
}

// SetCertificates stores PEM credentials in their encoded form.
func (s *Strip) SetCertificates(caPEM, certPEM, keyPEM []byte) {
	s.CertificateAuthorityData = base64.StdEncoding.EncodeToString(caPEM)
	s.ClientCertificateData = base64.StdEncoding.EncodeToString(certPEM)
	s.ClientKeyData = base64.StdEncoding.EncodeToString(keyPEM)
}

// TLSConfig builds the client side of mutual TLS from the stored credentials.
func (s Strip) TLSConfig(serverName string) (*tls.Config, humane.Error) {
	decode := func(field, data string) ([]byte, humane.Error) {
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, humane.Wrap(err, "failed to decode "+field,
				"regenerate the strip entry with 'pixelwired client-config'",
			)
		}
		return raw, nil
	}

	caPEM, herr := decode("certificate-authority-data", s.CertificateAuthorityData)
	if herr != nil {
		return nil, herr
	}
	certPEM, herr := decode("client-certificate-data", s.ClientCertificateData)
	if herr != nil {
		return nil, herr
	}
	keyPEM, herr := decode("client-key-data", s.ClientKeyData)
	if herr != nil {
		return nil, herr
	}

	pool, herr := certificate.CertPool(caPEM)
	if herr != nil {
		return nil, herr
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, humane.Wrap(err, "failed to load client key pair",
			"regenerate the strip entry with 'pixelwired client-config'",
		)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ServerName:   serverName,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func FindCurrentStrip(config PixelctlConfig) (*Strip, humane.Error) {
	for _, strip := range config.Strips {
		if strip.Name == config.CurrentStrip {
			return &strip.Strip, nil
		}
	}

	return nil, humane.New("current strip not found in configuration",
		"ensure you have a current-strip set in your configuration file, or use the --strip flag to specify one",
		"make sure you have a strip with the name you specified in the strips configuration",
	)
}

// SetStrip adds or replaces a named strip and makes it current.
func (c *PixelctlConfig) SetStrip(name string, strip Strip) {
	c.CurrentStrip = name
	for i := range c.Strips {
		if c.Strips[i].Name == name {
			c.Strips[i].Strip = strip
			return
		}
	}
	c.Strips = append(c.Strips, NamedStrip{Name: name, Strip: strip})
}

func (c PixelctlConfig) Marshal() ([]byte, humane.Error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, humane.Wrap(err, "failed to encode pixelctl configuration")
	}
	return data, nil
}

func Unmarshal(data []byte) (PixelctlConfig, humane.Error) {
	var c PixelctlConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, humane.Wrap(err, fmt.Sprintf("failed to parse pixelctl configuration (%d bytes)", len(data)),
			"check the YAML syntax of your pixelctl configuration file")
	}
	return c, nil
}
