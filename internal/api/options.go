package api

import "crypto/tls"

type GrpcApiServiceOption func(*StripGrpcService)

func WithStripController(controller StripController) GrpcApiServiceOption {
	return func(service *StripGrpcService) {
		service.controller = controller
	}
}

func WithListenAddr(server string) GrpcApiServiceOption {
	return func(service *StripGrpcService) {
		service.listenAddr = server
	}
}

func WithListenMode(mode ListenMode) GrpcApiServiceOption {
	return func(service *StripGrpcService) {
		service.listenMode = mode
	}
}

func WithTCP() GrpcApiServiceOption {
	return WithListenMode(ModeTCP)
}

func WithUnixSocket() GrpcApiServiceOption {
	return WithListenMode(ModeUnix)
}

// WithTLSConfig serves over TLS. The config decides whether client certificates are required.
func WithTLSConfig(config *tls.Config) GrpcApiServiceOption {
	return func(service *StripGrpcService) {
		service.tlsConfig = config
	}
}
