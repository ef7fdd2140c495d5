package main

import (
	"context"
	"log"

	"github.com/compute-blade-community/pixelwire/internal/api"
	"github.com/compute-blade-community/pixelwire/pkg/ctlconfig"
)

type contextKey int

const (
	defaultGrpcClientContextKey contextKey = iota
	defaultStripContextKey
)

var (
	Version string
	Commit  string
	Date    string
)

func clientIntoContext(ctx context.Context, client *api.StripServiceClient) context.Context {
	return context.WithValue(ctx, defaultGrpcClientContextKey, client)
}

func clientFromContext(ctx context.Context) *api.StripServiceClient {
	client, ok := ctx.Value(defaultGrpcClientContextKey).(*api.StripServiceClient)
	if !ok {
		panic("grpc client not found in context")
	}
	return client
}

func stripIntoContext(ctx context.Context, strip ctlconfig.Strip) context.Context {
	return context.WithValue(ctx, defaultStripContextKey, strip)
}

func stripFromContext(ctx context.Context) ctlconfig.Strip {
	strip, _ := ctx.Value(defaultStripContextKey).(ctlconfig.Strip)
	return strip
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
