// Command jwtconsumer validates, inspects and issues JSON Web Tokens, and
// serves the validation engine over HTTP.
//
//	jwtconsumer serve --config consumers.yaml --addr :8080
//	jwtconsumer validate --config consumers.yaml --consumer orders <token>
//	jwtconsumer parse <token>
//	jwtconsumer issue --alg HS256 --secret-file key.txt --iss https://auth --ttl 10m
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
