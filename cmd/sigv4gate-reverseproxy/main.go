// sigv4gate-reverseproxy terminates AWS SigV4 authentication in front of
// a backend that doesn't speak it: requests with a valid signature are
// forwarded, everything else is rejected at the edge.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/sigtools/sigv4gate"
	"github.com/sigtools/sigv4gate/keyproviders"
	"github.com/sigtools/sigv4gate/sigv4"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := parseFlags()
	if err != nil {
		logger.Error("failed to parse flags", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys, err := buildKeyProvider(ctx, cfg)
	if err != nil {
		logger.Error("failed to build key provider", "error", err)
		os.Exit(1)
	}

	verifier, err := sigv4gate.New(keys, cfg.service, cfg.region,
		sigv4gate.WithAllowedMismatch(cfg.allowedMismatch),
		sigv4gate.WithMaxBodyBytes(cfg.maxBodyBytes),
		sigv4gate.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create verifier", "error", err)
		os.Exit(1)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(cfg.targetURL)
			// Preserve the hostname the client signed.
			r.Out.Host = r.In.Host
		},
	}

	srv := &http.Server{
		Addr: cfg.bindAddr,
		// h2c lets gRPC-style cleartext HTTP/2 clients through as well.
		Handler:           h2c.NewHandler(verifier.Wrap(proxy), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("starting reverse proxy",
		"bind", cfg.bindAddr,
		"target", cfg.targetURL.String(),
		"service", cfg.service,
		"region", cfg.region,
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve failed", "error", err)
		os.Exit(1)
	}
}

// buildKeyProvider assembles the signing-key lookup chain: a credentials
// file (sealed or plaintext) or the AWS default chain, with derived-key
// caching in front.
func buildKeyProvider(ctx context.Context, cfg *config) (sigv4.KeyProvider, error) {
	var keys sigv4.KeyProvider

	if cfg.useAWSCredentials {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		keys = keyproviders.FromCredentials(awsCfg.Credentials)
	} else {
		var err error
		keys, err = loadCredentialsFile(cfg.credentialsFile, cfg.sealKey)
		if err != nil {
			return nil, err
		}
	}

	return keyproviders.Cached(keys), nil
}
