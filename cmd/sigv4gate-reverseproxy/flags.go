package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/sigtools/sigv4gate/internal/errorutil"
)

var (
	bindAddr = flag.String("bind", getEnvWithDefault("SIGV4GATE_BIND", ":8080"),
		"Address to bind the reverse proxy to")
	targetAddr = flag.String("target", getEnvWithDefault("SIGV4GATE_TARGET", "http://localhost:8081"),
		"Target address to forward verified traffic to")
	service = flag.String("service", getEnvWithDefault("SIGV4GATE_SERVICE", "execute-api"),
		"Service name requests must be signed for")
	region = flag.String("region", getEnvWithDefault("SIGV4GATE_REGION", "us-east-1"),
		"Region requests must be signed for")
	credentialsFile = flag.String("credentials", getEnvWithDefault("SIGV4GATE_CREDENTIALS", ""),
		"Path to a YAML credentials file (plaintext, or sealed when -seal-key is set)")
	useAWSCredentials = flag.Bool("aws-credentials", false,
		"Verify against the AWS default credential chain instead of a credentials file")
	allowedMismatch = flag.Duration("allowed-mismatch", 5*time.Minute,
		"Maximum allowed clock skew; negative disables the check")
	maxBodyBytes = flag.Int64("max-body-bytes", 10<<20,
		"Largest request body that will be buffered for verification")
)

// getEnvWithDefault returns the value of the environment variable if set,
// otherwise returns the default value.
func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// config holds the parsed configuration for the reverse proxy.
type config struct {
	bindAddr          string
	targetURL         *url.URL
	service           string
	region            string
	credentialsFile   string
	sealKey           []byte
	useAWSCredentials bool
	allowedMismatch   time.Duration
	maxBodyBytes      int64
}

// parseFlags parses command line flags and returns a config struct. The
// seal key is only ever taken from the environment so it cannot leak via
// the process list.
func parseFlags() (*config, error) {
	flag.Parse()

	targetURL, err := url.Parse(*targetAddr)
	if err != nil {
		return nil, errorutil.Wrapf(err, "invalid target address %q", *targetAddr)
	}
	if targetURL.Scheme != "http" && targetURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported target scheme %q", targetURL.Scheme)
	}

	if *credentialsFile == "" && !*useAWSCredentials {
		return nil, fmt.Errorf("either -credentials or -aws-credentials is required")
	}

	var sealKey []byte
	if raw, exists := os.LookupEnv("SIGV4GATE_SEAL_KEY"); exists {
		sealKey, err = hex.DecodeString(raw)
		if err != nil {
			return nil, errorutil.Wrap(err, "SIGV4GATE_SEAL_KEY is not valid hex")
		}
	}

	return &config{
		bindAddr:          *bindAddr,
		targetURL:         targetURL,
		service:           *service,
		region:            *region,
		credentialsFile:   *credentialsFile,
		sealKey:           sealKey,
		useAWSCredentials: *useAWSCredentials,
		allowedMismatch:   *allowedMismatch,
		maxBodyBytes:      *maxBodyBytes,
	}, nil
}
