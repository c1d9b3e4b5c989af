package keyproviders

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sigtools/sigv4gate/internal/errorutil"
	"github.com/sigtools/sigv4gate/sigv4"
)

type credentialsProvider struct {
	creds aws.CredentialsProvider
}

var _ sigv4.KeyProvider = &credentialsProvider{}

// FromCredentials verifies requests against whatever credentials an AWS
// SDK provider resolves to: static, environment, shared config, IMDS, or
// anything else implementing aws.CredentialsProvider. Useful when the
// clients sign with the same principal the server runs as.
func FromCredentials(creds aws.CredentialsProvider) sigv4.KeyProvider {
	return &credentialsProvider{creds: creds}
}

func (p *credentialsProvider) SigningKey(ctx context.Context, req *sigv4.KeyRequest) ([]byte, error) {
	resolved, err := p.creds.Retrieve(ctx)
	if err != nil {
		return nil, errorutil.Wrap(err, "failed to resolve credentials")
	}

	if resolved.AccessKeyID != req.AccessKeyID {
		return nil, &sigv4.SignatureError{
			Kind:    sigv4.ErrInvalidCredential,
			Message: "unknown access key " + req.AccessKeyID,
		}
	}
	if resolved.SessionToken != "" && resolved.SessionToken != req.SessionToken {
		return nil, &sigv4.SignatureError{
			Kind:    sigv4.ErrInvalidCredential,
			Message: "session token mismatch for access key " + req.AccessKeyID,
		}
	}

	return deriveFromSecret(resolved.SecretAccessKey, req)
}
