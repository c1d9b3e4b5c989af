package keyproviders

import (
	"context"
	"strings"
	"sync"

	"github.com/sigtools/sigv4gate/sigv4"
	"golang.org/x/sync/singleflight"
)

// maxCachedKeys bounds the cache; derived keys are scoped to a date, so
// entries go stale daily and the table would otherwise only grow.
const maxCachedKeys = 1024

type cachedProvider struct {
	inner sigv4.KeyProvider

	group singleflight.Group

	mu   sync.RWMutex
	keys map[string][]byte
}

var _ sigv4.KeyProvider = &cachedProvider{}

// Cached memoizes the keys another provider derives, keyed by derivation
// stage and credential context. The kind hierarchy exists so deployments
// can cache partially-derived keys instead of re-running the HMAC cascade
// (or re-fetching a secret) on every request; this wraps that pattern
// around any provider. Concurrent requests for the same key collapse into
// a single inner lookup.
func Cached(inner sigv4.KeyProvider) sigv4.KeyProvider {
	return &cachedProvider{
		inner: inner,
		keys:  make(map[string][]byte),
	}
}

func (p *cachedProvider) SigningKey(ctx context.Context, req *sigv4.KeyRequest) ([]byte, error) {
	cacheKey := strings.Join([]string{
		req.Kind.String(),
		req.AccessKeyID,
		req.SessionToken,
		req.Date,
		req.Region,
		req.Service,
	}, "\x00")

	p.mu.RLock()
	key, ok := p.keys[cacheKey]
	p.mu.RUnlock()
	if ok {
		return append([]byte(nil), key...), nil
	}

	derived, err, _ := p.group.Do(cacheKey, func() (any, error) {
		key, err := p.inner.SigningKey(ctx, req)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		if len(p.keys) >= maxCachedKeys {
			clear(p.keys)
		}
		p.keys[cacheKey] = append([]byte(nil), key...)
		p.mu.Unlock()

		return key, nil
	})
	if err != nil {
		return nil, err
	}

	return append([]byte(nil), derived.([]byte)...), nil
}
