/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package token

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// TokenProvider acquires service account tokens. Implementations must be
// safe for concurrent use.
type TokenProvider interface {
	GetToken(ctx context.Context, opts GetTokenOptions) (*TokenInfo, error)
}

// CachingProvider reuses tokens from another provider until
// DefaultRenewalThreshold of their lifetime has passed, so repeated
// reconcile passes do not mint a reviewer token each time.
type CachingProvider struct {
	next TokenProvider
	now  func() time.Time
	log  logr.Logger

	mu     sync.Mutex
	tokens map[ServiceAccountRef]*TokenInfo
}

// NewCachingProvider wraps next.
func NewCachingProvider(next TokenProvider, log logr.Logger) *CachingProvider {
	return &CachingProvider{
		next:   next,
		now:    time.Now,
		log:    log.WithName("token-cache"),
		tokens: make(map[ServiceAccountRef]*TokenInfo),
	}
}

// GetToken returns the cached token for opts.ServiceAccount while it is
// fresh, otherwise a new one from the wrapped provider.
func (p *CachingProvider) GetToken(ctx context.Context, opts GetTokenOptions) (*TokenInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if info, ok := p.tokens[opts.ServiceAccount]; ok && !info.NeedsRenewal(p.now()) {
		p.log.V(2).Info("reusing token", "serviceAccount", opts.ServiceAccount.String())
		return info, nil
	}

	info, err := p.next.GetToken(ctx, opts)
	if err != nil {
		return nil, err
	}
	p.tokens[opts.ServiceAccount] = info
	return info, nil
}

var _ TokenProvider = (*CachingProvider)(nil)
