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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/panteparak/vault-config/pkg/vault/auth"
)

// MountedTokenProvider returns the pod's own projected token whatever
// service account is asked for. It backs the reviewer when no reviewer
// service account is configured.
type MountedTokenProvider struct {
	path string
	log  logr.Logger
}

// NewMountedTokenProvider reads from path, or the in-pod location when path
// is empty.
func NewMountedTokenProvider(path string, log logr.Logger) *MountedTokenProvider {
	if path == "" {
		path = auth.DefaultMountPaths().Token
	}
	return &MountedTokenProvider{path: path, log: log.WithName("mounted-token")}
}

// GetToken reads and decodes the mounted token. Options are ignored.
func (p *MountedTokenProvider) GetToken(_ context.Context, _ GetTokenOptions) (*TokenInfo, error) {
	raw, err := auth.GetServiceAccountTokenFromPath(p.path)
	if err != nil {
		return nil, err
	}
	jwt := strings.TrimSpace(raw)
	if jwt == "" {
		return nil, fmt.Errorf("token file %s is empty", p.path)
	}

	info, err := decodeClaims(jwt)
	if err != nil {
		return nil, fmt.Errorf("token file %s: %w", p.path, err)
	}
	p.log.V(1).Info("read mounted token", "path", p.path, "expiresAt", info.ExpirationTime)
	return info, nil
}

// claims are the registered claims a projected token carries.
type claims struct {
	Exp int64    `json:"exp"`
	Iat int64    `json:"iat"`
	Aud []string `json:"aud"`
}

// decodeClaims reads the payload segment without verifying the signature.
// Vault verifies it through the TokenReview API.
func decodeClaims(jwt string) (*TokenInfo, error) {
	if strings.Count(jwt, ".") != 2 {
		return nil, errors.New("invalid JWT format: want three dot separated segments")
	}
	_, rest, _ := strings.Cut(jwt, ".")
	segment, _, _ := strings.Cut(rest, ".")

	payload, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT payload: %w", err)
	}
	var c claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("failed to parse JWT claims: %w", err)
	}

	info := &TokenInfo{Token: jwt, Audiences: c.Aud}
	if c.Exp > 0 {
		info.ExpirationTime = time.Unix(c.Exp, 0)
	}
	if c.Iat > 0 {
		info.IssuedAt = time.Unix(c.Iat, 0)
	}
	return info, nil
}

var _ TokenProvider = (*MountedTokenProvider)(nil)
