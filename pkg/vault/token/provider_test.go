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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	authenticationv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func TestTokenRequestProvider_GetToken(t *testing.T) {
	expires := metav1.NewTime(time.Now().Add(time.Hour).Truncate(time.Second))
	clientset := fake.NewSimpleClientset()

	var got *authenticationv1.TokenRequest
	clientset.PrependReactor("create", "serviceaccounts", func(action k8stesting.Action) (bool, runtime.Object, error) {
		create, ok := action.(k8stesting.CreateAction)
		if !ok || action.GetSubresource() != "token" {
			return false, nil, nil
		}
		got = create.GetObject().(*authenticationv1.TokenRequest)
		resp := got.DeepCopy()
		resp.Status = authenticationv1.TokenRequestStatus{Token: "issued-jwt", ExpirationTimestamp: expires}
		return true, resp, nil
	})

	p := NewTokenRequestProvider(clientset, logr.Discard())
	info, err := p.GetToken(context.Background(), GetTokenOptions{
		ServiceAccount: ServiceAccountRef{Namespace: "vault", Name: "vault-auth"},
	})
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if info.Token != "issued-jwt" || !info.ExpirationTime.Equal(expires.Time) {
		t.Errorf("info = %+v", info)
	}
	if info.NeedsRenewal(time.Now()) {
		t.Error("a freshly issued token should not need renewal")
	}
	if got == nil {
		t.Fatal("no token request was sent")
	}
	if *got.Spec.ExpirationSeconds != int64(DefaultTokenDuration.Seconds()) {
		t.Errorf("ExpirationSeconds = %d", *got.Spec.ExpirationSeconds)
	}
	if len(got.Spec.Audiences) != 1 || got.Spec.Audiences[0] != DefaultAudience {
		t.Errorf("Audiences = %v", got.Spec.Audiences)
	}
}

func TestTokenRequestProvider_RequiresServiceAccount(t *testing.T) {
	p := NewTokenRequestProvider(fake.NewSimpleClientset(), logr.Discard())
	if _, err := p.GetToken(context.Background(), GetTokenOptions{ServiceAccount: ServiceAccountRef{Name: "x"}}); err == nil {
		t.Error("GetToken() expected error without a namespace")
	}
}

func fakeJWT(claims string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"RS256"}`)) + "." + enc.EncodeToString([]byte(claims)) + ".sig"
}

func TestMountedTokenProvider_GetToken(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		wantExp int64
	}{
		{"valid token", fakeJWT(`{"exp":1900000000,"iat":1800000000,"aud":["vault"]}`) + "\n", false, 1900000000},
		{"empty file", "\n", true, 0},
		{"not a jwt", "opaque-token", true, 0},
		{"bad payload", "a.!!!.c", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "token")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			info, err := NewMountedTokenProvider(path, logr.Discard()).GetToken(context.Background(), GetTokenOptions{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if info.ExpirationTime.Unix() != tt.wantExp {
				t.Errorf("ExpirationTime = %v", info.ExpirationTime)
			}
			if len(info.Audiences) != 1 || info.Audiences[0] != "vault" {
				t.Errorf("Audiences = %v", info.Audiences)
			}
		})
	}
}

type countingProvider struct {
	calls    int
	lifetime time.Duration
	issued   time.Time
}

func (c *countingProvider) GetToken(_ context.Context, opts GetTokenOptions) (*TokenInfo, error) {
	c.calls++
	return &TokenInfo{
		Token:          opts.ServiceAccount.String(),
		IssuedAt:       c.issued,
		ExpirationTime: c.issued.Add(c.lifetime),
	}, nil
}

func TestCachingProvider(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next := &countingProvider{lifetime: time.Hour, issued: issued}
	p := NewCachingProvider(next, logr.Discard())
	now := issued
	p.now = func() time.Time { return now }

	reviewer := GetTokenOptions{ServiceAccount: ServiceAccountRef{Namespace: "vault", Name: "reviewer"}}
	other := GetTokenOptions{ServiceAccount: ServiceAccountRef{Namespace: "vault", Name: "other"}}
	ctx := context.Background()

	steps := []struct {
		name      string
		at        time.Duration
		opts      GetTokenOptions
		wantCalls int
	}{
		{"first request issues", 0, reviewer, 1},
		{"fresh token is reused", 30 * time.Minute, reviewer, 1},
		{"other account issues its own", 30 * time.Minute, other, 2},
		{"past renewal threshold reissues", 45 * time.Minute, reviewer, 3},
	}

	for _, s := range steps {
		now = issued.Add(s.at)
		info, err := p.GetToken(ctx, s.opts)
		if err != nil {
			t.Fatalf("%s: GetToken() error = %v", s.name, err)
		}
		if info.Token != s.opts.ServiceAccount.String() {
			t.Errorf("%s: token = %q", s.name, info.Token)
		}
		if next.calls != s.wantCalls {
			t.Errorf("%s: provider calls = %d, want %d", s.name, next.calls, s.wantCalls)
		}
	}
}

func TestTokenInfo_NeedsRenewal(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		info TokenInfo
		at   time.Duration
		want bool
	}{
		{"just issued", TokenInfo{IssuedAt: issued, ExpirationTime: issued.Add(time.Hour)}, 0, false},
		{"before threshold", TokenInfo{IssuedAt: issued, ExpirationTime: issued.Add(time.Hour)}, 44 * time.Minute, false},
		{"at threshold", TokenInfo{IssuedAt: issued, ExpirationTime: issued.Add(time.Hour)}, 45 * time.Minute, true},
		{"expired", TokenInfo{IssuedAt: issued, ExpirationTime: issued.Add(time.Hour)}, 2 * time.Hour, true},
		{"no issue time", TokenInfo{ExpirationTime: issued.Add(time.Hour)}, 0, true},
		{"expiry before issue", TokenInfo{IssuedAt: issued, ExpirationTime: issued.Add(-time.Minute)}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.NeedsRenewal(issued.Add(tt.at)); got != tt.want {
				t.Errorf("NeedsRenewal() = %v, want %v", got, tt.want)
			}
		})
	}
}
