// Copyright 2026 The PinPoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package organization

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
)

// Source names the signal an organization was resolved from.
type Source string

const (
	SourceNone      Source = "none"
	SourceSubdomain Source = "subdomain"
	SourceSelector  Source = "selector"
	SourceClaim     Source = "claim"
	SourceDefault   Source = "default"
)

// Signals are the request inputs the resolver considers. ClaimedOrganizationID
// must come from a verified server-issued token, never from profile data.
type Signals struct {
	Host                  string
	Selector              string
	ClaimedOrganizationID string
}

// Resolution is the outcome of Resolve. Organization is nil when no
// organization applies to the request.
type Resolution struct {
	Organization *Organization
	Source       Source
}

// ResolverConfig configures host parsing and the fallback organization.
type ResolverConfig struct {
	// BaseDomain is the apex the organization subdomains live under,
	// e.g. "pinpoint.example". Empty disables subdomain resolution.
	BaseDomain string
	// DefaultSubdomain is used when no other signal names an organization.
	DefaultSubdomain string
}

// Resolver determines the organization of a request. It holds no per-request
// state; use WithMemo to make repeated resolution within one request stable.
type Resolver struct {
	repo Repository
	cfg  ResolverConfig
}

func NewResolver(repo Repository, cfg ResolverConfig) *Resolver {
	cfg.BaseDomain = normalizeHost(cfg.BaseDomain)
	cfg.DefaultSubdomain = strings.ToLower(strings.TrimSpace(cfg.DefaultSubdomain))
	return &Resolver{repo: repo, cfg: cfg}
}

// Resolve applies, in order: the visited subdomain, the explicit selector,
// the server-issued claim, then the configured default. A host that names a
// subdomain decides the request by itself; an unknown subdomain falls through
// to the default only, never to the claim, so a visited organization is never
// silently replaced by the caller's home organization.
func (r *Resolver) Resolve(ctx context.Context, sig Signals) (Resolution, error) {
	if m, ok := ctx.Value(memoKey{}).(*memo); ok {
		return m.resolve(sig, func() (Resolution, error) { return r.resolve(ctx, sig) })
	}
	return r.resolve(ctx, sig)
}

func (r *Resolver) resolve(ctx context.Context, sig Signals) (Resolution, error) {
	if label, ok := r.SubdomainFromHost(sig.Host); ok {
		org, err := r.lookupSubdomain(ctx, label)
		if err != nil {
			return Resolution{}, err
		}
		if org != nil {
			return Resolution{Organization: org, Source: SourceSubdomain}, nil
		}
		return r.fallback(ctx)
	}

	if sel := strings.ToLower(strings.TrimSpace(sig.Selector)); sel != "" {
		org, err := r.lookupSubdomain(ctx, sel)
		if err != nil {
			return Resolution{}, err
		}
		if org == nil {
			return Resolution{}, fmt.Errorf("%w: selector %q", ErrOrganizationNotFound, sel)
		}
		return Resolution{Organization: org, Source: SourceSelector}, nil
	}

	if sig.ClaimedOrganizationID != "" {
		org, err := r.repo.GetByID(ctx, sig.ClaimedOrganizationID)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Organization: org, Source: SourceClaim}, nil
	}

	return r.fallback(ctx)
}

func (r *Resolver) fallback(ctx context.Context) (Resolution, error) {
	if r.cfg.DefaultSubdomain == "" {
		return Resolution{Source: SourceNone}, nil
	}
	org, err := r.lookupSubdomain(ctx, r.cfg.DefaultSubdomain)
	if err != nil {
		return Resolution{}, err
	}
	if org == nil {
		return Resolution{Source: SourceNone}, nil
	}
	return Resolution{Organization: org, Source: SourceDefault}, nil
}

// lookupSubdomain returns nil without error when no organization matches.
func (r *Resolver) lookupSubdomain(ctx context.Context, label string) (*Organization, error) {
	org, err := r.repo.GetBySubdomain(ctx, label)
	if errors.Is(err, ErrOrganizationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up subdomain: %w", err)
	}
	return org, nil
}

// SubdomainFromHost extracts the organization label from host. Only a
// single valid, unreserved label directly under the base domain qualifies.
func (r *Resolver) SubdomainFromHost(host string) (string, bool) {
	if r.cfg.BaseDomain == "" {
		return "", false
	}
	h := normalizeHost(host)
	suffix := "." + r.cfg.BaseDomain
	if !strings.HasSuffix(h, suffix) {
		return "", false
	}
	label := strings.TrimSuffix(h, suffix)
	if strings.Contains(label, ".") || ValidateSubdomain(label) != nil {
		return "", false
	}
	return label, true
}

func normalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if hostOnly, _, err := net.SplitHostPort(h); err == nil {
		h = hostOnly
	}
	return strings.TrimSuffix(h, ".")
}

type memoKey struct{}

type memoEntry struct {
	res Resolution
	err error
}

// memo records resolutions for the lifetime of one request.
type memo struct {
	mu      sync.Mutex
	entries map[Signals]memoEntry
}

func (m *memo) resolve(sig Signals, fn func() (Resolution, error)) (Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[sig]; ok {
		return e.res, e.err
	}
	res, err := fn()
	m.entries[sig] = memoEntry{res: res, err: err}
	return res, err
}

// WithMemo returns a request context in which resolving the same signals
// twice yields the identical result. Call it once per inbound request;
// never share the returned context between requests.
func WithMemo(ctx context.Context) context.Context {
	if _, ok := ctx.Value(memoKey{}).(*memo); ok {
		return ctx
	}
	return context.WithValue(ctx, memoKey{}, &memo{entries: make(map[Signals]memoEntry)})
}
