package netsuke

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// NetworkPolicy gates every fetch() call: a scheme allowlist plus an
// optional host allow/block list, built via the AllowScheme, AllowHosts,
// DenyHosts, DenyAllHosts, and AllowAllHosts methods below. The
// zero-value-avoidance constructor is NewNetworkPolicy, which seeds the
// policy the same way the ground-truth implementation's Default impl does:
// HTTPS only, with no host allowlist active (so any host is reachable until
// AllowHosts or DenyAllHosts activates one) (spec.md §4.5.4; original_source
// src/stdlib/network/policy/mod.rs, NetworkPolicy::https_only /
// impl Default).
type NetworkPolicy struct {
	schemes    map[string]bool
	allowHosts map[string]bool
	blockHosts map[string]bool
	// hostAllowlistActive mirrors the original's allowed_hosts: Option<...>:
	// false means "no allowlist" (any host not blocked is reachable, the
	// None case); true means only hosts matching allowHosts are reachable.
	hostAllowlistActive bool
}

// NewNetworkPolicy returns the default policy: HTTPS allowed, every host
// reachable until AllowHosts or DenyAllHosts activates an allowlist.
func NewNetworkPolicy() NetworkPolicy {
	return NetworkPolicy{
		schemes:    map[string]bool{"https": true},
		blockHosts: map[string]bool{},
	}
}

func (p NetworkPolicy) AllowScheme(scheme string) NetworkPolicy {
	p.schemes = cloneSet(p.schemes)
	p.schemes[strings.ToLower(scheme)] = true
	return p
}

// AllowHosts activates the host allowlist (if not already active) and adds
// hosts to it. Once active, any host not matched by the allowlist is
// rejected.
func (p NetworkPolicy) AllowHosts(hosts ...string) NetworkPolicy {
	p.allowHosts = cloneSet(p.allowHosts)
	p.hostAllowlistActive = true
	for _, h := range hosts {
		p.allowHosts[strings.ToLower(h)] = true
	}
	return p
}

func (p NetworkPolicy) DenyHosts(hosts ...string) NetworkPolicy {
	p.blockHosts = cloneSet(p.blockHosts)
	for _, h := range hosts {
		p.blockHosts[strings.ToLower(h)] = true
	}
	return p
}

// DenyAllHosts activates the host allowlist with nothing in it, discarding
// any patterns added by an earlier AllowHosts call, so every host is
// rejected until a later AllowHosts adds entries.
func (p NetworkPolicy) DenyAllHosts() NetworkPolicy {
	p.allowHosts = map[string]bool{}
	p.hostAllowlistActive = true
	return p
}

// AllowAllHosts deactivates the host allowlist entirely, reverting to the
// default "any host reachable" behaviour. DenyHosts still applies on top.
func (p NetworkPolicy) AllowAllHosts() NetworkPolicy {
	p.hostAllowlistActive = false
	p.allowHosts = nil
	return p
}

func cloneSet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// check validates a request URL against the policy, returning a typed
// StdlibError on the first violation.
func (p NetworkPolicy) check(scheme, host string) error {
	if !p.schemes[strings.ToLower(scheme)] {
		return &StdlibError{Kind: StdlibNetworkPolicy, Helper: "fetch", Reason: ReasonSchemeNotAllowed}
	}
	if host == "" {
		return &StdlibError{Kind: StdlibNetworkPolicy, Helper: "fetch", Reason: ReasonMissingHost}
	}
	lower := strings.ToLower(host)
	if hostSetMatches(p.blockHosts, lower) {
		return &StdlibError{Kind: StdlibNetworkPolicy, Helper: "fetch", Reason: ReasonHostBlocked}
	}
	if p.hostAllowlistActive && !hostSetMatches(p.allowHosts, lower) {
		return &StdlibError{Kind: StdlibNetworkPolicy, Helper: "fetch", Reason: ReasonHostNotAllowlisted}
	}
	return nil
}

// hostSetMatches reports whether host satisfies any pattern in set, where
// a pattern is either an exact hostname or a "*.domain" wildcard matching
// any strict subdomain of domain (spec.md §4.5.4).
func hostSetMatches(set map[string]bool, host string) bool {
	if set[host] {
		return true
	}
	for pattern := range set {
		suffix, ok := strings.CutPrefix(pattern, "*.")
		if !ok {
			continue
		}
		if strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

const (
	fetchConnectTimeout = 10 * time.Second
	fetchIOTimeout      = 30 * time.Second
	fetchOverallTimeout = 60 * time.Second
)

// globalFetch implements `fetch(url, cache=false)`: an HTTP GET subject to
// NetworkPolicy and three layered timeouts — connect, per-read/write, and
// overall — plus a response body cap (spec.md §4.5.4). With cache=true, the
// response body is memoised under <workspace>/.netsuke/fetch, keyed by
// sha256(url), so repeated renders of the same manifest don't repeat the
// network round trip.
func (e *Env) globalFetch(rawURL string, cache bool) (string, error) {
	e.markImpure()

	scheme, host, err := splitURL(rawURL)
	if err != nil {
		return "", &StdlibError{Kind: StdlibHTTP, Helper: "fetch", Operation: "parse url", Path: rawURL, Err: err}
	}
	if err := e.policy.check(scheme, host); err != nil {
		return "", err
	}

	cacheKey := fmt.Sprintf("%x", sha256.Sum256([]byte(rawURL)))
	cacheDir := filepath.Join(e.workspaceRoot, ".netsuke", "fetch")
	cachePath := filepath.Join(cacheDir, cacheKey)

	if cache {
		if data, err := os.ReadFile(cachePath); err == nil {
			return string(data), nil
		}
	}

	body, err := e.doFetch(rawURL)
	if err != nil {
		return "", err
	}

	if cache {
		if err := cacheFetchResult(cacheDir, cachePath, body); err != nil {
			return "", err
		}
	}
	return body, nil
}

func (e *Env) doFetch(rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchOverallTimeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: fetchConnectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: fetchIOTimeout,
		TLSHandshakeTimeout:   fetchConnectTimeout,
	}
	client := &http.Client{Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &StdlibError{Kind: StdlibHTTP, Helper: "fetch", Operation: "build request", Path: rawURL, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &StdlibError{Kind: StdlibHTTP, Helper: "fetch", Operation: "do", Path: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &StdlibError{Kind: StdlibHTTP, Helper: "fetch", Operation: "status", Path: rawURL,
			Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	limited := io.LimitReader(resp.Body, e.budgets.FetchMaxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return "", &StdlibError{Kind: StdlibHTTP, Helper: "fetch", Operation: "read body", Path: rawURL, Err: err}
	}
	if int64(len(data)) > e.budgets.FetchMaxBytes {
		return "", &StdlibError{Kind: StdlibOutputLimit, Helper: "fetch", Path: rawURL,
			Err: fmt.Errorf("response exceeded %d bytes", e.budgets.FetchMaxBytes)}
	}
	return string(data), nil
}

// cacheFetchResult writes body under cacheDir, rejecting any cacheKey
// component that would escape the directory (it never should, being a hex
// digest, but the guard keeps the capability boundary explicit rather than
// implied by sha256's output alphabet).
func cacheFetchResult(cacheDir, cachePath string, body string) error {
	if strings.Contains(filepath.Base(cachePath), "..") {
		return &StdlibError{Kind: StdlibInvalidCachePath, Helper: "fetch", Path: cachePath,
			Err: fmt.Errorf("invalid cache path")}
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return &StdlibError{Kind: StdlibIO, Helper: "fetch", Operation: "mkdir", Path: cacheDir, Err: err}
	}
	if err := os.WriteFile(cachePath, []byte(body), 0o644); err != nil {
		return &StdlibError{Kind: StdlibIO, Helper: "fetch", Operation: "write cache", Path: cachePath, Err: err}
	}
	return nil
}

func splitURL(rawURL string) (scheme, host string, err error) {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return "", "", fmt.Errorf("missing scheme")
	}
	scheme = rawURL[:idx]
	rest := rawURL[idx+3:]
	if slash := strings.IndexAny(rest, "/?#"); slash >= 0 {
		rest = rest[:slash]
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	host = rest
	if colon := strings.LastIndex(host, ":"); colon >= 0 && !strings.Contains(host, "]") {
		host = host[:colon]
	}
	return scheme, host, nil
}
