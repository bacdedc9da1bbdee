// Package orbit provides credential rotation and sliding-window admission
// control for API connectors that fan many concurrent requests out against
// rate-limited third-party APIs.
//
// A connector hands Orbit an ordered pool of interchangeable credentials,
// each independently limited to N requests per trailing window. For every
// outgoing call Orbit picks the credential that adds the least latency:
// one with immediate spare capacity when it exists, otherwise the one whose
// window frees up soonest. No credential is ever driven past its quota, even
// under heavy concurrent load, and shutdown cancels parked callers within a
// bounded time.
//
// # Architecture
//
// Components are layered leaf-first:
//
//  1. ratelimit.SlidingWindowLimiter — per-credential admission gate tracking
//     individual grant timestamps; atomic check-and-reserve under a mutex.
//
//  2. credential.Credential — one set of API secrets (bearer token or basic
//     auth pair behind a capability interface) paired with one limiter and
//     one opaque transport handle.
//
//  3. pool.CredentialPool — ordered credentials plus a rotation cursor;
//     scoped acquisition preferring immediate capacity with soonest-available
//     fallback; bounded concurrent shutdown.
//
//  4. gate.RateLimitGate — call-site facade applying a caller-supplied
//     predicate to decide whether the pool is consulted at all.
//
// # Quick Start
//
//	cfg := config.NewPoolConfig("github-connector")
//	cfg.RateLimit.Limit = 30
//	cfg.RateLimit.WindowSeconds = 60
//	cfg.Credentials = []config.CredentialConfig{
//	    {ID: "primary", Kind: config.CredentialKindBearer, Token: os.Getenv("TOKEN_A")},
//	    {ID: "secondary", Kind: config.CredentialKindBearer, Token: os.Getenv("TOKEN_B")},
//	}
//
//	p, err := pool.New(cfg, logger.Get())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Shutdown(5 * time.Second)
//
//	g := gate.New(p, gate.PathPrefixPredicate("/api/"), logger.Get())
//
//	lease, err := g.Guard(ctx, "/api/items")
//	if err != nil {
//	    return err
//	}
//	resp, err := lease.Client().Get(url)
//
// # Key Packages
//
//	pkg/ratelimit  - Sliding-window admission control
//	pkg/credential - Credential variants and transport handles
//	pkg/pool       - Credential pool selection, rotation and shutdown
//	pkg/gate       - Per-call throttling facade
//	pkg/fetch      - Gated cursor-following page fetcher
//	pkg/config     - Pool configuration and YAML loading
package orbit
