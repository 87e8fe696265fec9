package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"

	"openshelf/internal/platform/logger"
)

// robotsGate checks robots.txt before each request, caching one parsed
// policy per host. Hosts whose policy cannot be fetched or parsed are
// treated as allowing everything
type robotsGate struct {
	client    *http.Client
	userAgent string

	mu     sync.Mutex
	byHost map[string]*robotstxt.Group
}

func newRobotsGate(client *http.Client, userAgent string) *robotsGate {
	return &robotsGate{
		client:    client,
		userAgent: userAgent,
		byHost:    make(map[string]*robotstxt.Group),
	}
}

// allowed reports whether the policy for rawURL's host permits fetching it
func (g *robotsGate) allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	g.mu.Lock()
	group, ok := g.byHost[u.Host]
	g.mu.Unlock()
	if !ok {
		group = g.fetchGroup(ctx, u)
		g.mu.Lock()
		g.byHost[u.Host] = group
		g.mu.Unlock()
	}
	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

// fetchGroup loads and parses the host's robots.txt.
// nil means no restrictions
func (g *robotsGate) fetchGroup(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)
	resp, err := g.client.Do(req)
	if err != nil {
		logger.C(ctx).Debug().Str("host", u.Host).Err(err).Msg("robots fetch failed, allowing")
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}
	robots, err := robotstxt.FromBytes(raw)
	if err != nil {
		logger.C(ctx).Debug().Str("host", u.Host).Err(err).Msg("robots parse failed, allowing")
		return nil
	}
	return robots.FindGroup(g.userAgent)
}
