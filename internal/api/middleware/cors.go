package middleware

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/tracing"
)

// AnyOrigin in an origin list lets every browser origin in
const AnyOrigin = "*"

const preflightMaxAge = 12 * time.Hour

// OriginPolicy decides which browser origins may call the API and attach
// websocket hosts. Entries are exact origins such as
// "https://editor.example.com" or subdomain patterns such as
// "https://*.example.com".
type OriginPolicy struct {
	any      bool
	exact    map[string]struct{}
	patterns []originPattern
}

type originPattern struct {
	prefix string // scheme://
	suffix string // .example.com[:port]
}

func (p originPattern) match(origin string) bool {
	if !strings.HasPrefix(origin, p.prefix) || !strings.HasSuffix(origin, p.suffix) {
		return false
	}
	label := origin[len(p.prefix) : len(origin)-len(p.suffix)]
	return label != "" && !strings.ContainsAny(label, "/:@")
}

// ParseOrigins builds a policy from configured origins. Blank entries are
// ignored; a list with nothing else, or one containing AnyOrigin, allows
// every origin.
func ParseOrigins(origins []string) (*OriginPolicy, error) {
	p := &OriginPolicy{exact: make(map[string]struct{})}

	for _, raw := range origins {
		origin := normalizeOrigin(raw)
		switch {
		case origin == "":
			continue
		case origin == AnyOrigin:
			p.any = true
			continue
		}

		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" ||
			u.Path != "" || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
			return nil, fmt.Errorf("invalid CORS origin %q: want scheme://host[:port]", raw)
		}

		host := u.Host
		switch n := strings.Count(host, "*"); {
		case n == 0:
			p.exact[origin] = struct{}{}
		case n == 1 && strings.HasPrefix(host, "*.") && len(host) > 2:
			p.patterns = append(p.patterns, originPattern{
				prefix: u.Scheme + "://",
				suffix: host[1:],
			})
		default:
			return nil, fmt.Errorf("invalid CORS origin %q: a wildcard may only replace the leftmost label", raw)
		}
	}

	if len(p.exact) == 0 && len(p.patterns) == 0 {
		p.any = true
	}
	return p, nil
}

// AllowsAny reports whether every origin is accepted
func (p *OriginPolicy) AllowsAny() bool {
	return p.any
}

// Allows reports whether origin may make cross-origin requests
func (p *OriginPolicy) Allows(origin string) bool {
	if p.any {
		return true
	}
	origin = normalizeOrigin(origin)
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, pattern := range p.patterns {
		if pattern.match(origin) {
			return true
		}
	}
	return false
}

// CheckOrigin is a websocket upgrade check. Requests without an Origin
// header come from devices rather than browsers and are accepted.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || p.Allows(origin)
}

// CORS answers preflights and rejects disallowed origins with 403
func CORS(policy *OriginPolicy) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Accept",
			"Origin",
			"Cache-Control",
			"X-Requested-With",
			tracing.RequestIDHeader,
		},
		ExposeHeaders:   []string{"Content-Length", "Retry-After", tracing.RequestIDHeader},
		AllowWebSockets: true,
		MaxAge:          preflightMaxAge,
	}
	if policy == nil || policy.AllowsAny() {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOriginFunc = policy.Allows
	}
	return cors.New(cfg)
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}
