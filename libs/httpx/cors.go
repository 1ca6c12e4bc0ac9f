package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy configures cross-origin access for the public booking pages.
// An empty AllowedOrigins disables CORS handling entirely.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type corsRules struct {
	anyOrigin   bool
	origins     map[string]struct{}
	credentials bool
	methods     string
	headers     string
	exposed     string
	maxAge      string
}

func compileCORS(p CORSPolicy) corsRules {
	rules := corsRules{
		origins:     make(map[string]struct{}),
		credentials: p.AllowCredentials,
		methods:     joinTrimmed(p.AllowedMethods),
		headers:     joinTrimmed(p.AllowedHeaders),
		exposed:     joinTrimmed(p.ExposedHeaders),
	}
	for _, o := range p.AllowedOrigins {
		o = strings.ToLower(strings.TrimSpace(o))
		switch o {
		case "":
		case "*":
			rules.anyOrigin = true
		default:
			rules.origins[o] = struct{}{}
		}
	}
	if secs := int(p.MaxAge / time.Second); secs > 0 {
		rules.maxAge = strconv.Itoa(secs)
	}
	return rules
}

// allowOrigin returns the value for Access-Control-Allow-Origin, or "" when
// origin is not permitted. A wildcard is echoed back as the concrete origin
// when credentials are allowed.
func (c corsRules) allowOrigin(origin string) string {
	if _, ok := c.origins[strings.ToLower(origin)]; ok {
		return origin
	}
	if !c.anyOrigin {
		return ""
	}
	if c.credentials {
		return origin
	}
	return "*"
}

// WithCORS answers preflight requests for allowed origins and decorates their
// regular responses. Requests from other origins pass through untouched.
func WithCORS(p CORSPolicy) Middleware {
	rules := compileCORS(p)
	if !rules.anyOrigin && len(rules.origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := ""
			if origin != "" {
				allowed = rules.allowOrigin(origin)
			}
			if allowed == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", allowed)
			if rules.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				setIfNotEmpty(h, "Access-Control-Allow-Methods", rules.methods)
				setIfNotEmpty(h, "Access-Control-Allow-Headers", rules.headers)
				setIfNotEmpty(h, "Access-Control-Max-Age", rules.maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			setIfNotEmpty(h, "Access-Control-Expose-Headers", rules.exposed)
			next.ServeHTTP(w, r)
		})
	}
}

func joinTrimmed(values []string) string {
	kept := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ", ")
}

func setIfNotEmpty(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
