package httpfrontend

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	allowOriginHeader      = "Access-Control-Allow-Origin"
	allowHeadersHeader     = "Access-Control-Allow-Headers"
	allowMethodsHeader     = "Access-Control-Allow-Methods"
	controlRequestHeader   = "Access-Control-Request-Method"
	allowCredentialsHeader = "Access-Control-Allow-Credentials"
	exposeHeadersHeader    = "Access-Control-Expose-Headers"
	maxAgeHeader           = "Access-Control-Max-Age"
	headerSeparator        = ", "
)

// Cors holds the aggregator's CORS policy. The config file does not carry
// it; cmd/mcgravity always uses DefaultCors.
type Cors struct {
	AllowCredentials *bool    `yaml:"allowCredentials,omitempty"`
	AllowHeaders     []string `yaml:"allowHeaders,omitempty"`
	AllowMethods     []string `yaml:"allowMethods,omitempty"`
	AllowOrigins     []string `yaml:"allowOrigins,omitempty"`
	ExposeHeaders    []string `yaml:"exposeHeaders,omitempty"`
	MaxAge           *int64   `yaml:"maxAge,omitempty"`
}

// DefaultCors allows any origin, matching mcgravity's no-auth Non-goal: the
// aggregator does not gate browser-based MCP clients by origin.
func DefaultCors() *Cors {
	allowAll := true
	return &Cors{
		AllowCredentials: &allowAll,
		AllowHeaders:     []string{"*"},
		AllowMethods:     []string{"*"},
		AllowOrigins:     []string{"*"},
		ExposeHeaders:    []string{"*"},
	}
}

func (c *Cors) originMap() map[string]bool {
	result := make(map[string]bool, len(c.AllowOrigins))
	for _, origin := range c.AllowOrigins {
		result[origin] = true
	}
	return result
}

// Middleware wraps next with handlers that set CORS response headers
// according to c.
func (c *Cors) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.setHeaders(w, r)
		next.ServeHTTP(w, r)
	})
}

func (c *Cors) setHeaders(w http.ResponseWriter, r *http.Request) {
	if c == nil {
		return
	}
	origin := r.Header.Get("Origin")
	allowed := c.originMap()
	switch {
	case allowed["*"] && origin == "":
		w.Header().Set(allowOriginHeader, "*")
	case allowed["*"]:
		w.Header().Set(allowOriginHeader, origin)
	case origin != "" && allowed[origin]:
		w.Header().Set(allowOriginHeader, origin)
	}

	if len(c.AllowMethods) > 0 {
		w.Header().Set(allowMethodsHeader, r.Method)
	}
	if r.Method == http.MethodOptions {
		if requested := r.Header.Get(controlRequestHeader); requested != "" {
			w.Header().Set(allowMethodsHeader, requested)
		}
	}
	if len(c.AllowHeaders) > 0 {
		headers := strings.Join(c.AllowHeaders, headerSeparator)
		if headers == "*" {
			headers = "Content-Type"
		}
		w.Header().Set(allowHeadersHeader, headers)
	}
	if c.AllowCredentials != nil {
		w.Header().Set(allowCredentialsHeader, strconv.FormatBool(*c.AllowCredentials))
	}
	if c.MaxAge != nil {
		w.Header().Set(maxAgeHeader, strconv.FormatInt(*c.MaxAge, 10))
	}
	if len(c.ExposeHeaders) > 0 {
		exposed := strings.Join(c.ExposeHeaders, headerSeparator)
		if exposed == "*" {
			exposed = "Content-Type"
		}
		w.Header().Set(exposeHeadersHeader, exposed)
	}
}
