package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersConfig selects the protective headers sent with every response.
// Empty string fields are not sent.
type SecurityHeadersConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int // seconds
	HSTSIncludeSubdomains bool
	FrameOptionsValue     string
	ContentSecurityPolicy string
	ReferrerPolicy        string
}

// APISecurityHeadersConfig is the policy for the intake API, which returns only
// JSON and stored files. HSTS is enabled when the gateway terminates TLS itself.
func APISecurityHeadersConfig(tlsEnabled bool) SecurityHeadersConfig {
	return SecurityHeadersConfig{
		EnableHSTS:            tlsEnabled,
		HSTSMaxAge:            365 * 24 * 60 * 60,
		HSTSIncludeSubdomains: true,
		FrameOptionsValue:     "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}
}

// headers resolves the config into the fixed list of header pairs to emit.
func (cfg SecurityHeadersConfig) headers() [][2]string {
	out := [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Permitted-Cross-Domain-Policies", "none"},
		{"Cross-Origin-Resource-Policy", "same-origin"},
	}
	if cfg.EnableHSTS {
		v := fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			v += "; includeSubDomains"
		}
		out = append(out, [2]string{"Strict-Transport-Security", v})
	}
	for _, h := range [][2]string{
		{"X-Frame-Options", cfg.FrameOptionsValue},
		{"Content-Security-Policy", cfg.ContentSecurityPolicy},
		{"Referrer-Policy", cfg.ReferrerPolicy},
	} {
		if h[1] != "" {
			out = append(out, h)
		}
	}
	return out
}

// SecurityHeadersMiddleware sets the configured headers before the handler runs.
func SecurityHeadersMiddleware(cfg SecurityHeadersConfig) gin.HandlerFunc {
	hdrs := cfg.headers()
	return func(c *gin.Context) {
		for _, h := range hdrs {
			c.Header(h[0], h[1])
		}
		c.Next()
	}
}
