package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateApp(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateGateway(cfg, ve)
	validateAudit(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateApp(cfg *Config, ve *ValidationError) {
	switch cfg.App.Env {
	case "dev", "prod":
	default:
		ve.Add("app.env %q must be \"dev\" or \"prod\"", cfg.App.Env)
	}
	if strings.TrimSpace(cfg.App.Name) == "" {
		ve.Add("app.name must not be empty")
	}
}

var validLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (valid: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (valid: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is invalid (valid: noop, stdout)", cfg.Tracer.Exporter)
	}
}

var validRoles = map[string]bool{"editor": true, "viewer": true}

func validateGateway(cfg *Config, ve *ValidationError) {
	g := cfg.Gateway
	if !g.Enabled {
		return
	}
	if g.Addr == "" {
		ve.Add("gateway.addr is required when gateway is enabled")
	} else if _, _, err := net.SplitHostPort(g.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port", g.Addr)
	}

	switch g.Auth.Type {
	case "", "none":
	case "static":
		if len(g.Auth.Tokens) == 0 {
			ve.Add("gateway.auth.tokens must not be empty when auth type is static")
		}
		for i, tok := range g.Auth.Tokens {
			if tok.Token == "" {
				ve.Add("gateway.auth.tokens[%d].token is required", i)
			}
			for _, role := range tok.Roles {
				if !validRoles[role] {
					ve.Add("gateway.auth.tokens[%d].roles: unknown role %q (valid: editor, viewer)", i, role)
				}
			}
		}
	default:
		ve.Add("gateway.auth.type %q is invalid (valid: none, static)", g.Auth.Type)
	}

	if g.RateLimit.RequestsPerSecond < 0 {
		ve.Add("gateway.rate_limit.requests_per_second must be >= 0")
	}
	if g.RateLimit.RequestsPerSecond > 0 && g.RateLimit.Burst <= 0 {
		ve.Add("gateway.rate_limit.burst must be > 0 when rate limiting is enabled")
	}
}

func validateAudit(cfg *Config, ve *ValidationError) {
	if !cfg.Audit.Enabled {
		return
	}
	switch cfg.Audit.Backend {
	case "", "jsonl", "sqlite":
	default:
		ve.Add("audit.backend %q must be \"jsonl\" or \"sqlite\"", cfg.Audit.Backend)
	}
	if cfg.Audit.MaxAge < 0 {
		ve.Add("audit.max_age must be >= 0")
	}
	if _, err := parseSize(cfg.Audit.MaxSize); err != nil {
		ve.Add("audit.max_size %q is invalid: %v", cfg.Audit.MaxSize, err)
	}
}
