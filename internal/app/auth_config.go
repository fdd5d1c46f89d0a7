package app

import (
	"github.com/conpanion/conpanion/internal/auth"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.Session.TTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}

	return auth.JWTConfig{
		Secret:          c.JWT.Secret,
		Issuer:          c.JWT.Issuer,
		SessionTokenTTL: ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.TTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}

	return auth.SessionConfig{SessionTTL: ttl}
}

// RememberServiceConfig converts AuthConfig into RememberService parameters.
func (c AuthConfig) RememberServiceConfig() auth.RememberConfig {
	ttl := c.Remember.TTL
	if ttl <= 0 {
		ttl = auth.DefaultRememberTTL
	}

	return auth.RememberConfig{TokenTTL: ttl}
}
