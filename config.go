package accounts

// SessionConfig is a plain-struct Config implementation for apps that
// don't carry their own config container.
type SessionConfig struct {
	SigningKey      string
	TokenExpiration int
	Issuer          string
	Audience        []string
}

func (c SessionConfig) GetSigningKey() string {
	return c.SigningKey
}

// GetTokenExpiration is the session lifetime in hours.
func (c SessionConfig) GetTokenExpiration() int {
	if c.TokenExpiration <= 0 {
		return 24
	}
	return c.TokenExpiration
}

func (c SessionConfig) GetIssuer() string {
	return c.Issuer
}

func (c SessionConfig) GetAudience() []string {
	return c.Audience
}

var _ Config = SessionConfig{}
