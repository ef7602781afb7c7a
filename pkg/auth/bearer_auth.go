package auth

import (
	"net/http"

	"github.com/saturnines/ants-tap/pkg/errors"
)

// BearerAuth implements the interface for Bearer token authentication
type BearerAuth struct {
	Token string // The bearer token
}

// NewBearerAuth creates a new bearer token authentication handler
func NewBearerAuth(token string) *BearerAuth {
	return &BearerAuth{
		Token: token,
	}
}

// ApplyAuth adds the Bearer token to the Authorization header
func (b *BearerAuth) ApplyAuth(req *http.Request) error {
	if b.Token == "" {
		return errors.WrapError(
			ErrMissingToken,
			errors.ErrAuthentication,
			"apply bearer auth",
		)
	}

	req.Header.Set("Authorization", "Bearer "+b.Token)

	return nil
}

// String returns a string representation of this auth method for testing
func (b *BearerAuth) String() string {
	// There is no need to actually put the actual token
	return "BearerAuth(token: [REDACTED])"
}
