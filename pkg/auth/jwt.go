package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryFromJWT reads the exp claim of an access token without verifying
// its signature. The token endpoint is trusted; the claim is only used to
// schedule the next refresh.
func expiryFromJWT(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
