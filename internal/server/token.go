package server

import (
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	userIdClaim = "sub"
	connIdClaim = "sid"
	iatClaim    = "iat"
)

// newSessionToken signs a token naming the user and the connection that
// holds its session. It is stored on the user record while the session is
// live and lets a stale teardown tell that a newer session took over.
func newSessionToken(key []byte, userId, connId string, issuedAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		connIdClaim: connId,
		iatClaim:    issuedAt.Unix(),
	})

	return token.SignedString(key)
}
