package ports

import "errors"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// ManagerClaims identifies the manager behind a bearer token
type ManagerClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// TokenVerifier validates bearer tokens issued by the login service
type TokenVerifier interface {
	Verify(token string) (*ManagerClaims, error)
}
