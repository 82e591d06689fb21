package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID         string `json:"user_id"`
	OrganizationID int64  `json:"organization_id"`
	Nonce          string `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}
