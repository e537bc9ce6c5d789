package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/pkg/identity"
)

const tokenIssuer = "coopmart-api"

// JWTClaims represents the claims in a JWT token
type JWTClaims struct {
	UserID   uuid.UUID     `json:"user_id"`
	Username string        `json:"username"`
	Role     identity.Role `json:"role"`
	BranchID *uint         `json:"branch_id,omitempty"`
	MemberNo string        `json:"member_no,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into the caller identity
func (c *JWTClaims) Principal() identity.Principal {
	return identity.Principal{
		UserID:   c.UserID,
		Username: c.Username,
		Role:     c.Role,
		BranchID: c.BranchID,
		MemberNo: c.MemberNo,
	}
}

// JWTManager handles JWT token generation and validation
type JWTManager struct {
	secretKey         []byte
	accessTokenExpiry time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, accessExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:         []byte(secret),
		accessTokenExpiry: accessExpiry,
	}
}

// GenerateAccessToken signs a token for the given principal
func (m *JWTManager) GenerateAccessToken(p identity.Principal) (string, error) {
	if !p.Role.Valid() {
		return "", errors.New("unknown role")
	}
	now := time.Now()
	claims := &JWTClaims{
		UserID:   p.UserID,
		Username: p.Username,
		Role:     p.Role,
		BranchID: p.BranchID,
		MemberNo: p.MemberNo,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   p.UserID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ValidateAccessToken validates an access token and returns the claims
func (m *JWTManager) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	}, jwt.WithIssuer(tokenIssuer))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.Role.Valid() {
		return nil, errors.New("invalid role in token")
	}
	if claims.Role == identity.RoleRep && claims.BranchID == nil {
		return nil, errors.New("rep token without branch scope")
	}

	return claims, nil
}
