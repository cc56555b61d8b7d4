package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// maxTTL caps token lifetime regardless of configuration. Tokens are minted
// by the REST collaborator and presented once at the websocket handshake.
const maxTTL = 15 * time.Minute

// Claims carried by a presence token: enough to place an agent in a room
// without a user lookup.
type Claims struct {
	AgentID   uuid.UUID `json:"agent_id"`
	Name      string    `json:"name"`
	BodyColor string    `json:"body_color"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 bearer tokens with a process-wide
// shared secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 || ttl > maxTTL {
		ttl = maxTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}, nil
}

// GenerateToken mints a short-lived token for an agent.
func (tm *TokenManager) GenerateToken(agentID uuid.UUID, name, bodyColor string) (string, error) {
	now := time.Now()
	claims := Claims{
		AgentID:   agentID,
		Name:      name,
		BodyColor: bodyColor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "plaza",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ValidateToken verifies signature and expiry and returns the claims.
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.AgentID == uuid.Nil {
		return nil, errors.New("token has no agent id")
	}
	return claims, nil
}
