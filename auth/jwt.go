package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"nutri-planner/models"
)

const (
	contextUserKey    = "user"
	contextSessionKey = "session_id"
)

type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs sessions as HS256 bearer tokens. A token lives exactly as
// long as the session it was issued for, measured on the same clock the
// session manager uses.
type Tokens struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokens builds a signer. A nil clock means time.Now.
func NewTokens(secret string, now func() time.Time) *Tokens {
	if now == nil {
		now = time.Now
	}
	return &Tokens{
		secret: []byte(secret),
		now:    now,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation()),
	}
}

func (t *Tokens) Issue(s models.Session) (string, error) {
	claims := Claims{
		UserID: s.User.ID,
		Role:   s.User.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.User.ID,
			IssuedAt:  jwt.NewNumericDate(s.LoginAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := t.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	now := t.now()
	if !claims.VerifyExpiresAt(now, true) {
		return nil, errors.New("token is expired")
	}
	if !claims.VerifyIssuedAt(now, false) {
		return nil, errors.New("token used before issued")
	}
	return claims, nil
}

// UserLookup resolves the account and the session behind a token.
type UserLookup interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
	SessionActive(ctx context.Context, userID, sessionID string) (bool, error)
}

// AuthMiddleware admits requests carrying a valid bearer token of an active
// account. A non-empty role restricts the route to that role.
func AuthMiddleware(tokens *Tokens, users UserLookup, role models.Role, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required", "redirect": PageLogin})
			return
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil {
			log.Debug("rejected bearer token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session", "redirect": PageLogin})
			return
		}

		active, err := users.SessionActive(c.Request.Context(), claims.UserID, claims.ID)
		if err != nil || !active {
			log.Debug("token for ended session", zap.String("user_id", claims.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session", "redirect": PageLogin})
			return
		}

		user, err := users.UserByID(c.Request.Context(), claims.UserID)
		if err != nil || !user.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account unavailable", "redirect": PageLogin})
			return
		}
		if role != "" && user.Role != role {
			log.Warn("role mismatch", zap.String("user_id", user.ID), zap.String("required", string(role)))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this page", "redirect": PageLogin})
			return
		}

		c.Set(contextUserKey, *user)
		c.Set(contextSessionKey, claims.ID)
		c.Next()
	}
}

// UserFrom returns the account stored by AuthMiddleware.
func UserFrom(c *gin.Context) models.User {
	u, _ := c.Get(contextUserKey)
	user, _ := u.(models.User)
	return user
}

// SessionIDFrom returns the session id of the token admitted by AuthMiddleware.
func SessionIDFrom(c *gin.Context) string {
	return c.GetString(contextSessionKey)
}
