package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/philippspitzley/auctioneer/internal/models"
)

const issuer = "auctioneer"

type Claims struct {
	Role models.Role `json:"role"`

	jwt.RegisteredClaims
}

// Identity returns the actor the token was issued to
func (c Claims) Identity() models.Identity {
	return models.Identity{UserID: c.Subject, IsAdmin: c.Role == models.RoleAdmin}
}

type JWT struct {
	Secret   []byte
	TokenTTL time.Duration
}

// Issue signs a token for user
func (j JWT) Issue(user models.User) (token string, expiresAt time.Time, err error) {
	return j.Sign(Claims{
		Role:             user.Role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.UserID},
	})
}

func (j JWT) Sign(claims Claims) (token string, expiresAt time.Time, err error) {
	if len(j.Secret) == 0 {
		return "", time.Time{}, errors.New("auth: empty signing secret")
	}
	now := time.Now().UTC()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.NotBefore == nil {
		claims.NotBefore = jwt.NewNumericDate(now.Add(-5 * time.Second))
	}
	if claims.ExpiresAt == nil {
		expiresAt = now.Add(j.TokenTTL)
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	} else {
		expiresAt = claims.ExpiresAt.Time
	}
	if claims.Issuer == "" {
		claims.Issuer = issuer
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, expiresAt, nil
}

func (j JWT) Verify(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.Secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return Claims{}, err
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || c.Subject == "" {
		return Claims{}, errors.New("invalid token")
	}
	return *c, nil
}
