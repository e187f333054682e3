package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// renewWindow is how close to expiry a token gets before a fresh one is
// returned in the X-New-Token header.
const renewWindow = 24 * time.Hour

// IssueToken signs a staff session token.
func IssueToken(secret []byte, ttl time.Duration, uid uint, email string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":   uid,
		"email": email,
		"exp":   time.Now().Add(ttl).Unix(),
	}).SignedString(secret)
}

func JWTAuth(secret []byte, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		token, err := jwt.Parse(auth[7:], func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		claims := token.Claims.(jwt.MapClaims)
		uid, ok1 := claims["uid"].(float64)
		email, ok2 := claims["email"].(string)
		if !ok1 || !ok2 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("user_id", uint(uid))
		c.Set("user_email", email)

		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			if time.Until(exp.Time) < renewWindow {
				if renewed, err := IssueToken(secret, ttl, uint(uid), email); err == nil {
					c.Header("X-New-Token", renewed)
				}
			}
		}

		c.Next()
	}
}
