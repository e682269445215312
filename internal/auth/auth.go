// internal/auth/auth.go
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// Config holds authentication configuration for the mutating config
// endpoints. When no API keys and no users are configured, authentication
// is disabled (single-user Pi deployments).
type Config struct {
	JWTSecret     string   `mapstructure:"jwt_secret"`
	JWTExpiration int      `mapstructure:"jwt_expiration"` // minutes
	APIKeys       []string `mapstructure:"api_keys"`
	AllowedUsers  []User   `mapstructure:"users"`
}

type User struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// Manager handles token issuance and request authentication.
type Manager struct {
	config Config
}

// Claims represents JWT claims.
type Claims struct {
	Username string `json:"username"`
	jwt.StandardClaims
}

func NewManager(config Config) *Manager {
	return &Manager{config: config}
}

// Enabled reports whether any credentials are configured at all.
func (m *Manager) Enabled() bool {
	return len(m.config.APIKeys) > 0 || len(m.config.AllowedUsers) > 0
}

// GenerateJWT creates a new token for an authenticated user.
func (m *Manager) GenerateJWT(username string) (string, error) {
	expirationTime := time.Now().Add(time.Duration(m.config.JWTExpiration) * time.Minute)

	claims := &Claims{
		Username: username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
			IssuedAt:  time.Now().Unix(),
			Issuer:    "moisture-monitor",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.JWTSecret))
}

// ValidateJWT parses and verifies a token.
func (m *Manager) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ValidateAPIKey checks the provided API key against the configured set.
func (m *Manager) ValidateAPIKey(apiKey string) bool {
	for _, validKey := range m.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
			return true
		}
	}
	return false
}

// AuthenticateUser validates a username/password pair against the bcrypt
// hashes in the config.
func (m *Manager) AuthenticateUser(username, password string) error {
	for _, user := range m.config.AllowedUsers {
		if user.Username == username {
			return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
		}
	}
	return errors.New("user not found")
}

// HashPassword creates a bcrypt hash from a password. Used by deploy
// tooling to fill the users section of config.yaml.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

type contextKey string

const usernameKey contextKey = "username"

// RequireAuth accepts either a Bearer JWT or an X-API-Key header. With no
// credentials configured the middleware passes everything through.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			if m.ValidateAPIKey(apiKey) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}
		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}
		claims, err := m.ValidateJWT(bearerToken[1])
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
