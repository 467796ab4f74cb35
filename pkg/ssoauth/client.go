// Package ssoauth validates admin-scope bearer tokens issued by an
// external identity provider: fetch the provider's JWKS once, cache the
// RSA public key, and verify RS256 tokens against it.
package ssoauth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type Config struct {
	IssuerURL string
	JWKSPath  string
}

type Client struct {
	cfg       Config
	logger    *zap.Logger
	mu        sync.RWMutex
	publicKey *rsa.PublicKey
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	key, err := c.cachedKey()
	if err != nil {
		return nil, fmt.Errorf("fetch public key: %w", err)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims format")
	}
	if exp, ok := claims["exp"].(float64); ok && time.Now().Unix() > int64(exp) {
		return nil, fmt.Errorf("token expired")
	}
	return claims, nil
}

func (c *Client) cachedKey() (*rsa.PublicKey, error) {
	c.mu.RLock()
	key := c.publicKey
	c.mu.RUnlock()
	if key != nil {
		return key, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publicKey != nil {
		return c.publicKey, nil
	}
	if err := c.fetchPublicKey(); err != nil {
		return nil, err
	}
	return c.publicKey, nil
}

func (c *Client) fetchPublicKey() error {
	url := c.cfg.IssuerURL + c.cfg.JWKSPath
	c.logger.Info("fetching JWKS", zap.String("url", url))

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected jwks status: %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	for _, key := range jwks.Keys {
		if key.Kty != "RSA" || key.Use != "sig" {
			continue
		}
		pub, err := parseJWK(key.N, key.E)
		if err != nil {
			c.logger.Warn("skipping unparsable JWKS key", zap.String("kid", key.Kid), zap.Error(err))
			continue
		}
		c.publicKey = pub
		return nil
	}
	return fmt.Errorf("no suitable RSA signing key found")
}

func parseJWK(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decode e: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
