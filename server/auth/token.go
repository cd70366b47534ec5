// Package auth contains code to ensure players are authorized to use the server after they have logged in.
package auth

import (
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
)

type (
	// Tokenizer creates and reads tokens from http traffic.
	Tokenizer interface {
		Create(playerID player.ID) (string, error)
		ReadPlayerID(tokenString string) (player.ID, error)
	}

	// TokenizerConfig contains fields which describe a Tokenizer
	TokenizerConfig struct {
		// Key is the secret shared with the login service that issues tokens.
		// If empty, a random key is read from the KeyReader, so only tokens created by the Tokenizer can be read.
		Key []byte
		// KeyReader is used to generate token keys
		KeyReader io.Reader
		// TimeFunc is a function which should supply the current time since the unix epoch in seconds.
		// Used to set the the length of time the token is valid
		TimeFunc func() int64
		// ValidSec is the length of time the token is valid from the issuing time, in seconds
		ValidSec int64
	}

	// JwtTokenizer creates and reads JSON web tokens signed with a shared key.
	// The player id is stored in the subject ("sub") claim.
	JwtTokenizer struct {
		method jwt.SigningMethod
		key    interface{}
		TokenizerConfig
	}
)

// NewTokenizer creates a Tokenizer that signs tokens with the key
func (cfg TokenizerConfig) NewTokenizer() (*JwtTokenizer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("creating tokenizer: validation: %w", err)
	}
	key := cfg.Key
	if len(key) == 0 {
		key = make([]byte, 64)
		if _, err := io.ReadFull(cfg.KeyReader, key); err != nil {
			return nil, fmt.Errorf("generating Tokenizer key: %w", err)
		}
	}
	t := JwtTokenizer{
		method:          jwt.SigningMethodHS256,
		key:             key,
		TokenizerConfig: cfg,
	}
	return &t, nil
}

// validate ensures the configuration has no errors.
func (cfg TokenizerConfig) validate() error {
	switch {
	case len(cfg.Key) == 0 && cfg.KeyReader == nil:
		return fmt.Errorf("key or key reader required")
	case cfg.TimeFunc == nil:
		return fmt.Errorf("time func required")
	case cfg.ValidSec <= 0:
		return fmt.Errorf("positive valid seconds required")
	}
	return nil
}

// Create converts a player to a token string
func (j JwtTokenizer) Create(playerID player.ID) (string, error) {
	now := j.TimeFunc()
	claims := jwt.RegisteredClaims{
		Subject:   string(playerID),
		NotBefore: jwt.NewNumericDate(time.Unix(now, 0)),
		ExpiresAt: jwt.NewNumericDate(time.Unix(now+j.ValidSec, 0)),
	}
	token := jwt.NewWithClaims(j.method, claims)
	return token.SignedString(j.key)
}

// ReadPlayerID extracts the player id from the token string, ensuring it is currently valid.
func (j JwtTokenizer) ReadPlayerID(tokenString string) (player.ID, error) {
	var claims jwt.RegisteredClaims
	p := jwt.NewParser(jwt.WithValidMethods([]string{j.method.Alg()}), jwt.WithoutClaimsValidation())
	if _, err := p.ParseWithClaims(tokenString, &claims, j.keyFunc); err != nil {
		return "", err
	}
	now := time.Unix(j.TimeFunc(), 0)
	switch {
	case !claims.VerifyNotBefore(now, true):
		return "", fmt.Errorf("token not valid yet")
	case !claims.VerifyExpiresAt(now, true):
		return "", fmt.Errorf("token expired")
	case len(claims.Subject) == 0:
		return "", fmt.Errorf("player id missing from token")
	}
	return player.ID(claims.Subject), nil
}

// keyFunc ensures the key type (method) of the token is correct before returning the key.
func (j JwtTokenizer) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method != j.method {
		return nil, fmt.Errorf("incorrect authorization signing method")
	}
	return j.key, nil
}
