package utils

import (
	"errors"
	"strings"
)

var ErrMissingAuth = errors.New("authentication data missing")

// TokenFromHandshake extracts the bearer token a socket.io client sends in
// its handshake auth object as {"authorization": "Bearer <jwt>"}.
func TokenFromHandshake(auth any) (string, error) {
	authData, ok := auth.(map[string]interface{})
	if !ok {
		return "", ErrMissingAuth
	}

	for _, field := range []string{"authorization", "Authorization", "token"} {
		raw, ok := authData[field].(string)
		if !ok {
			continue
		}
		token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
		if token != "" {
			return token, nil
		}
	}
	return "", ErrMissingAuth
}
