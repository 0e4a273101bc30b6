// Package gateio implements the Gate.io adapters: spot and perpetual/delivery
// futures, sharing HMAC-SHA512 request signing, REST scaffolding, and a
// common {time, channel, event, payload, auth?} WebSocket envelope (spec
// §6.1's "HMAC-SHA512 for Gate.io").
package gateio

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"

	"cexarb/internal/config"
)

// Signer signs REST requests with Gate.io's HMAC-SHA512 scheme: the message
// is "{method}\n{path}\n{query}\n{sha512(body)}\n{timestamp}", signed with
// the secret key, sent as the SIGN header alongside KEY and Timestamp.
type Signer struct {
	apiKey    string
	secretKey string
}

// NewSigner builds a Signer from exchange credentials, or nil if the
// exchange has no credentials configured (public-only usage).
func NewSigner(creds *config.CredentialsConfig) *Signer {
	if creds == nil || creds.ApiKey == "" || creds.SecretKey == "" {
		return nil
	}
	return &Signer{apiKey: creds.ApiKey, secretKey: creds.SecretKey}
}

// Sign implements httpx.Signer.
func (s *Signer) Sign(method, path, query, body string, timestamp int64) (map[string]string, error) {
	ts := strconv.FormatInt(timestamp/1000, 10)

	bodyHash := sha512.Sum512([]byte(body))
	bodyHashHex := hex.EncodeToString(bodyHash[:])

	message := method + "\n" + path + "\n" + query + "\n" + bodyHashHex + "\n" + ts

	mac := hmac.New(sha512.New, []byte(s.secretKey))
	mac.Write([]byte(message))
	sig := hex.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"KEY":       s.apiKey,
		"SIGN":      sig,
		"Timestamp": ts,
	}, nil
}

func (s *Signer) apiKeyHeader() (string, error) {
	if s == nil || s.apiKey == "" {
		return "", fmt.Errorf("gateio: no api key configured")
	}
	return s.apiKey, nil
}
