// Package mexc implements the MEXC spot adapter: public/private REST,
// public/private WebSocket, and HMAC-SHA256 request signing.
package mexc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"cexarb/internal/config"
)

// Signer signs REST requests with HMAC-SHA256 over the canonical
// query+timestamp string, per spec §6.1 ("HMAC-SHA256 for MEXC spot").
// Fresh timestamps are generated at the signing call site to prevent
// signature skew, never read from stale context.
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

// Sign implements httpx.Signer. MEXC signs "query+timestamp" with
// HMAC-SHA256 and sends the API key and signature as headers.
func (s *Signer) Sign(method, path, query, body string, timestamp int64) (map[string]string, error) {
	message := query
	if message != "" {
		message += "&"
	}
	message += "timestamp=" + strconv.FormatInt(timestamp, 10)

	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(message))
	sig := hex.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"X-MEXC-APIKEY": s.apiKey,
		"signature":     sig,
		"timestamp":     strconv.FormatInt(timestamp, 10),
	}, nil
}

func (s *Signer) apiKeyHeader() (string, error) {
	if s == nil || s.apiKey == "" {
		return "", fmt.Errorf("mexc: no api key configured")
	}
	return s.apiKey, nil
}
