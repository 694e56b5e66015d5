package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureVerifier checks the provider's signed-payload header
// (t=<unix>,v1=<hmac-sha256 of "<t>.<body>">). A nil verifier disables
// checking (local development without a webhook secret).
type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
}

func NewSignatureVerifier(secret string, tolerance time.Duration) *SignatureVerifier {
	if secret == "" {
		return nil
	}
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &SignatureVerifier{secret: []byte(secret), tolerance: tolerance}
}

var (
	errMissingSignature = errors.New("missing signature header")
	errStaleTimestamp   = errors.New("signature timestamp outside tolerance")
	errNoMatch          = errors.New("no matching v1 signature")
)

func (v *SignatureVerifier) Verify(header string, body []byte, now time.Time) error {
	if header == "" {
		return errMissingSignature
	}

	var ts int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return errMissingSignature
			}
			ts = parsed
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if ts == 0 || len(candidates) == 0 {
		return errMissingSignature
	}

	signedAt := time.Unix(ts, 0)
	if now.Sub(signedAt) > v.tolerance || signedAt.Sub(now) > v.tolerance {
		return errStaleTimestamp
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return errNoMatch
}
