package service

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
)

var (
	// ErrSecretNotConfigured means no signing key is available; every webhook is refused
	ErrSecretNotConfigured = errors.New("webhook secret not configured")
	// ErrMissingSignature means the request carried no signature header
	ErrMissingSignature = errors.New("missing signature")
	// ErrInvalidSignature means the signature does not match the body
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidPayload means the verified body is not a usable notification
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrEmptyCart means a successful charge carried no cart items
	ErrEmptyCart = errors.New("no cart items in metadata")
)

// SignPayload returns the hex HMAC-SHA512 of body keyed by secret, as sent in
// the x-paystack-signature header.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the raw, unparsed body.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return ErrSecretNotConfigured
	}
	if signature == "" {
		return ErrMissingSignature
	}
	if !hmac.Equal([]byte(signature), []byte(SignPayload(secret, body))) {
		return ErrInvalidSignature
	}
	return nil
}
