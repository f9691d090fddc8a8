// Package lnurl resolves the LNURL-pay/LNURL-withdraw identifiers a
// ToBTCLN/FromBTCLN swap may be initiated from (spec §3 "LNURL",
// supplementing the distilled spec with the original's full decode
// surface: bech32 LNURL1..., bare lnurlp://lnurlw:// URLs, and
// lightning-address user@domain).
package lnurl

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// Kind distinguishes an LNURL-pay request from an LNURL-withdraw request.
type Kind string

const (
	KindPay      Kind = "pay"
	KindWithdraw Kind = "withdraw"
)

// Decode resolves an LNURL identifier in any of its three source forms
// to the callback URL the client fetches next (spec §3 "LNURL decode").
func Decode(identifier string) (callbackURL string, kind Kind, err error) {
	switch {
	case strings.HasPrefix(strings.ToUpper(identifier), "LNURL1"):
		return decodeBech32(identifier)
	case strings.HasPrefix(identifier, "lnurlp://"):
		return rewriteScheme(identifier, "lnurlp://"), KindPay, nil
	case strings.HasPrefix(identifier, "lnurlw://"):
		return rewriteScheme(identifier, "lnurlw://"), KindWithdraw, nil
	case strings.Contains(identifier, "@"):
		return decodeLightningAddress(identifier)
	default:
		return "", "", fmt.Errorf("lnurl: unrecognized identifier format %q", identifier)
	}
}

func decodeBech32(identifier string) (string, Kind, error) {
	hrp, data, err := bech32.Decode(identifier)
	if err != nil {
		return "", "", fmt.Errorf("lnurl: failed to decode bech32 identifier: %w", err)
	}
	if hrp != "lnurl" {
		return "", "", fmt.Errorf("lnurl: unexpected human-readable part %q", hrp)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", "", fmt.Errorf("lnurl: failed to convert bech32 payload: %w", err)
	}
	url := string(converted)
	return url, kindFromURL(url), nil
}

func rewriteScheme(identifier, prefix string) string {
	rest := strings.TrimPrefix(identifier, prefix)
	if strings.HasSuffix(rest, ".onion") || strings.Contains(rest, ".onion/") {
		return "http://" + rest
	}
	return "https://" + rest
}

// decodeLightningAddress resolves user@domain to its well-known
// LNURL-pay endpoint (LUD-16), using .onion -> http, else https.
func decodeLightningAddress(identifier string) (string, Kind, error) {
	parts := strings.SplitN(identifier, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("lnurl: malformed lightning address %q", identifier)
	}
	user, domain := parts[0], parts[1]

	scheme := "https"
	if strings.HasSuffix(domain, ".onion") {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/.well-known/lnurlp/%s", scheme, domain, user), KindPay, nil
}

func kindFromURL(url string) Kind {
	if strings.Contains(url, "withdraw") || strings.Contains(url, "lnurlw") {
		return KindWithdraw
	}
	return KindPay
}

// PayRequest is the response body fetched from an LNURL-pay callback
// URL, carrying the amount bounds and optional success action metadata.
type PayRequest struct {
	Callback    string `json:"callback"`
	MinSendable int64  `json:"minSendable"` // millisatoshis
	MaxSendable int64  `json:"maxSendable"`
	Metadata    string `json:"metadata"`
	Tag         string `json:"tag"`
}

// CheckAmountBounds validates a requested millisatoshi amount against a
// fetched PayRequest's advertised range.
func CheckAmountBounds(req *PayRequest, amountMsat int64) error {
	if amountMsat < req.MinSendable || amountMsat > req.MaxSendable {
		return fmt.Errorf("lnurl: amount %d msat outside bounds [%d,%d]", amountMsat, req.MinSendable, req.MaxSendable)
	}
	return nil
}

// SuccessAction is the LUD-09 success action returned alongside an
// LNURL-pay invoice.
type SuccessAction struct {
	Tag         string `json:"tag"`
	Message     string `json:"message,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Ciphertext  string `json:"ciphertext,omitempty"`
	IV          string `json:"iv,omitempty"`
}

const (
	maxMessageLen     = 144
	maxCiphertextB64  = 4096
	maxDescriptionLen = 144
)

// ValidateSuccessAction enforces the LUD-09 bounds and, for a url-tag
// action, that the callback host matches the originating pay request's
// domain (preventing a malicious LP from redirecting the client to an
// unrelated host after payment).
func ValidateSuccessAction(sa *SuccessAction, payDomain string) error {
	switch sa.Tag {
	case "message":
		if len(sa.Message) == 0 || len(sa.Message) > maxMessageLen {
			return fmt.Errorf("lnurl: success action message length %d out of bounds", len(sa.Message))
		}
	case "url":
		if len(sa.Description) == 0 || len(sa.Description) > maxDescriptionLen {
			return fmt.Errorf("lnurl: success action description length %d out of bounds", len(sa.Description))
		}
		host, err := hostOf(sa.URL)
		if err != nil {
			return err
		}
		if host != payDomain {
			return fmt.Errorf("lnurl: success action url host %q does not match pay domain %q", host, payDomain)
		}
	case "aes":
		if len(sa.Description) == 0 || len(sa.Description) > maxDescriptionLen {
			return fmt.Errorf("lnurl: success action description length %d out of bounds", len(sa.Description))
		}
		if len(sa.Ciphertext) > maxCiphertextB64 {
			return fmt.Errorf("lnurl: success action ciphertext too long (%d > %d)", len(sa.Ciphertext), maxCiphertextB64)
		}
		if _, err := base64.StdEncoding.DecodeString(sa.Ciphertext); err != nil {
			return fmt.Errorf("lnurl: success action ciphertext is not valid base64: %w", err)
		}
	default:
		return fmt.Errorf("lnurl: unknown success action tag %q", sa.Tag)
	}
	return nil
}

// DecryptSuccessAction decrypts an "aes" tag success action's ciphertext
// once the swap's preimage is known (LUD-09: key is sha256(preimage),
// AES-256-CBC, PKCS7 padding). Only ever called on an action that has
// already passed ValidateSuccessAction's bounds checks.
func DecryptSuccessAction(sa *SuccessAction, preimage []byte) (string, error) {
	if sa.Tag != "aes" {
		return "", fmt.Errorf("lnurl: cannot decrypt success action tag %q", sa.Tag)
	}
	iv, err := base64.StdEncoding.DecodeString(sa.IV)
	if err != nil {
		return "", fmt.Errorf("lnurl: success action iv is not valid base64: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("lnurl: success action iv length %d, want %d", len(iv), aes.BlockSize)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sa.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("lnurl: success action ciphertext is not valid base64: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("lnurl: success action ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	key := sha256.Sum256(preimage)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("lnurl: failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpadPKCS7(plaintext)
}

func unpadPKCS7(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("lnurl: empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return "", fmt.Errorf("lnurl: invalid PKCS7 padding")
	}
	if !bytes.Equal(data[len(data)-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return "", fmt.Errorf("lnurl: invalid PKCS7 padding")
	}
	return string(data[:len(data)-padLen]), nil
}

func hostOf(rawURL string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("lnurl: invalid success action url %q: %w", rawURL, err)
	}
	return req.URL.Host, nil
}

// DescriptionHash computes the LNURL-pay metadata hash an invoice's
// description_hash field must match.
func DescriptionHash(metadata string) [32]byte {
	return sha256.Sum256([]byte(metadata))
}
