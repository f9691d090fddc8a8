package lnurl

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeBech32(t *testing.T, url string) string {
	t.Helper()
	converted, err := bech32.ConvertBits([]byte(url), 8, 5, true)
	require.NoError(t, err)
	encoded, err := bech32.Encode("lnurl", converted)
	require.NoError(t, err)
	return encoded
}

func TestDecode_Bech32PayURL(t *testing.T) {
	encoded := encodeBech32(t, "https://example.com/lnurlp/foo")

	url, kind, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/lnurlp/foo", url)
	assert.Equal(t, KindPay, kind)
}

func TestDecode_Bech32WithdrawURL(t *testing.T) {
	encoded := encodeBech32(t, "https://example.com/lnurlw/foo")

	_, kind, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, KindWithdraw, kind)
}

func TestDecode_BareLnurlpScheme(t *testing.T) {
	url, kind, err := Decode("lnurlp://example.com/pay?id=1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/pay?id=1", url)
	assert.Equal(t, KindPay, kind)
}

func TestDecode_OnionUsesPlainHTTP(t *testing.T) {
	url, _, err := Decode("lnurlp://abc123.onion/pay")
	require.NoError(t, err)
	assert.Equal(t, "http://abc123.onion/pay", url)
}

func TestDecode_LightningAddress(t *testing.T) {
	url, kind, err := Decode("alice@wallet.example")
	require.NoError(t, err)
	assert.Equal(t, "https://wallet.example/.well-known/lnurlp/alice", url)
	assert.Equal(t, KindPay, kind)
}

func TestDecode_RejectsUnrecognizedFormat(t *testing.T) {
	_, _, err := Decode("not-an-lnurl-thing")
	assert.Error(t, err)
}

func TestCheckAmountBounds_RejectsOutOfRange(t *testing.T) {
	req := &PayRequest{MinSendable: 1000, MaxSendable: 5000}
	assert.Error(t, CheckAmountBounds(req, 500))
	assert.Error(t, CheckAmountBounds(req, 6000))
	assert.NoError(t, CheckAmountBounds(req, 2000))
}

func TestValidateSuccessAction_MessageWithinBounds(t *testing.T) {
	sa := &SuccessAction{Tag: "message", Message: "thanks!"}
	assert.NoError(t, ValidateSuccessAction(sa, "example.com"))
}

func TestValidateSuccessAction_MessageTooLong(t *testing.T) {
	long := make([]byte, maxMessageLen+1)
	for i := range long {
		long[i] = 'x'
	}
	sa := &SuccessAction{Tag: "message", Message: string(long)}
	assert.Error(t, ValidateSuccessAction(sa, "example.com"))
}

func TestValidateSuccessAction_URLMustMatchPayDomain(t *testing.T) {
	sa := &SuccessAction{Tag: "url", Description: "view receipt", URL: "https://evil.example/x"}
	assert.Error(t, ValidateSuccessAction(sa, "example.com"))
}

func TestValidateSuccessAction_URLMatchingDomainPasses(t *testing.T) {
	sa := &SuccessAction{Tag: "url", Description: "view receipt", URL: "https://example.com/x"}
	assert.NoError(t, ValidateSuccessAction(sa, "example.com"))
}

func TestValidateSuccessAction_AESRejectsOversizedCiphertext(t *testing.T) {
	big := make([]byte, maxCiphertextB64+1)
	for i := range big {
		big[i] = 'a'
	}
	sa := &SuccessAction{Tag: "aes", Description: "d", Ciphertext: string(big)}
	assert.Error(t, ValidateSuccessAction(sa, "example.com"))
}

func TestValidateSuccessAction_RejectsUnknownTag(t *testing.T) {
	sa := &SuccessAction{Tag: "bogus"}
	assert.Error(t, ValidateSuccessAction(sa, "example.com"))
}

func TestDescriptionHash_IsDeterministic(t *testing.T) {
	a := DescriptionHash("metadata-1")
	b := DescriptionHash("metadata-1")
	assert.Equal(t, a, b)
}

func TestDecryptSuccessAction_RoundTrips(t *testing.T) {
	preimage := bytes.Repeat([]byte{0x07}, 32)
	key := sha256.Sum256(preimage)
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)

	plaintext := []byte("order #42 confirmed")
	padded := pkcs7PadForTest(plaintext, aes.BlockSize)

	iv := bytes.Repeat([]byte{0x01}, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	sa := &SuccessAction{
		Tag:         "aes",
		Description: "receipt",
		IV:          base64.StdEncoding.EncodeToString(iv),
		Ciphertext:  base64.StdEncoding.EncodeToString(ciphertext),
	}
	require.NoError(t, ValidateSuccessAction(sa, "example.com"))

	got, err := DecryptSuccessAction(sa, preimage)
	require.NoError(t, err)
	assert.Equal(t, string(plaintext), got)
}

func TestDecryptSuccessAction_RejectsNonAESTag(t *testing.T) {
	sa := &SuccessAction{Tag: "message", Message: "hi"}
	_, err := DecryptSuccessAction(sa, []byte("preimage"))
	assert.Error(t, err)
}

func TestDecryptSuccessAction_RejectsBadPadding(t *testing.T) {
	preimage := bytes.Repeat([]byte{0x07}, 32)
	key := sha256.Sum256(preimage)
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)

	iv := bytes.Repeat([]byte{0x01}, aes.BlockSize)
	garbage := bytes.Repeat([]byte{0xFF}, aes.BlockSize)
	ciphertext := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, garbage)

	sa := &SuccessAction{
		Tag:        "aes",
		IV:         base64.StdEncoding.EncodeToString(iv),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}

	_, err = DecryptSuccessAction(sa, preimage)
	assert.Error(t, err)
}

func pkcs7PadForTest(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}
