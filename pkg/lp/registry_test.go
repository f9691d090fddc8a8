package lp

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyEnvelopeNonce_RejectsMismatch(t *testing.T) {
	err := verifyEnvelopeNonce(`{"nonce":"aaaa"}`, "bbbb")
	assert.Error(t, err)
}

func TestVerifyEnvelopeNonce_AcceptsEchoedNonce(t *testing.T) {
	err := verifyEnvelopeNonce(`{"nonce":"deadbeef","chains":{}}`, "deadbeef")
	assert.NoError(t, err)
}

func TestRegistry_ListForTokenExcludesBlacklisted(t *testing.T) {
	r := NewRegistry(nil)
	r.byURL["https://lp-a"] = &Intermediary{
		URL: "https://lp-a",
		Services: map[string]ServiceOffer{
			"ToBTC": {Tokens: []string{"TOKEN"}},
		},
	}
	r.byURL["https://lp-b"] = &Intermediary{
		URL:         "https://lp-b",
		Blacklisted: true,
		Services: map[string]ServiceOffer{
			"ToBTC": {Tokens: []string{"TOKEN"}},
		},
	}

	lps := r.ListForToken("ToBTC", "TOKEN")
	require.Len(t, lps, 1)
	assert.Equal(t, "https://lp-a", lps[0].URL)
}

func TestRegistry_BlacklistMarksIntermediary(t *testing.T) {
	r := NewRegistry(nil)
	r.byURL["https://lp-a"] = &Intermediary{URL: "https://lp-a"}

	r.Blacklist("https://lp-a", "bad hash")
	lp, ok := r.Get("https://lp-a")
	require.True(t, ok)
	assert.True(t, lp.Blacklisted)
}

func TestRegistry_RecordStrikeBlacklistsAfterThreshold(t *testing.T) {
	r := NewRegistry(nil)
	r.byURL["https://lp-a"] = &Intermediary{URL: "https://lp-a"}

	for i := 0; i < maxStrikesPerWindow; i++ {
		r.RecordStrike("https://lp-a", "bad quote")
		lp, _ := r.Get("https://lp-a")
		assert.False(t, lp.Blacklisted, "should not blacklist before the threshold is exceeded")
	}

	r.RecordStrike("https://lp-a", "bad quote")
	lp, _ := r.Get("https://lp-a")
	assert.True(t, lp.Blacklisted)
}

func TestRegistry_RecordSuccessAccumulates(t *testing.T) {
	r := NewRegistry(nil)
	r.byURL["https://lp-a"] = &Intermediary{URL: "https://lp-a", Reputation: map[string]Reputation{}}

	r.RecordSuccess("https://lp-a", "TOKEN", big.NewInt(100))
	r.RecordSuccess("https://lp-a", "TOKEN", big.NewInt(50))

	lp, _ := r.Get("https://lp-a")
	rep := lp.Reputation["TOKEN"]
	assert.Equal(t, int64(150), rep.SuccessVolume.Int64())
	assert.Equal(t, int64(2), rep.SuccessCount)
}
