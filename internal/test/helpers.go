package test

import (
	"encoding/hex"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
)

// RandPrivKey creates a random private key.
func RandPrivKey(t testing.TB) *btcec.PrivateKey {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return privKey
}

// RandPubKey creates the public key of a random private key.
func RandPubKey(t testing.TB) *btcec.PublicKey {
	return RandPrivKey(t).PubKey()
}

// randMtx guards the shared pseudo random generator, which is not safe for
// concurrent use by parallel tests.
var randMtx sync.Mutex

// RandBytes returns a slice of random bytes of the given length.
func RandBytes(num int) []byte {
	randMtx.Lock()
	defer randMtx.Unlock()

	randBytes := make([]byte, num)
	_, _ = rand.Read(randBytes)
	return randBytes
}

// RandPreimage creates a random preimage.
func RandPreimage() lntypes.Preimage {
	var preimage lntypes.Preimage
	copy(preimage[:], RandBytes(lntypes.PreimageSize))
	return preimage
}

// ParseHex decodes a hex string in a test.
func ParseHex(t testing.TB, str string) []byte {
	t.Helper()

	b, err := hex.DecodeString(str)
	require.NoError(t, err)
	return b
}
