package splitscript

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightninglabs/splitpay/internal/test"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// testWinner is a winning player together with its secrets.
type testWinner struct {
	*Player

	privKey        *btcec.PrivateKey
	ticketPreimage lntypes.Preimage
	payoutPreimage lntypes.Preimage
}

func newTestWinner(privKey *btcec.PrivateKey, ticketPreimage,
	payoutPreimage lntypes.Preimage) *testWinner {

	return &testWinner{
		Player: &Player{
			PubKey:     privKey.PubKey(),
			TicketHash: ticketPreimage.Hash(),
			PayoutHash: payoutPreimage.Hash(),
		},
		privKey:        privKey,
		ticketPreimage: ticketPreimage,
		payoutPreimage: payoutPreimage,
	}
}

func randTestWinner(t testing.TB) *testWinner {
	return newTestWinner(
		test.RandPrivKey(t), test.RandPreimage(), test.RandPreimage(),
	)
}

// testMarketMaker is a market maker together with its private key.
type testMarketMaker struct {
	*MarketMaker

	privKey *btcec.PrivateKey
}

func randTestMarketMaker(t testing.TB) *testMarketMaker {
	privKey := test.RandPrivKey(t)

	return &testMarketMaker{
		MarketMaker: &MarketMaker{
			PubKey: privKey.PubKey(),
		},
		privKey: privKey,
	}
}

// newTestDescriptor creates a settlement descriptor between fresh random
// parties.
func newTestDescriptor(t testing.TB, payout btcutil.Amount,
	roundDelay uint16) (*SettlementDescriptor, *testWinner,
	*testMarketMaker) {

	winner := randTestWinner(t)
	marketMaker := randTestMarketMaker(t)

	desc, err := NewSettlementDescriptor(
		winner.Player, marketMaker.MarketMaker, payout, roundDelay,
	)
	require.NoError(t, err)

	return desc, winner, marketMaker
}

// privKeyGen draws a valid private key.
var privKeyGen = rapid.Custom(func(t *rapid.T) *btcec.PrivateKey {
	keyBytes := rapid.SliceOfN(rapid.Byte(), 32, 32).Filter(
		func(b []byte) bool {
			return !bytes.Equal(b, make([]byte, 32))
		},
	).Draw(t, "priv_key")

	privKey, _ := btcec.PrivKeyFromBytes(keyBytes)

	return privKey
})

// preimageGen draws a preimage.
var preimageGen = rapid.Custom(func(t *rapid.T) lntypes.Preimage {
	var preimage lntypes.Preimage
	copy(preimage[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(
		t, "preimage",
	))

	return preimage
})

// roundDelayGen draws a valid round delay.
var roundDelayGen = rapid.Uint16Range(1, MaxRoundDelay)

// winnerGen draws a winning player.
var winnerGen = rapid.Custom(func(t *rapid.T) *testWinner {
	return newTestWinner(
		privKeyGen.Draw(t, "winner_key"),
		preimageGen.Draw(t, "ticket_preimage"),
		preimageGen.Draw(t, "payout_preimage"),
	)
})

// marketMakerGen draws a market maker.
var marketMakerGen = rapid.Custom(func(t *rapid.T) *testMarketMaker {
	privKey := privKeyGen.Draw(t, "market_maker_key")

	return &testMarketMaker{
		MarketMaker: &MarketMaker{
			PubKey: privKey.PubKey(),
		},
		privKey: privKey,
	}
})

// drawDescriptor draws a settlement descriptor between distinct parties.
func drawDescriptor(t *rapid.T) (*SettlementDescriptor, *testWinner,
	*testMarketMaker) {

	winner := winnerGen.Draw(t, "winner")
	marketMaker := marketMakerGen.Draw(t, "market_maker")
	if winner.PubKey.IsEqual(marketMaker.PubKey) {
		t.Skip("winner and market maker share a key")
	}

	payout := btcutil.Amount(
		rapid.Int64Range(1, btcutil.MaxSatoshi).Draw(t, "payout"),
	)
	roundDelay := roundDelayGen.Draw(t, "round_delay")

	desc, err := NewSettlementDescriptor(
		winner.Player, marketMaker.MarketMaker, payout, roundDelay,
	)
	require.NoError(t, err)

	return desc, winner, marketMaker
}

// invalidPubKey returns a public key that is not on the curve.
func invalidPubKey() *btcec.PublicKey {
	var x, y btcec.FieldVal
	x.SetInt(1)
	y.SetInt(1)

	return btcec.NewPublicKey(&x, &y)
}

// requirePanicsWith runs f and makes sure it panics with an error matching
// target.
func requirePanicsWith(t testing.TB, target error, f func()) {
	t.Helper()

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")

		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.ErrorIs(t, err, target)
	}()

	f()
}
