package splitscript

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestLeafScriptsLayout checks the exact bytes of all three leaf scripts for
// a round delay of one day.
func TestLeafScriptsLayout(t *testing.T) {
	t.Parallel()

	winner := randTestWinner(t)
	marketMaker := randTestMarketMaker(t)
	winnerKey := schnorr.SerializePubKey(winner.PubKey)
	marketMakerKey := schnorr.SerializePubKey(marketMaker.PubKey)

	// 144 is pushed as the minimal little endian script number 0x9000,
	// 288 as 0x2001.
	var expectedWin []byte
	expectedWin = append(expectedWin, 0x02, 0x90, 0x00)
	expectedWin = append(
		expectedWin, txscript.OP_CHECKSEQUENCEVERIFY, txscript.OP_DROP,
		txscript.OP_SHA256, txscript.OP_DATA_32,
	)
	expectedWin = append(expectedWin, winner.TicketHash[:]...)
	expectedWin = append(
		expectedWin, txscript.OP_EQUALVERIFY, txscript.OP_DATA_32,
	)
	expectedWin = append(expectedWin, winnerKey...)
	expectedWin = append(expectedWin, txscript.OP_CHECKSIG)

	var expectedReclaim []byte
	expectedReclaim = append(expectedReclaim, 0x02, 0x20, 0x01)
	expectedReclaim = append(
		expectedReclaim, txscript.OP_CHECKSEQUENCEVERIFY,
		txscript.OP_DROP, txscript.OP_DATA_32,
	)
	expectedReclaim = append(expectedReclaim, marketMakerKey...)
	expectedReclaim = append(expectedReclaim, txscript.OP_CHECKSIG)

	var expectedSellback []byte
	expectedSellback = append(
		expectedSellback, txscript.OP_SHA256, txscript.OP_DATA_32,
	)
	expectedSellback = append(expectedSellback, winner.PayoutHash[:]...)
	expectedSellback = append(
		expectedSellback, txscript.OP_EQUALVERIFY, txscript.OP_DATA_32,
	)
	expectedSellback = append(expectedSellback, marketMakerKey...)
	expectedSellback = append(expectedSellback, txscript.OP_CHECKSIG)

	winScript, err := WinScript(winner.Player, 144)
	require.NoError(t, err)
	require.Equal(t, expectedWin, winScript)
	require.Len(t, winScript, WinScriptMaxSize)

	reclaimScript, err := ReclaimScript(marketMaker.MarketMaker, 144)
	require.NoError(t, err)
	require.Equal(t, expectedReclaim, reclaimScript)

	sellbackScript, err := SellbackScript(
		winner.Player, marketMaker.MarketMaker,
	)
	require.NoError(t, err)
	require.Equal(t, expectedSellback, sellbackScript)
	require.Len(t, sellbackScript, SellbackScriptSize)
}

// TestLeafScriptSizes makes sure the scripts never exceed their documented
// sizes and start with the pushed round delay.
func TestLeafScriptSizes(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		winner := winnerGen.Draw(t, "winner")
		marketMaker := marketMakerGen.Draw(t, "market_maker")
		roundDelay := roundDelayGen.Draw(t, "round_delay")

		winScript, err := WinScript(winner.Player, roundDelay)
		require.NoError(t, err)
		require.LessOrEqual(t, len(winScript), WinScriptMaxSize)

		reclaimScript, err := ReclaimScript(
			marketMaker.MarketMaker, roundDelay,
		)
		require.NoError(t, err)
		require.LessOrEqual(
			t, len(reclaimScript), ReclaimScriptMaxSize,
		)

		winDelay := txscript.NewScriptBuilder().AddInt64(
			int64(roundDelay),
		)
		winPrefix, err := winDelay.Script()
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(winScript, winPrefix))

		reclaimDelay := txscript.NewScriptBuilder().AddInt64(
			2 * int64(roundDelay),
		)
		reclaimPrefix, err := reclaimDelay.Script()
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(reclaimScript, reclaimPrefix))

		// The sellback leaf doesn't depend on the round delay at all.
		sellbackScript, err := SellbackScript(
			winner.Player, marketMaker.MarketMaker,
		)
		require.NoError(t, err)
		require.Len(t, sellbackScript, SellbackScriptSize)
	})
}

// TestLeafScriptErrors tests invalid inputs to the script builders.
func TestLeafScriptErrors(t *testing.T) {
	t.Parallel()

	winner := randTestWinner(t)
	marketMaker := randTestMarketMaker(t)

	testCases := []struct {
		name  string
		build func() ([]byte, error)
	}{{
		name: "win zero delay",
		build: func() ([]byte, error) {
			return WinScript(winner.Player, 0)
		},
	}, {
		name: "win delay too large",
		build: func() ([]byte, error) {
			return WinScript(winner.Player, MaxRoundDelay+1)
		},
	}, {
		name: "win nil player",
		build: func() ([]byte, error) {
			return WinScript(nil, 144)
		},
	}, {
		name: "win nil key",
		build: func() ([]byte, error) {
			return WinScript(&Player{}, 144)
		},
	}, {
		name: "reclaim zero delay",
		build: func() ([]byte, error) {
			return ReclaimScript(marketMaker.MarketMaker, 0)
		},
	}, {
		name: "reclaim delay too large",
		build: func() ([]byte, error) {
			return ReclaimScript(marketMaker.MarketMaker, 65535)
		},
	}, {
		name: "reclaim off curve key",
		build: func() ([]byte, error) {
			return ReclaimScript(&MarketMaker{
				PubKey: invalidPubKey(),
			}, 144)
		},
	}, {
		name: "sellback nil market maker",
		build: func() ([]byte, error) {
			return SellbackScript(winner.Player, nil)
		},
	}, {
		name: "sellback nil player",
		build: func() ([]byte, error) {
			return SellbackScript(nil, marketMaker.MarketMaker)
		},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := tc.build()
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	require.NoError(t, ValidateRoundDelay(1))
	require.NoError(t, ValidateRoundDelay(MaxRoundDelay))
}
