package splitscript

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/lightninglabs/splitpay/internal/test"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestNewPlayerErrors tests the parsing of raw player identities.
func TestNewPlayerErrors(t *testing.T) {
	t.Parallel()

	pubKey := test.RandPubKey(t)
	hash := test.RandBytes(32)

	testCases := []struct {
		name       string
		pubKey     []byte
		ticketHash []byte
		payoutHash []byte
	}{{
		name:       "x-only key",
		pubKey:     schnorr.SerializePubKey(pubKey),
		ticketHash: hash,
		payoutHash: hash,
	}, {
		name:       "uncompressed key",
		pubKey:     pubKey.SerializeUncompressed(),
		ticketHash: hash,
		payoutHash: hash,
	}, {
		name:       "key not on curve",
		pubKey:     append([]byte{0x02}, bytes.Repeat([]byte{0xff}, 32)...),
		ticketHash: hash,
		payoutHash: hash,
	}, {
		name:       "short ticket hash",
		pubKey:     pubKey.SerializeCompressed(),
		ticketHash: hash[:31],
		payoutHash: hash,
	}, {
		name:       "long payout hash",
		pubKey:     pubKey.SerializeCompressed(),
		ticketHash: hash,
		payoutHash: append(hash, 0x00),
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewPlayer(tc.pubKey, tc.ticketHash, tc.payoutHash)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err := NewMarketMaker(schnorr.SerializePubKey(pubKey))
	require.ErrorIs(t, err, ErrValidation)

	player, err := NewPlayer(pubKey.SerializeCompressed(), hash, hash)
	require.NoError(t, err)
	require.True(t, player.PubKey.IsEqual(pubKey))
	require.Equal(t, hash, player.TicketHash[:])
}

// TestPlayerEncoding tests the TLV round trip of player identities.
func TestPlayerEncoding(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		winner := winnerGen.Draw(t, "winner")

		encoded, err := EncodePlayer(winner.Player)
		require.NoError(t, err)

		decoded, err := DecodePlayer(encoded)
		require.NoError(t, err)
		require.True(t, decoded.PubKey.IsEqual(winner.PubKey))
		require.Equal(t, winner.TicketHash, decoded.TicketHash)
		require.Equal(t, winner.PayoutHash, decoded.PayoutHash)

		// The encoding is canonical.
		reencoded, err := EncodePlayer(decoded)
		require.NoError(t, err)
		require.Equal(t, encoded, reencoded)
	})
}

// TestMarketMakerEncoding tests the TLV round trip of market maker
// identities.
func TestMarketMakerEncoding(t *testing.T) {
	t.Parallel()

	marketMaker := randTestMarketMaker(t)

	encoded, err := EncodeMarketMaker(marketMaker.MarketMaker)
	require.NoError(t, err)

	decoded, err := DecodeMarketMaker(encoded)
	require.NoError(t, err)
	require.True(t, decoded.PubKey.IsEqual(marketMaker.PubKey))

	// A player stream carries extra even records the market maker
	// doesn't know.
	encodedPlayer, err := EncodePlayer(randTestWinner(t).Player)
	require.NoError(t, err)

	_, err = DecodeMarketMaker(encodedPlayer)
	require.ErrorIs(t, err, ErrValidation)

	_, err = EncodeMarketMaker(&MarketMaker{})
	require.ErrorIs(t, err, ErrValidation)
}

// TestPartyUnknownTypes makes sure unknown even records are rejected while
// unknown odd records are skipped.
func TestPartyUnknownTypes(t *testing.T) {
	t.Parallel()

	winner := randTestWinner(t)
	unknownTypeErr := &ErrUnknownType{}
	test.RunUnknownTypeTest(
		t, winner.Player, unknownTypeErr,
		func(buf *bytes.Buffer, p *Player) error {
			return p.Encode(buf)
		}, func(buf *bytes.Buffer) (*Player, error) {
			var p Player
			return &p, p.Decode(buf)
		}, func(p *Player) {
			require.True(t, p.PubKey.IsEqual(winner.PubKey))
			require.Equal(t, winner.TicketHash, p.TicketHash)
			require.Equal(t, winner.PayoutHash, p.PayoutHash)
		},
	)

	require.EqualValues(t, 40, unknownTypeErr.UnknownType)
	require.NotEmpty(t, unknownTypeErr.ValueBytes)

	marketMaker := randTestMarketMaker(t)
	test.RunUnknownTypeTest(
		t, marketMaker.MarketMaker, &ErrUnknownType{},
		func(buf *bytes.Buffer, m *MarketMaker) error {
			return m.Encode(buf)
		}, func(buf *bytes.Buffer) (*MarketMaker, error) {
			var m MarketMaker
			return &m, m.Decode(buf)
		}, func(m *MarketMaker) {
			require.True(t, m.PubKey.IsEqual(marketMaker.PubKey))
		},
	)
}

// TestPartyDecodeErrors tests incomplete and malformed encodings.
func TestPartyDecodeErrors(t *testing.T) {
	t.Parallel()

	winner := randTestWinner(t)
	encoded, err := EncodePlayer(winner.Player)
	require.NoError(t, err)

	// Each record is type (1 byte), length (1 byte) and value. Dropping
	// the payout hash record leaves a valid stream with a record missing.
	withoutPayout := encoded[:len(encoded)-2-32]
	_, err = DecodePlayer(withoutPayout)
	require.ErrorIs(t, err, ErrValidation)

	_, err = DecodePlayer(encoded[:len(encoded)-1])
	require.ErrorIs(t, err, ErrValidation)

	// A key record that isn't a point on the curve.
	invalidKey := bytes.Clone(encoded)
	copy(invalidKey[2:2+33], append(
		[]byte{0x02}, bytes.Repeat([]byte{0xff}, 32)...,
	))
	_, err = DecodePlayer(invalidKey)
	require.ErrorIs(t, err, ErrValidation)

	var marketMaker MarketMaker
	err = marketMaker.Decode(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrValidation)

	// Encoding an invalid identity fails.
	_, err = EncodePlayer(&Player{})
	require.ErrorIs(t, err, ErrValidation)

	err = (&MarketMaker{PubKey: invalidPubKey()}).Encode(&bytes.Buffer{})
	require.ErrorIs(t, err, ErrValidation)
}

// TestPlayerCopy makes sure a copy doesn't share the key with the original.
func TestPlayerCopy(t *testing.T) {
	t.Parallel()

	winner := randTestWinner(t)
	playerCopy := winner.Copy()

	require.True(t, playerCopy.PubKey.IsEqual(winner.PubKey))
	require.NotSame(t, winner.PubKey, playerCopy.PubKey)

	playerCopy.PubKey = btcec.NewPublicKey(
		new(btcec.FieldVal), new(btcec.FieldVal),
	)
	require.NoError(t, winner.Validate())
}
