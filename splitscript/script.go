package splitscript

import (
	"math"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

const (
	// MaxRoundDelay is the largest round delay in blocks. The reclaim
	// leaf locks for twice the round delay, which must still fit the
	// 16-bit block count of a BIP 68 relative lock time.
	MaxRoundDelay = math.MaxUint16 / 2

	// WinScriptMaxSize: 74 bytes
	//	- OP_DATA: 1 byte (round_delay length)
	//	- <round_delay>: 2 bytes
	//	- OP_CHECKSEQUENCEVERIFY: 1 byte
	//	- OP_DROP: 1 byte
	//	- OP_SHA256: 1 byte
	//	- OP_DATA: 1 byte (ticket_hash length)
	//	- <ticket_hash>: 32 bytes
	//	- OP_EQUALVERIFY: 1 byte
	//	- OP_DATA: 1 byte (winner_key length)
	//	- <winner_key>: 32 bytes
	//	- OP_CHECKSIG: 1 byte
	WinScriptMaxSize = 1 + 2 + 1 + 1 + 1 + 1 + 32 + 1 + 1 + 32 + 1

	// ReclaimScriptMaxSize: 40 bytes
	//	- OP_DATA: 1 byte (2*round_delay length)
	//	- <2*round_delay>: 3 bytes
	//	- OP_CHECKSEQUENCEVERIFY: 1 byte
	//	- OP_DROP: 1 byte
	//	- OP_DATA: 1 byte (market_maker_key length)
	//	- <market_maker_key>: 32 bytes
	//	- OP_CHECKSIG: 1 byte
	ReclaimScriptMaxSize = 1 + 3 + 1 + 1 + 1 + 32 + 1

	// SellbackScriptSize: 69 bytes
	//	- OP_SHA256: 1 byte
	//	- OP_DATA: 1 byte (payout_hash length)
	//	- <payout_hash>: 32 bytes
	//	- OP_EQUALVERIFY: 1 byte
	//	- OP_DATA: 1 byte (market_maker_key length)
	//	- <market_maker_key>: 32 bytes
	//	- OP_CHECKSIG: 1 byte
	SellbackScriptSize = 1 + 1 + 32 + 1 + 1 + 32 + 1
)

// ValidateRoundDelay makes sure the round delay can be encoded in both
// relative time locked leaves.
func ValidateRoundDelay(roundDelay uint16) error {
	switch {
	case roundDelay == 0:
		return validationErrorf("round delay must be positive")

	case roundDelay > MaxRoundDelay:
		return validationErrorf("round delay %d exceeds maximum of %d",
			roundDelay, MaxRoundDelay)
	}

	return nil
}

// WinScript returns the leaf script a winning player uses to claim the payout
// on-chain after one round delay if the market maker doesn't cooperate.
//
//	<round_delay> OP_CHECKSEQUENCEVERIFY OP_DROP
//	OP_SHA256 <ticket_hash> OP_EQUALVERIFY
//	<winner_key> OP_CHECKSIG
//
// Witness: <winner_sig> <ticket_preimage>
func WinScript(winner *Player, roundDelay uint16) ([]byte, error) {
	if err := winner.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateRoundDelay(roundDelay); err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()

	builder.AddInt64(int64(roundDelay))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)

	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(winner.TicketHash[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)

	builder.AddData(schnorr.SerializePubKey(winner.PubKey))
	builder.AddOp(txscript.OP_CHECKSIG)

	script, err := builder.Script()
	if err != nil {
		return nil, validationErrorf("unable to build win script: %w",
			err)
	}

	return script, nil
}

// ReclaimScript returns the leaf script the market maker uses to reclaim its
// capital after two round delays if the player never paid for the ticket
// preimage.
//
//	<2*round_delay> OP_CHECKSEQUENCEVERIFY OP_DROP
//	<market_maker_key> OP_CHECKSIG
//
// Witness: <market_maker_sig>
func ReclaimScript(marketMaker *MarketMaker, roundDelay uint16) ([]byte,
	error) {

	if err := marketMaker.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateRoundDelay(roundDelay); err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()

	builder.AddInt64(2 * int64(roundDelay))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)

	builder.AddData(schnorr.SerializePubKey(marketMaker.PubKey))
	builder.AddOp(txscript.OP_CHECKSIG)

	script, err := builder.Script()
	if err != nil {
		return nil, validationErrorf("unable to build reclaim "+
			"script: %w", err)
	}

	return script, nil
}

// SellbackScript returns the leaf script the market maker uses to take the
// payout output immediately once the player sold it the payout preimage.
//
//	OP_SHA256 <payout_hash> OP_EQUALVERIFY
//	<market_maker_key> OP_CHECKSIG
//
// Witness: <market_maker_sig> <payout_preimage>
func SellbackScript(winner *Player, marketMaker *MarketMaker) ([]byte,
	error) {

	if err := winner.Validate(); err != nil {
		return nil, err
	}
	if err := marketMaker.Validate(); err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(winner.PayoutHash[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)

	builder.AddData(schnorr.SerializePubKey(marketMaker.PubKey))
	builder.AddOp(txscript.OP_CHECKSIG)

	script, err := builder.Script()
	if err != nil {
		return nil, validationErrorf("unable to build sellback "+
			"script: %w", err)
	}

	return script, nil
}
