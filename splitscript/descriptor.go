package splitscript

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnutils"
)

// SettlementDescriptor describes the taproot output paying out one winning
// player of a round. The output is locked to the joint MuSig2 key of winner
// and market maker, tweaked with a tapscript tree of three leaves:
//
//  1. A relative time locked hash lock paying to the winner if they know the
//     ticket preimage, after one round delay.
//  2. A relative time lock paying to the market maker after two round
//     delays.
//  3. A hash lock paying to the market maker immediately once it learned the
//     payout preimage from the winner.
//
// A descriptor is immutable once created and safe for concurrent use.
type SettlementDescriptor struct {
	untweakedCtx *KeyAggContext
	tweakedCtx   *KeyAggContext

	payoutValue btcutil.Amount
	roundDelay  uint16

	tree     *SplitTree
	pkScript []byte

	winner *Player

	winScript      []byte
	reclaimScript  []byte
	sellbackScript []byte
}

// NewSettlementDescriptor builds the settlement output for the given winner.
// Winner and market maker must derive the same descriptor from the same
// inputs independently, which the canonical key order and the deterministic
// tree assembly guarantee.
func NewSettlementDescriptor(winner *Player, marketMaker *MarketMaker,
	payoutValue btcutil.Amount,
	roundDelay uint16) (*SettlementDescriptor, error) {

	if err := winner.Validate(); err != nil {
		return nil, err
	}
	if err := marketMaker.Validate(); err != nil {
		return nil, err
	}
	if payoutValue <= 0 {
		return nil, validationErrorf("payout value %v must be positive",
			payoutValue)
	}
	if err := ValidateRoundDelay(roundDelay); err != nil {
		return nil, err
	}

	untweakedCtx, err := AggregateKeys(marketMaker.PubKey, winner.PubKey)
	if err != nil {
		return nil, err
	}

	winScript, err := WinScript(winner, roundDelay)
	if err != nil {
		return nil, err
	}
	reclaimScript, err := ReclaimScript(marketMaker, roundDelay)
	if err != nil {
		return nil, err
	}
	sellbackScript, err := SellbackScript(winner, marketMaker)
	if err != nil {
		return nil, err
	}

	tree, err := NewSplitTree(
		untweakedCtx.AggregatedKey(), winScript, reclaimScript,
		sellbackScript,
	)
	if err != nil {
		return nil, err
	}

	// A tree of three leaves always has a root, so tweaking can't fail
	// here.
	tweakedCtx, err := untweakedCtx.WithTaprootTweak(tree.Root)
	if err != nil {
		invariantViolation("unable to tweak joint key with root %v: "+
			"%v", tree.Root, err)
	}

	pkScript, err := txscript.PayToTaprootScript(tree.OutputKey)
	if err != nil {
		invariantViolation("unable to create pk script: %v", err)
	}

	d := &SettlementDescriptor{
		untweakedCtx:   untweakedCtx,
		tweakedCtx:     tweakedCtx,
		payoutValue:    payoutValue,
		roundDelay:     roundDelay,
		tree:           tree,
		pkScript:       pkScript,
		winner:         winner.Copy(),
		winScript:      winScript,
		reclaimScript:  reclaimScript,
		sellbackScript: sellbackScript,
	}
	d.assertConsistent()

	log.Debugf("Created settlement descriptor for winner %x: "+
		"output_key=%x, root=%v, payout=%v, round_delay=%d",
		winner.PubKey.SerializeCompressed(),
		schnorr.SerializePubKey(tree.OutputKey), tree.Root,
		payoutValue, roundDelay)
	log.Tracef("Settlement tree: %v", lnutils.NewLogClosure(
		func() string {
			return limitSpewer.Sdump(tree)
		},
	))

	return d, nil
}

// assertConsistent panics if the tweaked key context isn't bound to the
// tree the output commits to, or if the stored scripts aren't exactly the
// leaves of that tree. Signatures made for an inconsistent descriptor would
// be invalid or spendable by the wrong party.
func (d *SettlementDescriptor) assertConsistent() {
	tweakedKey := schnorr.SerializePubKey(d.tweakedCtx.AggregatedKey())
	outputKey := schnorr.SerializePubKey(d.tree.OutputKey)
	if !bytes.Equal(tweakedKey, outputKey) {
		invariantViolation("tweaked key %x doesn't match output key %x",
			tweakedKey, outputKey)
	}

	if !d.tweakedCtx.InternalKey().IsEqual(d.tree.InternalKey) {
		invariantViolation("tweaked context internal key doesn't " +
			"match tree internal key")
	}

	leaves := []struct {
		path   SpendPath
		script []byte
		leaf   *SpendLeaf
	}{
		{PathWin, d.winScript, &d.tree.Win},
		{PathReclaim, d.reclaimScript, &d.tree.Reclaim},
		{PathSellback, d.sellbackScript, &d.tree.Sellback},
	}
	for _, l := range leaves {
		if !bytes.Equal(l.script, l.leaf.Script) {
			invariantViolation("%v script doesn't match tree leaf",
				l.path)
		}

		if err := d.tree.VerifyLeaf(l.leaf); err != nil {
			invariantViolation("%v control block invalid: %v",
				l.path, err)
		}
	}
}

// PkScript returns the 34-byte segwit v1 locking script of the settlement
// output: OP_1 <x-only output key>.
func (d *SettlementDescriptor) PkScript() []byte {
	return bytes.Clone(d.pkScript)
}

// OutputKey returns the taproot output key.
func (d *SettlementDescriptor) OutputKey() *btcec.PublicKey {
	return d.tree.OutputKey
}

// Address returns the taproot address of the settlement output on the given
// network.
func (d *SettlementDescriptor) Address(
	params *chaincfg.Params) (*btcutil.AddressTaproot, error) {

	return btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(d.tree.OutputKey), params,
	)
}

// PayoutValue returns the value of the settlement output.
func (d *SettlementDescriptor) PayoutValue() btcutil.Amount {
	return d.payoutValue
}

// TxOut returns the settlement output.
func (d *SettlementDescriptor) TxOut() *wire.TxOut {
	return wire.NewTxOut(int64(d.payoutValue), d.PkScript())
}

// RoundDelay returns the round delay in blocks the time locks are based on.
func (d *SettlementDescriptor) RoundDelay() uint16 {
	return d.roundDelay
}

// UntweakedKeyAgg returns the key aggregation context of the joint internal
// key.
func (d *SettlementDescriptor) UntweakedKeyAgg() *KeyAggContext {
	return d.untweakedCtx
}

// TweakedKeyAgg returns the key aggregation context bound to the tapscript
// root, used to sign for a key spend of the settlement output.
func (d *SettlementDescriptor) TweakedKeyAgg() *KeyAggContext {
	return d.tweakedCtx
}

// Winner returns a copy of the winning player.
func (d *SettlementDescriptor) Winner() *Player {
	return d.winner.Copy()
}

// Tree returns a copy of the tapscript tree of the settlement output.
func (d *SettlementDescriptor) Tree() *SplitTree {
	return d.tree.Copy()
}

// Script returns the leaf script of the given spend path.
func (d *SettlementDescriptor) Script(path SpendPath) ([]byte, error) {
	leaf, err := d.tree.Leaf(path)
	if err != nil {
		return nil, err
	}

	return bytes.Clone(leaf.Script), nil
}

// ControlBlock returns the serialized control block of the given spend path.
func (d *SettlementDescriptor) ControlBlock(path SpendPath) ([]byte, error) {
	leaf, err := d.tree.Leaf(path)
	if err != nil {
		return nil, err
	}

	return bytes.Clone(leaf.ControlBlockBytes), nil
}

// Sequence returns the BIP 68 sequence an input spending through the given
// path must at least carry. The spending transaction must be version 2 or
// higher for relative time locks to apply.
func (d *SettlementDescriptor) Sequence(path SpendPath) (uint32, error) {
	switch path {
	case PathWin:
		return uint32(d.roundDelay), nil

	case PathReclaim:
		return 2 * uint32(d.roundDelay), nil

	case PathSellback:
		return 0, nil

	default:
		return 0, validationErrorf("unknown spend path %v", path)
	}
}

// InputWeightForWinTx predicts the weight of an input spending the
// settlement output through the win leaf. The witness is:
//
//	<winner_sig> <ticket_preimage> <win_script> <control_block>
func (d *SettlementDescriptor) InputWeightForWinTx() InputWeightPrediction {
	return PredictSpendWeight(&d.tree.Win, true)
}

// InputWeightForReclaimTx predicts the weight of an input spending the
// settlement output through the reclaim leaf. The witness is:
//
//	<market_maker_sig> <reclaim_script> <control_block>
func (d *SettlementDescriptor) InputWeightForReclaimTx() InputWeightPrediction {
	return PredictSpendWeight(&d.tree.Reclaim, false)
}

// InputWeightForSellbackTx predicts the weight of an input spending the
// settlement output through the sellback leaf. The witness is:
//
//	<market_maker_sig> <payout_preimage> <sellback_script> <control_block>
func (d *SettlementDescriptor) InputWeightForSellbackTx() InputWeightPrediction {
	return PredictSpendWeight(&d.tree.Sellback, true)
}

// SpendWeightPrediction returns the weight prediction of the given path.
func (d *SettlementDescriptor) SpendWeightPrediction(
	path SpendPath) (InputWeightPrediction, error) {

	switch path {
	case PathWin:
		return d.InputWeightForWinTx(), nil

	case PathReclaim:
		return d.InputWeightForReclaimTx(), nil

	case PathSellback:
		return d.InputWeightForSellbackTx(), nil

	default:
		return InputWeightPrediction{}, validationErrorf("unknown "+
			"spend path %v", path)
	}
}

// InputWeight returns the predicted input weight of the given path.
func (d *SettlementDescriptor) InputWeight(
	path SpendPath) (lntypes.WeightUnit, error) {

	prediction, err := d.SpendWeightPrediction(path)
	if err != nil {
		return 0, err
	}

	return prediction.Weight(), nil
}
