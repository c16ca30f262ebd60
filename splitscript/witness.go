package splitscript

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lntypes"
)

// WinWitness returns the witness spending the settlement output through the
// win leaf.
func (d *SettlementDescriptor) WinWitness(winnerSig []byte,
	ticketPreimage lntypes.Preimage) (wire.TxWitness, error) {

	if err := checkSchnorrSig(winnerSig); err != nil {
		return nil, err
	}
	if !ticketPreimage.Matches(d.winner.TicketHash) {
		return nil, validationErrorf("ticket preimage doesn't match "+
			"ticket hash %v", d.winner.TicketHash)
	}

	leaf := d.tree.Win.Copy()

	return wire.TxWitness{
		winnerSig,
		ticketPreimage[:],
		leaf.Script,
		leaf.ControlBlockBytes,
	}, nil
}

// ReclaimWitness returns the witness spending the settlement output through
// the reclaim leaf.
func (d *SettlementDescriptor) ReclaimWitness(
	marketMakerSig []byte) (wire.TxWitness, error) {

	if err := checkSchnorrSig(marketMakerSig); err != nil {
		return nil, err
	}

	leaf := d.tree.Reclaim.Copy()

	return wire.TxWitness{
		marketMakerSig,
		leaf.Script,
		leaf.ControlBlockBytes,
	}, nil
}

// SellbackWitness returns the witness spending the settlement output through
// the sellback leaf.
func (d *SettlementDescriptor) SellbackWitness(marketMakerSig []byte,
	payoutPreimage lntypes.Preimage) (wire.TxWitness, error) {

	if err := checkSchnorrSig(marketMakerSig); err != nil {
		return nil, err
	}
	if !payoutPreimage.Matches(d.winner.PayoutHash) {
		return nil, validationErrorf("payout preimage doesn't match "+
			"payout hash %v", d.winner.PayoutHash)
	}

	leaf := d.tree.Sellback.Copy()

	return wire.TxWitness{
		marketMakerSig,
		payoutPreimage[:],
		leaf.Script,
		leaf.ControlBlockBytes,
	}, nil
}

// SpendPathFromWitness determines which leaf of the settlement output the
// given script path witness reveals.
func (d *SettlementDescriptor) SpendPathFromWitness(
	witness wire.TxWitness) (SpendPath, error) {

	// A script path spend ends with the revealed script followed by its
	// control block.
	if len(witness) < 2 {
		return 0, validationErrorf("witness with %d elements is not "+
			"a script path spend", len(witness))
	}
	script := witness[len(witness)-2]
	ctrlBlock := witness[len(witness)-1]

	for _, path := range AllSpendPaths {
		leaf, err := d.tree.Leaf(path)
		if err != nil {
			return 0, err
		}

		if bytes.Equal(script, leaf.Script) &&
			bytes.Equal(ctrlBlock, leaf.ControlBlockBytes) {

			return path, nil
		}
	}

	return 0, validationErrorf("witness doesn't reveal a settlement leaf")
}

// checkSchnorrSig makes sure the signature is a BIP 340 signature using the
// default sighash type, which the weight predictions assume.
func checkSchnorrSig(sig []byte) error {
	if len(sig) != SchnorrSignatureSize {
		return validationErrorf("invalid signature length %d, want %d",
			len(sig), SchnorrSignatureSize)
	}

	return nil
}
