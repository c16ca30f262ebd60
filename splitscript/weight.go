package splitscript

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
)

const (
	// SchnorrSignatureSize is the size of a BIP 340 signature using the
	// default sighash type, which doesn't append a sighash flag.
	SchnorrSignatureSize = schnorr.SignatureSize

	// PreimageSize is the size of both the ticket and the payout preimage.
	PreimageSize = lntypes.PreimageSize

	// BaseInputWeight: 164 weight units
	//	- outpoint: 36 bytes
	//	- script_sig_length: 1 byte (zero, all data is in the witness)
	//	- sequence: 4 bytes
	//
	// All of it is non-witness data and counts four times.
	BaseInputWeight = input.InputSize * blockchain.WitnessScaleFactor
)

// InputWeightPrediction predicts the weight a segwit input adds to a
// transaction, given the sizes of its witness stack elements.
type InputWeightPrediction struct {
	// WitnessElements holds the size of every witness stack element, in
	// stack order.
	WitnessElements []int
}

// NewInputWeightPrediction creates a prediction for a witness with elements of
// the given sizes.
func NewInputWeightPrediction(elementSizes ...int) InputWeightPrediction {
	return InputWeightPrediction{
		WitnessElements: elementSizes,
	}
}

// WitnessSize returns the exact serialized size of the witness: the element
// count, then every element prefixed with its length.
func (p InputWeightPrediction) WitnessSize() int {
	size := wire.VarIntSerializeSize(uint64(len(p.WitnessElements)))
	for _, elementSize := range p.WitnessElements {
		size += wire.VarIntSerializeSize(uint64(elementSize))
		size += elementSize
	}

	return size
}

// Weight returns the weight the input adds to a transaction. The segwit
// marker and flag are accounted per transaction and not included.
func (p InputWeightPrediction) Weight() lntypes.WeightUnit {
	return lntypes.WeightUnit(BaseInputWeight + p.WitnessSize())
}

// PredictSpendWeight predicts the weight of an input spending a settlement
// output through the given leaf. The witness stack is:
//
//	<sig> [<preimage>] <script> <control_block>
func PredictSpendWeight(leaf *SpendLeaf,
	withPreimage bool) InputWeightPrediction {

	elements := []int{SchnorrSignatureSize}
	if withPreimage {
		elements = append(elements, PreimageSize)
	}
	elements = append(
		elements, len(leaf.Script), len(leaf.ControlBlockBytes),
	)

	return NewInputWeightPrediction(elements...)
}
