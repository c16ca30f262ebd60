package splitscript

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/splitpay/internal/test"
	"github.com/stretchr/testify/require"
)

// TestWitnessAssembly tests the witness stacks of all three spend paths.
func TestWitnessAssembly(t *testing.T) {
	t.Parallel()

	desc, winner, _ := newTestDescriptor(t, 20_000, 6)
	sig := test.RandBytes(SchnorrSignatureSize)
	tree := desc.Tree()

	winWitness, err := desc.WinWitness(sig, winner.ticketPreimage)
	require.NoError(t, err)
	require.Equal(t, wire.TxWitness{
		sig, winner.ticketPreimage[:], tree.Win.Script,
		tree.Win.ControlBlockBytes,
	}, winWitness)

	reclaimWitness, err := desc.ReclaimWitness(sig)
	require.NoError(t, err)
	require.Equal(t, wire.TxWitness{
		sig, tree.Reclaim.Script, tree.Reclaim.ControlBlockBytes,
	}, reclaimWitness)

	sellbackWitness, err := desc.SellbackWitness(
		sig, winner.payoutPreimage,
	)
	require.NoError(t, err)
	require.Equal(t, wire.TxWitness{
		sig, winner.payoutPreimage[:], tree.Sellback.Script,
		tree.Sellback.ControlBlockBytes,
	}, sellbackWitness)

	witnesses := map[SpendPath]wire.TxWitness{
		PathWin:      winWitness,
		PathReclaim:  reclaimWitness,
		PathSellback: sellbackWitness,
	}
	for path, witness := range witnesses {
		prediction, err := desc.SpendWeightPrediction(path)
		require.NoError(t, err)
		require.Equal(
			t, prediction.WitnessSize(), witness.SerializeSize(),
		)

		detected, err := desc.SpendPathFromWitness(witness)
		require.NoError(t, err)
		require.Equal(t, path, detected)
	}

	// Changing the returned witness doesn't change the descriptor.
	winWitness[2][0] ^= 0xff
	script, err := desc.Script(PathWin)
	require.NoError(t, err)
	require.Equal(t, tree.Win.Script, script)
}

// TestWitnessAssemblyErrors tests invalid signatures and preimages.
func TestWitnessAssemblyErrors(t *testing.T) {
	t.Parallel()

	desc, winner, _ := newTestDescriptor(t, 20_000, 6)
	sig := test.RandBytes(SchnorrSignatureSize)

	// A signature with an explicit sighash flag doesn't fit the weight
	// prediction.
	_, err := desc.ReclaimWitness(append(sig, 0x01))
	require.ErrorIs(t, err, ErrValidation)

	_, err = desc.WinWitness(sig[:63], winner.ticketPreimage)
	require.ErrorIs(t, err, ErrValidation)

	// The preimages are not interchangeable.
	_, err = desc.WinWitness(sig, winner.payoutPreimage)
	require.ErrorIs(t, err, ErrValidation)

	_, err = desc.SellbackWitness(sig, winner.ticketPreimage)
	require.ErrorIs(t, err, ErrValidation)

	_, err = desc.SellbackWitness(nil, winner.payoutPreimage)
	require.ErrorIs(t, err, ErrValidation)
}

// TestSpendPathFromWitnessErrors tests witnesses that don't reveal a leaf of
// the settlement output.
func TestSpendPathFromWitnessErrors(t *testing.T) {
	t.Parallel()

	desc, _, _ := newTestDescriptor(t, 20_000, 6)
	other, _, _ := newTestDescriptor(t, 20_000, 6)
	sig := test.RandBytes(SchnorrSignatureSize)

	otherWitness, err := other.ReclaimWitness(sig)
	require.NoError(t, err)

	tree := desc.Tree()

	testCases := []struct {
		name    string
		witness wire.TxWitness
	}{{
		name:    "key spend",
		witness: wire.TxWitness{sig},
	}, {
		name:    "other output",
		witness: otherWitness,
	}, {
		name: "mismatched control block",
		witness: wire.TxWitness{
			sig, tree.Win.Script, tree.Reclaim.ControlBlockBytes,
		},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := desc.SpendPathFromWitness(tc.witness)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}
