package splitscript

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// KeyAggContext is the result of aggregating the public keys of all signers
// of a settlement output into one joint MuSig2 key. A context is either
// untweaked, in which case the aggregated key is the internal key of the
// taproot output, or it is bound to a tapscript root and the aggregated key
// is the taproot output key itself.
//
// The context doesn't hold any secrets. It carries exactly what a signing
// session needs to re-create the same key aggregation on its side, see
// ContextOptions.
type KeyAggContext struct {
	// signers is the set of signer keys in canonical order.
	signers []*btcec.PublicKey

	aggKey *musig2.AggregateKey

	tapscriptRoot fn.Option[chainhash.Hash]
}

// SortKeys returns a copy of the given keys in canonical order: ascending
// byte-lexicographic order of their 33-byte compressed encoding. Both parties
// of a settlement sort independently, so this order is part of the protocol
// and must never depend on the order keys were received in.
func SortKeys(keys []*btcec.PublicKey) []*btcec.PublicKey {
	sorted := make([]*btcec.PublicKey, len(keys))
	copy(sorted, keys)

	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(
			sorted[i].SerializeCompressed(),
			sorted[j].SerializeCompressed(),
		) < 0
	})

	return sorted
}

// AggregateKeys aggregates the given public keys into an untweaked MuSig2
// key aggregation context. The keys are put in canonical order first (see
// SortKeys), so the result doesn't depend on the order they're passed in.
func AggregateKeys(keys ...*btcec.PublicKey) (*KeyAggContext, error) {
	if len(keys) < 2 {
		return nil, setupErrorf("need at least two keys to aggregate, "+
			"got %d", len(keys))
	}

	for i, key := range keys {
		if key == nil {
			return nil, setupErrorf("key %d is nil", i)
		}
		if !key.IsOnCurve() {
			return nil, setupErrorf("key %d is not a valid curve "+
				"point", i)
		}
	}

	signers := SortKeys(keys)
	for i := 1; i < len(signers); i++ {
		if signers[i-1].IsEqual(signers[i]) {
			return nil, setupErrorf("duplicate key %x",
				signers[i].SerializeCompressed())
		}
	}

	// The keys are already in canonical order, so we tell the MuSig2
	// implementation not to sort them again.
	aggKey, _, _, err := musig2.AggregateKeys(signers, false)
	if err != nil {
		return nil, setupErrorf("unable to aggregate keys: %w", err)
	}

	return &KeyAggContext{
		signers:       signers,
		aggKey:        aggKey,
		tapscriptRoot: fn.None[chainhash.Hash](),
	}, nil
}

// WithTaprootTweak derives a new context from an untweaked one, whose
// aggregated key is the joint key tweaked with the given tapscript root as
// defined in BIP 341. The root must be final; every signature produced from
// the returned context is only valid for an output committing to exactly this
// root.
func (k *KeyAggContext) WithTaprootTweak(
	root chainhash.Hash) (*KeyAggContext, error) {

	if k.tapscriptRoot.IsSome() {
		return nil, setupErrorf("key aggregation context is already " +
			"tweaked")
	}

	aggKey, _, _, err := musig2.AggregateKeys(
		k.signers, false, musig2.WithTaprootKeyTweak(root[:]),
	)
	if err != nil {
		return nil, setupErrorf("unable to apply taproot tweak: %w",
			err)
	}

	signers := make([]*btcec.PublicKey, len(k.signers))
	copy(signers, k.signers)

	return &KeyAggContext{
		signers:       signers,
		aggKey:        aggKey,
		tapscriptRoot: fn.Some(root),
	}, nil
}

// SignerKeys returns the signer keys in canonical order.
func (k *KeyAggContext) SignerKeys() []*btcec.PublicKey {
	signers := make([]*btcec.PublicKey, len(k.signers))
	copy(signers, k.signers)

	return signers
}

// InternalKey returns the joint key before any taproot tweak is applied.
func (k *KeyAggContext) InternalKey() *btcec.PublicKey {
	return k.aggKey.PreTweakedKey
}

// AggregatedKey returns the effective key of the context: the joint key for
// an untweaked context or the taproot output key for a tweaked one.
func (k *KeyAggContext) AggregatedKey() *btcec.PublicKey {
	return k.aggKey.FinalKey
}

// TapscriptRoot returns the root the context is bound to, if any.
func (k *KeyAggContext) TapscriptRoot() fn.Option[chainhash.Hash] {
	return k.tapscriptRoot
}

// IsTweaked returns true if the context is bound to a tapscript root.
func (k *KeyAggContext) IsTweaked() bool {
	return k.tapscriptRoot.IsSome()
}

// KeyAggOptions returns the options to pass to musig2.AggregateKeys, together
// with SignerKeys and sorting disabled, to re-derive AggregatedKey.
func (k *KeyAggContext) KeyAggOptions() []musig2.KeyAggOption {
	var opts []musig2.KeyAggOption
	k.tapscriptRoot.WhenSome(func(root chainhash.Hash) {
		opts = append(opts, musig2.WithTaprootKeyTweak(root[:]))
	})

	return opts
}

// ContextOptions returns the options a signing session passes to
// musig2.NewContext to sign for AggregatedKey. The session must be created
// with sorting disabled, as the known signers are already in canonical order.
func (k *KeyAggContext) ContextOptions() []musig2.ContextOption {
	opts := []musig2.ContextOption{
		musig2.WithKnownSigners(k.SignerKeys()),
	}
	k.tapscriptRoot.WhenSome(func(root chainhash.Hash) {
		opts = append(opts, musig2.WithTaprootTweakCtx(root[:]))
	})

	return opts
}
