package splitscript

import (
	"bytes"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/lightningnetwork/lnd/queue"
)

const (
	// SellbackLeafWeight is the expected spend frequency of the sellback
	// leaf. Cooperative sellbacks are by far the most common way a payout
	// output is spent, so the leaf gets the shortest inclusion proof.
	SellbackLeafWeight = 2

	// WinLeafWeight is the expected spend frequency of the win leaf.
	WinLeafWeight = 1

	// ReclaimLeafWeight is the expected spend frequency of the reclaim
	// leaf.
	ReclaimLeafWeight = 1

	// MaxLeafScriptSize is the largest leaf script accepted in a tree.
	MaxLeafScriptSize = txscript.MaxScriptSize
)

// SpendPath identifies one of the three script paths of a settlement output.
type SpendPath uint8

const (
	// PathWin is the winner's claim after one round delay, revealing the
	// ticket preimage.
	PathWin SpendPath = iota

	// PathReclaim is the market maker's fallback claim after two round
	// delays.
	PathReclaim

	// PathSellback is the market maker's immediate claim after learning
	// the payout preimage from the winner.
	PathSellback
)

// AllSpendPaths lists every spend path of a settlement output.
var AllSpendPaths = []SpendPath{PathWin, PathReclaim, PathSellback}

// String returns the name of the spend path.
func (p SpendPath) String() string {
	switch p {
	case PathWin:
		return "win"

	case PathReclaim:
		return "reclaim"

	case PathSellback:
		return "sellback"

	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// ParseSpendPath parses the name of a spend path.
func ParseSpendPath(name string) (SpendPath, error) {
	for _, path := range AllSpendPaths {
		if path.String() == name {
			return path, nil
		}
	}

	return 0, validationErrorf("unknown spend path %q", name)
}

// WeightedLeaf is a tapscript leaf together with its expected spend
// frequency. The weight only influences the depth of the leaf in the tree, it
// says nothing about spend priority.
type WeightedLeaf struct {
	// Weight is the relative frequency the leaf is expected to be spent
	// with. Must be positive.
	Weight uint32

	// Leaf is the tapscript leaf.
	Leaf txscript.TapLeaf
}

// HuffmanTree is a tapscript tree assembled from weighted leaves so that the
// expected size of an inclusion proof is minimal.
type HuffmanTree struct {
	// RootNode is the root of the tree.
	RootNode txscript.TapNode

	// LeafProofs holds the inclusion proof of every leaf, in the order the
	// leaves were passed to BuildHuffmanTree.
	LeafProofs []txscript.TapscriptProof
}

// RootHash returns the tapscript root hash of the tree.
func (t *HuffmanTree) RootHash() chainhash.Hash {
	return t.RootNode.TapHash()
}

// huffmanNode is a (sub-)tree waiting to be merged.
type huffmanNode struct {
	weight uint64

	// seq is the insertion sequence number, used to break ties between
	// nodes of equal weight.
	seq uint64

	node txscript.TapNode

	// height is the depth of the deepest leaf below this node.
	height int

	// leaves are the indexes of all leaves below this node.
	leaves []int
}

// Less orders nodes by ascending weight, then by insertion sequence.
//
// NOTE: Part of the queue.PriorityQueueItem interface.
func (n *huffmanNode) Less(other queue.PriorityQueueItem) bool {
	o := other.(*huffmanNode)
	if n.weight != o.weight {
		return n.weight < o.weight
	}

	return n.seq < o.seq
}

// BuildHuffmanTree assembles a tapscript tree from the weighted leaves by
// repeatedly merging the two nodes of lowest weight into a branch weighing
// their sum, until a single root remains.
//
// Ties between equal weights are broken by insertion order: leaves are
// numbered in the order given, and every new branch gets the next number.
// This rule is part of the protocol, as both parties of a settlement must
// derive the same tree independently.
func BuildHuffmanTree(leaves []WeightedLeaf) (*HuffmanTree, error) {
	if len(leaves) == 0 {
		return nil, treeBuildErrorf("tree needs at least one leaf")
	}

	var (
		pq     queue.PriorityQueue
		proofs = make([][]byte, len(leaves))
		seq    uint64
	)
	for i, leaf := range leaves {
		switch {
		case leaf.Weight == 0:
			return nil, treeBuildErrorf("leaf %d has zero weight", i)

		case len(leaf.Leaf.Script) > MaxLeafScriptSize:
			return nil, treeBuildErrorf("leaf %d script size %d "+
				"exceeds limit of %d", i, len(leaf.Leaf.Script),
				MaxLeafScriptSize)
		}

		pq.Push(&huffmanNode{
			weight: uint64(leaf.Weight),
			seq:    seq,
			node:   leaf.Leaf,
			leaves: []int{i},
		})
		seq++
	}

	for pq.Len() > 1 {
		first := pq.Pop().(*huffmanNode)
		second := pq.Pop().(*huffmanNode)

		if first.weight > math.MaxUint64-second.weight {
			return nil, treeBuildErrorf("leaf weights overflow")
		}

		// Every leaf below one side proves its inclusion with the hash
		// of the other side at this level.
		firstHash := first.node.TapHash()
		secondHash := second.node.TapHash()
		for _, idx := range first.leaves {
			proofs[idx] = append(proofs[idx], secondHash[:]...)
		}
		for _, idx := range second.leaves {
			proofs[idx] = append(proofs[idx], firstHash[:]...)
		}

		merged := &huffmanNode{
			weight: first.weight + second.weight,
			seq:    seq,
			node:   txscript.NewTapBranch(first.node, second.node),
			height: max(first.height, second.height) + 1,
			leaves: append(first.leaves, second.leaves...),
		}
		seq++

		if merged.height > txscript.ControlBlockMaxNodeCount {
			return nil, treeBuildErrorf("tree depth %d exceeds "+
				"limit of %d", merged.height,
				txscript.ControlBlockMaxNodeCount)
		}

		pq.Push(merged)
	}

	root := pq.Pop().(*huffmanNode)

	leafProofs := make([]txscript.TapscriptProof, len(leaves))
	for i, leaf := range leaves {
		leafProofs[i] = txscript.TapscriptProof{
			TapLeaf:        leaf.Leaf,
			InclusionProof: proofs[i],
		}
	}

	return &HuffmanTree{
		RootNode:   root.node,
		LeafProofs: leafProofs,
	}, nil
}

// SpendLeaf is one script path of a settlement output together with
// everything needed to reveal it in a witness.
type SpendLeaf struct {
	// Script is the leaf script.
	Script []byte

	// TapLeaf is the tapscript leaf of Script.
	TapLeaf txscript.TapLeaf

	// ControlBlock proves the inclusion of the leaf in the output key.
	ControlBlock txscript.ControlBlock

	// ControlBlockBytes is the serialized control block.
	ControlBlockBytes []byte
}

// SplitTree is the tapscript tree of a settlement output. It has exactly the
// three leaves of a settlement, each with its control block computed when the
// tree is built, so no proof can be missing later on.
type SplitTree struct {
	// InternalKey is the joint MuSig2 key of winner and market maker.
	InternalKey *btcec.PublicKey

	// OutputKey is InternalKey tweaked with Root.
	OutputKey *btcec.PublicKey

	// Root is the tapscript root hash committing to all three leaves.
	Root chainhash.Hash

	// Win is the winner's claim leaf.
	Win SpendLeaf

	// Reclaim is the market maker's timeout leaf.
	Reclaim SpendLeaf

	// Sellback is the market maker's hash locked leaf.
	Sellback SpendLeaf
}

// NewSplitTree assembles the settlement tree under the given internal key
// from the weighted leaves {(2, sellback), (1, win), (1, reclaim)}. The tree
// owns copies of the given scripts.
func NewSplitTree(internalKey *btcec.PublicKey, winScript, reclaimScript,
	sellbackScript []byte) (*SplitTree, error) {

	if internalKey == nil {
		return nil, setupErrorf("internal key is nil")
	}

	scripts := [][]byte{
		bytes.Clone(sellbackScript),
		bytes.Clone(winScript),
		bytes.Clone(reclaimScript),
	}
	tree, err := BuildHuffmanTree([]WeightedLeaf{{
		Weight: SellbackLeafWeight,
		Leaf:   txscript.NewBaseTapLeaf(scripts[0]),
	}, {
		Weight: WinLeafWeight,
		Leaf:   txscript.NewBaseTapLeaf(scripts[1]),
	}, {
		Weight: ReclaimLeafWeight,
		Leaf:   txscript.NewBaseTapLeaf(scripts[2]),
	}})
	if err != nil {
		return nil, err
	}

	if len(tree.LeafProofs) != len(scripts) {
		invariantViolation("tree has %d proofs for %d leaves",
			len(tree.LeafProofs), len(scripts))
	}

	root := tree.RootHash()
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, root[:])
	outputKeyYIsOdd := outputKey.SerializeCompressed()[0] ==
		secp.PubKeyFormatCompressedOdd

	spendLeaves := make([]SpendLeaf, len(scripts))
	for i := range tree.LeafProofs {
		proof := tree.LeafProofs[i]

		ctrlBlock := proof.ToControlBlock(internalKey)
		ctrlBlock.OutputKeyYIsOdd = outputKeyYIsOdd

		ctrlBlockBytes, err := ctrlBlock.ToBytes()
		if err != nil {
			invariantViolation("unable to serialize control "+
				"block: %v", err)
		}

		spendLeaves[i] = SpendLeaf{
			Script:            scripts[i],
			TapLeaf:           proof.TapLeaf,
			ControlBlock:      ctrlBlock,
			ControlBlockBytes: ctrlBlockBytes,
		}
	}

	return &SplitTree{
		InternalKey: internalKey,
		OutputKey:   outputKey,
		Root:        root,
		Sellback:    spendLeaves[0],
		Win:         spendLeaves[1],
		Reclaim:     spendLeaves[2],
	}, nil
}

// Leaf returns the spend leaf of the given path.
func (t *SplitTree) Leaf(path SpendPath) (*SpendLeaf, error) {
	switch path {
	case PathWin:
		return &t.Win, nil

	case PathReclaim:
		return &t.Reclaim, nil

	case PathSellback:
		return &t.Sellback, nil

	default:
		return nil, validationErrorf("unknown spend path %v", path)
	}
}

// VerifyLeaf checks the control block of a leaf against the output key using
// the BIP 341 leaf inclusion rules.
func (t *SplitTree) VerifyLeaf(leaf *SpendLeaf) error {
	return txscript.VerifyTaprootLeafCommitment(
		&leaf.ControlBlock, schnorr.SerializePubKey(t.OutputKey),
		leaf.Script,
	)
}

// Copy returns a deep copy of the spend leaf.
func (l *SpendLeaf) Copy() SpendLeaf {
	ctrlBlock := l.ControlBlock
	ctrlBlock.InclusionProof = bytes.Clone(l.ControlBlock.InclusionProof)

	script := bytes.Clone(l.Script)

	return SpendLeaf{
		Script:            script,
		TapLeaf:           txscript.NewTapLeaf(l.TapLeaf.LeafVersion, script),
		ControlBlock:      ctrlBlock,
		ControlBlockBytes: bytes.Clone(l.ControlBlockBytes),
	}
}

// Copy returns a deep copy of the tree.
func (t *SplitTree) Copy() *SplitTree {
	return &SplitTree{
		InternalKey: t.InternalKey,
		OutputKey:   t.OutputKey,
		Root:        t.Root,
		Win:         t.Win.Copy(),
		Reclaim:     t.Reclaim.Copy(),
		Sellback:    t.Sellback.Copy(),
	}
}
