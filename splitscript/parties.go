package splitscript

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/tlv"
)

// PartyTlvType represents the different TLV types of the records used to
// exchange player and market maker identities.
type PartyTlvType = tlv.Type

const (
	PartyPubKey     PartyTlvType = 0
	PartyTicketHash PartyTlvType = 2
	PartyPayoutHash PartyTlvType = 4
)

var (
	// playerTypes is the set of record types of a player identity, all of
	// them required.
	playerTypes = fn.NewSet(PartyPubKey, PartyTicketHash, PartyPayoutHash)

	// marketMakerTypes is the set of record types of a market maker
	// identity, all of them required.
	marketMakerTypes = fn.NewSet(PartyPubKey)
)

// ErrUnknownType is returned when a party identity contains an even record
// type that isn't known. Unknown odd types are skipped.
type ErrUnknownType struct {
	// UnknownType is the unknown record type.
	UnknownType tlv.Type

	// ValueBytes is the raw value of the record.
	ValueBytes []byte
}

// Error returns the error string.
//
// NOTE: Part of the error interface.
func (e ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown required record type %d", e.UnknownType)
}

// Player is a ticket holder that won a round. The player commits to two
// preimages: the ticket preimage, revealed to claim the payout on-chain, and
// the payout preimage, sold to the market maker to settle off-chain.
type Player struct {
	// PubKey is the player's public key, used both in the joint MuSig2 key
	// and in the win script leaf.
	PubKey *btcec.PublicKey

	// TicketHash is the sha256 hash of the player's ticket preimage.
	TicketHash lntypes.Hash

	// PayoutHash is the sha256 hash of the player's payout preimage.
	PayoutHash lntypes.Hash
}

// NewPlayer parses the raw identity of a player. The public key must be a
// 33-byte compressed key, as the full point is needed for MuSig2 key
// aggregation, and both hashes must be 32 bytes.
func NewPlayer(pubKey, ticketHash, payoutHash []byte) (*Player, error) {
	key, err := parsePartyKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("player: %w", err)
	}

	ticket, err := lntypes.MakeHash(ticketHash)
	if err != nil {
		return nil, validationErrorf("player ticket hash: %w", err)
	}

	payout, err := lntypes.MakeHash(payoutHash)
	if err != nil {
		return nil, validationErrorf("player payout hash: %w", err)
	}

	return &Player{
		PubKey:     key,
		TicketHash: ticket,
		PayoutHash: payout,
	}, nil
}

// Validate makes sure the player identity can be used in a settlement
// contract.
func (p *Player) Validate() error {
	if p == nil {
		return validationErrorf("player is nil")
	}

	if err := validatePartyKey(p.PubKey); err != nil {
		return fmt.Errorf("player: %w", err)
	}

	return nil
}

// Copy returns a deep copy of the player.
func (p *Player) Copy() *Player {
	pubKey := *p.PubKey

	return &Player{
		PubKey:     &pubKey,
		TicketHash: p.TicketHash,
		PayoutHash: p.PayoutHash,
	}
}

// Encode encodes the player identity as a TLV stream.
func (p *Player) Encode(w io.Writer) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var pubKey [btcec.PubKeyBytesLenCompressed]byte
	copy(pubKey[:], p.PubKey.SerializeCompressed())

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(PartyPubKey, &pubKey),
		tlv.MakePrimitiveRecord(
			PartyTicketHash, (*[32]byte)(&p.TicketHash),
		),
		tlv.MakePrimitiveRecord(
			PartyPayoutHash, (*[32]byte)(&p.PayoutHash),
		),
	)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Decode decodes a player identity from a TLV stream. All records are
// required.
func (p *Player) Decode(r io.Reader) error {
	var (
		pubKey                 [btcec.PubKeyBytesLenCompressed]byte
		ticketHash, payoutHash [32]byte
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(PartyPubKey, &pubKey),
		tlv.MakePrimitiveRecord(PartyTicketHash, &ticketHash),
		tlv.MakePrimitiveRecord(PartyPayoutHash, &payoutHash),
	)
	if err != nil {
		return err
	}

	if err := decodeParty(stream, r, playerTypes); err != nil {
		return fmt.Errorf("player: %w", err)
	}

	key, err := parsePartyKey(pubKey[:])
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}

	p.PubKey = key
	p.TicketHash = ticketHash
	p.PayoutHash = payoutHash

	return nil
}

// MarketMaker is the counterparty of every player in a round. It funds the
// payouts and can reclaim or buy back each player's payout output.
type MarketMaker struct {
	// PubKey is the market maker's public key, used both in the joint
	// MuSig2 key and in the reclaim and sellback script leaves.
	PubKey *btcec.PublicKey
}

// NewMarketMaker parses the raw 33-byte compressed public key of the market
// maker.
func NewMarketMaker(pubKey []byte) (*MarketMaker, error) {
	key, err := parsePartyKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("market maker: %w", err)
	}

	return &MarketMaker{
		PubKey: key,
	}, nil
}

// Validate makes sure the market maker identity can be used in a settlement
// contract.
func (m *MarketMaker) Validate() error {
	if m == nil {
		return validationErrorf("market maker is nil")
	}

	if err := validatePartyKey(m.PubKey); err != nil {
		return fmt.Errorf("market maker: %w", err)
	}

	return nil
}

// Encode encodes the market maker identity as a TLV stream.
func (m *MarketMaker) Encode(w io.Writer) error {
	if err := m.Validate(); err != nil {
		return err
	}

	var pubKey [btcec.PubKeyBytesLenCompressed]byte
	copy(pubKey[:], m.PubKey.SerializeCompressed())

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(PartyPubKey, &pubKey),
	)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Decode decodes a market maker identity from a TLV stream.
func (m *MarketMaker) Decode(r io.Reader) error {
	var pubKey [btcec.PubKeyBytesLenCompressed]byte
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(PartyPubKey, &pubKey),
	)
	if err != nil {
		return err
	}

	if err := decodeParty(stream, r, marketMakerTypes); err != nil {
		return fmt.Errorf("market maker: %w", err)
	}

	key, err := parsePartyKey(pubKey[:])
	if err != nil {
		return fmt.Errorf("market maker: %w", err)
	}
	m.PubKey = key

	return nil
}

// EncodePlayer is a helper that returns the TLV encoding of a player.
func EncodePlayer(p *Player) ([]byte, error) {
	var b bytes.Buffer
	if err := p.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// DecodePlayer is a helper that decodes a player from its TLV encoding.
func DecodePlayer(b []byte) (*Player, error) {
	var p Player
	if err := p.Decode(bytes.NewReader(b)); err != nil {
		return nil, err
	}

	return &p, nil
}

// EncodeMarketMaker is a helper that returns the TLV encoding of a market
// maker.
func EncodeMarketMaker(m *MarketMaker) ([]byte, error) {
	var b bytes.Buffer
	if err := m.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// DecodeMarketMaker is a helper that decodes a market maker from its TLV
// encoding.
func DecodeMarketMaker(b []byte) (*MarketMaker, error) {
	var m MarketMaker
	if err := m.Decode(bytes.NewReader(b)); err != nil {
		return nil, err
	}

	return &m, nil
}

// decodeParty decodes the stream of a party identity. All known types are
// required, and unknown even types are rejected.
func decodeParty(stream *tlv.Stream, r io.Reader,
	knownTypes fn.Set[tlv.Type]) error {

	parsedTypes, err := stream.DecodeWithParsedTypes(r)
	if err != nil {
		return validationErrorf("unable to decode identity: %w", err)
	}

	for typ, value := range parsedTypes {
		if typ%2 == 0 && !knownTypes.Contains(typ) {
			return validationErrorf("%w", ErrUnknownType{
				UnknownType: typ,
				ValueBytes:  value,
			})
		}
	}

	for _, typ := range knownTypes.ToSlice() {
		if _, ok := parsedTypes[typ]; !ok {
			return validationErrorf("record type %d missing", typ)
		}
	}

	return nil
}

// parsePartyKey parses a 33-byte compressed public key.
func parsePartyKey(pubKey []byte) (*btcec.PublicKey, error) {
	if len(pubKey) != btcec.PubKeyBytesLenCompressed {
		return nil, validationErrorf("invalid public key length %d, "+
			"want %d", len(pubKey), btcec.PubKeyBytesLenCompressed)
	}

	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return nil, validationErrorf("invalid public key: %w", err)
	}

	return key, nil
}

func validatePartyKey(key *btcec.PublicKey) error {
	switch {
	case key == nil:
		return validationErrorf("public key is nil")

	case !key.IsOnCurve():
		return validationErrorf("public key %x is not on the curve",
			key.SerializeCompressed())
	}

	return nil
}
