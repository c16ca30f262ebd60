package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightninglabs/splitpay/splitscript"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/urfave/cli"
)

const (
	winnerKeyName   = "winner_key"
	ticketHashName  = "ticket_hash"
	payoutHashName  = "payout_hash"
	playerName      = "player"
	mmKeyName       = "mm_key"
	marketMakerName = "market_maker"
	amountName      = "amount"
	roundDelayName  = "round_delay"
	pathName        = "path"
	sigName         = "sig"
	preimageName    = "preimage"
	payoutName      = "payout"
)

var (
	roundDelayFlag = cli.UintFlag{
		Name: roundDelayName,
		Usage: "the round delay in blocks, the winner can claim " +
			"after one and the market maker can reclaim after two " +
			"round delays",
		Value:  defaultRoundDelay,
		EnvVar: envVarRoundDelay,
	}

	mmKeyFlag = cli.StringFlag{
		Name:  mmKeyName,
		Usage: "the 33-byte compressed public key of the market maker",
	}

	marketMakerFlag = cli.StringFlag{
		Name: marketMakerName,
		Usage: "the TLV encoded market maker, can be used instead " +
			"of --" + mmKeyName,
	}

	descriptorFlags = []cli.Flag{
		cli.StringFlag{
			Name: winnerKeyName,
			Usage: "the 33-byte compressed public key of the " +
				"winning player",
		},
		cli.StringFlag{
			Name:  ticketHashName,
			Usage: "the sha256 hash of the winner's ticket preimage",
		},
		cli.StringFlag{
			Name:  payoutHashName,
			Usage: "the sha256 hash of the winner's payout preimage",
		},
		cli.StringFlag{
			Name: playerName,
			Usage: "the TLV encoded winning player, can be used " +
				"instead of the three flags above",
		},
		mmKeyFlag,
		marketMakerFlag,
		cli.Int64Flag{
			Name:  amountName,
			Usage: "the payout amount in satoshis",
		},
		roundDelayFlag,
	}
)

// spendPathResp describes one script path of a settlement output.
type spendPathResp struct {
	Name         string `json:"name"`
	Script       string `json:"script"`
	ControlBlock string `json:"control_block"`
	Sequence     uint32 `json:"sequence"`
	WitnessSize  int    `json:"witness_size"`
	InputWeight  int64  `json:"input_weight"`
}

// settlementResp describes a settlement output.
type settlementResp struct {
	Address       string          `json:"address"`
	PkScript      string          `json:"pk_script"`
	OutputKey     string          `json:"output_key"`
	InternalKey   string          `json:"internal_key"`
	TapscriptRoot string          `json:"tapscript_root"`
	AmountSat     int64           `json:"amount_sat"`
	RoundDelay    uint16          `json:"round_delay"`
	SpendPaths    []spendPathResp `json:"spend_paths"`
}

// witnessResp is a witness spending a settlement output.
type witnessResp struct {
	Path        string   `json:"path"`
	Witness     []string `json:"witness"`
	WitnessSize int      `json:"witness_size"`
}

// NewDescribeCommand creates the command that prints a settlement output.
func NewDescribeCommand(actionOpts ...ActionOption) cli.Command {
	return cli.Command{
		Name:      "describe",
		ShortName: "d",
		Usage:     "derive the settlement output of a winner",
		Description: `
	Derives the taproot output paying out a winning player, locked to the
	joint key of winner and market maker and committing to the win,
	reclaim and sellback leaves. Prints the address, the locking script
	and for every spend path the leaf script, the control block, the
	required sequence and the predicted input weight.`,
		Flags:  descriptorFlags,
		Action: NewWrappedAction(describe, actionOpts...),
	}
}

func describe(cliCtx *cli.Context, _ context.Context,
	silencePrint bool) (interface{}, error) {

	params, err := networkParams(cliCtx)
	if err != nil {
		return nil, err
	}

	desc, err := parseDescriptor(cliCtx)
	if err != nil {
		return nil, err
	}

	resp, err := marshalSettlement(desc, params)
	if err != nil {
		return nil, err
	}

	if !silencePrint {
		printJSON(resp)
	}

	return resp, nil
}

// NewWitnessCommand creates the command that assembles a script path
// witness.
func NewWitnessCommand(actionOpts ...ActionOption) cli.Command {
	flags := append([]cli.Flag{
		cli.StringFlag{
			Name:  pathName,
			Usage: "the spend path, one of win, reclaim or sellback",
		},
		cli.StringFlag{
			Name:  sigName,
			Usage: "the 64-byte schnorr signature of the spender",
		},
		cli.StringFlag{
			Name: preimageName,
			Usage: "the ticket preimage for the win path or the " +
				"payout preimage for the sellback path",
		},
	}, descriptorFlags...)

	return cli.Command{
		Name:      "witness",
		ShortName: "w",
		Usage:     "assemble the witness of a script path spend",
		Description: `
	Assembles the witness stack spending a settlement output through the
	given script path, checking the preimage against the committed hash.`,
		Flags:  flags,
		Action: NewWrappedAction(assembleWitness, actionOpts...),
	}
}

func assembleWitness(cliCtx *cli.Context, _ context.Context,
	silencePrint bool) (interface{}, error) {

	desc, err := parseDescriptor(cliCtx)
	if err != nil {
		return nil, err
	}

	path, err := splitscript.ParseSpendPath(cliCtx.String(pathName))
	if err != nil {
		return nil, err
	}

	sig, err := parseHexFlag(cliCtx, sigName, schnorr.SignatureSize)
	if err != nil {
		return nil, err
	}

	var preimage lntypes.Preimage
	if path != splitscript.PathReclaim {
		preimageBytes, err := parseHexFlag(
			cliCtx, preimageName, lntypes.PreimageSize,
		)
		if err != nil {
			return nil, err
		}
		copy(preimage[:], preimageBytes)
	}

	var witness [][]byte
	switch path {
	case splitscript.PathWin:
		witness, err = desc.WinWitness(sig, preimage)

	case splitscript.PathReclaim:
		witness, err = desc.ReclaimWitness(sig)

	case splitscript.PathSellback:
		witness, err = desc.SellbackWitness(sig, preimage)
	}
	if err != nil {
		return nil, err
	}

	prediction, err := desc.SpendWeightPrediction(path)
	if err != nil {
		return nil, err
	}

	resp := &witnessResp{
		Path:        path.String(),
		WitnessSize: prediction.WitnessSize(),
	}
	for _, element := range witness {
		resp.Witness = append(resp.Witness, hex.EncodeToString(element))
	}

	if !silencePrint {
		printJSON(resp)
	}

	return resp, nil
}

// NewBuildRoundCommand creates the command that derives the settlement
// outputs of all winners of a round.
func NewBuildRoundCommand(actionOpts ...ActionOption) cli.Command {
	return cli.Command{
		Name:      "buildround",
		ShortName: "r",
		Usage:     "derive the settlement outputs of a whole round",
		Description: `
	Derives the settlement output of every winner of a round. Each payout
	is given as <player_tlv_hex>:<amount_sat>.`,
		Flags: []cli.Flag{
			mmKeyFlag,
			marketMakerFlag,
			cli.StringSliceFlag{
				Name: payoutName,
				Usage: "a payout of the round, can be given " +
					"multiple times",
			},
			roundDelayFlag,
		},
		Action: NewWrappedAction(buildRound, actionOpts...),
	}
}

func buildRound(cliCtx *cli.Context, ctx context.Context,
	silencePrint bool) (interface{}, error) {

	params, err := networkParams(cliCtx)
	if err != nil {
		return nil, err
	}

	marketMaker, err := parseMarketMaker(cliCtx)
	if err != nil {
		return nil, err
	}

	roundDelay, err := parseRoundDelay(cliCtx)
	if err != nil {
		return nil, err
	}

	payoutStrs := cliCtx.StringSlice(payoutName)
	if len(payoutStrs) == 0 {
		return nil, fmt.Errorf("at least one --%s is required",
			payoutName)
	}

	payouts := make([]splitscript.Payout, 0, len(payoutStrs))
	for _, payoutStr := range payoutStrs {
		payout, err := parsePayout(payoutStr)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, payout)
	}

	descs, err := splitscript.BuildRound(
		ctx, marketMaker, payouts, roundDelay,
	)
	if err != nil {
		return nil, err
	}

	resp := make([]*settlementResp, 0, len(descs))
	for _, desc := range descs {
		settlement, err := marshalSettlement(desc, params)
		if err != nil {
			return nil, err
		}
		resp = append(resp, settlement)
	}

	if !silencePrint {
		printJSON(resp)
	}

	return resp, nil
}

// marshalSettlement converts a descriptor into its JSON representation.
func marshalSettlement(desc *splitscript.SettlementDescriptor,
	params *chaincfg.Params) (*settlementResp, error) {

	addr, err := desc.Address(params)
	if err != nil {
		return nil, err
	}

	tree := desc.Tree()
	resp := &settlementResp{
		Address:  addr.EncodeAddress(),
		PkScript: hex.EncodeToString(desc.PkScript()),
		OutputKey: hex.EncodeToString(
			schnorr.SerializePubKey(desc.OutputKey()),
		),
		InternalKey: hex.EncodeToString(
			schnorr.SerializePubKey(tree.InternalKey),
		),
		TapscriptRoot: tree.Root.String(),
		AmountSat:     int64(desc.PayoutValue()),
		RoundDelay:    desc.RoundDelay(),
	}

	for _, path := range splitscript.AllSpendPaths {
		leaf, err := tree.Leaf(path)
		if err != nil {
			return nil, err
		}

		sequence, err := desc.Sequence(path)
		if err != nil {
			return nil, err
		}

		prediction, err := desc.SpendWeightPrediction(path)
		if err != nil {
			return nil, err
		}

		resp.SpendPaths = append(resp.SpendPaths, spendPathResp{
			Name:   path.String(),
			Script: hex.EncodeToString(leaf.Script),
			ControlBlock: hex.EncodeToString(
				leaf.ControlBlockBytes,
			),
			Sequence:    sequence,
			WitnessSize: prediction.WitnessSize(),
			InputWeight: int64(prediction.Weight()),
		})
	}

	return resp, nil
}

// parseDescriptor builds a settlement descriptor from the command flags.
func parseDescriptor(
	cliCtx *cli.Context) (*splitscript.SettlementDescriptor, error) {

	winner, err := parsePlayer(cliCtx)
	if err != nil {
		return nil, err
	}

	marketMaker, err := parseMarketMaker(cliCtx)
	if err != nil {
		return nil, err
	}

	roundDelay, err := parseRoundDelay(cliCtx)
	if err != nil {
		return nil, err
	}

	return splitscript.NewSettlementDescriptor(
		winner, marketMaker, btcutil.Amount(cliCtx.Int64(amountName)),
		roundDelay,
	)
}

// parsePlayer reads the winning player either from its TLV encoding or from
// the individual key and hash flags.
func parsePlayer(cliCtx *cli.Context) (*splitscript.Player, error) {
	if cliCtx.IsSet(playerName) {
		playerBytes, err := parseHexFlag(cliCtx, playerName, 0)
		if err != nil {
			return nil, err
		}

		return splitscript.DecodePlayer(playerBytes)
	}

	pubKey, err := parseHexFlag(cliCtx, winnerKeyName, 0)
	if err != nil {
		return nil, err
	}
	ticketHash, err := parseHexFlag(cliCtx, ticketHashName, 0)
	if err != nil {
		return nil, err
	}
	payoutHash, err := parseHexFlag(cliCtx, payoutHashName, 0)
	if err != nil {
		return nil, err
	}

	return splitscript.NewPlayer(pubKey, ticketHash, payoutHash)
}

// parseMarketMaker reads the market maker either from its TLV encoding or
// from its key flag.
func parseMarketMaker(cliCtx *cli.Context) (*splitscript.MarketMaker,
	error) {

	if cliCtx.IsSet(marketMakerName) {
		marketMakerBytes, err := parseHexFlag(
			cliCtx, marketMakerName, 0,
		)
		if err != nil {
			return nil, err
		}

		return splitscript.DecodeMarketMaker(marketMakerBytes)
	}

	pubKey, err := parseHexFlag(cliCtx, mmKeyName, 0)
	if err != nil {
		return nil, err
	}

	return splitscript.NewMarketMaker(pubKey)
}

func parseRoundDelay(cliCtx *cli.Context) (uint16, error) {
	roundDelay := cliCtx.Uint(roundDelayName)
	if roundDelay > math.MaxUint16 {
		return 0, fmt.Errorf("round delay %d out of range", roundDelay)
	}

	return uint16(roundDelay), nil
}

// parsePayout parses a payout given as <player_tlv_hex>:<amount_sat>.
func parsePayout(payoutStr string) (splitscript.Payout, error) {
	parts := strings.Split(payoutStr, ":")
	if len(parts) != 2 {
		return splitscript.Payout{}, fmt.Errorf("invalid payout %q, "+
			"want <player_tlv_hex>:<amount_sat>", payoutStr)
	}

	playerBytes, err := hex.DecodeString(parts[0])
	if err != nil {
		return splitscript.Payout{}, fmt.Errorf("invalid player "+
			"hex: %w", err)
	}

	player, err := splitscript.DecodePlayer(playerBytes)
	if err != nil {
		return splitscript.Payout{}, err
	}

	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return splitscript.Payout{}, fmt.Errorf("invalid amount: %w",
			err)
	}

	return splitscript.Payout{
		Winner: player,
		Amount: btcutil.Amount(amount),
	}, nil
}

// parseHexFlag decodes a mandatory hex flag. If size is non-zero, the decoded
// value must be exactly that long.
func parseHexFlag(cliCtx *cli.Context, name string, size int) ([]byte,
	error) {

	value := cliCtx.String(name)
	if value == "" {
		return nil, fmt.Errorf("--%s is required", name)
	}

	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid hex for --%s: %w", name, err)
	}

	if size != 0 && len(b) != size {
		return nil, fmt.Errorf("--%s must be %d bytes, got %d", name,
			size, len(b))
	}

	return b, nil
}
