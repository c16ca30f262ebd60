package commands

import (
	"context"
	"encoding/hex"

	"github.com/lightninglabs/splitpay/splitscript"
	"github.com/urfave/cli"
)

// marketMakerResp is the decoded identity of a market maker.
type marketMakerResp struct {
	PubKey  string `json:"pub_key"`
	Encoded string `json:"encoded"`
}

// playerResp is the decoded identity of a player.
type playerResp struct {
	PubKey     string `json:"pub_key"`
	TicketHash string `json:"ticket_hash"`
	PayoutHash string `json:"payout_hash"`
	Encoded    string `json:"encoded"`
}

func partyCommands(actionOpts ...ActionOption) []cli.Command {
	return []cli.Command{
		{
			Name:  "players",
			Usage: "Encode and decode player identities.",
			Subcommands: []cli.Command{
				{
					Name:      "encode",
					ShortName: "e",
					Usage: "encode a player identity as " +
						"TLV",
					Flags: descriptorFlags[:3],
					Action: NewWrappedAction(
						encodePlayer, actionOpts...,
					),
				},
				{
					Name:      "decode",
					ShortName: "d",
					Usage:     "decode a TLV player identity",
					Flags: []cli.Flag{
						descriptorFlags[3],
					},
					Action: NewWrappedAction(
						decodePlayer, actionOpts...,
					),
				},
			},
		},
		{
			Name:  "marketmakers",
			Usage: "Encode and decode market maker identities.",
			Subcommands: []cli.Command{
				{
					Name:      "encode",
					ShortName: "e",
					Usage: "encode a market maker identity " +
						"as TLV",
					Flags: []cli.Flag{mmKeyFlag},
					Action: NewWrappedAction(
						encodeMarketMaker,
						actionOpts...,
					),
				},
				{
					Name:      "decode",
					ShortName: "d",
					Usage: "decode a TLV market maker " +
						"identity",
					Flags: []cli.Flag{marketMakerFlag},
					Action: NewWrappedAction(
						decodeMarketMaker,
						actionOpts...,
					),
				},
			},
		},
	}
}

func encodePlayer(cliCtx *cli.Context, _ context.Context,
	silencePrint bool) (interface{}, error) {

	player, err := parsePlayer(cliCtx)
	if err != nil {
		return nil, err
	}

	return marshalPlayer(player, silencePrint)
}

func decodePlayer(cliCtx *cli.Context, _ context.Context,
	silencePrint bool) (interface{}, error) {

	playerBytes, err := parseHexFlag(cliCtx, playerName, 0)
	if err != nil {
		return nil, err
	}

	player, err := splitscript.DecodePlayer(playerBytes)
	if err != nil {
		return nil, err
	}

	return marshalPlayer(player, silencePrint)
}

func marshalPlayer(player *splitscript.Player,
	silencePrint bool) (*playerResp, error) {

	encoded, err := splitscript.EncodePlayer(player)
	if err != nil {
		return nil, err
	}

	resp := &playerResp{
		PubKey: hex.EncodeToString(
			player.PubKey.SerializeCompressed(),
		),
		TicketHash: player.TicketHash.String(),
		PayoutHash: player.PayoutHash.String(),
		Encoded:    hex.EncodeToString(encoded),
	}

	if !silencePrint {
		printJSON(resp)
	}

	return resp, nil
}

func encodeMarketMaker(cliCtx *cli.Context, _ context.Context,
	silencePrint bool) (interface{}, error) {

	marketMaker, err := parseMarketMaker(cliCtx)
	if err != nil {
		return nil, err
	}

	return marshalMarketMaker(marketMaker, silencePrint)
}

func decodeMarketMaker(cliCtx *cli.Context, _ context.Context,
	silencePrint bool) (interface{}, error) {

	marketMakerBytes, err := parseHexFlag(cliCtx, marketMakerName, 0)
	if err != nil {
		return nil, err
	}

	marketMaker, err := splitscript.DecodeMarketMaker(marketMakerBytes)
	if err != nil {
		return nil, err
	}

	return marshalMarketMaker(marketMaker, silencePrint)
}

func marshalMarketMaker(marketMaker *splitscript.MarketMaker,
	silencePrint bool) (*marketMakerResp, error) {

	encoded, err := splitscript.EncodeMarketMaker(marketMaker)
	if err != nil {
		return nil, err
	}

	resp := &marketMakerResp{
		PubKey: hex.EncodeToString(
			marketMaker.PubKey.SerializeCompressed(),
		),
		Encoded: hex.EncodeToString(encoded),
	}

	if !silencePrint {
		printJSON(resp)
	}

	return resp, nil
}
