package splitscript

import (
	"context"
	"fmt"
	"runtime"

	"github.com/btcsuite/btcd/btcutil"
	"golang.org/x/sync/errgroup"
)

// Payout is the amount a winning player is owed at the end of a round.
type Payout struct {
	// Winner is the winning player.
	Winner *Player

	// Amount is the value of the winner's settlement output.
	Amount btcutil.Amount
}

// BuildRound creates the settlement descriptors for all winners of a round
// with the same market maker and round delay. The descriptors are independent
// of each other and are built concurrently, but returned in the order of the
// given payouts. The first failure aborts the remaining builds.
func BuildRound(ctx context.Context, marketMaker *MarketMaker,
	payouts []Payout, roundDelay uint16) ([]*SettlementDescriptor, error) {

	if err := marketMaker.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateRoundDelay(roundDelay); err != nil {
		return nil, err
	}

	// Two winners sharing a key would end up with the same joint key, so
	// one could spend the other's key path together with the market maker.
	seen := make(map[[33]byte]int, len(payouts))
	for i, payout := range payouts {
		if err := payout.Winner.Validate(); err != nil {
			return nil, fmt.Errorf("payout %d: %w", i, err)
		}

		var key [33]byte
		copy(key[:], payout.Winner.PubKey.SerializeCompressed())
		if j, ok := seen[key]; ok {
			return nil, validationErrorf("payouts %d and %d have the "+
				"same winner key %x", j, i, key)
		}
		seen[key] = i
	}

	descriptors := make([]*SettlementDescriptor, len(payouts))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for i := range payouts {
		payout := payouts[i]

		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			desc, err := NewSettlementDescriptor(
				payout.Winner, marketMaker, payout.Amount,
				roundDelay,
			)
			if err != nil {
				return fmt.Errorf("payout %d: %w", i, err)
			}

			descriptors[i] = desc

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	log.Infof("Built %d settlement descriptors with round delay %d",
		len(descriptors), roundDelay)

	return descriptors, nil
}
