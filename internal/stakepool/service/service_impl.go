package service

import (
	"github.com/sublyhq/subly/internal/config"
	stakepooldomain "github.com/sublyhq/subly/internal/stakepool/domain"
	"github.com/sublyhq/subly/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const rateScale = 10_000

// Adapter implements the pool boundary with a fixed exchange rate: one
// pool token redeems for rateBps/10000 native units. A production
// deployment points this at the live pool; the billing core only depends
// on the two conversion legs.
type Adapter struct {
	log     *zap.Logger
	rateBps int64
}

type Params struct {
	fx.In

	Log *zap.Logger
	Cfg config.Config
}

func NewAdapter(p Params) stakepooldomain.Adapter {
	rate := p.Cfg.Protocol.StakeRateBps
	if rate <= 0 {
		rate = rateScale
	}
	return &Adapter{
		log:     p.Log.Named("stakepool.adapter"),
		rateBps: rate,
	}
}

func (a *Adapter) Deposit(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, stakepooldomain.ErrInvalidAmount
	}
	tokens, err := money.MulDiv(amount, rateScale, a.rateBps)
	if err != nil {
		return 0, stakepooldomain.ErrStakePoolError
	}
	return tokens, nil
}

func (a *Adapter) Withdraw(poolTokens int64) (int64, error) {
	if poolTokens <= 0 {
		return 0, stakepooldomain.ErrInvalidAmount
	}
	amount, err := money.MulDiv(poolTokens, a.rateBps, rateScale)
	if err != nil {
		return 0, stakepooldomain.ErrStakePoolError
	}
	return amount, nil
}
