package node

import (
	"context"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
)

func (n *Node) Mint(ctx context.Context, caller, to domain.Account, amount *domain.Amount) error {
	return n.run(ctx, "mint", caller, func(ctx context.Context, tx state.Tx) error {
		return n.ledger.Mint(ctx, tx, caller, to, amount)
	})
}

func (n *Node) Burn(ctx context.Context, caller domain.Account, amount *domain.Amount) error {
	return n.run(ctx, "burn", caller, func(ctx context.Context, tx state.Tx) error {
		return n.ledger.Burn(ctx, tx, caller, amount)
	})
}

func (n *Node) BurnBlackFunds(ctx context.Context, caller, account domain.Account) error {
	return n.run(ctx, "burn_black_funds", caller, func(ctx context.Context, tx state.Tx) error {
		return n.ledger.BurnBlackFunds(ctx, tx, caller, account)
	})
}

func (n *Node) Transfer(ctx context.Context, caller, to domain.Account, amount *domain.Amount) error {
	amount = orZero(amount)
	return n.run(ctx, "transfer", caller, func(ctx context.Context, tx state.Tx) error {
		return n.ledger.Transfer(ctx, tx, caller, to, amount)
	})
}

func (n *Node) TransferFrom(ctx context.Context, spender, from, to domain.Account, amount *domain.Amount) error {
	amount = orZero(amount)
	return n.run(ctx, "transfer_from", spender, func(ctx context.Context, tx state.Tx) error {
		return n.ledger.TransferFrom(ctx, tx, spender, from, to, amount)
	})
}

func (n *Node) Approve(ctx context.Context, owner, spender domain.Account, amount *domain.Amount) error {
	amount = orZero(amount)
	return n.run(ctx, "approve", owner, func(ctx context.Context, tx state.Tx) error {
		return n.ledger.Approve(ctx, tx, owner, spender, amount)
	})
}

func (n *Node) BalanceOf(ctx context.Context, account domain.Account) (*domain.Amount, error) {
	return query(ctx, n, "balance_of", func(ctx context.Context, tx state.Tx) (*domain.Amount, error) {
		return n.ledger.BalanceOf(ctx, tx, account)
	})
}

func (n *Node) Allowance(ctx context.Context, owner, spender domain.Account) (*domain.Amount, error) {
	return query(ctx, n, "allowance", func(ctx context.Context, tx state.Tx) (*domain.Amount, error) {
		return n.ledger.Allowance(ctx, tx, owner, spender)
	})
}

func (n *Node) TotalSupply(ctx context.Context) (*domain.Amount, error) {
	return query(ctx, n, "total_supply", func(ctx context.Context, tx state.Tx) (*domain.Amount, error) {
		return n.ledger.TotalSupply(ctx, tx)
	})
}
