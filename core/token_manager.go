// SPDX-License-Identifier: BUSL-1.1
package core

// Token Manager (system:token_manager): the second built-in native
// contract. transfer/mint/burn mutate account balances through the
// same ChainState.Accounts ledger the Chain Engine's Transfer
// transaction uses, so supply conservation stays centrally auditable,
// and mirror the result into the Contract Storage balance/total_supply
// keys so the schema stays the portable source of truth for anything
// reading through the storage façade instead of ChainState.
//
// Shaped after a TokenManager wrapping a ledger and a gas calculator
// with a Transfer/Mint/Burn/BalanceOf surface, with the pluggable Token
// interface dropped in favor of the four concrete TokenKind values.

import (
	"encoding/json"
	"math/big"

	log "github.com/sirupsen/logrus"
)

var tokenManagerLog = log.WithField("component", "token_manager")

type tokenManagerContract struct {
	privilegedMinter Address
}

func newTokenManagerContract(minter Address) *tokenManagerContract {
	return &tokenManagerContract{privilegedMinter: minter}
}

func (t *tokenManagerContract) storage(ctx *ExecutionContext) (*ContractStorage, error) {
	info, ok := ctx.State.GetContract(ctx.ContractID)
	if !ok {
		return nil, NewError(KindNotFound, "contract info missing for "+ctx.ContractID)
	}
	return newContractStorage(info, ctx.Gas), nil
}

func (t *tokenManagerContract) Init(ctx *ExecutionContext, initData []byte) (*ContractResult, error) {
	if len(initData) == len(Address{}) {
		copy(t.privilegedMinter[:], initData)
	}
	return &ContractResult{Success: true, GasUsed: ctx.Gas.Used()}, nil
}

type tokenTransferRequest struct {
	To     Address   `json:"to"`
	Kind   TokenKind `json:"kind"`
	Amount *big.Int  `json:"amount"`
}

type tokenMintRequest struct {
	To     Address   `json:"to"`
	Kind   TokenKind `json:"kind"`
	Amount *big.Int  `json:"amount"`
}

type tokenBurnRequest struct {
	From   Address   `json:"from"`
	Kind   TokenKind `json:"kind"`
	Amount *big.Int  `json:"amount"`
}

func (t *tokenManagerContract) mirrorBalance(storage *ContractStorage, ctx *ExecutionContext, addr Address, kind TokenKind) error {
	acc, ok := ctx.State.GetAccount(addr)
	if !ok {
		return nil
	}
	if err := storage.SetU128(tokenBalanceKey(addr, kind), acc.balance(kind)); err != nil {
		return err
	}
	supply := ctx.State.TotalSupply[kind]
	if supply == nil {
		supply = big.NewInt(0)
	}
	return storage.SetU128(tokenTotalSupplyKey(kind), supply)
}

func (t *tokenManagerContract) Call(ctx *ExecutionContext, method string, data []byte) (*ContractResult, error) {
	storage, err := t.storage(ctx)
	if err != nil {
		return nil, err
	}

	switch method {
	case "transfer":
		var req tokenTransferRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, WrapErr(KindBadInput, err, "transfer: malformed request")
		}
		if req.Kind == Soul {
			return nil, NewError(KindSoulNonTransferable, "soul tokens are not transferable")
		}
		if err := ctx.Gas.ChargeOp(OpTokenTransfer); err != nil {
			return nil, err
		}
		if err := ctx.State.AdjustBalance(ctx.Caller, req.Kind, new(big.Int).Neg(req.Amount)); err != nil {
			return nil, err
		}
		if err := ctx.State.AdjustBalance(req.To, req.Kind, req.Amount); err != nil {
			return nil, err
		}
		if err := t.mirrorBalance(storage, ctx, ctx.Caller, req.Kind); err != nil {
			return nil, err
		}
		if err := t.mirrorBalance(storage, ctx, req.To, req.Kind); err != nil {
			return nil, err
		}
		if err := ctx.Emit("token_transferred", nil); err != nil {
			return nil, err
		}
		return &ContractResult{Success: true, GasUsed: ctx.Gas.Used(), Events: ctx.Events}, nil

	case "mint":
		if ctx.Caller != t.privilegedMinter {
			return nil, NewError(KindUnauthorized, "caller is not the privileged minter")
		}
		var req tokenMintRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, WrapErr(KindBadInput, err, "mint: malformed request")
		}
		if req.Kind == Soul {
			return nil, NewError(KindSoulNonTransferable, "soul tokens are not minted through the token manager")
		}
		if err := ctx.Gas.ChargeOp(OpTokenMint); err != nil {
			return nil, err
		}
		if err := ctx.State.AdjustBalance(req.To, req.Kind, req.Amount); err != nil {
			return nil, err
		}
		ctx.State.AdjustTotalSupply(req.Kind, req.Amount)
		if err := t.mirrorBalance(storage, ctx, req.To, req.Kind); err != nil {
			return nil, err
		}
		tokenManagerLog.WithField("to", req.To.String()).WithField("kind", req.Kind).Info("token minted")
		if err := ctx.Emit("token_minted", nil); err != nil {
			return nil, err
		}
		return &ContractResult{Success: true, GasUsed: ctx.Gas.Used(), Events: ctx.Events}, nil

	case "burn":
		var req tokenBurnRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, WrapErr(KindBadInput, err, "burn: malformed request")
		}
		if req.Kind == Soul {
			return nil, NewError(KindSoulNonTransferable, "soul tokens are not burned through the token manager")
		}
		if err := ctx.Gas.ChargeOp(OpTokenBurn); err != nil {
			return nil, err
		}
		if err := ctx.State.AdjustBalance(req.From, req.Kind, new(big.Int).Neg(req.Amount)); err != nil {
			return nil, err
		}
		ctx.State.AdjustTotalSupply(req.Kind, new(big.Int).Neg(req.Amount))
		if err := t.mirrorBalance(storage, ctx, req.From, req.Kind); err != nil {
			return nil, err
		}
		if err := ctx.Emit("token_burned", nil); err != nil {
			return nil, err
		}
		return &ContractResult{Success: true, GasUsed: ctx.Gas.Used(), Events: ctx.Events}, nil

	default:
		return nil, NewError(KindBadInput, "token manager: unknown method "+method)
	}
}

type tokenBalanceQuery struct {
	Address Address   `json:"address"`
	Kind    TokenKind `json:"kind"`
}

func (t *tokenManagerContract) Query(ctx *ExecutionContext, query string, data []byte) ([]byte, error) {
	switch query {
	case "balance":
		var req tokenBalanceQuery
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, WrapErr(KindBadInput, err, "balance: malformed request")
		}
		acc, ok := ctx.State.GetAccount(req.Address)
		if !ok {
			return json.Marshal(big.NewInt(0))
		}
		return json.Marshal(acc.balance(req.Kind))
	default:
		return nil, NewError(KindBadInput, "token manager: unknown query "+query)
	}
}
