// SPDX-License-Identifier: BUSL-1.1
package core

// Chain Engine: owns the in-memory ChainState, admits/orders/applies
// transactions, assembles and validates blocks, advances epochs. It is
// the single writer of chain state: every mutating path acquires the
// engine's readers-writer lock for the whole logical operation and
// never re-enters it — contract callbacks reach chain state through the
// already-held guard via the snapshot on ExecutionContext (contracts.go).
//
// Shaped after an RWMutex-guarded struct with an ordered pending pool
// and height-sequential append, but split so persistence (store
// package) and contract hosting (contracts.go) are separate concerns.

import (
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var engineLog = log.WithField("component", "chain_engine")

// SignFunc produces a validator signature over a block hash. Signature
// scheme selection is an injected capability; block authorship itself
// is driven externally (no consensus protocol is implemented here) so
// Assemble takes the signer rather than a precomputed signature, which
// cannot exist before the hash it signs is computed.
type SignFunc func(hash Hash) []byte

// ChainEngine is the Chain Engine component.
type ChainEngine struct {
	mu       sync.RWMutex
	state    *ChainState
	pending  []*Transaction
	blocks   []*Block
	byHash   map[Hash]uint64
	executor *ContractExecutor

	epochLength uint64
}

// NewChainEngine constructs an engine with empty chain state. executor
// may be nil if contract transactions are disabled (enable_contracts=false).
func NewChainEngine(executor *ContractExecutor, epochLength uint64) *ChainEngine {
	if epochLength == 0 {
		epochLength = 100
	}
	return &ChainEngine{
		state:       NewChainState(),
		byHash:      make(map[Hash]uint64),
		executor:    executor,
		epochLength: epochLength,
	}
}

// GenesisAllocation seeds account addr with initial balances at genesis.
type GenesisAllocation struct {
	Address  Address
	Balances map[TokenKind]*big.Int
}

// Genesis installs the genesis block (height 0, zero previous-hash) and
// the initial account allocations, bypassing the pending queue.
func (e *ChainEngine) Genesis(allocations []GenesisAllocation, timestamp int64) (*Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.blocks) != 0 {
		return nil, NewError(KindAlreadyExists, "genesis already installed")
	}
	for _, alloc := range allocations {
		acc := e.state.EnsureAccount(alloc.Address)
		for kind, amount := range alloc.Balances {
			acc.Balances[kind] = new(big.Int).Set(amount)
			e.state.AdjustTotalSupply(kind, amount)
		}
	}
	root, err := e.state.StateRoot()
	if err != nil {
		return nil, err
	}
	b := &Block{Height: 0, PreviousHash: Hash{}, Timestamp: timestamp, StateRoot: root}
	hash, err := b.computeHash()
	if err != nil {
		return nil, err
	}
	b.Hash = hash
	e.blocks = append(e.blocks, b)
	e.byHash[hash] = 0
	engineLog.WithField("height", 0).Info("genesis installed")
	return b, nil
}

// validateAdmission runs the stateless+stateful checks admit performs
// without mutating state.
func (e *ChainEngine) validateAdmission(tx *Transaction) error {
	switch tx.Kind {
	case TxTransfer:
		t := tx.Transfer
		if t == nil {
			return NewError(KindBadInput, "transfer: missing body")
		}
		if t.Token == Soul {
			return NewError(KindSoulNonTransferable, "soul tokens are not transferable")
		}
		acc, ok := e.state.GetAccount(t.From)
		if !ok {
			return NewError(KindNotFound, "admit: unknown sender "+t.From.String())
		}
		if acc.balance(t.Token).Cmp(t.Amount) < 0 {
			return NewError(KindInsufficientBalance, "admit: insufficient balance")
		}
	case TxCreateAccount:
		if tx.CreateAccount == nil {
			return NewError(KindBadInput, "create_account: missing body")
		}
	case TxStake:
		s := tx.Stake
		if s == nil {
			return NewError(KindBadInput, "stake: missing body")
		}
		acc, ok := e.state.GetAccount(s.Staker)
		if !ok {
			return NewError(KindNotFound, "admit: unknown staker "+s.Staker.String())
		}
		if acc.balance(Native).Cmp(s.Amount) < 0 {
			return NewError(KindInsufficientBalance, "admit: insufficient native balance to stake")
		}
	case TxUnstake:
		if tx.Unstake == nil {
			return NewError(KindBadInput, "unstake: missing body")
		}
		if _, ok := e.state.GetAccount(tx.Unstake.Staker); !ok {
			return NewError(KindNotFound, "admit: unknown staker "+tx.Unstake.Staker.String())
		}
	case TxMintSoul, TxContributeProof, TxDeployContract, TxCallContract:
		// ContributeProof/DeployContract/CallContract sender existence is
		// checked below via Sender(); MintSoul has no sender and no
		// admit-time check (its recipient is created on apply if absent).
	default:
		return NewError(KindBadInput, "admit: unrecognised transaction kind")
	}

	if sender, ok := tx.Sender(); ok {
		acc, found := e.state.GetAccount(sender)
		if !found {
			return NewError(KindNotFound, "admit: unknown sender "+sender.String())
		}
		if tx.Nonce != acc.Nonce {
			return NewError(KindBadInput, "admit: nonce mismatch")
		}
	}
	return nil
}

// Admit validates tx and appends it to the ordered pending queue. No
// state change occurs on success or failure.
func (e *ChainEngine) Admit(tx *Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := e.validateAdmission(tx); err != nil {
		engineLog.WithField("tx", tx.ID).WithField("reason", err.Error()).Warn("admit rejected")
		return err
	}
	e.pending = append(e.pending, tx)
	return nil
}

// PendingLen reports the number of transactions awaiting assembly.
func (e *ChainEngine) PendingLen() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pending)
}

// applyTransaction applies tx's effect to state per the per-kind effect
// table. state is a caller-owned working copy (see Assemble/Append):
// any error aborts the transaction without the caller observing a
// partial mutation, since the caller discards state wholesale on error
// rather than inspecting it. height/timestamp are the block the
// transaction is being applied under, threaded into DeployContract/
// CallContract's ExecutionContext.
func (e *ChainEngine) applyTransaction(state *ChainState, tx *Transaction, height uint64, timestamp int64) error {
	switch tx.Kind {
	case TxTransfer:
		t := tx.Transfer
		if t.Token == Soul {
			return NewError(KindSoulNonTransferable, "soul tokens are not transferable")
		}
		from, ok := state.GetAccount(t.From)
		if !ok {
			return NewError(KindNotFound, "unknown sender "+t.From.String())
		}
		if from.balance(t.Token).Cmp(t.Amount) < 0 {
			return NewError(KindInsufficientBalance, "insufficient balance")
		}
		if err := state.AdjustBalance(t.From, t.Token, new(big.Int).Neg(t.Amount)); err != nil {
			return err
		}
		if err := state.AdjustBalance(t.To, t.Token, t.Amount); err != nil {
			return err
		}
	case TxCreateAccount:
		c := tx.CreateAccount
		if _, err := state.InsertAccount(c.Address, c.PublicKey); err != nil {
			return err
		}
	case TxStake:
		s := tx.Stake
		staker, ok := state.GetAccount(s.Staker)
		if !ok {
			return NewError(KindNotFound, "unknown staker "+s.Staker.String())
		}
		if staker.balance(Native).Cmp(s.Amount) < 0 {
			return NewError(KindInsufficientBalance, "insufficient native balance to stake")
		}
		if err := state.AdjustBalance(s.Staker, Native, new(big.Int).Neg(s.Amount)); err != nil {
			return err
		}
		v := state.ensureValidator(s.Staker)
		v.StakedAmount = new(big.Int).Add(v.StakedAmount, s.Amount)
		staker.StakedAmount = new(big.Int).Add(staker.StakedAmount, s.Amount)
		if v.StakedAmount.Cmp(ActivationThreshold) >= 0 {
			v.Active = true
		}
	case TxUnstake:
		u := tx.Unstake
		v, ok := state.GetValidator(u.Staker)
		if !ok {
			return NewError(KindNotFound, "not a validator: "+u.Staker.String())
		}
		if v.StakedAmount.Cmp(u.Amount) < 0 {
			return NewError(KindInsufficientBalance, "unstake would drive staked amount below zero")
		}
		v.StakedAmount = new(big.Int).Sub(v.StakedAmount, u.Amount)
		if v.StakedAmount.Sign() == 0 {
			v.Active = false
		}
		staker := state.EnsureAccount(u.Staker)
		staker.StakedAmount = new(big.Int).Sub(staker.StakedAmount, u.Amount)
		if err := state.AdjustBalance(u.Staker, Native, u.Amount); err != nil {
			return err
		}
	case TxMintSoul:
		m := tx.MintSoul
		acc := state.EnsureAccount(m.Recipient)
		acc.SoulID = m.SoulID
		if err := state.AdjustBalance(m.Recipient, Soul, big.NewInt(1)); err != nil {
			return err
		}
		state.AdjustTotalSupply(Soul, big.NewInt(1))
	case TxContributeProof:
		p := tx.ContributeProof
		acc := state.EnsureAccount(p.Contributor)
		acc.EarnedUtility = new(big.Int).Add(acc.EarnedUtility, p.Reward)
		if err := state.AdjustBalance(p.Contributor, Utility, p.Reward); err != nil {
			return err
		}
		state.AdjustTotalSupply(Utility, p.Reward)
	case TxDeployContract:
		if e.executor == nil {
			return NewError(KindNotImplemented, "contracts are disabled")
		}
		d := tx.DeployContract
		gasLimit := d.GasLimit
		if err := chargeNativeGas(state, d.Deployer, gasLimit); err != nil {
			return err
		}
		_, err := e.executor.Deploy(state, d.Deployer, d.Code, d.InitData, gasLimit, height, timestamp)
		if err != nil {
			return err
		}
	case TxCallContract:
		if e.executor == nil {
			return NewError(KindNotImplemented, "contracts are disabled")
		}
		c := tx.CallContract
		gasLimit := c.GasLimit
		if err := chargeNativeGas(state, c.Caller, gasLimit); err != nil {
			return err
		}
		_, err := e.executor.Call(state, c.Caller, c.ContractID, c.Method, c.Data, gasLimit, height, timestamp)
		if err != nil {
			return err
		}
	default:
		return NewError(KindBadInput, "unrecognised transaction kind")
	}

	if sender, ok := tx.Sender(); ok {
		if acc, found := state.GetAccount(sender); found {
			acc.Nonce++
		}
	}
	return nil
}

// chargeNativeGas deducts gasLimit*NativeGasConversion Native base units
// from payer up front, ahead of DeployContract/CallContract execution.
// It mutates state directly — callers are expected to run it, like the
// rest of applyTransaction, against a working copy that is discarded
// whole if the transaction goes on to fail, so a charge that precedes
// an OutOfGas call never ends up debiting the caller's real balance.
func chargeNativeGas(state *ChainState, payer Address, gasLimit uint64) error {
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), big.NewInt(NativeGasConversion))
	acc, ok := state.GetAccount(payer)
	if !ok {
		return NewError(KindNotFound, "unknown payer "+payer.String())
	}
	if acc.balance(Native).Cmp(cost) < 0 {
		return NewError(KindInsufficientGas, "insufficient native balance for gas")
	}
	return state.AdjustBalance(payer, Native, new(big.Int).Neg(cost))
}

// Assemble drains the pending queue in insertion order into a new
// block, applies each transaction, computes the state root and the
// block's self-hash, and returns the block. A transaction whose apply
// fails is dropped from the block rather than aborting assembly: a
// failed transaction does not abort the block.
func (e *ChainEngine) Assemble(validator Address, sign SignFunc) (*Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.blocks[len(e.blocks)-1]
	height := prev.Height + 1
	timestamp := time.Now().UnixMilli()

	working := e.state
	applied := make([]*Transaction, 0, len(e.pending))
	for _, tx := range e.pending {
		attempt := working.Clone()
		if err := e.applyTransaction(attempt, tx, height, timestamp); err != nil {
			engineLog.WithField("tx", tx.ID).WithField("reason", err.Error()).Warn("transaction dropped from block")
			continue
		}
		working = attempt
		applied = append(applied, tx)
	}
	e.pending = nil
	e.state = working

	root, err := e.state.StateRoot()
	if err != nil {
		return nil, err
	}

	b := &Block{
		Height:       height,
		PreviousHash: prev.Hash,
		Timestamp:    timestamp,
		Transactions: applied,
		Validator:    validator,
		StateRoot:    root,
	}
	hash, err := b.computeHash()
	if err != nil {
		return nil, err
	}
	b.Hash = hash
	if sign != nil {
		b.ValidatorSignature = sign(hash)
	}

	if height%e.epochLength == 0 {
		e.state.CurrentEpoch++
	}

	e.blocks = append(e.blocks, b)
	e.byHash[hash] = height
	engineLog.WithField("height", height).WithField("tx_count", len(applied)).WithField("state_root", root.String()).Info("block assembled")
	return b, nil
}

// Append validates chain linkage and appends block to the chain.
// When locallyAssembled is false the block's transactions are re-applied
// to reconstruct state (the policy decision recorded in DESIGN.md);
// a locally-assembled block's effects are already reflected in state.
func (e *ChainEngine) Append(block *Block, locallyAssembled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.blocks[len(e.blocks)-1]
	if block.PreviousHash != prev.Hash || block.Height != prev.Height+1 {
		return NewError(KindStateCorruption, "block linkage broken: previous_hash/height mismatch")
	}

	if !locallyAssembled {
		working := e.state
		for _, tx := range block.Transactions {
			attempt := working.Clone()
			if err := e.applyTransaction(attempt, tx, block.Height, block.Timestamp); err != nil {
				return WrapErr(KindStateCorruption, err, "re-apply failed for received block")
			}
			working = attempt
		}
		if block.Height%e.epochLength == 0 {
			working.CurrentEpoch++
		}
		e.state = working
	}

	e.blocks = append(e.blocks, block)
	e.byHash[block.Hash] = block.Height
	return nil
}

// Balance returns addr's balance of kind (read-only view).
func (e *ChainEngine) Balance(addr Address, kind TokenKind) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	acc, ok := e.state.GetAccount(addr)
	if !ok {
		return nil, NewError(KindNotFound, "unknown account "+addr.String())
	}
	return new(big.Int).Set(acc.balance(kind)), nil
}

// Account returns a read-only copy of the account at addr.
func (e *ChainEngine) Account(addr Address) (*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	acc, ok := e.state.GetAccount(addr)
	if !ok {
		return nil, NewError(KindNotFound, "unknown account "+addr.String())
	}
	cp := *acc
	return &cp, nil
}

// BlockAt returns the block at height, if present.
func (e *ChainEngine) BlockAt(height uint64) (*Block, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if height >= uint64(len(e.blocks)) {
		return nil, false
	}
	return e.blocks[height], true
}

// BlockByHash returns the block with the given self-hash, if present.
func (e *ChainEngine) BlockByHash(hash Hash) (*Block, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	height, ok := e.byHash[hash]
	if !ok {
		return nil, false
	}
	return e.blocks[height], true
}

// LatestBlock returns the most recently appended block.
func (e *ChainEngine) LatestBlock() *Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.blocks[len(e.blocks)-1]
}

// StateSnapshot returns a clone of the current chain state suitable for
// read-only query operations (e.g. Resolver Core on-chain resolution).
func (e *ChainEngine) StateSnapshot() *ChainState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Validator returns the validator record at addr, if any.
func (e *ChainEngine) Validator(addr Address) (*Validator, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.GetValidator(addr)
}

// QueryContract runs a read-only query against an installed contract
// using the current chain state. It is the path the Resolver Core's
// on-chain backend uses to reach the Naming Registry's resolve_domain.
func (e *ChainEngine) QueryContract(contractID, query string, data []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.executor == nil {
		return nil, NewError(KindNotImplemented, "contracts are disabled")
	}
	latest := e.blocks[len(e.blocks)-1]
	return e.executor.Query(e.state, contractID, query, data, latest.Height, time.Now().UnixMilli())
}
