// SPDX-License-Identifier: BUSL-1.1
package core

// ChainState is the single authoritative in-memory aggregate of
// accounts, validators, contracts and names. It is not internally
// mutable at field granularity: callers reach it only through the
// controlled mutation API below, so supply conservation and the other
// account-level invariants can be centrally audited in one place.
// ChainState itself holds no lock — the ChainEngine is the single
// writer and owns the readers-writer lock guarding every method call
// here.
import (
	"encoding/json"
	"math/big"
)

type ChainState struct {
	Accounts     map[Address]*Account
	TotalSupply  map[TokenKind]*big.Int
	Validators   map[Address]*Validator
	CurrentEpoch uint64
	Contracts    map[string]*ContractInfo
	Domains      map[string]*DomainData
}

// NewChainState returns an empty state with zeroed total supplies.
func NewChainState() *ChainState {
	return &ChainState{
		Accounts:    make(map[Address]*Account),
		TotalSupply: map[TokenKind]*big.Int{Native: big.NewInt(0), Utility: big.NewInt(0), Stable: big.NewInt(0), Soul: big.NewInt(0)},
		Validators:  make(map[Address]*Validator),
		Contracts:   make(map[string]*ContractInfo),
		Domains:     make(map[string]*DomainData),
	}
}

// GetAccount returns the account at addr, if any.
func (s *ChainState) GetAccount(addr Address) (*Account, bool) {
	a, ok := s.Accounts[addr]
	return a, ok
}

// InsertAccount inserts a brand-new account; fails with AlreadyExists
// if addr is already present.
func (s *ChainState) InsertAccount(addr Address, pub []byte) (*Account, error) {
	if _, ok := s.Accounts[addr]; ok {
		return nil, NewError(KindAlreadyExists, "account already exists: "+addr.String())
	}
	acc := newAccount(addr, pub)
	s.Accounts[addr] = acc
	return acc, nil
}

// EnsureAccount returns the account at addr, creating a zero-balance
// one if absent (the "created if absent" clause of the Transfer effect).
func (s *ChainState) EnsureAccount(addr Address) *Account {
	if a, ok := s.Accounts[addr]; ok {
		return a
	}
	acc := newAccount(addr, nil)
	s.Accounts[addr] = acc
	return acc
}

// AdjustBalance adds delta (which may be negative) to addr's balance of
// kind. Fails with InsufficientBalance if the result would be negative.
func (s *ChainState) AdjustBalance(addr Address, kind TokenKind, delta *big.Int) error {
	acc := s.EnsureAccount(addr)
	next := new(big.Int).Add(acc.balance(kind), delta)
	if next.Sign() < 0 {
		return NewError(KindInsufficientBalance, "balance would go negative for "+addr.String())
	}
	acc.Balances[kind] = next
	return nil
}

// AdjustTotalSupply adds delta to the recorded total supply of kind.
func (s *ChainState) AdjustTotalSupply(kind TokenKind, delta *big.Int) {
	cur, ok := s.TotalSupply[kind]
	if !ok {
		cur = big.NewInt(0)
	}
	s.TotalSupply[kind] = new(big.Int).Add(cur, delta)
}

// GetValidator returns the validator at addr, if any.
func (s *ChainState) GetValidator(addr Address) (*Validator, bool) {
	v, ok := s.Validators[addr]
	return v, ok
}

// ensureValidator returns (creating with commission 0.1, per the Stake
// transaction's effect) the validator record for addr.
func (s *ChainState) ensureValidator(addr Address) *Validator {
	if v, ok := s.Validators[addr]; ok {
		return v
	}
	v := &Validator{Address: addr, StakedAmount: big.NewInt(0), CommissionRate: 0.1}
	s.Validators[addr] = v
	return v
}

// GetContract returns the installed contract with the given id.
func (s *ChainState) GetContract(id string) (*ContractInfo, bool) {
	c, ok := s.Contracts[id]
	return c, ok
}

// PutContract installs or overwrites a contract record.
func (s *ChainState) PutContract(info *ContractInfo) {
	s.Contracts[info.ID] = info
}

// GetDomain returns the domain record for name, if registered.
func (s *ChainState) GetDomain(name string) (*DomainData, bool) {
	d, ok := s.Domains[name]
	return d, ok
}

// PutDomain installs or overwrites a domain record.
func (s *ChainState) PutDomain(data *DomainData) {
	s.Domains[data.Name] = data
}

// stateRootView is the canonical, fixed-order shape hashed to produce
// the state root; encoding/json sorts map keys deterministically when
// marshaling (Address keys by their MarshalText form), so no custom
// ordering code is required.
type stateRootView struct {
	Accounts     map[Address]*Account     `json:"accounts"`
	TotalSupply  map[TokenKind]*big.Int   `json:"total_supply"`
	Validators   map[Address]*Validator   `json:"validators"`
	CurrentEpoch uint64                   `json:"current_epoch"`
	Contracts    map[string]*ContractInfo `json:"contracts"`
	Domains      map[string]*DomainData   `json:"domains"`
}

// StateRoot hashes a canonical serialization of the entire state.
func (s *ChainState) StateRoot() (Hash, error) {
	view := stateRootView{
		Accounts:     s.Accounts,
		TotalSupply:  s.TotalSupply,
		Validators:   s.Validators,
		CurrentEpoch: s.CurrentEpoch,
		Contracts:    s.Contracts,
		Domains:      s.Domains,
	}
	data, err := json.Marshal(view)
	if err != nil {
		return Hash{}, err
	}
	return Sum256(data), nil
}

// Clone returns a deep copy of s safe for independent mutation: every
// account, validator, contract and domain record is copied by value,
// with its own balance/delegator/storage map, rather than shared by
// pointer. *big.Int fields are exempt from the copy — every mutation
// path (AdjustBalance, AdjustTotalSupply, stake/unstake) replaces a
// balance with a freshly allocated *big.Int rather than mutating one in
// place, so sharing the old value across the clone boundary is safe.
// This is what lets a caller apply a transaction against a clone and
// discard it whole on failure without the attempt being visible in s.
func (s *ChainState) Clone() *ChainState {
	out := NewChainState()
	for k, v := range s.Accounts {
		accCopy := *v
		accCopy.Balances = make(map[TokenKind]*big.Int, len(v.Balances))
		for bk, bv := range v.Balances {
			accCopy.Balances[bk] = bv
		}
		out.Accounts[k] = &accCopy
	}
	for k, v := range s.TotalSupply {
		out.TotalSupply[k] = v
	}
	for k, v := range s.Validators {
		valCopy := *v
		if v.Delegators != nil {
			valCopy.Delegators = make(map[Address]*big.Int, len(v.Delegators))
			for dk, dv := range v.Delegators {
				valCopy.Delegators[dk] = dv
			}
		}
		out.Validators[k] = &valCopy
	}
	for k, v := range s.Contracts {
		ctCopy := *v
		ctCopy.Storage = make(map[string][]byte, len(v.Storage))
		for sk, sv := range v.Storage {
			ctCopy.Storage[sk] = sv
		}
		out.Contracts[k] = &ctCopy
	}
	for k, v := range s.Domains {
		ddCopy := *v
		ddCopy.Records = append([]DomainRecord(nil), v.Records...)
		out.Domains[k] = &ddCopy
	}
	out.CurrentEpoch = s.CurrentEpoch
	return out
}
