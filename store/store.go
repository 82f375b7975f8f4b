// SPDX-License-Identifier: BUSL-1.1

// Package store implements the Durable Store: five logically separated
// trees — blocks, accounts, transactions, validators, and metadata —
// over a single embedded key/value engine.
//
// The key layout (prefix plus big-endian height, JSON values) sits on a
// github.com/cometbft/cometbft-db handle, with one key prefix per tree.
package store

import (
	"encoding/binary"
	"encoding/json"
	"math/big"

	dbm "github.com/cometbft/cometbft-db"
	log "github.com/sirupsen/logrus"

	"ghostchain/core"
)

var storeLog = log.WithField("component", "durable_store")

// Key prefixes for the five logical trees. A single embedded engine
// hosts all of them; the prefix is the tree boundary.
var (
	blockPrefix      = []byte("block:")
	blockHashPrefix  = []byte("hash:")
	accountPrefix    = []byte("account:")
	txPrefix         = []byte("tx:")
	validatorPrefix  = []byte("validator:")
	keyLatestBlock   = []byte("meta:latest_block")
	keyCurrentEpoch  = []byte("meta:current_epoch")
	keyTotalSupply   = []byte("meta:total_supply")
)

func blockKey(height uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, height)
	return append(append([]byte{}, blockPrefix...), b...)
}

func blockHashKey(hash core.Hash) []byte {
	return append(append([]byte{}, blockHashPrefix...), []byte(hash.String())...)
}

func accountKey(addr core.Address) []byte {
	return append(append([]byte{}, accountPrefix...), addr.Bytes()...)
}

func txKey(id string) []byte {
	return append(append([]byte{}, txPrefix...), []byte(id)...)
}

func validatorKey(addr core.Address) []byte {
	return append(append([]byte{}, validatorPrefix...), addr.Bytes()...)
}

// DatabaseType selects the embedded key/value engine backend, named by
// the node configuration's database_type option.
type DatabaseType string

const (
	DatabaseEmbeddedKV  DatabaseType = "embedded-kv"  // goleveldb
	DatabaseAlternateKV DatabaseType = "alternative-kv" // badger
	DatabaseMemory      DatabaseType = "memory"        // in-memory, testing
)

// Store is the Durable Store component.
type Store struct {
	db dbm.DB
}

// Open opens (creating if absent) a Store backed by databaseType at dataDir.
func Open(dataDir string, databaseType DatabaseType) (*Store, error) {
	var backend dbm.BackendType
	switch databaseType {
	case DatabaseEmbeddedKV:
		backend = dbm.GoLevelDBBackend
	case DatabaseAlternateKV:
		backend = dbm.BadgerDBBackend
	case DatabaseMemory:
		return &Store{db: dbm.NewMemDB()}, nil
	default:
		return nil, core.NewError(core.KindBadInput, "unknown database_type: "+string(databaseType))
	}
	db, err := dbm.NewDB("ghostchain", backend, dataDir)
	if err != nil {
		return nil, core.WrapErr(core.KindBackendUnavailable, err, "open durable store")
	}
	return &Store{db: db}, nil
}

// NewMemoryStore returns a Store backed by an in-memory engine, for tests.
func NewMemoryStore() *Store {
	return &Store{db: dbm.NewMemDB()}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Flush is the durability barrier callers invoke after a write. Every
// write in this store already goes through SetSync/WriteSync, so Flush
// has nothing left to do; it exists so callers have an explicit barrier
// to call without depending on that implementation detail.
func (s *Store) Flush() error { return nil }

// SaveBlock persists b's body, its hash index entry, and the
// latest_block pointer atomically, so a crash-restart can never observe
// latest_block referencing a height whose body is missing.
func (s *Store) SaveBlock(b *core.Block) error {
	data, err := json.Marshal(b)
	if err != nil {
		return core.WrapErr(core.KindBadInput, err, "marshal block")
	}
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, b.Height)

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(blockKey(b.Height), data); err != nil {
		return core.WrapErr(core.KindStateCorruption, err, "stage block body")
	}
	if err := batch.Set(blockHashKey(b.Hash), heightBytes); err != nil {
		return core.WrapErr(core.KindStateCorruption, err, "stage block hash index")
	}
	if err := batch.Set(keyLatestBlock, heightBytes); err != nil {
		return core.WrapErr(core.KindStateCorruption, err, "stage latest_block pointer")
	}
	if err := batch.WriteSync(); err != nil {
		return core.WrapErr(core.KindStateCorruption, err, "commit block batch")
	}
	storeLog.WithField("height", b.Height).WithField("hash", b.Hash.String()).Info("block saved")
	return nil
}

// GetBlockByHeight loads the block at height, if present.
func (s *Store) GetBlockByHeight(height uint64) (*core.Block, bool, error) {
	v, err := s.db.Get(blockKey(height))
	if err != nil {
		return nil, false, core.WrapErr(core.KindBackendUnavailable, err, "get block by height")
	}
	if v == nil {
		return nil, false, nil
	}
	var b core.Block
	if err := json.Unmarshal(v, &b); err != nil {
		return nil, false, core.WrapErr(core.KindStateCorruption, err, "unmarshal block")
	}
	return &b, true, nil
}

// GetBlockByHash loads the block with the given self-hash, if present.
func (s *Store) GetBlockByHash(hash core.Hash) (*core.Block, bool, error) {
	v, err := s.db.Get(blockHashKey(hash))
	if err != nil {
		return nil, false, core.WrapErr(core.KindBackendUnavailable, err, "get block by hash")
	}
	if v == nil {
		return nil, false, nil
	}
	height := binary.BigEndian.Uint64(v)
	return s.GetBlockByHeight(height)
}

// LatestBlockHeight returns the height metadata points at, if any block
// has ever been saved.
func (s *Store) LatestBlockHeight() (uint64, bool, error) {
	v, err := s.db.Get(keyLatestBlock)
	if err != nil {
		return 0, false, core.WrapErr(core.KindBackendUnavailable, err, "get latest_block")
	}
	if v == nil {
		return 0, false, nil
	}
	return binary.BigEndian.Uint64(v), true, nil
}

// SaveAccount persists acc under its address key.
func (s *Store) SaveAccount(acc *core.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return core.WrapErr(core.KindBadInput, err, "marshal account")
	}
	if err := s.db.SetSync(accountKey(acc.Address), data); err != nil {
		return core.WrapErr(core.KindBackendUnavailable, err, "save account")
	}
	return nil
}

// GetAccount loads the account at addr, if present.
func (s *Store) GetAccount(addr core.Address) (*core.Account, bool, error) {
	v, err := s.db.Get(accountKey(addr))
	if err != nil {
		return nil, false, core.WrapErr(core.KindBackendUnavailable, err, "get account")
	}
	if v == nil {
		return nil, false, nil
	}
	var acc core.Account
	if err := json.Unmarshal(v, &acc); err != nil {
		return nil, false, core.WrapErr(core.KindStateCorruption, err, "unmarshal account")
	}
	return &acc, true, nil
}

// UpdateAccount loads the account at addr (or a fresh one if absent),
// applies fn, and persists the result — the "update-under-closure" form.
// It takes no lock: concurrent UpdateAccount calls for the same address
// are not serialized against each other.
func (s *Store) UpdateAccount(addr core.Address, fn func(*core.Account) error) error {
	acc, ok, err := s.GetAccount(addr)
	if err != nil {
		return err
	}
	if !ok {
		acc = &core.Account{Address: addr}
	}
	if err := fn(acc); err != nil {
		return err
	}
	return s.SaveAccount(acc)
}

// SaveTransaction persists tx under its id key.
func (s *Store) SaveTransaction(tx *core.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return core.WrapErr(core.KindBadInput, err, "marshal transaction")
	}
	if err := s.db.SetSync(txKey(tx.ID), data); err != nil {
		return core.WrapErr(core.KindBackendUnavailable, err, "save transaction")
	}
	return nil
}

// GetTransaction loads the transaction with the given id, if present.
func (s *Store) GetTransaction(id string) (*core.Transaction, bool, error) {
	v, err := s.db.Get(txKey(id))
	if err != nil {
		return nil, false, core.WrapErr(core.KindBackendUnavailable, err, "get transaction")
	}
	if v == nil {
		return nil, false, nil
	}
	var tx core.Transaction
	if err := json.Unmarshal(v, &tx); err != nil {
		return nil, false, core.WrapErr(core.KindStateCorruption, err, "unmarshal transaction")
	}
	return &tx, true, nil
}

// SaveValidator persists v under its address key.
func (s *Store) SaveValidator(v *core.Validator) error {
	data, err := json.Marshal(v)
	if err != nil {
		return core.WrapErr(core.KindBadInput, err, "marshal validator")
	}
	if err := s.db.SetSync(validatorKey(v.Address), data); err != nil {
		return core.WrapErr(core.KindBackendUnavailable, err, "save validator")
	}
	return nil
}

// GetValidator loads the validator at addr, if present.
func (s *Store) GetValidator(addr core.Address) (*core.Validator, bool, error) {
	v, err := s.db.Get(validatorKey(addr))
	if err != nil {
		return nil, false, core.WrapErr(core.KindBackendUnavailable, err, "get validator")
	}
	if v == nil {
		return nil, false, nil
	}
	var val core.Validator
	if err := json.Unmarshal(v, &val); err != nil {
		return nil, false, core.WrapErr(core.KindStateCorruption, err, "unmarshal validator")
	}
	return &val, true, nil
}

// ListValidators enumerates every validator in the validators tree.
func (s *Store) ListValidators() ([]*core.Validator, error) {
	it, err := s.db.Iterator(validatorPrefix, dbm.PrefixEndBytes(validatorPrefix))
	if err != nil {
		return nil, core.WrapErr(core.KindBackendUnavailable, err, "iterate validators")
	}
	defer it.Close()
	var out []*core.Validator
	for ; it.Valid(); it.Next() {
		var val core.Validator
		if err := json.Unmarshal(it.Value(), &val); err != nil {
			return nil, core.WrapErr(core.KindStateCorruption, err, "unmarshal validator")
		}
		out = append(out, &val)
	}
	return out, nil
}

// SetCurrentEpoch persists the metadata "current_epoch" entry.
func (s *Store) SetCurrentEpoch(epoch uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, epoch)
	if err := s.db.SetSync(keyCurrentEpoch, b); err != nil {
		return core.WrapErr(core.KindBackendUnavailable, err, "save current_epoch")
	}
	return nil
}

// GetCurrentEpoch loads the metadata "current_epoch" entry.
func (s *Store) GetCurrentEpoch() (uint64, error) {
	v, err := s.db.Get(keyCurrentEpoch)
	if err != nil {
		return 0, core.WrapErr(core.KindBackendUnavailable, err, "get current_epoch")
	}
	if v == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

// SetTotalSupply persists the metadata "total_supply" map.
func (s *Store) SetTotalSupply(supply map[core.TokenKind]*big.Int) error {
	data, err := json.Marshal(supply)
	if err != nil {
		return core.WrapErr(core.KindBadInput, err, "marshal total_supply")
	}
	if err := s.db.SetSync(keyTotalSupply, data); err != nil {
		return core.WrapErr(core.KindBackendUnavailable, err, "save total_supply")
	}
	return nil
}

// SaveChainState writes every account, validator, and metadata entry of
// state.
func (s *Store) SaveChainState(state *core.ChainState) error {
	for _, acc := range state.Accounts {
		if err := s.SaveAccount(acc); err != nil {
			return err
		}
	}
	for _, v := range state.Validators {
		if err := s.SaveValidator(v); err != nil {
			return err
		}
	}
	if err := s.SetCurrentEpoch(state.CurrentEpoch); err != nil {
		return err
	}
	if err := s.SetTotalSupply(state.TotalSupply); err != nil {
		return err
	}
	return nil
}

// LoadChainState reconstructs a ChainState from every persisted
// account, validator and metadata entry. Contracts and domains are not
// restored: no tree stores them, and SaveChainState does not write them.
func (s *Store) LoadChainState() (*core.ChainState, error) {
	state := core.NewChainState()

	it, err := s.db.Iterator(accountPrefix, dbm.PrefixEndBytes(accountPrefix))
	if err != nil {
		return nil, core.WrapErr(core.KindBackendUnavailable, err, "iterate accounts")
	}
	for ; it.Valid(); it.Next() {
		var acc core.Account
		if err := json.Unmarshal(it.Value(), &acc); err != nil {
			it.Close()
			return nil, core.WrapErr(core.KindStateCorruption, err, "unmarshal account")
		}
		state.Accounts[acc.Address] = &acc
	}
	it.Close()

	validators, err := s.ListValidators()
	if err != nil {
		return nil, err
	}
	for _, v := range validators {
		state.Validators[v.Address] = v
	}

	epoch, err := s.GetCurrentEpoch()
	if err != nil {
		return nil, err
	}
	state.CurrentEpoch = epoch

	supplyBytes, err := s.db.Get(keyTotalSupply)
	if err != nil {
		return nil, core.WrapErr(core.KindBackendUnavailable, err, "get total_supply")
	}
	if supplyBytes != nil {
		var supply map[core.TokenKind]*big.Int
		if err := json.Unmarshal(supplyBytes, &supply); err != nil {
			return nil, core.WrapErr(core.KindStateCorruption, err, "unmarshal total_supply")
		}
		for k, v := range supply {
			state.TotalSupply[k] = v
		}
	}

	return state, nil
}
