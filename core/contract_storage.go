// SPDX-License-Identifier: BUSL-1.1
package core

// Contract Storage: a contract-local, typed key/value façade layered
// over ContractInfo.Storage, an in-memory map that is part of
// ChainState (Store.SaveChainState does not persist contract storage).
// A StorageTracker records every
// read/write/delete with its fixed gas cost so accounting is
// independent of backend performance.
//
// Evolved from a ledger-backed, key-prefixed metadata helper originally
// built for contract ownership/pause state, generalized into the
// generic typed façade the native contracts here need; the owner/pause
// admin concern it originally served has no equivalent here and was
// dropped (see DESIGN.md).

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// StorageTracker records contract-storage operations and charges their
// fixed gas cost as each one occurs.
type StorageTracker struct {
	gas     *GasTracker
	Reads   uint64
	Writes  uint64
	Deletes uint64
}

func newStorageTracker(gas *GasTracker) *StorageTracker {
	return &StorageTracker{gas: gas}
}

func (t *StorageTracker) recordRead() error {
	if err := t.gas.ChargeOp(OpStorageRead); err != nil {
		return err
	}
	t.Reads++
	return nil
}

func (t *StorageTracker) recordWrite() error {
	if err := t.gas.ChargeOp(OpStorageWrite); err != nil {
		return err
	}
	t.Writes++
	return nil
}

func (t *StorageTracker) recordDelete() error {
	if err := t.gas.ChargeOp(OpStorageDelete); err != nil {
		return err
	}
	t.Deletes++
	return nil
}

// ContractStorage is the typed façade a native contract uses to read
// and write its own namespace of ContractInfo.Storage.
type ContractStorage struct {
	info    *ContractInfo
	Tracker *StorageTracker
}

// newContractStorage binds a façade to info's storage map, charging
// operations against gas.
func newContractStorage(info *ContractInfo, gas *GasTracker) *ContractStorage {
	if info.Storage == nil {
		info.Storage = make(map[string][]byte)
	}
	return &ContractStorage{info: info, Tracker: newStorageTracker(gas)}
}

func (s *ContractStorage) GetBytes(key string) ([]byte, bool, error) {
	if err := s.Tracker.recordRead(); err != nil {
		return nil, false, err
	}
	v, ok := s.info.Storage[key]
	return v, ok, nil
}

func (s *ContractStorage) SetBytes(key string, val []byte) error {
	if err := s.Tracker.recordWrite(); err != nil {
		return err
	}
	s.info.Storage[key] = val
	return nil
}

func (s *ContractStorage) Delete(key string) error {
	if err := s.Tracker.recordDelete(); err != nil {
		return err
	}
	delete(s.info.Storage, key)
	return nil
}

func (s *ContractStorage) Has(key string) (bool, error) {
	if err := s.Tracker.recordRead(); err != nil {
		return false, err
	}
	_, ok := s.info.Storage[key]
	return ok, nil
}

func (s *ContractStorage) GetString(key string) (string, bool, error) {
	b, ok, err := s.GetBytes(key)
	return string(b), ok, err
}

func (s *ContractStorage) SetString(key, val string) error {
	return s.SetBytes(key, []byte(val))
}

func (s *ContractStorage) GetU128(key string) (*big.Int, bool, error) {
	b, ok, err := s.GetBytes(key)
	if err != nil || !ok {
		return big.NewInt(0), ok, err
	}
	return u128FromLEBytes(b), true, nil
}

func (s *ContractStorage) SetU128(key string, v *big.Int) error {
	b, err := u128LEBytes(v)
	if err != nil {
		return err
	}
	return s.SetBytes(key, b[:])
}

func (s *ContractStorage) GetJSON(key string, out interface{}) (bool, error) {
	b, ok, err := s.GetBytes(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return true, err
	}
	return true, nil
}

func (s *ContractStorage) SetJSON(key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.SetBytes(key, b)
}

// Key schema for the domain and token sub-namespaces. This schema is
// part of the storage contract and must not change shape
// independent of a migration, since it is what makes storage portable
// across Durable Store backends.
func domainKey(name string) string           { return "domain:" + name }
func domainOwnerKey(name string) string       { return "owner:" + name }
func ownerDomainsKey(addr Address) string     { return "owner_domains:" + addr.String() }
func tokenBalanceKey(addr Address, kind TokenKind) string {
	return fmt.Sprintf("balance:%s:%s", addr.String(), kind)
}
func tokenTotalSupplyKey(kind TokenKind) string { return "total_supply:" + string(kind) }
