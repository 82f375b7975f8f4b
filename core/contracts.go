// SPDX-License-Identifier: BUSL-1.1
package core

// Contract Executor: hosts installed contracts, dispatches deploy/call/
// query, enforces gas. No WASM execution — native contracts are Go
// types implementing the Contract capability set, kept in an arena
// keyed by contract id, preferring an executor-owned arena over
// per-call boxed allocations.
//
// Shaped after a singleton registry with a Deploy/Invoke/
// DeriveContractAddress surface and sha256 id derivation, with the
// WASM-routed Invoke replaced by native in-process dispatch.

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

var executorLog = log.WithField("component", "contract_executor")

// NativeMagicPrefix marks deploy code as a native, in-process contract.
// Code not carrying this prefix is treated as External, a reserved
// kind that currently fails with NotImplemented.
const NativeMagicPrefix = "GHOST_NATIVE_CONTRACT"

// Reserved system contract ids: a fixed "system:" prefix that deploy's
// hash(deployer||code) scheme can never produce, so a built-in id can
// never collide with a user-deployed one.
const (
	SystemDomainRegistryID = "system:domain_registry"
	SystemTokenManagerID   = "system:token_manager"
)

// Behavior names recognized after "GHOST_NATIVE_CONTRACT:" in deploy
// code. These are the only two native contracts this executor can run.
const (
	BehaviorDomainRegistry = "domain_registry"
	BehaviorTokenManager   = "token_manager"
)

// Event is emitted by a contract during init/call.
type Event struct {
	ContractID string   `json:"contract_id"`
	EventType  string   `json:"event_type"`
	Data       []byte   `json:"data,omitempty"`
	Topics     []string `json:"topics,omitempty"`
}

// ContractResult is the outcome of a deploy or call operation.
type ContractResult struct {
	Success    bool    `json:"success"`
	ReturnData []byte  `json:"return_data,omitempty"`
	GasUsed    uint64  `json:"gas_used"`
	Events     []Event `json:"events,omitempty"`
	Error      error   `json:"-"`
}

// ExecutionContext is passed to every contract entry point. It carries
// the already-held chain-state guard (via State) so contracts never
// need to acquire the engine's lock themselves: no re-entrant locking.
type ExecutionContext struct {
	Caller      Address
	ContractID  string
	BlockHeight uint64
	Timestamp   int64
	GasLimit    uint64
	State       *ChainState
	Gas         *GasTracker
	Events      []Event
}

// Emit records an event and charges its fixed gas cost.
func (c *ExecutionContext) Emit(eventType string, data []byte, topics ...string) error {
	if err := c.Gas.ChargeOp(OpEventEmit); err != nil {
		return err
	}
	c.Events = append(c.Events, Event{ContractID: c.ContractID, EventType: eventType, Data: data, Topics: topics})
	return nil
}

// Contract is the protocol every native contract implements.
type Contract interface {
	Init(ctx *ExecutionContext, initData []byte) (*ContractResult, error)
	Call(ctx *ExecutionContext, method string, data []byte) (*ContractResult, error)
	Query(ctx *ExecutionContext, query string, data []byte) ([]byte, error)
}

// ContractExecutor is the Contract Executor component.
type ContractExecutor struct {
	mu        sync.RWMutex
	behaviors map[string]Contract
}

// NewContractExecutor returns an executor with no installed contracts.
func NewContractExecutor() *ContractExecutor {
	return &ContractExecutor{behaviors: make(map[string]Contract)}
}

// InstallBuiltins registers the two built-in native contracts at their
// reserved system ids, creating their ContractInfo record in state if
// absent. Called once during node bootstrap, before any block is applied.
func (ex *ContractExecutor) InstallBuiltins(state *ChainState, timestamp int64, privilegedMinter Address) {
	ex.mu.Lock()
	ex.behaviors[SystemDomainRegistryID] = newNamingRegistryContract()
	ex.behaviors[SystemTokenManagerID] = newTokenManagerContract(privilegedMinter)
	ex.mu.Unlock()

	for _, id := range []string{SystemDomainRegistryID, SystemTokenManagerID} {
		if _, ok := state.GetContract(id); !ok {
			state.PutContract(&ContractInfo{
				ID:        id,
				Code:      []byte(NativeMagicPrefix),
				Storage:   make(map[string][]byte),
				CreatedAt: timestamp,
				Kind:      ContractNative,
			})
		}
	}
}

// detectKind classifies deploy code by the magic-prefix rule above,
// returning the requested native behavior name when present.
func detectKind(code []byte) (kind ContractKind, behavior string) {
	s := string(code)
	if strings.HasPrefix(s, NativeMagicPrefix) {
		rest := strings.TrimPrefix(s, NativeMagicPrefix)
		rest = strings.TrimPrefix(rest, ":")
		return ContractNative, rest
	}
	return ContractExternal, ""
}

func (ex *ContractExecutor) newBehavior(name string) (Contract, bool) {
	switch name {
	case BehaviorDomainRegistry:
		return newNamingRegistryContract(), true
	case BehaviorTokenManager:
		return newTokenManagerContract(Address{}), true
	default:
		return nil, false
	}
}

// DeriveContractID deterministically derives a deploy's contract id as
// the hex-encoded hash(deployer || code).
func DeriveContractID(deployer Address, code []byte) string {
	h := sha256.New()
	h.Write(deployer.Bytes())
	h.Write(code)
	return hex.EncodeToString(h.Sum(nil))
}

func (ex *ContractExecutor) newContext(state *ChainState, caller Address, contractID string, gasLimit, blockHeight uint64, timestamp int64, gas *GasTracker) *ExecutionContext {
	return &ExecutionContext{
		Caller:      caller,
		ContractID:  contractID,
		BlockHeight: blockHeight,
		Timestamp:   timestamp,
		GasLimit:    gasLimit,
		State:       state,
		Gas:         gas,
	}
}

// Deploy installs a new contract. Gas is charged before code runs; a
// failed Init leaves no trace — the ContractInfo and behavior
// registration are rolled back.
func (ex *ContractExecutor) Deploy(state *ChainState, deployer Address, code, initData []byte, gasLimit, blockHeight uint64, timestamp int64) (*ContractResult, error) {
	id := DeriveContractID(deployer, code)
	if _, exists := state.GetContract(id); exists {
		return nil, NewError(KindAlreadyExists, "contract already deployed: "+id)
	}

	gas := NewGasTracker(gasLimit)
	if err := gas.ChargeOp(OpBaseTx); err != nil {
		return nil, err
	}
	if err := gas.ChargeOp(OpContractCreate); err != nil {
		return nil, err
	}

	kind, behaviorName := detectKind(code)
	if kind == ContractExternal {
		return nil, NewError(KindNotImplemented, "external contract execution is not implemented")
	}

	behavior, ok := ex.newBehavior(behaviorName)
	if !ok {
		return nil, NewError(KindNotImplemented, "unknown native contract behavior: "+behaviorName)
	}

	info := &ContractInfo{ID: id, Deployer: deployer, Code: code, Storage: make(map[string][]byte), CreatedAt: timestamp, Kind: ContractNative}
	state.PutContract(info)
	ex.mu.Lock()
	ex.behaviors[id] = behavior
	ex.mu.Unlock()

	ctx := ex.newContext(state, deployer, id, gasLimit, blockHeight, timestamp, gas)
	res, err := behavior.Init(ctx, initData)
	if err != nil {
		delete(state.Contracts, id)
		ex.mu.Lock()
		delete(ex.behaviors, id)
		ex.mu.Unlock()
		return nil, err
	}
	info.GasUsed = gas.Used()
	executorLog.WithField("contract_id", id).Info("contract deployed")
	return res, nil
}

// Call dispatches method on contractID's installed behavior.
func (ex *ContractExecutor) Call(state *ChainState, caller Address, contractID, method string, data []byte, gasLimit, blockHeight uint64, timestamp int64) (*ContractResult, error) {
	info, ok := state.GetContract(contractID)
	if !ok {
		return nil, NewError(KindNotFound, "contract not found: "+contractID)
	}
	ex.mu.RLock()
	behavior, ok := ex.behaviors[contractID]
	ex.mu.RUnlock()
	if !ok {
		return nil, NewError(KindNotImplemented, "contract has no installed behavior: "+contractID)
	}

	gas := NewGasTracker(gasLimit)
	if err := gas.ChargeOp(OpBaseTx); err != nil {
		return nil, err
	}
	if err := gas.ChargeOp(OpContractCall); err != nil {
		return nil, err
	}

	ctx := ex.newContext(state, caller, contractID, gasLimit, blockHeight, timestamp, gas)
	res, err := behavior.Call(ctx, method, data)
	if err != nil {
		return nil, err
	}
	info.GasUsed += gas.Used()
	return res, nil
}

// Query is a read-only dispatch; no gas-limit accounting, though the
// tracker still runs for bookkeeping.
func (ex *ContractExecutor) Query(state *ChainState, contractID, query string, data []byte, blockHeight uint64, timestamp int64) ([]byte, error) {
	if _, ok := state.GetContract(contractID); !ok {
		return nil, NewError(KindNotFound, "contract not found: "+contractID)
	}
	ex.mu.RLock()
	behavior, ok := ex.behaviors[contractID]
	ex.mu.RUnlock()
	if !ok {
		return nil, NewError(KindNotImplemented, "contract has no installed behavior: "+contractID)
	}
	gas := NewGasTracker(^uint64(0))
	ctx := ex.newContext(state, Address{}, contractID, 0, blockHeight, timestamp, gas)
	return behavior.Query(ctx, query, data)
}
