package core

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutorWithBuiltins(t *testing.T, minter Address) (*ContractExecutor, *ChainState) {
	t.Helper()
	ex := NewContractExecutor()
	state := NewChainState()
	ex.InstallBuiltins(state, 1000, minter)
	return ex, state
}

func TestDeployUnknownNativeBehaviorFails(t *testing.T) {
	ex, state := newExecutorWithBuiltins(t, Address{})
	deployer := Address{1}
	_, err := ex.Deploy(state, deployer, []byte(NativeMagicPrefix+":not_a_real_behavior"), nil, 100000, 1, 1000)
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindNotImplemented, kind)
}

func TestDeployExternalContractRejected(t *testing.T) {
	ex, state := newExecutorWithBuiltins(t, Address{})
	deployer := Address{1}
	_, err := ex.Deploy(state, deployer, []byte("some arbitrary bytecode"), nil, 100000, 1, 1000)
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindNotImplemented, kind)
}

// Gas exhaustion: a gas limit too small to cover even the base tx and
// contract-call cost fails with OutOfGas and leaves the contract's
// stored state untouched.
func TestCallOutOfGas(t *testing.T) {
	ex, state := newExecutorWithBuiltins(t, Address{})
	caller := Address{1}
	req, _ := json.Marshal(registerDomainRequest{Name: "alice.ghost"})
	_, err := ex.Call(state, caller, SystemDomainRegistryID, "register_domain", req, 10, 1, 1000)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindOutOfGas, kind)

	_, exists := state.GetDomain("alice.ghost")
	assert.False(t, exists, "a call that runs out of gas must not leave partial storage effects")

	info, ok := state.GetContract(SystemDomainRegistryID)
	require.True(t, ok)
	_, stored := info.Storage[domainKey("alice.ghost")]
	assert.False(t, stored, "a call that runs out of gas must not write the registry's domain entry")
}

func TestDomainLifecycle(t *testing.T) {
	ex, state := newExecutorWithBuiltins(t, Address{})
	owner := Address{1}
	newOwner := Address{2}

	reg, _ := json.Marshal(registerDomainRequest{Name: "alice.ghost"})
	_, err := ex.Call(state, owner, SystemDomainRegistryID, "register_domain", reg, 200000, 1, 1000)
	require.NoError(t, err)

	// duplicate registration fails
	_, err = ex.Call(state, owner, SystemDomainRegistryID, "register_domain", reg, 200000, 1, 1000)
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindAlreadyExists, kind)

	out, err := ex.Query(state, SystemDomainRegistryID, "resolve_domain", []byte("alice.ghost"), 1, 1000)
	require.NoError(t, err)
	var dd DomainData
	require.NoError(t, json.Unmarshal(out, &dd))
	assert.Equal(t, owner, dd.Owner)

	transfer, _ := json.Marshal(transferDomainRequest{Name: "alice.ghost", NewOwner: newOwner})
	_, err = ex.Call(state, owner, SystemDomainRegistryID, "transfer_domain", transfer, 200000, 1, 1000)
	require.NoError(t, err)

	// old owner can no longer mutate records
	setRec, _ := json.Marshal(setRecordRequest{Name: "alice.ghost", Record: DomainRecord{Type: "A", Value: "1.2.3.4", TTL: 60}})
	_, err = ex.Call(state, owner, SystemDomainRegistryID, "set_record", setRec, 200000, 1, 1000)
	require.Error(t, err)
	kind, _ = KindOf(err)
	assert.Equal(t, KindUnauthorized, kind)

	_, err = ex.Call(state, newOwner, SystemDomainRegistryID, "set_record", setRec, 200000, 1, 1000)
	require.NoError(t, err)

	ownerDomains, err := ex.Query(state, SystemDomainRegistryID, "get_owner_domains", newOwner.Bytes(), 1, 1000)
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal(ownerDomains, &names))
	assert.Contains(t, names, "alice.ghost")
}

func TestTokenManagerTransferMintBurn(t *testing.T) {
	minter := Address{9}
	ex, state := newExecutorWithBuiltins(t, minter)
	alice := state.EnsureAccount(Address{1})
	alice.Balances[Utility] = big.NewInt(500)

	mint, _ := json.Marshal(tokenMintRequest{To: Address{1}, Kind: Utility, Amount: big.NewInt(100)})
	_, err := ex.Call(state, minter, SystemTokenManagerID, "mint", mint, 200000, 1, 1000)
	require.NoError(t, err)
	acc, _ := state.GetAccount(Address{1})
	assert.Equal(t, big.NewInt(600), acc.balance(Utility))

	// non-minter cannot mint
	_, err = ex.Call(state, Address{2}, SystemTokenManagerID, "mint", mint, 200000, 1, 1000)
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindUnauthorized, kind)

	transfer, _ := json.Marshal(tokenTransferRequest{To: Address{2}, Kind: Utility, Amount: big.NewInt(50)})
	_, err = ex.Call(state, Address{1}, SystemTokenManagerID, "transfer", transfer, 200000, 1, 1000)
	require.NoError(t, err)
	acc2, _ := state.GetAccount(Address{2})
	assert.Equal(t, big.NewInt(50), acc2.balance(Utility))

	burn, _ := json.Marshal(tokenBurnRequest{From: Address{1}, Kind: Utility, Amount: big.NewInt(50)})
	_, err = ex.Call(state, Address{1}, SystemTokenManagerID, "burn", burn, 200000, 1, 1000)
	require.NoError(t, err)
	acc, _ = state.GetAccount(Address{1})
	assert.Equal(t, big.NewInt(500), acc.balance(Utility))

	soulBurn, _ := json.Marshal(tokenBurnRequest{From: Address{1}, Kind: Soul, Amount: big.NewInt(1)})
	_, err = ex.Call(state, Address{1}, SystemTokenManagerID, "burn", soulBurn, 200000, 1, 1000)
	require.Error(t, err)
	kind, _ = KindOf(err)
	assert.Equal(t, KindSoulNonTransferable, kind)
}
