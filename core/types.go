// SPDX-License-Identifier: BUSL-1.1
package core

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// AddressPrefix is prepended to the hex body of every textual address.
const AddressPrefix = "ghost"

// Address is a 20-byte account identifier, derived as the leading 20
// bytes of a hash over a public key (see DeriveAddress in crypto.go).
type Address [20]byte

func (a Address) Bytes() []byte { return a[:] }

func (a Address) IsZero() bool { return a == Address{} }

// String renders the textual form: "ghost" + 40 lowercase hex chars.
func (a Address) String() string {
	return AddressPrefix + hex.EncodeToString(a[:])
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	addr, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// MarshalText/UnmarshalText satisfy encoding.TextMarshaler, which
// encoding/json requires of any non-string, non-integer map key type
// (e.g. map[Address]*Account in stateRootView) before it will encode
// the map at all; without it, marshaling such a map fails outright.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// ParseAddress parses the textual "ghost"+hex form produced by String.
func ParseAddress(s string) (Address, error) {
	var out Address
	if !strings.HasPrefix(s, AddressPrefix) {
		return out, fmt.Errorf("address: missing %q prefix", AddressPrefix)
	}
	body := strings.TrimPrefix(s, AddressPrefix)
	if len(body) != 40 {
		return out, fmt.Errorf("address: expected 40 hex chars, got %d", len(body))
	}
	b, err := hex.DecodeString(body)
	if err != nil {
		return out, fmt.Errorf("address: %w", err)
	}
	copy(out[:], b)
	return out, nil
}

// Hash is a 32-byte cryptographic digest.
type Hash [32]byte

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	if len(b) != 32 {
		return fmt.Errorf("hash: expected 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// TokenKind is the closed enumeration of balances a ChainState tracks.
type TokenKind string

const (
	Native  TokenKind = "native"
	Utility TokenKind = "utility"
	Stable  TokenKind = "stable"
	Soul    TokenKind = "soul"
)

// Transferable reports whether a Transfer transaction may carry this kind.
// Soul is the sole non-transferable kind.
func (k TokenKind) Transferable() bool { return k != Soul }

// ActivationThreshold is the staked-amount a validator must cross
// (in Native base units) before it is marked active.
var ActivationThreshold = new(big.Int).Mul(big.NewInt(100_000), pow10(18))

func pow10(n int) *big.Int {
	ten := big.NewInt(10)
	return new(big.Int).Exp(ten, big.NewInt(int64(n)), nil)
}

// u128LEBytes encodes v as 16 little-endian bytes per the Contract
// Storage key schema. v must fit in 128 bits and be non-negative.
func u128LEBytes(v *big.Int) ([16]byte, error) {
	var out [16]byte
	if v == nil {
		return out, nil
	}
	if v.Sign() < 0 {
		return out, errors.New("u128: negative value")
	}
	b := v.Bytes() // big-endian, no leading zeros
	if len(b) > 16 {
		return out, errors.New("u128: value exceeds 128 bits")
	}
	for i := 0; i < len(b); i++ {
		out[i] = b[len(b)-1-i] // big-endian -> little-endian
	}
	return out, nil
}

func u128FromLEBytes(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}

// zeroBalances returns a fresh, fully-populated balance map for a new account.
func zeroBalances() map[TokenKind]*big.Int {
	return map[TokenKind]*big.Int{
		Native:  big.NewInt(0),
		Utility: big.NewInt(0),
		Stable:  big.NewInt(0),
		Soul:    big.NewInt(0),
	}
}

// Account is the chain's representation of a holder of balances, stake
// and an optional soul identity.
type Account struct {
	Address       Address              `json:"address"`
	PublicKey     []byte               `json:"public_key,omitempty"`
	Balances      map[TokenKind]*big.Int `json:"balances"`
	Nonce         uint64               `json:"nonce"`
	SoulID        string               `json:"soul_id,omitempty"`
	StakedAmount  *big.Int             `json:"staked_amount"`
	EarnedUtility *big.Int             `json:"earned_utility"`
}

func newAccount(addr Address, pub []byte) *Account {
	return &Account{
		Address:       addr,
		PublicKey:     pub,
		Balances:      zeroBalances(),
		StakedAmount:  big.NewInt(0),
		EarnedUtility: big.NewInt(0),
	}
}

func (a *Account) balance(k TokenKind) *big.Int {
	if b, ok := a.Balances[k]; ok && b != nil {
		return b
	}
	return big.NewInt(0)
}

// Validator is an account eligible to author blocks once its staked
// amount crosses ActivationThreshold.
type Validator struct {
	Address        Address             `json:"address"`
	StakedAmount   *big.Int            `json:"staked_amount"`
	Active         bool                `json:"active"`
	CommissionRate float64             `json:"commission_rate"`
	Delegators     map[Address]*big.Int `json:"delegators,omitempty"`
}

// TxKind discriminates the tagged sum a Transaction body may carry.
type TxKind string

const (
	TxTransfer         TxKind = "transfer"
	TxCreateAccount    TxKind = "create_account"
	TxStake            TxKind = "stake"
	TxUnstake          TxKind = "unstake"
	TxMintSoul         TxKind = "mint_soul"
	TxContributeProof  TxKind = "contribute_proof"
	TxDeployContract   TxKind = "deploy_contract"
	TxCallContract     TxKind = "call_contract"
)

type TransferBody struct {
	From   Address   `json:"from"`
	To     Address   `json:"to"`
	Token  TokenKind `json:"token"`
	Amount *big.Int  `json:"amount"`
}

type CreateAccountBody struct {
	Address   Address `json:"address"`
	PublicKey []byte  `json:"public_key,omitempty"`
}

type StakeBody struct {
	Staker Address  `json:"staker"`
	Amount *big.Int `json:"amount"`
}

type UnstakeBody struct {
	Staker Address  `json:"staker"`
	Amount *big.Int `json:"amount"`
}

type MintSoulBody struct {
	Recipient Address           `json:"recipient"`
	SoulID    string            `json:"soul_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type ContributeProofBody struct {
	Contributor Address  `json:"contributor"`
	ProofType   string   `json:"proof_type"`
	Reward      *big.Int `json:"reward"`
}

type DeployContractBody struct {
	Deployer Address `json:"deployer"`
	Code     []byte  `json:"code"`
	InitData []byte  `json:"init_data,omitempty"`
	GasLimit uint64  `json:"gas_limit"`
}

type CallContractBody struct {
	Caller     Address `json:"caller"`
	ContractID string  `json:"contract_id"`
	Method     string  `json:"method"`
	Data       []byte  `json:"data,omitempty"`
	GasLimit   uint64  `json:"gas_limit"`
}

// Transaction is the unit admitted, ordered, and applied by the Chain
// Engine. Exactly one of the *Body fields is populated, selected by Kind.
type Transaction struct {
	ID        string `json:"id"`
	Kind      TxKind `json:"kind"`
	Nonce     uint64 `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Signature []byte `json:"signature,omitempty"`
	GasPrice  uint64 `json:"gas_price"`
	GasLimit  uint64 `json:"gas_limit"`

	Transfer        *TransferBody        `json:"transfer,omitempty"`
	CreateAccount   *CreateAccountBody   `json:"create_account,omitempty"`
	Stake           *StakeBody           `json:"stake,omitempty"`
	Unstake         *UnstakeBody         `json:"unstake,omitempty"`
	MintSoul        *MintSoulBody        `json:"mint_soul,omitempty"`
	ContributeProof *ContributeProofBody `json:"contribute_proof,omitempty"`
	DeployContract  *DeployContractBody  `json:"deploy_contract,omitempty"`
	CallContract    *CallContractBody    `json:"call_contract,omitempty"`
}

// Sender returns the address responsible for the transaction's effects,
// used for nonce enforcement and pending-queue admission checks.
func (tx *Transaction) Sender() (Address, bool) {
	switch tx.Kind {
	case TxTransfer:
		if tx.Transfer == nil {
			return Address{}, false
		}
		return tx.Transfer.From, true
	case TxStake:
		if tx.Stake == nil {
			return Address{}, false
		}
		return tx.Stake.Staker, true
	case TxUnstake:
		if tx.Unstake == nil {
			return Address{}, false
		}
		return tx.Unstake.Staker, true
	case TxContributeProof:
		if tx.ContributeProof == nil {
			return Address{}, false
		}
		return tx.ContributeProof.Contributor, true
	case TxDeployContract:
		if tx.DeployContract == nil {
			return Address{}, false
		}
		return tx.DeployContract.Deployer, true
	case TxCallContract:
		if tx.CallContract == nil {
			return Address{}, false
		}
		return tx.CallContract.Caller, true
	default:
		return Address{}, false
	}
}

// Block is a sealed, hash-linked unit of state transition.
type Block struct {
	Height              uint64         `json:"height"`
	Hash                Hash           `json:"hash"`
	PreviousHash        Hash           `json:"previous_hash"`
	Timestamp           int64          `json:"timestamp"`
	Transactions        []*Transaction `json:"transactions"`
	Validator           Address        `json:"validator"`
	StateRoot           Hash           `json:"state_root"`
	ValidatorSignature  []byte         `json:"validator_signature,omitempty"`
}

// blockHashInput is the canonical, fixed-order view hashed to produce
// Block.Hash (height, previous-hash, timestamp, transactions only).
type blockHashInput struct {
	Height       uint64         `json:"height"`
	PreviousHash Hash           `json:"previous_hash"`
	Timestamp    int64          `json:"timestamp"`
	Transactions []*Transaction `json:"transactions"`
}

// computeHash deterministically hashes (height, previous-hash, timestamp,
// transactions). Canonical form is JSON with struct field order fixed
// by blockHashInput and map keys sorted (encoding/json guarantee).
func (b *Block) computeHash() (Hash, error) {
	in := blockHashInput{
		Height:       b.Height,
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
	}
	data, err := json.Marshal(in)
	if err != nil {
		return Hash{}, err
	}
	return Sum256(data), nil
}

// ContractKind distinguishes a native, in-process contract from the
// reserved (unimplemented) External kind.
type ContractKind string

const (
	ContractNative   ContractKind = "native"
	ContractExternal ContractKind = "external"
)

// ContractInfo is the chain-state record for a deployed contract.
type ContractInfo struct {
	ID        string            `json:"id"`
	Deployer  Address           `json:"deployer"`
	Code      []byte            `json:"code"`
	Storage   map[string][]byte `json:"storage"`
	CreatedAt int64             `json:"created_at"`
	GasUsed   uint64            `json:"gas_used"`
	Kind      ContractKind      `json:"kind"`
}

// DomainRecord is a single resolvable record (A, TXT, ...) under a name.
type DomainRecord struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	TTL      uint64  `json:"ttl"`
	Priority *uint32 `json:"priority,omitempty"`
}

// DomainData is the on-chain record for a registered name.
type DomainData struct {
	Name        string         `json:"name"`
	Owner       Address        `json:"owner"`
	Records     []DomainRecord `json:"records"`
	ContractID  string         `json:"contract_id,omitempty"`
	LastUpdated int64          `json:"last_updated"`
	Expiry      *int64         `json:"expiry,omitempty"`
	Signature   []byte         `json:"signature,omitempty"`
}
