// SPDX-License-Identifier: BUSL-1.1

// Package resolver implements the Multi-Domain Resolver Core: a single
// lookup surface over three kinds of name backend — a DID resolver, two
// external registries (A and B), and the on-chain Naming Registry
// contract — selected by a name's prefix or suffix, with a short-lived
// cache sitting in front of all of them.
//
// The cache is a plain Go map guarded by a mutex rather than an LRU
// list: entries leave on TTL expiry or an explicit Invalidate call, not
// on a capacity bound, so an ordered eviction list buys nothing here.
// Nothing in this package or in the Naming Registry contract calls
// Invalidate; an on-chain mutation evicts the entry only when the caller
// that submitted it calls Invalidate.
package resolver

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"ghostchain/core"
)

var resolverLog = log.WithField("component", "resolver_core")

// BackendKind identifies which backend a name classifies to.
type BackendKind string

const (
	BackendDID            BackendKind = "did"
	BackendExternalA      BackendKind = "external_a"
	BackendExternalB      BackendKind = "external_b"
	BackendNamingRegistry BackendKind = "naming_registry"
	BackendUnknown        BackendKind = "unknown"
)

// externalBSuffixes lists the TLD-like suffixes routed to External
// Registry B.
var externalBSuffixes = map[string]bool{
	"crypto": true, "nft": true, "blockchain": true, "888": true, "wallet": true,
	"x": true, "klever": true, "hi": true, "kresus": true, "polygon": true, "unstoppable": true,
}

// namingRegistrySuffixes lists the suffixes resolved on-chain via the
// Naming Registry contract.
var namingRegistrySuffixes = map[string]bool{
	"ghost": true, "gcc": true, "sig": true, "gpk": true, "key": true, "pin": true,
	"sid": true, "dvm": true, "tmp": true, "dbg": true, "lib": true, "txo": true,
	"zns": true, "bc": true, "ops": true,
}

// Classify reports which backend owns name, per the prefix/suffix table above.
func Classify(name string) BackendKind {
	if strings.HasPrefix(name, "did:") {
		return BackendDID
	}
	suffix := suffixOf(name)
	switch {
	case suffix == "eth":
		return BackendExternalA
	case externalBSuffixes[suffix]:
		return BackendExternalB
	case namingRegistrySuffixes[suffix]:
		return BackendNamingRegistry
	default:
		return BackendUnknown
	}
}

func suffixOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// IdentityDescriptor carries the identity material a did: resolution
// surfaces: the public keys, service endpoints, and verification
// methods associated with the decentralized identifier.
type IdentityDescriptor struct {
	PublicKeys          []string `json:"public_keys,omitempty"`
	ServiceEndpoints    []string `json:"service_endpoints,omitempty"`
	VerificationMethods []string `json:"verification_methods,omitempty"`
}

// ResolvedRecord is the backend-agnostic shape every backend resolves
// to. Address and Identity are optional: a did: resolution typically
// populates Identity and leaves Address unset, while the on-chain and
// external-registry backends populate Address and leave Identity nil.
type ResolvedRecord struct {
	Name     string
	Owner    string
	Address  string
	Identity *IdentityDescriptor
	Records  []core.DomainRecord
	Metadata map[string]string
	Source   BackendKind
}

// ExternalRegistry is implemented by the out-of-chain backends (DID
// resolver, External Registry A, External Registry B). The Resolver
// Core depends only on this interface, never on a concrete transport.
type ExternalRegistry interface {
	Resolve(name string) (*ResolvedRecord, error)
	OwnerDomains(owner string) ([]string, error)
}

// OnChainClient is the subset of ChainEngine the Naming Registry
// backend needs: a read-only query into the installed contract.
type OnChainClient interface {
	QueryContract(contractID, query string, data []byte) ([]byte, error)
}

type cacheEntry struct {
	record    *ResolvedRecord
	expiresAt time.Time
}

// DefaultTTL is the cache lifetime applied when a resolved record
// carries no record with a smaller TTL.
const DefaultTTL = 300 * time.Second

// Core is the Multi-Domain Resolver Core. It is safe for concurrent use.
type Core struct {
	did        ExternalRegistry
	registryA  ExternalRegistry
	registryB  ExternalRegistry
	onChain    OnChainClient
	domainRegistryContractID string

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

// New constructs a Resolver Core. Any backend may be nil; a nil backend
// fails lookups routed to it with core.KindNotImplemented rather than panicking.
func New(did, registryA, registryB ExternalRegistry, onChain OnChainClient, domainRegistryContractID string) *Core {
	return &Core{
		did:                      did,
		registryA:                registryA,
		registryB:                registryB,
		onChain:                  onChain,
		domainRegistryContractID: domainRegistryContractID,
		cache:                    make(map[string]cacheEntry),
	}
}

// Resolve looks up name, consulting the cache before dispatching to the
// classified backend. Coherence with on-chain state after a mutation is
// maintained by Invalidate, which callers must invoke on every
// successful register/transfer/set_record/update_record.
func (c *Core) Resolve(name string) (*ResolvedRecord, error) {
	if rec, ok := c.fromCache(name); ok {
		return rec, nil
	}

	kind := Classify(name)
	var (
		rec *ResolvedRecord
		err error
	)
	switch kind {
	case BackendDID:
		rec, err = c.resolveExternal(c.did, name)
	case BackendExternalA:
		rec, err = c.resolveExternal(c.registryA, name)
	case BackendExternalB:
		rec, err = c.resolveExternal(c.registryB, name)
	case BackendNamingRegistry:
		rec, err = c.resolveOnChain(name)
	default:
		return nil, core.NewError(core.KindNotFound, "unrecognised domain classification for "+name)
	}
	if err != nil {
		return nil, err
	}

	c.store(name, rec)
	return rec, nil
}

// externalCallTimeout bounds an external-registry Resolve call; expiry
// surfaces as BackendTimeout rather than the caller blocking forever on
// a backend that never answers.
const externalCallTimeout = 5 * time.Second

func (c *Core) resolveExternal(backend ExternalRegistry, name string) (*ResolvedRecord, error) {
	if backend == nil {
		return nil, core.NewError(core.KindNotImplemented, "no external backend configured for "+name)
	}
	type outcome struct {
		rec *ResolvedRecord
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		rec, err := backend.Resolve(name)
		done <- outcome{rec, err}
	}()
	select {
	case o := <-done:
		return o.rec, o.err
	case <-time.After(externalCallTimeout):
		return nil, core.NewError(core.KindBackendTimeout, "external registry timed out resolving "+name)
	}
}

func (c *Core) resolveOnChain(name string) (*ResolvedRecord, error) {
	if c.onChain == nil {
		return nil, core.NewError(core.KindNotImplemented, "no on-chain backend configured")
	}
	data, err := c.onChain.QueryContract(c.domainRegistryContractID, "resolve_domain", []byte(name))
	if err != nil {
		return nil, err
	}
	var dd core.DomainData
	if err := json.Unmarshal(data, &dd); err != nil {
		return nil, err
	}
	return &ResolvedRecord{Name: dd.Name, Owner: dd.Owner.String(), Address: dd.Owner.String(), Records: dd.Records, Source: BackendNamingRegistry}, nil
}

// OwnerDomains fans out a reverse lookup across every configured
// backend, preserving per-backend order; backends left unconfigured are
// skipped rather than erroring the whole call.
func (c *Core) OwnerDomains(owner string) ([]string, error) {
	var out []string

	appendFrom := func(backend ExternalRegistry) error {
		if backend == nil {
			return nil
		}
		names, err := backend.OwnerDomains(owner)
		if err != nil {
			return err
		}
		out = append(out, names...)
		return nil
	}
	if err := appendFrom(c.did); err != nil {
		return nil, err
	}
	if err := appendFrom(c.registryA); err != nil {
		return nil, err
	}
	if err := appendFrom(c.registryB); err != nil {
		return nil, err
	}

	if c.onChain != nil {
		addr, err := core.ParseAddress(owner)
		if err == nil {
			data, err := c.onChain.QueryContract(c.domainRegistryContractID, "get_owner_domains", addr.Bytes())
			if err != nil {
				return nil, err
			}
			var names []string
			if err := json.Unmarshal(data, &names); err != nil {
				return nil, err
			}
			out = append(out, names...)
		}
	}
	return out, nil
}

// EnsureRegistrable rejects a register/transfer/set_record/update_record
// attempt against name unless it classifies to the on-chain Naming
// Registry; every other backend is read-only from this resolver's point
// of view. Callers submit the actual mutation as a CallContract
// transaction through the Chain Engine once this check passes.
func (c *Core) EnsureRegistrable(name string) error {
	if Classify(name) != BackendNamingRegistry {
		return core.NewError(core.KindBackendReadOnly, "backend for "+name+" does not accept registration or updates")
	}
	return nil
}

// CleanupCache evicts every expired entry regardless of whether it has
// been looked up again since expiring, bounding cache memory use
// independent of Resolve traffic. Intended to be called periodically
// (e.g. from a background ticker), complementing fromCache's lazy,
// lookup-triggered eviction.
func (c *Core) CleanupCache() int {
	now := time.Now()
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	removed := 0
	for name, entry := range c.cache {
		if now.After(entry.expiresAt) {
			delete(c.cache, name)
			removed++
		}
	}
	if removed > 0 {
		resolverLog.WithField("count", removed).Debug("cleanup_cache evicted expired entries")
	}
	return removed
}

// Invalidate evicts name from the cache. Callers must invoke this after
// every successful register_domain/transfer_domain/set_record/
// update_record so a subsequent Resolve cannot observe stale data.
func (c *Core) Invalidate(name string) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	delete(c.cache, name)
	resolverLog.WithField("name", name).Debug("cache entry evicted")
}

func (c *Core) fromCache(name string) (*ResolvedRecord, bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	entry, ok := c.cache[name]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.cache, name)
		return nil, false
	}
	return entry.record, true
}

func (c *Core) store(name string, rec *ResolvedRecord) {
	ttl := DefaultTTL
	for _, r := range rec.Records {
		if r.TTL > 0 {
			if d := time.Duration(r.TTL) * time.Second; d < ttl {
				ttl = d
			}
		}
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[name] = cacheEntry{record: rec, expiresAt: time.Now().Add(ttl)}
}
