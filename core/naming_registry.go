// SPDX-License-Identifier: BUSL-1.1
package core

// Naming Registry (system:domain_registry): one of the two built-in
// native contracts. A name has at most one owner; record mutations are
// authorized only by that owner; resolve_domain is a pure read of
// stored DomainData, never touched by the Resolver Core's cache layer.
//
// Shaped after a ledger-backed singleton registration pattern with
// structured logrus diagnostics, re-expressed over the Contract Storage
// façade instead of direct ledger key/value access.

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

var namingRegistryLog = log.WithField("component", "naming_registry")

type namingRegistryContract struct{}

func newNamingRegistryContract() *namingRegistryContract { return &namingRegistryContract{} }

func (n *namingRegistryContract) storage(ctx *ExecutionContext) (*ContractStorage, error) {
	info, ok := ctx.State.GetContract(ctx.ContractID)
	if !ok {
		return nil, NewError(KindNotFound, "contract info missing for "+ctx.ContractID)
	}
	return newContractStorage(info, ctx.Gas), nil
}

func (n *namingRegistryContract) Init(ctx *ExecutionContext, initData []byte) (*ContractResult, error) {
	return &ContractResult{Success: true, GasUsed: ctx.Gas.Used()}, nil
}

type registerDomainRequest struct {
	Name    string         `json:"name"`
	Records []DomainRecord `json:"records,omitempty"`
	Expiry  *int64         `json:"expiry,omitempty"`
}

type transferDomainRequest struct {
	Name     string  `json:"name"`
	NewOwner Address `json:"new_owner"`
}

type setRecordRequest struct {
	Name   string       `json:"name"`
	Record DomainRecord `json:"record"`
}

func (n *namingRegistryContract) Call(ctx *ExecutionContext, method string, data []byte) (*ContractResult, error) {
	storage, err := n.storage(ctx)
	if err != nil {
		return nil, err
	}

	switch method {
	case "register_domain":
		var req registerDomainRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, WrapErr(KindBadInput, err, "register_domain: malformed request")
		}
		if err := ctx.Gas.ChargeOp(OpDomainRegister); err != nil {
			return nil, err
		}
		exists, err := storage.Has(domainKey(req.Name))
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, NewError(KindAlreadyExists, "domain exists: "+req.Name)
		}
		dd := DomainData{Name: req.Name, Owner: ctx.Caller, Records: req.Records, LastUpdated: ctx.Timestamp, Expiry: req.Expiry}
		if err := storage.SetJSON(domainKey(req.Name), dd); err != nil {
			return nil, err
		}
		if err := storage.SetString(domainOwnerKey(req.Name), ctx.Caller.String()); err != nil {
			return nil, err
		}
		if err := addNameToOwnerList(storage, ctx.Caller, req.Name); err != nil {
			return nil, err
		}
		if err := ctx.Emit("domain_registered", []byte(req.Name)); err != nil {
			return nil, err
		}
		namingRegistryLog.WithField("name", req.Name).WithField("owner", ctx.Caller.String()).Info("domain registered")
		return &ContractResult{Success: true, GasUsed: ctx.Gas.Used(), Events: ctx.Events}, nil

	case "transfer_domain":
		var req transferDomainRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, WrapErr(KindBadInput, err, "transfer_domain: malformed request")
		}
		if err := ctx.Gas.ChargeOp(OpDomainTransfer); err != nil {
			return nil, err
		}
		var dd DomainData
		ok, err := storage.GetJSON(domainKey(req.Name), &dd)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, NewError(KindNotFound, "domain not found: "+req.Name)
		}
		if dd.Owner != ctx.Caller {
			return nil, NewError(KindUnauthorized, "caller is not domain owner")
		}
		oldOwner := dd.Owner
		dd.Owner = req.NewOwner
		dd.LastUpdated = ctx.Timestamp
		if err := storage.SetJSON(domainKey(req.Name), dd); err != nil {
			return nil, err
		}
		if err := storage.SetString(domainOwnerKey(req.Name), req.NewOwner.String()); err != nil {
			return nil, err
		}
		if err := removeNameFromOwnerList(storage, oldOwner, req.Name); err != nil {
			return nil, err
		}
		if err := addNameToOwnerList(storage, req.NewOwner, req.Name); err != nil {
			return nil, err
		}
		if err := ctx.Emit("domain_transferred", []byte(req.Name)); err != nil {
			return nil, err
		}
		return &ContractResult{Success: true, GasUsed: ctx.Gas.Used(), Events: ctx.Events}, nil

	case "set_record", "update_record":
		var req setRecordRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, WrapErr(KindBadInput, err, method+": malformed request")
		}
		if err := ctx.Gas.ChargeOp(OpDNSRecordUpdate); err != nil {
			return nil, err
		}
		var dd DomainData
		ok, err := storage.GetJSON(domainKey(req.Name), &dd)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, NewError(KindNotFound, "domain not found: "+req.Name)
		}
		if dd.Owner != ctx.Caller {
			return nil, NewError(KindUnauthorized, "caller is not domain owner")
		}
		dd.Records = upsertRecord(dd.Records, req.Record)
		dd.LastUpdated = ctx.Timestamp
		if err := storage.SetJSON(domainKey(req.Name), dd); err != nil {
			return nil, err
		}
		if err := ctx.Emit("domain_record_updated", []byte(req.Name)); err != nil {
			return nil, err
		}
		return &ContractResult{Success: true, GasUsed: ctx.Gas.Used(), Events: ctx.Events}, nil

	default:
		return nil, NewError(KindBadInput, "naming registry: unknown method "+method)
	}
}

func (n *namingRegistryContract) Query(ctx *ExecutionContext, query string, data []byte) ([]byte, error) {
	storage, err := n.storage(ctx)
	if err != nil {
		return nil, err
	}

	switch query {
	case "resolve_domain":
		if err := ctx.Gas.ChargeOp(OpDomainLookup); err != nil {
			return nil, err
		}
		var dd DomainData
		ok, err := storage.GetJSON(domainKey(string(data)), &dd)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, NewError(KindNotFound, "domain not found: "+string(data))
		}
		return json.Marshal(dd)

	case "get_owner_domains":
		if err := ctx.Gas.ChargeOp(OpDomainLookup); err != nil {
			return nil, err
		}
		var addr Address
		if len(data) != len(addr) {
			return nil, NewError(KindBadInput, "get_owner_domains: malformed address")
		}
		copy(addr[:], data)
		var names []string
		if _, err := storage.GetJSON(ownerDomainsKey(addr), &names); err != nil {
			return nil, err
		}
		return json.Marshal(names)

	default:
		return nil, NewError(KindBadInput, "naming registry: unknown query "+query)
	}
}

func upsertRecord(records []DomainRecord, rec DomainRecord) []DomainRecord {
	for i, existing := range records {
		if existing.Type == rec.Type {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

func addNameToOwnerList(storage *ContractStorage, owner Address, name string) error {
	var names []string
	if _, err := storage.GetJSON(ownerDomainsKey(owner), &names); err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	names = append(names, name)
	return storage.SetJSON(ownerDomainsKey(owner), names)
}

func removeNameFromOwnerList(storage *ContractStorage, owner Address, name string) error {
	var names []string
	if _, err := storage.GetJSON(ownerDomainsKey(owner), &names); err != nil {
		return err
	}
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return storage.SetJSON(ownerDomainsKey(owner), out)
}
