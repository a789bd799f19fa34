package core

import "time"

// Outcome is the result of one execution. An empty Value and an empty Error
// together mean the program produced no result: it evaluated to undefined,
// threw null, or returned a value that could not be serialized.
type Outcome struct {
	Value        string        `json:"value,omitempty"`
	Error        string        `json:"error,omitempty"`
	IsStructured bool          `json:"isStructured"`
	GasUsed      uint64        `json:"gasUsed"`
	Logs         []LogEntry    `json:"logs,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Empty reports whether the outcome carries neither a value nor an error.
func (o Outcome) Empty() bool {
	return o.Value == "" && o.Error == ""
}

// LogEntry is a single console line captured from a script.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// BlockInfo describes the block a contract runs in.
type BlockInfo struct {
	Number     int64  `json:"number" yaml:"number"`
	ParentHash string `json:"parent_hash" yaml:"parent_hash"`
	Witness    string `json:"witness" yaml:"witness"`
	Time       int64  `json:"time" yaml:"time"`
}

// TxInfo describes the transaction that triggered the execution.
type TxInfo struct {
	Time       int64    `json:"time" yaml:"time"`
	Hash       string   `json:"hash" yaml:"hash"`
	Expiration int64    `json:"expiration" yaml:"expiration"`
	GasRatio   int64    `json:"gas_ratio" yaml:"gas_ratio"`
	GasLimit   int64    `json:"gas_limit" yaml:"gas_limit"`
	Publisher  string   `json:"publisher" yaml:"publisher"`
	Signers    []string `json:"signers" yaml:"signers"`
}

// ContextInfo describes the call frame of the running contract.
type ContextInfo struct {
	ContractName string `json:"contract_name" yaml:"contract_name"`
	AbiName      string `json:"abi_name" yaml:"abi_name"`
	Caller       string `json:"caller" yaml:"caller"`
	Publisher    string `json:"publisher" yaml:"publisher"`
}

// Account is an on-chain account with named permissions.
type Account struct {
	ID          string                 `json:"id" yaml:"id"`
	Permissions map[string]*Permission `json:"permissions" yaml:"permissions"`
}

// Permission grants authority once the summed weight of satisfied users
// reaches Threshold.
type Permission struct {
	Name      string   `json:"name" yaml:"name"`
	Groups    []*Group `json:"groups,omitempty" yaml:"groups"`
	Users     []*User  `json:"users" yaml:"users"`
	Threshold int      `json:"threshold" yaml:"threshold"`
}

// Group is a named set of users shared between permissions.
type Group struct {
	Name  string  `json:"name" yaml:"name"`
	Users []*User `json:"users" yaml:"users"`
}

// User is either a key pair (satisfied by a signature) or another account's
// permission (satisfied recursively).
type User struct {
	ID         string `json:"id" yaml:"id"`
	Permission string `json:"permission,omitempty" yaml:"permission"`
	IsKeyPair  bool   `json:"is_key_pair" yaml:"is_key_pair"`
	Weight     int    `json:"weight" yaml:"weight"`
}
