package core

// Store backs the storage capability. Every key lives in the namespace of a
// contract; maps are a second level of keys under one storage key.
type Store interface {
	Get(contract, key string) (*string, error)
	Put(contract, key, value string) error
	Has(contract, key string) (bool, error)
	Delete(contract, key string) error

	MapGet(contract, key, field string) (*string, error)
	MapPut(contract, key, field, value string) error
	MapHas(contract, key, field string) (bool, error)
	MapDelete(contract, key, field string) error
	MapKeys(contract, key string) ([]string, error)
	MapLen(contract, key string) (int, error)

	Close() error
}

// ChainState backs the blockchain capability.
type ChainState interface {
	BlockInfo() (BlockInfo, error)
	TxInfo() (TxInfo, error)
	ContextInfo() (ContextInfo, error)
	// RequireAuth reports whether the signers of the current transaction
	// satisfy permission of account id.
	RequireAuth(id, permission string) (bool, error)
}

// Module is the source of a module found by a ModuleResolver. Path carries
// the file extension that selects the source loader (.js, .mjs, .ts).
type Module struct {
	Name   string
	Path   string
	Source string
}

// ModuleResolver finds the source of a module loaded with require. base is
// the sandbox's bootstrap path at the time of the call.
type ModuleResolver interface {
	Resolve(base, name string) (Module, error)
}
