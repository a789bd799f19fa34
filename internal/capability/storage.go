package capability

import (
	"errors"

	"github.com/cryguy/sandbox/internal/core"
)

var errNoStore = errors.New("storage is not configured")

// RegisterStorage attaches the contract-scoped storage object. Keys of the
// running contract are read and written; global* read another contract.
func RegisterStorage(t *core.Template) {
	t.Method("storage", "put", storagePut)
	t.Method("storage", "get", storageGet)
	t.Method("storage", "has", storageHas)
	t.Method("storage", "del", storageDel)
	t.Method("storage", "mapPut", storageMapPut)
	t.Method("storage", "mapGet", storageMapGet)
	t.Method("storage", "mapHas", storageMapHas)
	t.Method("storage", "mapDel", storageMapDel)
	t.Method("storage", "mapKeys", storageMapKeys)
	t.Method("storage", "mapLen", storageMapLen)
	t.Method("storage", "globalGet", storageGlobalGet)
	t.Method("storage", "globalMapGet", storageGlobalMapGet)
}

func storeOf(c *core.Call) (core.Store, string, error) {
	st, err := c.State()
	if err != nil {
		return nil, "", err
	}
	if st.Store == nil {
		return nil, "", errNoStore
	}
	return st.Store, st.Contract, nil
}

// optional converts a missing value into null.
func optional(v *string) any {
	if v == nil {
		return core.Null
	}
	return *v
}

func storagePut(c *core.Call) (any, error) {
	store, contract, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 0, "storage.put", "key")
	if err != nil {
		return nil, err
	}
	val, err := stringArg(c, 1, "storage.put", "value")
	if err != nil {
		return nil, err
	}
	return nil, store.Put(contract, key, val)
}

func storageGet(c *core.Call) (any, error) {
	store, contract, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 0, "storage.get", "key")
	if err != nil {
		return nil, err
	}
	v, err := store.Get(contract, key)
	if err != nil {
		return nil, err
	}
	return optional(v), nil
}

func storageHas(c *core.Call) (any, error) {
	store, contract, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 0, "storage.has", "key")
	if err != nil {
		return nil, err
	}
	return store.Has(contract, key)
}

func storageDel(c *core.Call) (any, error) {
	store, contract, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 0, "storage.del", "key")
	if err != nil {
		return nil, err
	}
	return nil, store.Delete(contract, key)
}

func storageMapPut(c *core.Call) (any, error) {
	store, contract, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 0, "storage.mapPut", "key")
	if err != nil {
		return nil, err
	}
	field, err := stringArg(c, 1, "storage.mapPut", "field")
	if err != nil {
		return nil, err
	}
	val, err := stringArg(c, 2, "storage.mapPut", "value")
	if err != nil {
		return nil, err
	}
	return nil, store.MapPut(contract, key, field, val)
}

func storageMapGet(c *core.Call) (any, error) {
	store, contract, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 0, "storage.mapGet", "key")
	if err != nil {
		return nil, err
	}
	field, err := stringArg(c, 1, "storage.mapGet", "field")
	if err != nil {
		return nil, err
	}
	v, err := store.MapGet(contract, key, field)
	if err != nil {
		return nil, err
	}
	return optional(v), nil
}

func storageMapHas(c *core.Call) (any, error) {
	store, contract, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 0, "storage.mapHas", "key")
	if err != nil {
		return nil, err
	}
	field, err := stringArg(c, 1, "storage.mapHas", "field")
	if err != nil {
		return nil, err
	}
	return store.MapHas(contract, key, field)
}

func storageMapDel(c *core.Call) (any, error) {
	store, contract, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 0, "storage.mapDel", "key")
	if err != nil {
		return nil, err
	}
	field, err := stringArg(c, 1, "storage.mapDel", "field")
	if err != nil {
		return nil, err
	}
	return nil, store.MapDelete(contract, key, field)
}

func storageMapKeys(c *core.Call) (any, error) {
	store, contract, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 0, "storage.mapKeys", "key")
	if err != nil {
		return nil, err
	}
	keys, err := store.MapKeys(contract, key)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func storageMapLen(c *core.Call) (any, error) {
	store, contract, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 0, "storage.mapLen", "key")
	if err != nil {
		return nil, err
	}
	return store.MapLen(contract, key)
}

func storageGlobalGet(c *core.Call) (any, error) {
	store, _, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	contract, err := stringArg(c, 0, "storage.globalGet", "contract")
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 1, "storage.globalGet", "key")
	if err != nil {
		return nil, err
	}
	v, err := store.Get(contract, key)
	if err != nil {
		return nil, err
	}
	return optional(v), nil
}

func storageGlobalMapGet(c *core.Call) (any, error) {
	store, _, err := storeOf(c)
	if err != nil {
		return nil, err
	}
	contract, err := stringArg(c, 0, "storage.globalMapGet", "contract")
	if err != nil {
		return nil, err
	}
	key, err := stringArg(c, 1, "storage.globalMapGet", "key")
	if err != nil {
		return nil, err
	}
	field, err := stringArg(c, 2, "storage.globalMapGet", "field")
	if err != nil {
		return nil, err
	}
	v, err := store.MapGet(contract, key, field)
	if err != nil {
		return nil, err
	}
	return optional(v), nil
}
