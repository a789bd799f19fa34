package storage

import (
	"sort"
	"sync"
)

type memKey struct {
	contract, name string
}

// MemoryStore is a process-local core.Store used by tests and by callers
// that need no persistence.
type MemoryStore struct {
	mu   sync.RWMutex
	kv   map[memKey]string
	maps map[memKey]map[string]string
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		kv:   make(map[memKey]string),
		maps: make(map[memKey]map[string]string),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Get(contract, key string) (*string, error) {
	if err := validate(contract, key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.kv[memKey{contract, key}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *MemoryStore) Put(contract, key, value string) error {
	if err := validate(contract, key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	m.mu.Lock()
	m.kv[memKey{contract, key}] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Has(contract, key string) (bool, error) {
	if err := validate(contract, key); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.kv[memKey{contract, key}]
	return ok, nil
}

func (m *MemoryStore) Delete(contract, key string) error {
	if err := validate(contract, key); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.kv, memKey{contract, key})
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) MapGet(contract, key, field string) (*string, error) {
	if err := validate(contract, key, field); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.maps[memKey{contract, key}][field]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *MemoryStore) MapPut(contract, key, field, value string) error {
	if err := validate(contract, key, field); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{contract, key}
	fields := m.maps[k]
	if fields == nil {
		fields = make(map[string]string)
		m.maps[k] = fields
	}
	fields[field] = value
	return nil
}

func (m *MemoryStore) MapHas(contract, key, field string) (bool, error) {
	if err := validate(contract, key, field); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.maps[memKey{contract, key}][field]
	return ok, nil
}

func (m *MemoryStore) MapDelete(contract, key, field string) error {
	if err := validate(contract, key, field); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{contract, key}
	delete(m.maps[k], field)
	if len(m.maps[k]) == 0 {
		delete(m.maps, k)
	}
	return nil
}

func (m *MemoryStore) MapKeys(contract, key string) ([]string, error) {
	if err := validate(contract, key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields := m.maps[memKey{contract, key}]
	keys := make([]string, 0, len(fields))
	for f := range fields {
		keys = append(keys, f)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) MapLen(contract, key string) (int, error) {
	if err := validate(contract, key); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.maps[memKey{contract, key}]), nil
}
