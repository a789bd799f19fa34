// Package chain provides the chain state seen by the blockchain capability:
// block, transaction and call-frame information plus account permissions.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cryguy/sandbox/internal/core"
	"github.com/google/uuid"
)

// ErrUnknownAccount is returned when a permission check names an account
// that does not exist.
var ErrUnknownAccount = errors.New("unknown account")

// Static is a fixed core.ChainState, typically loaded from a fixture.
type Static struct {
	mu       sync.RWMutex
	block    core.BlockInfo
	tx       core.TxInfo
	context  core.ContextInfo
	accounts map[string]*core.Account
}

var _ core.ChainState = (*Static)(nil)

// Fixture is the serialized form of a Static chain.
type Fixture struct {
	Block    core.BlockInfo    `yaml:"block"`
	Tx       core.TxInfo       `yaml:"tx"`
	Context  core.ContextInfo  `yaml:"context"`
	Accounts []*core.Account   `yaml:"accounts"`
}

// NewStatic builds a chain from f. A transaction without a hash gets a
// random one.
func NewStatic(f Fixture) *Static {
	s := &Static{
		block:    f.Block,
		tx:       f.Tx,
		context:  f.Context,
		accounts: make(map[string]*core.Account),
	}
	if s.tx.Hash == "" {
		s.tx.Hash = uuid.NewString()
	}
	for _, a := range f.Accounts {
		if a != nil {
			s.accounts[a.ID] = a
		}
	}
	return s
}

func (s *Static) BlockInfo() (core.BlockInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.block, nil
}

func (s *Static) TxInfo() (core.TxInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx := s.tx
	tx.Signers = append([]string(nil), s.tx.Signers...)
	return tx, nil
}

func (s *Static) ContextInfo() (core.ContextInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.context, nil
}

// SetContext replaces the call frame, e.g. between executions of different
// contracts.
func (s *Static) SetContext(c core.ContextInfo) {
	s.mu.Lock()
	s.context = c
	s.mu.Unlock()
}

// AddAccount registers or replaces an account.
func (s *Static) AddAccount(a *core.Account) {
	s.mu.Lock()
	s.accounts[a.ID] = a
	s.mu.Unlock()
}

// Account returns the account registered under id.
func (s *Static) Account(id string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return a, nil
}

// RequireAuth checks permission of account id against the transaction
// signers. Each signer is authorised for its "active" permission.
func (s *Static) RequireAuth(id, permission string) (bool, error) {
	tx, _ := s.TxInfo()
	signers := make(map[string]bool, len(tx.Signers)+1)
	for _, sg := range tx.Signers {
		signers[sg] = true
	}
	if tx.Publisher != "" {
		signers[tx.Publisher] = true
	}
	return Authorize(s.Account, signers, id, permission)
}
