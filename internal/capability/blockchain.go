package capability

import (
	"encoding/json"
	"errors"

	"github.com/cryguy/sandbox/internal/core"
)

var errNoChain = errors.New("blockchain state is not configured")

// RegisterBlockchain attaches the read-only view of the chain the contract
// runs on. Structured results are returned as JSON text.
func RegisterBlockchain(t *core.Template) {
	t.Method("blockchain", "blockInfo", blockInfo)
	t.Method("blockchain", "txInfo", txInfo)
	t.Method("blockchain", "contextInfo", contextInfo)
	t.Method("blockchain", "contractName", contractName)
	t.Method("blockchain", "publisher", publisher)
	t.Method("blockchain", "caller", caller)
	t.Method("blockchain", "requireAuth", requireAuth)
}

func chainOf(c *core.Call) (core.ChainState, error) {
	st, err := c.State()
	if err != nil {
		return nil, err
	}
	if st.Chain == nil {
		return nil, errNoChain
	}
	return st.Chain, nil
}

func jsonText(v any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func blockInfo(c *core.Call) (any, error) {
	chain, err := chainOf(c)
	if err != nil {
		return nil, err
	}
	return jsonText(chain.BlockInfo())
}

func txInfo(c *core.Call) (any, error) {
	chain, err := chainOf(c)
	if err != nil {
		return nil, err
	}
	return jsonText(chain.TxInfo())
}

func contextInfo(c *core.Call) (any, error) {
	chain, err := chainOf(c)
	if err != nil {
		return nil, err
	}
	return jsonText(chain.ContextInfo())
}

func contractName(c *core.Call) (any, error) {
	chain, err := chainOf(c)
	if err != nil {
		return nil, err
	}
	info, err := chain.ContextInfo()
	if err != nil {
		return nil, err
	}
	return info.ContractName, nil
}

func publisher(c *core.Call) (any, error) {
	chain, err := chainOf(c)
	if err != nil {
		return nil, err
	}
	info, err := chain.ContextInfo()
	if err != nil {
		return nil, err
	}
	return info.Publisher, nil
}

func caller(c *core.Call) (any, error) {
	chain, err := chainOf(c)
	if err != nil {
		return nil, err
	}
	info, err := chain.ContextInfo()
	if err != nil {
		return nil, err
	}
	return info.Caller, nil
}

// requireAuth checks the signers of the current transaction against a
// permission of an account. The permission defaults to "active".
func requireAuth(c *core.Call) (any, error) {
	chain, err := chainOf(c)
	if err != nil {
		return nil, err
	}
	id, err := stringArg(c, 0, "blockchain.requireAuth", "id")
	if err != nil {
		return nil, err
	}
	perm, ok := c.StringArg(1)
	if !ok || perm == "" {
		perm = "active"
	}
	return chain.RequireAuth(id, perm)
}
