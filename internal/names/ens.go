package names

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const ensABIJSON = `[
  {"type":"function","name":"resolver","stateMutability":"view",
   "inputs":[{"name":"node","type":"bytes32"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"name","stateMutability":"view",
   "inputs":[{"name":"node","type":"bytes32"}],
   "outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"addr","stateMutability":"view",
   "inputs":[{"name":"node","type":"bytes32"}],
   "outputs":[{"name":"","type":"address"}]}
]`

var ensABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ensABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// ContractCaller runs read-only contract calls on the naming chain.
type ContractCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Namehash computes the ENS node of a dotted name.
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), label)
	}
	return node
}

// ReverseName returns the reverse record name of addr.
func ReverseName(addr common.Address) string {
	return strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")) + ".addr.reverse"
}

// ens performs reverse resolution against an ENS registry.
type ens struct {
	caller   ContractCaller
	registry common.Address
}

// lookup returns the verified primary name of addr, or "" when it has none.
func (e *ens) lookup(ctx context.Context, addr common.Address) (string, error) {
	reverseNode := Namehash(ReverseName(addr))
	resolver, err := e.resolver(ctx, reverseNode)
	if err != nil {
		return "", err
	}
	if resolver == (common.Address{}) {
		return "", nil
	}

	var name string
	if err := e.call(ctx, resolver, "name", reverseNode, &name); err != nil {
		return "", fmt.Errorf("reverse name: %w", err)
	}
	if name == "" {
		return "", nil
	}

	// A reverse record is only trusted if the name resolves back to addr.
	forwardNode := Namehash(name)
	forwardResolver, err := e.resolver(ctx, forwardNode)
	if err != nil {
		return "", err
	}
	if forwardResolver == (common.Address{}) {
		return "", nil
	}
	var forward common.Address
	if err := e.call(ctx, forwardResolver, "addr", forwardNode, &forward); err != nil {
		return "", fmt.Errorf("forward addr: %w", err)
	}
	if forward != addr {
		return "", nil
	}
	return name, nil
}

func (e *ens) resolver(ctx context.Context, node common.Hash) (common.Address, error) {
	var resolver common.Address
	if err := e.call(ctx, e.registry, "resolver", node, &resolver); err != nil {
		return common.Address{}, fmt.Errorf("registry resolver: %w", err)
	}
	return resolver, nil
}

func (e *ens) call(ctx context.Context, to common.Address, method string, node common.Hash, out any) error {
	data, err := ensABI.Pack(method, node)
	if err != nil {
		return err
	}
	result, err := e.caller.CallContract(ctx, to, data)
	if err != nil {
		return err
	}
	if len(result) == 0 {
		return nil
	}
	return ensABI.UnpackIntoInterface(out, method, result)
}
