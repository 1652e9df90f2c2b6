package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// tokenABIJSON covers the parts of the Bread token used here.
const tokenABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},
             {"name":"to","type":"address","indexed":true},
             {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"Mint","anonymous":false,
   "inputs":[{"name":"user","type":"address","indexed":true},
             {"name":"amount","type":"uint256","indexed":false}]}
]`

var (
	tokenABI = mustParseABI(tokenABIJSON)

	// MintTopic is topic0 of Mint(address,uint256).
	MintTopic = crypto.Keccak256Hash([]byte("Mint(address,uint256)"))

	// TransferTopic is topic0 of Transfer(address,address,uint256).
	TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
