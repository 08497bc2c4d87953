package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABI = `[
 {"type":"function","name":"transfer","stateMutability":"nonpayable",
  "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"event","name":"Transfer","anonymous":false,
  "inputs":[{"name":"from","type":"address","indexed":true},
            {"name":"to","type":"address","indexed":true},
            {"name":"value","type":"uint256","indexed":false}]}
]`

// masterChefABI covers the staking pool events the feed listens to.
const masterChefABI = `[
 {"type":"event","name":"Deposit","anonymous":false,
  "inputs":[{"name":"user","type":"address","indexed":true},
            {"name":"pid","type":"uint256","indexed":true},
            {"name":"amount","type":"uint256","indexed":false}]},
 {"type":"event","name":"Withdraw","anonymous":false,
  "inputs":[{"name":"user","type":"address","indexed":true},
            {"name":"pid","type":"uint256","indexed":true},
            {"name":"amount","type":"uint256","indexed":false}]}
]`

var (
	erc20      = mustABI(erc20ABI)
	masterChef = mustABI(masterChefABI)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
