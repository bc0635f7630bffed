package chain

import (
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Minimal ABIs for the bonding-curve router, lens, curve factory and ERC20:
// only the entries we call or decode.

func routerABIJSON() io.Reader {
	return strings.NewReader(`[
		{
			"name": "buy",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [{
				"name": "params",
				"type": "tuple",
				"components": [
					{"name": "amountOutMin", "type": "uint256"},
					{"name": "token",        "type": "address"},
					{"name": "to",           "type": "address"},
					{"name": "deadline",     "type": "uint256"}
				]
			}],
			"outputs": []
		},
		{
			"name": "sell",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [{
				"name": "params",
				"type": "tuple",
				"components": [
					{"name": "amountIn",     "type": "uint256"},
					{"name": "amountOutMin", "type": "uint256"},
					{"name": "token",        "type": "address"},
					{"name": "to",           "type": "address"},
					{"name": "deadline",     "type": "uint256"}
				]
			}],
			"outputs": []
		}
	]`)
}

func lensABIJSON() io.Reader {
	return strings.NewReader(`[
		{
			"name": "getCurveState",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "token", "type": "address"}],
			"outputs": [
				{"name": "realMonReserve",    "type": "uint256"},
				{"name": "virtualMonReserve", "type": "uint256"},
				{"name": "tokenReserve",      "type": "uint256"},
				{"name": "creator",           "type": "address"},
				{"name": "creatorMon",        "type": "uint256"},
				{"name": "isGraduated",       "type": "bool"},
				{"name": "isClosed",          "type": "bool"}
			]
		}
	]`)
}

func curveABIJSON() io.Reader {
	return strings.NewReader(`[
		{
			"name": "CurveCreate",
			"type": "event",
			"anonymous": false,
			"inputs": [
				{"name": "creator",           "type": "address", "indexed": true},
				{"name": "token",             "type": "address", "indexed": true},
				{"name": "pool",              "type": "address", "indexed": true},
				{"name": "name",              "type": "string",  "indexed": false},
				{"name": "symbol",            "type": "string",  "indexed": false},
				{"name": "tokenURI",          "type": "string",  "indexed": false},
				{"name": "virtualMon",        "type": "uint256", "indexed": false},
				{"name": "virtualToken",      "type": "uint256", "indexed": false},
				{"name": "targetTokenAmount", "type": "uint256", "indexed": false}
			]
		}
	]`)
}

func erc20ABIJSON() io.Reader {
	return strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "_owner", "type": "address"}],
			"outputs": [{"name": "balance", "type": "uint256"}]
		},
		{
			"name": "approve",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [
				{"name": "_spender", "type": "address"},
				{"name": "_value",   "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`)
}

// Tuple arguments for the router. Field names must match the ABI component
// names in camel case for the packer to map them.

type buyParams struct {
	AmountOutMin *big.Int
	Token        common.Address
	To           common.Address
	Deadline     *big.Int
}

type sellParams struct {
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Token        common.Address
	To           common.Address
	Deadline     *big.Int
}
