package corecontract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ContractABI is the JSON ABI of the core contract.
const ContractABI = `[
{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[{"name":"programHash","type":"uint256"},{"name":"configHash","type":"uint256"}],"outputs":[]},
{"type":"function","name":"updateState","stateMutability":"nonpayable","inputs":[{"name":"programOutput","type":"uint256[]"}],"outputs":[]},
{"type":"function","name":"sendMessageToL2","stateMutability":"nonpayable","inputs":[{"name":"toAddress","type":"uint256"},{"name":"selector","type":"uint256"},{"name":"payload","type":"uint256[]"}],"outputs":[{"name":"msgHash","type":"bytes32"},{"name":"nonce","type":"uint256"}]},
{"type":"function","name":"registerOperator","stateMutability":"nonpayable","inputs":[{"name":"newOperator","type":"address"}],"outputs":[]},
{"type":"function","name":"unregisterOperator","stateMutability":"nonpayable","inputs":[{"name":"removedOperator","type":"address"}],"outputs":[]},
{"type":"function","name":"isOperator","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"governor","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"programHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"configHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"stateRoot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"stateBlockNumber","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"isInitialized","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"l1ToL2MessageNonce","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"l1ToL2Messages","stateMutability":"view","inputs":[{"name":"msgHash","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"l2ToL1Messages","stateMutability":"view","inputs":[{"name":"msgHash","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"LogStateUpdate","anonymous":false,"inputs":[{"name":"globalRoot","type":"uint256","indexed":false},{"name":"blockNumber","type":"uint256","indexed":false},{"name":"blockHash","type":"uint256","indexed":false}]},
{"type":"event","name":"LogMessageToL2","anonymous":false,"inputs":[{"name":"fromAddress","type":"address","indexed":true},{"name":"toAddress","type":"uint256","indexed":true},{"name":"selector","type":"uint256","indexed":true},{"name":"payload","type":"uint256[]","indexed":false},{"name":"nonce","type":"uint256","indexed":false}]},
{"type":"event","name":"ConsumedMessageToL2","anonymous":false,"inputs":[{"name":"fromAddress","type":"address","indexed":true},{"name":"toAddress","type":"uint256","indexed":true},{"name":"selector","type":"uint256","indexed":true},{"name":"payload","type":"uint256[]","indexed":false},{"name":"nonce","type":"uint256","indexed":false}]},
{"type":"event","name":"LogMessageToL1","anonymous":false,"inputs":[{"name":"fromAddress","type":"uint256","indexed":true},{"name":"toAddress","type":"uint256","indexed":true},{"name":"payload","type":"uint256[]","indexed":false}]}
]`

// ContractAbi is ContractABI parsed once at init.
var ContractAbi abi.ABI

var (
	initializeMethodID      []byte // initialize(uint256,uint256)
	updateStateMethodID     []byte // updateState(uint256[])
	sendMessageToL2MethodID []byte // sendMessageToL2(uint256,uint256,uint256[])
)

func init() {
	var err error
	ContractAbi, err = abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(err)
	}

	for name, constID := range map[string]*[]byte{
		"initialize":      &initializeMethodID,
		"updateState":     &updateStateMethodID,
		"sendMessageToL2": &sendMessageToL2MethodID,
	} {
		method, exist := ContractAbi.Methods[name]
		if !exist {
			panic("unknown core contract method " + name)
		}
		*constID = make([]byte, len(method.ID))
		copy(*constID, method.ID)
	}
	for _, name := range []string{"LogStateUpdate", "LogMessageToL2", "ConsumedMessageToL2", "LogMessageToL1"} {
		if _, exist := ContractAbi.Events[name]; !exist {
			panic("unknown core contract event " + name)
		}
	}
}
