// Package decoder turns raw transaction inputs into typed intents.
//
// Two inputs are understood: raw calldata for the approval-related
// ERC-20/721/1155 surface, and EIP-712 typed-data signing requests
// (with EIP-2612 Permit detection). Everything else is reported as
// unknown rather than guessed at.
package decoder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/math"
)

// Func identifies a known approval-related function. The set is closed:
// anything outside it decodes to FuncUnknown.
type Func int

const (
	FuncUnknown Func = iota
	FuncApprove
	FuncSetApprovalForAll
	FuncIncreaseAllowance
	FuncDecreaseAllowance
	FuncTransfer
	FuncTransferFrom
)

// Known 4-byte selectors.
const (
	SelectorApprove           = "0x095ea7b3"
	SelectorTransfer          = "0xa9059cbb"
	SelectorTransferFrom      = "0x23b872dd"
	SelectorIncreaseAllowance = "0x39509351"
	SelectorDecreaseAllowance = "0xa457c2d7"
	SelectorSetApprovalForAll = "0xa22cb465"
)

// MaxUint256 is the all-ones 256-bit sentinel used for unlimited approvals.
var MaxUint256 = new(big.Int).Set(math.MaxBig256)

// MaxUint256String is the decimal rendering of MaxUint256.
const MaxUint256String = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

// HighValueThreshold flags approvals above 1,000,000 tokens at 18 decimals.
// Fixed in base units regardless of the token's actual decimals.
var HighValueThreshold = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

func (f Func) String() string {
	switch f {
	case FuncApprove:
		return "approve"
	case FuncSetApprovalForAll:
		return "setApprovalForAll"
	case FuncIncreaseAllowance:
		return "increaseAllowance"
	case FuncDecreaseAllowance:
		return "decreaseAllowance"
	case FuncTransfer:
		return "transfer"
	case FuncTransferFrom:
		return "transferFrom"
	default:
		return "unknown"
	}
}

// FuncForSelector maps a 0x-prefixed 4-byte selector to its Func, or
// FuncUnknown when the selector is not in the registry.
func FuncForSelector(selector string) Func {
	return selectorToFunc[selector]
}

var selectorToFunc = map[string]Func{
	SelectorApprove:           FuncApprove,
	SelectorSetApprovalForAll: FuncSetApprovalForAll,
	SelectorIncreaseAllowance: FuncIncreaseAllowance,
	SelectorDecreaseAllowance: FuncDecreaseAllowance,
	SelectorTransfer:          FuncTransfer,
	SelectorTransferFrom:      FuncTransferFrom,
}

// ABI argument shapes for the deep-decoded functions. transfer and
// transferFrom are recognized by selector but not argument-decoded.
var (
	addressType = mustNewType("address")
	uint256Type = mustNewType("uint256")
	boolType    = mustNewType("bool")

	approveArgs = abi.Arguments{
		{Name: "spender", Type: addressType},
		{Name: "amount", Type: uint256Type},
	}
	setApprovalForAllArgs = abi.Arguments{
		{Name: "operator", Type: addressType},
		{Name: "approved", Type: boolType},
	}
	increaseAllowanceArgs = abi.Arguments{
		{Name: "spender", Type: addressType},
		{Name: "addedValue", Type: uint256Type},
	}
	decreaseAllowanceArgs = abi.Arguments{
		{Name: "spender", Type: addressType},
		{Name: "subtractedValue", Type: uint256Type},
	}
)

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

func argumentsFor(f Func) abi.Arguments {
	switch f {
	case FuncApprove:
		return approveArgs
	case FuncSetApprovalForAll:
		return setApprovalForAllArgs
	case FuncIncreaseAllowance:
		return increaseAllowanceArgs
	case FuncDecreaseAllowance:
		return decreaseAllowanceArgs
	default:
		return nil
	}
}
