package decoder

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DecodedCalldata is the typed intent recovered from raw call bytes.
// Amount-like values are carried as decimal strings to preserve full
// 256-bit precision. Immutable once built; lives for one request.
type DecodedCalldata struct {
	FunctionName     string         `json:"functionName"`
	FunctionSelector string         `json:"functionSelector"`
	Args             map[string]any `json:"args"`
}

// DecodeCalldata identifies the selector in calldata and ABI-decodes the
// arguments. to is the optional target contract address, carried through
// into the args as context. Side-effect free.
func DecodeCalldata(calldata []byte, to string) (*DecodedCalldata, error) {
	if len(calldata) < 4 {
		return nil, &DecodeError{Code: CodeInvalidInput, Msg: "calldata too short, no selector present"}
	}

	selector := "0x" + hex.EncodeToString(calldata[:4])
	fn := FuncForSelector(selector)
	if fn == FuncUnknown {
		return nil, &DecodeError{Code: CodeUnknownSelector, Msg: fmt.Sprintf("unknown function selector %s", selector)}
	}

	args := argumentsFor(fn)
	if args == nil {
		// Recognized but not deep-decoded (transfer / transferFrom).
		return &DecodedCalldata{
			FunctionName:     fn.String(),
			FunctionSelector: selector,
			Args:             map[string]any{},
		}, nil
	}

	values, err := args.Unpack(calldata[4:])
	if err != nil {
		return nil, &DecodeError{Code: CodeDecodeError, Msg: fmt.Sprintf("failed to decode %s arguments", fn), Err: err}
	}

	decoded := &DecodedCalldata{
		FunctionName:     fn.String(),
		FunctionSelector: selector,
		Args:             map[string]any{},
	}

	switch fn {
	case FuncApprove:
		decoded.Args["spender"] = values[0].(common.Address).Hex()
		decoded.Args["amount"] = values[1].(*big.Int).String()
		if to != "" {
			decoded.Args["tokenContract"] = to
		}
	case FuncSetApprovalForAll:
		decoded.Args["operator"] = values[0].(common.Address).Hex()
		decoded.Args["approved"] = values[1].(bool)
		if to != "" {
			decoded.Args["nftContract"] = to
		}
	case FuncIncreaseAllowance:
		decoded.Args["spender"] = values[0].(common.Address).Hex()
		decoded.Args["addedValue"] = values[1].(*big.Int).String()
		if to != "" {
			decoded.Args["tokenContract"] = to
		}
	case FuncDecreaseAllowance:
		decoded.Args["spender"] = values[0].(common.Address).Hex()
		decoded.Args["subtractedValue"] = values[1].(*big.Int).String()
		if to != "" {
			decoded.Args["tokenContract"] = to
		}
	}

	return decoded, nil
}

// ParseAmount converts a decimal or 0x-hex string to a big.Int.
// Returns nil if the string is not a valid unsigned integer.
func ParseAmount(s string) *big.Int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() < 0 {
		return nil
	}
	return n
}

// IsUnlimitedAmount reports whether amount equals the max-uint256 sentinel.
// Accepts decimal or 0x-hex string representations.
func IsUnlimitedAmount(amount string) bool {
	n := ParseAmount(amount)
	return n != nil && n.Cmp(MaxUint256) == 0
}

// IsUnlimitedBig reports whether amount equals the max-uint256 sentinel.
func IsUnlimitedBig(amount *big.Int) bool {
	return amount != nil && amount.Cmp(MaxUint256) == 0
}

// FormatAmount renders a token amount as a human decimal string with
// trailing zeros trimmed, or "UNLIMITED" for the max-uint256 sentinel.
func FormatAmount(amount string, decimals int) string {
	n := ParseAmount(amount)
	if n == nil {
		return amount
	}
	if IsUnlimitedBig(n) {
		return "UNLIMITED"
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole := new(big.Int).Div(n, divisor)
	frac := new(big.Int).Mod(n, divisor)

	if frac.Sign() == 0 {
		return whole.String()
	}

	fracStr := frac.String()
	for len(fracStr) < decimals {
		fracStr = "0" + fracStr
	}
	fracStr = strings.TrimRight(fracStr, "0")

	return whole.String() + "." + fracStr
}
