package decoder

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// DecodedTypedData is the pass-through record for an EIP-712 signing
// request. Present only when the input carried non-empty types,
// primaryType, domain, and message.
type DecodedTypedData struct {
	PrimaryType string                   `json:"primaryType"`
	Domain      apitypes.TypedDataDomain `json:"domain"`
	Message     map[string]any           `json:"message"`
}

// PermitDetails is the EIP-2612 view of a Permit typed-data message.
// Derived from DecodedTypedData, never built independently.
type PermitDetails struct {
	Owner        string `json:"owner"`
	Spender      string `json:"spender"`
	Value        string `json:"value"`
	Nonce        string `json:"nonce"`
	Deadline     string `json:"deadline"`
	TokenName    string `json:"tokenName,omitempty"`
	TokenAddress string `json:"tokenAddress,omitempty"`
	IsUnlimited  bool   `json:"isUnlimited"`
}

// TypedDataResult bundles the decoded record with Permit classification.
type TypedDataResult struct {
	Decoded  *DecodedTypedData
	IsPermit bool
	Permit   *PermitDetails
}

// permitFields is the minimum field set a Permit type declaration must
// carry for EIP-2612 classification.
var permitFields = []string{"owner", "spender", "value", "nonce", "deadline"}

// DecodeTypedData validates an EIP-712 signing request and classifies it.
// Permit detection is structural: primary type named "Permit" whose type
// declaration covers the EIP-2612 field set. It does not verify the hash
// domain separator.
func DecodeTypedData(td *apitypes.TypedData) (*TypedDataResult, error) {
	if td == nil || len(td.Types) == 0 || td.PrimaryType == "" ||
		td.Domain == (apitypes.TypedDataDomain{}) || len(td.Message) == 0 {
		return nil, &DecodeError{Code: CodeMissingFields, Msg: "typed data missing types, primaryType, domain, or message"}
	}

	decoded := &DecodedTypedData{
		PrimaryType: td.PrimaryType,
		Domain:      td.Domain,
		Message:     td.Message,
	}

	if !isPermit(td) {
		return &TypedDataResult{Decoded: decoded}, nil
	}

	return &TypedDataResult{
		Decoded:  decoded,
		IsPermit: true,
		Permit:   extractPermitDetails(td),
	}, nil
}

func isPermit(td *apitypes.TypedData) bool {
	if td.PrimaryType != "Permit" {
		return false
	}
	permitType, ok := td.Types["Permit"]
	if !ok {
		return false
	}
	names := make(map[string]bool, len(permitType))
	for _, f := range permitType {
		names[f.Name] = true
	}
	for _, required := range permitFields {
		if !names[required] {
			return false
		}
	}
	return true
}

func extractPermitDetails(td *apitypes.TypedData) *PermitDetails {
	value := coerceDecimal(td.Message["value"])
	return &PermitDetails{
		Owner:        coerceString(td.Message["owner"]),
		Spender:      coerceString(td.Message["spender"]),
		Value:        value,
		Nonce:        coerceDecimal(td.Message["nonce"]),
		Deadline:     coerceDecimal(td.Message["deadline"]),
		TokenName:    td.Domain.Name,
		TokenAddress: td.Domain.VerifyingContract,
		IsUnlimited:  IsUnlimitedAmount(value),
	}
}

// coerceDecimal renders a JSON message value as a decimal-string integer.
// Hex strings are converted; anything unparseable passes through as-is.
func coerceDecimal(v any) string {
	switch n := v.(type) {
	case string:
		if parsed := ParseAmount(n); parsed != nil {
			return parsed.String()
		}
		return n
	case json.Number:
		return n.String()
	case float64:
		return new(big.Float).SetFloat64(n).Text('f', 0)
	case *big.Int:
		return n.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// DomainValidation reports structural weaknesses in an EIP-712 domain.
type DomainValidation struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings"`
}

// ValidateDomain flags missing name, verifying contract, and chain ID.
// Pure, no I/O.
func ValidateDomain(domain apitypes.TypedDataDomain) DomainValidation {
	var warnings []string

	if domain.Name == "" {
		warnings = append(warnings, "Domain name is missing")
	}
	if domain.VerifyingContract == "" {
		warnings = append(warnings, "Verifying contract address is missing")
	}
	if domain.ChainId == nil {
		warnings = append(warnings, "Chain ID is missing - signature may be replayable on other chains")
	}

	return DomainValidation{Valid: len(warnings) == 0, Warnings: warnings}
}

// DeadlineCheck describes how close a permit deadline is to expiry.
// Descriptive metadata only: not consulted by the risk engine.
type DeadlineCheck struct {
	Expired   bool   `json:"expired"`
	ExpiresIn int64  `json:"expiresIn,omitempty"` // seconds
	Warning   string `json:"warning,omitempty"`
}

const oneYear = 365 * 24 * 60 * 60

// CheckDeadline compares a permit deadline to the current time.
func CheckDeadline(deadline string) DeadlineCheck {
	n := ParseAmount(deadline)
	if n == nil {
		return DeadlineCheck{Warning: "Permit deadline is not a valid integer"}
	}

	now := time.Now().Unix()

	if !n.IsInt64() {
		// Beyond int64 range: effectively never expires.
		return DeadlineCheck{Warning: "Permit has a very long deadline (>1 year)"}
	}

	deadlineUnix := n.Int64()
	if deadlineUnix < now {
		return DeadlineCheck{Expired: true, Warning: "Permit deadline has already expired"}
	}

	expiresIn := deadlineUnix - now
	switch {
	case expiresIn < 3600:
		return DeadlineCheck{
			ExpiresIn: expiresIn,
			Warning:   fmt.Sprintf("Permit expires in %d minutes", expiresIn/60),
		}
	case expiresIn > oneYear:
		return DeadlineCheck{
			ExpiresIn: expiresIn,
			Warning:   "Permit has a very long deadline (>1 year)",
		}
	default:
		return DeadlineCheck{ExpiresIn: expiresIn}
	}
}

// halfMaxUint256 marks the "never expires" deadline region.
var halfMaxUint256 = new(big.Int).Rsh(MaxUint256, 1)

// FormatDeadline renders a permit deadline for display.
func FormatDeadline(deadline string) string {
	n := ParseAmount(deadline)
	if n == nil {
		return deadline
	}
	if n.Cmp(halfMaxUint256) >= 0 || !n.IsInt64() {
		return "Never (infinite deadline)"
	}
	return time.Unix(n.Int64(), 0).UTC().Format("2006-01-02 15:04:05 MST")
}
