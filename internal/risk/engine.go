package risk

import (
	"context"

	"github.com/mbd888/trapdetect/internal/decoder"
)

// Classifier answers whether an address has deployed contract code.
// Implementations must not return errors: any lookup failure resolves to
// false, so the engine leans toward flagging rather than staying silent.
type Classifier interface {
	IsContract(ctx context.Context, address string) bool
}

// Engine is the stateless rule evaluator. Safe for concurrent use.
type Engine struct {
	classifier Classifier
}

// NewEngine creates an engine backed by the given classifier.
func NewEngine(classifier Classifier) *Engine {
	return &Engine{classifier: classifier}
}

func (e *Engine) isContract(ctx context.Context, address string) bool {
	if e.classifier == nil || address == "" {
		return false
	}
	return e.classifier.IsContract(ctx, address)
}

// AnalyzeCalldata evaluates a decoded call. Dispatch is on the function
// name, not the selector: a degraded record that kept a recognized selector
// but decoded as "unknown" must stay out of every rule branch.
func (e *Engine) AnalyzeCalldata(ctx context.Context, decoded *decoder.DecodedCalldata, lang Lang) []Signal {
	signals := []Signal{}
	if decoded == nil {
		return signals
	}

	switch decoded.FunctionName {
	case "approve":
		amount, _ := decoded.Args["amount"].(string)
		spender, _ := decoded.Args["spender"].(string)

		// Unlimited and high-value are mutually exclusive per call.
		if decoder.IsUnlimitedAmount(amount) {
			signals = append(signals, newSignal(UnlimitedApproval, lang))
		} else if n := decoder.ParseAmount(amount); n != nil && n.Cmp(decoder.HighValueThreshold) > 0 {
			signals = append(signals, newSignal(HighValueApproval, lang))
		}

		if !e.isContract(ctx, spender) {
			signals = append(signals, newSignal(EOASpender, lang))
		}

	case "setApprovalForAll":
		approved, _ := decoded.Args["approved"].(bool)
		operator, _ := decoded.Args["operator"].(string)

		if approved {
			signals = append(signals, newSignal(ApprovalForAllTrue, lang))
		}
		if !e.isContract(ctx, operator) {
			signals = append(signals, newSignal(EOASpender, lang))
		}

	case "increaseAllowance":
		addedValue, _ := decoded.Args["addedValue"].(string)
		if decoder.IsUnlimitedAmount(addedValue) {
			signals = append(signals, newSignal(UnlimitedApproval, lang))
		}
	}

	return signals
}

// AnalyzePermit evaluates an EIP-2612 Permit.
func (e *Engine) AnalyzePermit(ctx context.Context, permit *decoder.PermitDetails, lang Lang) []Signal {
	signals := []Signal{}
	if permit == nil {
		return signals
	}

	if permit.IsUnlimited {
		signals = append(signals, newSignal(UnlimitedApproval, lang))
	} else if n := decoder.ParseAmount(permit.Value); n != nil && n.Cmp(decoder.HighValueThreshold) > 0 {
		signals = append(signals, newSignal(HighValueApproval, lang))
	}

	if !e.isContract(ctx, permit.Spender) {
		signals = append(signals, newSignal(PermitToUnknown, lang))
	}

	return signals
}

// AnalyzeTypedData evaluates a non-Permit typed-data request. Both domain
// checks are independent and may fire together.
func (e *Engine) AnalyzeTypedData(ctx context.Context, decoded *decoder.DecodedTypedData, lang Lang) []Signal {
	signals := []Signal{}
	if decoded == nil {
		return signals
	}

	if decoded.Domain.VerifyingContract == "" {
		signals = append(signals, newSignal(TypedDataDomainMismatch, lang))
	}
	if decoded.Domain.ChainId == nil {
		signals = append(signals, newSignal(UnclearIntent, lang))
	}

	return signals
}

// AnalyzeApproval evaluates a user-declared approval simulation. An
// unparseable amount is silently ignored: no signal and no error.
func (e *Engine) AnalyzeApproval(ctx context.Context, token, spender, amount string, lang Lang) []Signal {
	signals := []Signal{}

	if amount == "unlimited" || decoder.IsUnlimitedAmount(amount) {
		signals = append(signals, newSignal(UnlimitedApproval, lang))
	} else if n := decoder.ParseAmount(amount); n != nil && n.Cmp(decoder.HighValueThreshold) > 0 {
		signals = append(signals, newSignal(HighValueApproval, lang))
	}

	if !e.isContract(ctx, spender) {
		signals = append(signals, newSignal(EOASpender, lang))
	}

	return signals
}
