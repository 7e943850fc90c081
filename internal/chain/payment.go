package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// paymentTokenDecimals matches USDC.
const paymentTokenDecimals = 6

// transferTopic is the ERC-20 Transfer(address,address,uint256) event signature.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Address returns the configured payment recipient.
func (c *Client) Address() string {
	return c.recipient.Hex()
}

// VerifyPayment checks that txHash carries a payment-token Transfer of at
// least minAmount from the claimed sender to the configured recipient.
func (c *Client) VerifyPayment(ctx context.Context, from, minAmount, txHash string) (bool, error) {
	minRaw, err := parseTokenAmount(minAmount, paymentTokenDecimals)
	if err != nil {
		return false, fmt.Errorf("invalid payment amount: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return false, fmt.Errorf("failed to get receipt: %w", err)
	}
	if receipt.Status == 0 {
		return false, nil
	}

	fromAddr := common.HexToAddress(from)
	for _, log := range receipt.Logs {
		if log.Address != c.paymentToken {
			continue
		}
		if len(log.Topics) < 3 || log.Topics[0] != transferTopic {
			continue
		}

		eventFrom := common.HexToAddress(log.Topics[1].Hex())
		eventTo := common.HexToAddress(log.Topics[2].Hex())
		eventAmount := new(big.Int).SetBytes(log.Data)

		if eventFrom == fromAddr && eventTo == c.recipient && eventAmount.Cmp(minRaw) >= 0 {
			return true, nil
		}
	}

	return false, nil
}

// parseTokenAmount converts a decimal string like "0.05" to base units.
func parseTokenAmount(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("empty or negative amount")
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("malformed amount %q", s)
	}

	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	for len(frac) < decimals {
		frac += "0"
	}

	whole := parts[0]
	if whole == "" {
		whole = "0"
	}

	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", s)
	}
	return n, nil
}
