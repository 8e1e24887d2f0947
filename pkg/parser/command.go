// Package parser turns structured intent strings from the command line into
// TransferIntent values. It only handles surface syntax; identifier and
// amount validation happen in the transfer pipeline.
package parser

import (
	"fmt"
	"strings"

	"tipcourier/pkg/types"
)

// ParseIntent parses a single intent string.
// Examples:
//   - "send 25 USDC:0xA0b8... to @alice"
//   - "send 50% 0xEeee...EEeE to vitalik.eth"
//   - "send $10 of creator:jane to 0x1234..."
//   - "swap $100 of 0xA0b8... for creator:jane"
func ParseIntent(command string) (*types.TransferIntent, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty intent")
	}

	verb := strings.ToLower(fields[0])
	switch verb {
	case "send":
		return parseSend(fields[1:])
	case "swap":
		return parseSwap(fields[1:])
	default:
		// A bare "<amount> <token> to <recipient>" is treated as a send.
		return parseSend(fields)
	}
}

// parseSend handles "<amount> [of] <token> to <recipient>".
func parseSend(fields []string) (*types.TransferIntent, error) {
	fields = dropConnective(fields, "of")
	if len(fields) != 4 || !strings.EqualFold(fields[2], "to") {
		return nil, fmt.Errorf("invalid send format. Expected: 'send <amount> <token> to <recipient>' (e.g., 'send 25 USDC:0xA0b8... to @alice')")
	}

	amount, denom, err := parseAmount(fields[0])
	if err != nil {
		return nil, err
	}

	return &types.TransferIntent{
		Kind:         types.IntentSend,
		Token:        fields[1],
		Recipient:    fields[3],
		Amount:       amount,
		Denomination: denom,
	}, nil
}

// parseSwap handles "<amount> [of] <sell-token> for <buy-token>".
func parseSwap(fields []string) (*types.TransferIntent, error) {
	fields = dropConnective(fields, "of")
	if len(fields) != 4 || !strings.EqualFold(fields[2], "for") {
		return nil, fmt.Errorf("invalid swap format. Expected: 'swap <amount> of <token> for <token>' (e.g., 'swap $100 of 0xA0b8... for creator:jane')")
	}

	amount, denom, err := parseAmount(fields[0])
	if err != nil {
		return nil, err
	}

	return &types.TransferIntent{
		Kind:         types.IntentSwap,
		SellToken:    fields[1],
		Token:        fields[3],
		Amount:       amount,
		Denomination: denom,
	}, nil
}

// parseAmount classifies the amount literal by its sigil: "$" prefix for
// USD, "%" suffix for percentage, bare number for an absolute quantity. The
// numeric text itself is validated downstream.
func parseAmount(raw string) (string, types.Denomination, error) {
	switch {
	case strings.HasPrefix(raw, "$"):
		value := strings.TrimPrefix(raw, "$")
		if value == "" {
			return "", "", fmt.Errorf("missing amount after '$'")
		}
		return value, types.DenominationUSD, nil
	case strings.HasSuffix(raw, "%"):
		value := strings.TrimSuffix(raw, "%")
		if value == "" {
			return "", "", fmt.Errorf("missing amount before '%%'")
		}
		return value, types.DenominationPercentage, nil
	default:
		return raw, types.DenominationAbsolute, nil
	}
}

// dropConnective removes an optional filler word at index 1, so "send $10 of
// creator:jane to bob" and "send $10 creator:jane to bob" parse alike.
func dropConnective(fields []string, word string) []string {
	if len(fields) > 1 && strings.EqualFold(fields[1], word) {
		return append(fields[:1:1], fields[2:]...)
	}
	return fields
}
