package transfer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tipcourier/pkg/directory"
	"tipcourier/pkg/errs"
	"tipcourier/pkg/retry"
	"tipcourier/pkg/types"
)

const (
	// NativeTokenAddress is the sentinel address conventionally used for the
	// chain's native currency. Preserved byte-for-byte wherever it appears.
	NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

	// NativeDecimals is fixed for the native currency; no chain read happens
	// for the sentinel address.
	NativeDecimals = 18

	creatorPrefix = "creator:"
	userPrefix    = "user:"
	ensSuffix     = ".eth"
)

// Resolver normalizes raw token and recipient references into on-chain data.
// It performs external read calls only; no state is mutated.
type Resolver struct {
	chain        ChainReader
	dir          Directory
	nativeSymbol string
	ensRetry     retry.Policy
	logger       *zap.Logger
}

// NewResolver builds a resolver. nativeSymbol names the chain's native
// currency in resolved output (e.g. "ETH").
func NewResolver(chainReader ChainReader, dir Directory, nativeSymbol string, logger *zap.Logger) *Resolver {
	return &Resolver{
		chain:        chainReader,
		dir:          dir,
		nativeSymbol: nativeSymbol,
		ensRetry:     retry.Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond},
		logger:       logger,
	}
}

// IsNativeAddress reports whether raw is the native-currency sentinel.
func IsNativeAddress(raw string) bool {
	return strings.EqualFold(raw, NativeTokenAddress)
}

// ResolveToken normalizes a raw token reference. Resolution order: platform
// creator-coin reference, literal contract address, structured
// "SYMBOL:address" reference. The embedded address is never rewritten.
func (r *Resolver) ResolveToken(ctx context.Context, raw string) (*types.ResolvedToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errs.E(errs.InvalidTokenFormat, "empty token reference")
	}

	if handle, ok := creatorHandle(raw); ok {
		return r.resolveCreatorToken(ctx, handle)
	}

	if common.IsHexAddress(raw) {
		if IsNativeAddress(raw) {
			return &types.ResolvedToken{
				Address:  raw,
				Symbol:   r.nativeSymbol,
				Decimals: NativeDecimals,
				Class:    types.TokenNative,
			}, nil
		}
		meta, err := r.chain.TokenMetadata(ctx, raw)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidTokenFormat, "failed to read token contract "+raw, err)
		}
		return &types.ResolvedToken{
			Address:  raw,
			Symbol:   meta.Symbol,
			Decimals: meta.Decimals,
			Class:    types.TokenERC20,
		}, nil
	}

	if symbol, addr, ok := splitSymbolAddress(raw); ok {
		if IsNativeAddress(addr) {
			// Fixed decimals, no chain read for the native sentinel.
			return &types.ResolvedToken{
				Address:  addr,
				Symbol:   symbol,
				Decimals: NativeDecimals,
				Class:    types.TokenNative,
			}, nil
		}
		meta, err := r.chain.TokenMetadata(ctx, addr)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidTokenFormat, "failed to read token contract "+addr, err)
		}
		return &types.ResolvedToken{
			Address:  addr,
			Symbol:   symbol,
			Decimals: meta.Decimals,
			Class:    types.TokenERC20,
		}, nil
	}

	return nil, errs.Ef(errs.InvalidTokenFormat, "unrecognized token reference %q; provide a contract address or SYMBOL:address", raw)
}

func (r *Resolver) resolveCreatorToken(ctx context.Context, handle string) (*types.ResolvedToken, error) {
	creator, err := r.dir.CreatorToken(ctx, handle)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, errs.Ef(errs.CreatorNotFound, "no creator coin issued for @%s", handle)
		}
		return nil, errs.Wrap(errs.CreatorNotFound, "creator lookup failed for @"+handle, err)
	}

	meta, err := r.chain.TokenMetadata(ctx, creator.Address)
	if err != nil {
		return nil, errs.Wrap(errs.CreatorNotFound, "failed to read creator token contract "+creator.Address, err)
	}

	symbol := creator.Symbol
	if symbol == "" {
		symbol = meta.Symbol
	}
	return &types.ResolvedToken{
		Address:     creator.Address,
		Symbol:      symbol,
		Decimals:    meta.Decimals,
		Class:       types.TokenCreatorCoin,
		ReserveRate: creator.ReserveRate,
	}, nil
}

// ResolveRecipient normalizes a raw recipient reference. Resolution order:
// literal address, ENS name (bounded retry, falling through to the directory
// on exhaustion), platform user handle.
func (r *Resolver) ResolveRecipient(ctx context.Context, raw string) (*types.ResolvedRecipient, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errs.E(errs.RecipientNotResolvable, "empty recipient reference")
	}

	if common.IsHexAddress(raw) {
		return &types.ResolvedRecipient{Address: raw}, nil
	}

	if strings.HasSuffix(strings.ToLower(raw), ensSuffix) {
		addr, err := retry.DoWithResult(ctx, r.ensRetry, r.logger, "ens_resolve", func(ctx context.Context) (string, error) {
			return r.chain.ResolveName(ctx, raw)
		})
		if err == nil {
			return &types.ResolvedRecipient{Address: addr}, nil
		}
		// An unresolvable name may still be a platform handle that happens
		// to end in the suffix; fall through to the directory.
		r.logger.Debug("ens resolution exhausted, trying directory",
			zap.String("name", raw),
			zap.Error(err))
	}

	handle := strings.TrimPrefix(strings.TrimPrefix(raw, userPrefix), "@")
	addr, err := r.dir.WalletByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, errs.Ef(errs.RecipientNotResolvable, "no wallet on file for %q", raw)
		}
		return nil, errs.Wrap(errs.RecipientNotResolvable, "recipient lookup failed for "+raw, err)
	}
	return &types.ResolvedRecipient{Address: addr}, nil
}

// creatorHandle extracts the handle from a creator-coin reference.
func creatorHandle(raw string) (string, bool) {
	if strings.HasPrefix(raw, creatorPrefix) {
		return strings.TrimPrefix(raw, creatorPrefix), true
	}
	if strings.HasPrefix(raw, "@") && !strings.Contains(raw, ":") {
		return strings.TrimPrefix(raw, "@"), true
	}
	return "", false
}

// splitSymbolAddress parses a structured "SYMBOL:0xaddress" reference.
func splitSymbolAddress(raw string) (symbol, addr string, ok bool) {
	idx := strings.LastIndex(raw, ":")
	if idx <= 0 || idx == len(raw)-1 {
		return "", "", false
	}
	symbol, addr = raw[:idx], raw[idx+1:]
	if !common.IsHexAddress(addr) {
		return "", "", false
	}
	return symbol, addr, true
}
