package bridge

import (
	"github.com/holiman/uint256"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

var ten = uint256.NewInt(10)

// conversionRate returns 10^(local - shared). Callers guarantee shared <= local.
func conversionRate(local, shared uint8) (*domain.Amount, bool) {
	rate := uint256.NewInt(1)
	for i := shared; i < local; i++ {
		var overflow bool
		if rate, overflow = new(uint256.Int).MulOverflow(rate, ten); overflow {
			return nil, true
		}
	}
	return rate, false
}

func toShared(amount *domain.Amount, cfg state.BridgeConfig) (uint64, error) {
	rate, overflow := conversionRate(cfg.LocalDecimals, cfg.SharedDecimals)
	if overflow {
		return 0, dErrors.New(dErrors.CodeInternal, "decimal conversion rate overflows")
	}
	if !new(uint256.Int).Mod(amount, rate).IsZero() {
		return 0, dErrors.New(dErrors.CodePrecisionLoss, "amount is not a multiple of the decimal conversion rate")
	}
	shared := new(uint256.Int).Div(amount, rate)
	if !shared.IsUint64() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount exceeds the shared wire range")
	}
	return shared.Uint64(), nil
}

func toLocal(shared uint64, cfg state.BridgeConfig) (*domain.Amount, error) {
	rate, overflow := conversionRate(cfg.LocalDecimals, cfg.SharedDecimals)
	if overflow {
		return nil, dErrors.New(dErrors.CodeInternal, "decimal conversion rate overflows")
	}
	local, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(shared), rate)
	if overflow {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "shared amount overflows local range")
	}
	return local, nil
}
