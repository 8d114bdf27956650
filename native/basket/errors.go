package basket

import (
	"errors"
	"fmt"

	"basketvault/native/authority"
	"basketvault/native/bank"
	"basketvault/native/common"
)

var (
	errNilState    = errors.New("basket engine: state not configured")
	errNilLedger   = errors.New("basket engine: ledger not configured")
	errNilDeriver  = errors.New("basket engine: deriver not configured")
	errNilRequest  = errors.New("basket engine: request required")
	errCallerUnset = errors.New("basket engine: caller required")
)

// Configuration errors.
var (
	ErrZeroAssets          = errors.New("basket: zero assets")
	ErrTooManyAssets       = errors.New("basket: too many assets")
	ErrWrongArgumentLength = errors.New("basket: wrong argument length")
	ErrInvalidUnit         = errors.New("basket: invalid per-unit amount")
	ErrBadMintAuthority    = errors.New("basket: basket token mint authority is not the custody authority")
	ErrBadDecimals         = errors.New("basket: basket token decimals mismatch")
	ErrInvalidConfig       = errors.New("basket: invalid configuration")
	ErrDuplicateAsset      = errors.New("basket: duplicate asset")
	ErrAssetMismatch       = errors.New("basket: asset does not match configuration")
	ErrCustodyMismatch     = errors.New("basket: custody authority does not match configuration")
	ErrAlreadyInitialized  = errors.New("basket: already initialized")
)

// Validation errors shared by deposits and redemptions.
var (
	ErrRatioMismatch      = errors.New("basket: ratio mismatch")
	ErrZeroAmount         = errors.New("basket: zero amount")
	ErrNonMultipleDeposit = errors.New("basket: deposit is not a multiple of the unit")
	ErrZeroMint           = errors.New("basket: zero mint amount")
	ErrWrongBasketToken   = errors.New("basket: wrong basket token")
	ErrBasketNotFound     = errors.New("basket: not found")
)

// ErrConfigRatioMismatch reports a supplied ratio that is not equivalent to
// the stored composition. It matches ErrRatioMismatch under errors.Is.
var ErrConfigRatioMismatch = fmt.Errorf("%w against stored composition", ErrRatioMismatch)

// ErrZeroBurn reports a redemption of zero basket tokens. It matches
// ErrZeroAmount under errors.Is.
var ErrZeroBurn = fmt.Errorf("%w: burn", ErrZeroAmount)

// Resource errors.
var (
	ErrMissingAccounts    = errors.New("basket: missing accounts")
	ErrArithmeticOverflow = errors.New("basket: arithmetic overflow")
	ErrVaultMismatch      = errors.New("basket: vault account does not belong to the custody authority")
)

// Kind classifies errors for callers and transports.
type Kind string

const (
	KindNone          Kind = ""
	KindConfiguration Kind = "configuration"
	KindDeposit       Kind = "deposit"
	KindRedeem        Kind = "redeem"
	KindResource      Kind = "resource"
	KindAuthorization Kind = "authorization"
	KindPaused        Kind = "paused"
	KindInternal      Kind = "internal"
)

// KindOf maps err onto the error taxonomy. Ratio mismatches against the stored
// composition are configuration errors; mismatches between legs are deposit
// errors.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, common.ErrModulePaused):
		return KindPaused
	case errors.Is(err, ErrConfigRatioMismatch),
		errors.Is(err, ErrZeroAssets),
		errors.Is(err, ErrTooManyAssets),
		errors.Is(err, ErrWrongArgumentLength),
		errors.Is(err, ErrBadMintAuthority),
		errors.Is(err, ErrBadDecimals),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrDuplicateAsset),
		errors.Is(err, ErrAssetMismatch),
		errors.Is(err, ErrCustodyMismatch),
		errors.Is(err, ErrAlreadyInitialized),
		errors.Is(err, bank.ErrInvalidAsset):
		return KindConfiguration
	case errors.Is(err, ErrZeroBurn):
		return KindRedeem
	case errors.Is(err, ErrZeroAmount),
		errors.Is(err, ErrInvalidUnit),
		errors.Is(err, ErrNonMultipleDeposit),
		errors.Is(err, ErrRatioMismatch),
		errors.Is(err, ErrZeroMint):
		return KindDeposit
	case errors.Is(err, ErrWrongBasketToken),
		errors.Is(err, ErrBasketNotFound):
		return KindRedeem
	case errors.Is(err, ErrMissingAccounts),
		errors.Is(err, ErrArithmeticOverflow),
		errors.Is(err, ErrVaultMismatch),
		errors.Is(err, bank.ErrSupplyOverflow),
		errors.Is(err, bank.ErrBalanceOverflow),
		errors.Is(err, bank.ErrAccountNotFound),
		errors.Is(err, bank.ErrUnknownAsset),
		errors.Is(err, authority.ErrNoValidBump),
		errors.Is(err, authority.ErrInvalidBump):
		return KindResource
	case errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrUnauthorized),
		errors.Is(err, bank.ErrAssetMismatch):
		return KindAuthorization
	default:
		return KindInternal
	}
}
