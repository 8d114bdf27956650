package basket

import (
	"strconv"
	"strings"

	"basketvault/core/types"
	"basketvault/crypto"
)

const (
	EventTypeBasketInitialized = "basket.initialized"
	EventTypeBasketDeposited   = "basket.deposited"
	EventTypeBasketRedeemed    = "basket.redeemed"
)

// NewInitializedEvent returns the canonical payload emitted when a basket
// composition is first recorded.
func NewInitializedEvent(cfg *Config) *types.Event {
	attrs := map[string]string{}
	if cfg != nil {
		attrs["basketToken"] = crypto.FormatAddress(cfg.BasketToken)
		attrs["config"] = crypto.FormatAddress(cfg.ConfigAddress)
		attrs["custody"] = crypto.FormatAddress(cfg.CustodyAuthority)
		attrs["authority"] = crypto.FormatAddress(cfg.Authority)
		attrs["assets"] = joinAddresses(cfg.Assets)
		attrs["perUnit"] = joinAmounts(cfg.PerUnit)
		attrs["unitScale"] = strconv.FormatUint(cfg.UnitScale, 10)
		attrs["decimals"] = strconv.FormatUint(uint64(cfg.Decimals), 10)
	}
	return &types.Event{Type: EventTypeBasketInitialized, Attributes: attrs}
}

// NewDepositedEvent returns the payload for a completed deposit.
func NewDepositedEvent(res *DepositResult) *types.Event {
	attrs := map[string]string{}
	if res != nil {
		attrs["basketToken"] = crypto.FormatAddress(res.BasketToken)
		attrs["caller"] = crypto.FormatAddress(res.Caller)
		attrs["destination"] = crypto.FormatAddress(res.Destination)
		attrs["minted"] = strconv.FormatUint(res.Minted, 10)
		attrs["amounts"] = joinLegAmounts(res.Legs)
	}
	return &types.Event{Type: EventTypeBasketDeposited, Attributes: attrs}
}

// NewRedeemedEvent returns the payload for a completed redemption.
func NewRedeemedEvent(res *RedeemResult) *types.Event {
	attrs := map[string]string{}
	if res != nil {
		attrs["basketToken"] = crypto.FormatAddress(res.BasketToken)
		attrs["caller"] = crypto.FormatAddress(res.Caller)
		attrs["source"] = crypto.FormatAddress(res.Source)
		attrs["burned"] = strconv.FormatUint(res.Burned, 10)
		attrs["amounts"] = joinLegAmounts(res.Payouts)
	}
	return &types.Event{Type: EventTypeBasketRedeemed, Attributes: attrs}
}

func joinAddresses(addrs []types.Address) string {
	parts := make([]string, len(addrs))
	for i, addr := range addrs {
		parts[i] = crypto.FormatAddress(addr)
	}
	return strings.Join(parts, ",")
}

func joinAmounts(values []uint64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(parts, ",")
}

func joinLegAmounts(legs []Leg) string {
	values := make([]uint64, len(legs))
	for i, leg := range legs {
		values[i] = leg.Amount
	}
	return joinAmounts(values)
}
