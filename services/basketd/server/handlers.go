package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"basketvault/core/types"
	"basketvault/crypto"
	"basketvault/native/bank"
	"basketvault/native/basket"
	"basketvault/services/basketd/storage"
)

const maxBodyBytes = 1 << 20

type legView struct {
	Asset     string `json:"asset"`
	Amount    uint64 `json:"amount"`
	Formatted string `json:"formatted,omitempty"`
}

type basketView struct {
	BasketToken      string   `json:"basket_token"`
	ConfigAddress    string   `json:"config_address"`
	CustodyAuthority string   `json:"custody_authority"`
	Authority        string   `json:"authority"`
	Assets           []string `json:"assets"`
	PerUnit          []uint64 `json:"per_unit"`
	UnitScale        uint64   `json:"unit_scale"`
	Decimals         uint8    `json:"decimals"`
	Supply           uint64   `json:"supply"`
	CreatedAt        int64    `json:"created_at"`
}

type depositBody struct {
	Assets      []string `json:"assets"`
	PerUnit     []uint64 `json:"per_unit"`
	Amounts     []uint64 `json:"amounts"`
	Decimals    uint8    `json:"decimals"`
	Accounts    []string `json:"accounts,omitempty"`
	Destination string   `json:"destination,omitempty"`
}

type redeemBody struct {
	Amount   uint64   `json:"amount"`
	Accounts []string `json:"accounts,omitempty"`
	Source   string   `json:"source,omitempty"`
}

type openAccountBody struct {
	Asset string `json:"asset"`
	Owner string `json:"owner,omitempty"`
}

type mintBody struct {
	To     string `json:"to,omitempty"`
	Amount uint64 `json:"amount"`
}

type pauseBody struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type registerAssetBody struct {
	Asset         string `json:"asset"`
	Decimals      uint8  `json:"decimals"`
	MintAuthority string `json:"mint_authority"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListBaskets(w http.ResponseWriter, _ *http.Request) {
	summaries, err := s.vault.Baskets()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, map[string]interface{}{
			"basket_token":   crypto.FormatAddress(sum.BasketToken),
			"config_address": crypto.FormatAddress(sum.ConfigAddress),
			"num_assets":     sum.NumAssets,
			"decimals":       sum.Decimals,
			"supply":         sum.Supply,
			"supply_display": bank.FormatAmount(sum.Supply, sum.Decimals),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"baskets": out})
}

func (s *Server) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	token, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, err)
		return
	}
	cfg, err := s.vault.Basket(token)
	if err != nil {
		writeError(w, err)
		return
	}
	view := basketView{
		BasketToken:      crypto.FormatAddress(cfg.BasketToken),
		ConfigAddress:    crypto.FormatAddress(cfg.ConfigAddress),
		CustodyAuthority: crypto.FormatAddress(cfg.CustodyAuthority),
		Authority:        crypto.FormatAddress(cfg.Authority),
		Assets:           formatAddresses(cfg.Assets),
		PerUnit:          cfg.PerUnit,
		UnitScale:        cfg.UnitScale,
		Decimals:         cfg.Decimals,
		CreatedAt:        cfg.CreatedAt,
	}
	if asset, ok, err := s.vault.Asset(token); err == nil && ok {
		view.Supply = asset.Supply
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	token, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, err)
		return
	}
	holdings, err := s.vault.Holdings(token)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, map[string]interface{}{
			"asset":    crypto.FormatAddress(h.Asset),
			"vault":    crypto.FormatAddress(h.Vault),
			"per_unit": h.PerUnit,
			"balance":  h.Balance,
			"required": h.Required,
			"backed":   h.Backed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"holdings": out})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	token, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, err)
		return
	}
	units, err := strconv.ParseUint(r.URL.Query().Get("units"), 10, 64)
	if err != nil {
		writeError(w, fmt.Errorf("%w: units must be an unsigned integer", errBadRequest))
		return
	}
	var legs []basket.Leg
	side := strings.ToLower(r.URL.Query().Get("side"))
	switch side {
	case "", "deposit":
		side = "deposit"
		legs, err = s.vault.QuoteDeposit(token, units)
	case "redeem":
		legs, err = s.vault.QuoteRedeem(token, units)
	default:
		err = fmt.Errorf("%w: side must be deposit or redeem", errBadRequest)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"basket_token": crypto.FormatAddress(token),
		"side":         side,
		"units":        units,
		"legs":         s.legViews(legs),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	token, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, err)
		return
	}
	var body depositBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	req := &basket.DepositRequest{
		Caller:      id.Caller,
		BasketToken: token,
		PerUnit:     body.PerUnit,
		Amounts:     body.Amounts,
		Decimals:    body.Decimals,
	}
	if req.Destination, err = optionalAddress(body.Destination, "destination"); err != nil {
		writeError(w, err)
		return
	}
	if len(body.Accounts) > 0 {
		if req.Accounts, err = parseAddresses(body.Accounts, "accounts"); err != nil {
			writeError(w, err)
			return
		}
	} else {
		assets, err := parseAddresses(body.Assets, "assets")
		if err != nil {
			writeError(w, err)
			return
		}
		if req.Accounts, err = s.vault.DepositAccounts(token, id.Caller, assets); err != nil {
			writeError(w, err)
			return
		}
	}
	res, err := s.vault.Deposit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.recordReceipt(r, "deposit", res.BasketToken, id.Caller, res.Minted, res.Legs)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"basket_token": crypto.FormatAddress(res.BasketToken),
		"destination":  crypto.FormatAddress(res.Destination),
		"minted":       res.Minted,
		"legs":         s.legViews(res.Legs),
		"initialized":  res.Initialized,
	})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	token, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, err)
		return
	}
	var body redeemBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	req := &basket.RedeemRequest{Caller: id.Caller, BasketToken: token, Amount: body.Amount}
	if req.Source, err = optionalAddress(body.Source, "source"); err != nil {
		writeError(w, err)
		return
	}
	if len(body.Accounts) > 0 {
		if req.Accounts, err = parseAddresses(body.Accounts, "accounts"); err != nil {
			writeError(w, err)
			return
		}
	} else {
		cfg, err := s.vault.Basket(token)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, asset := range cfg.Assets {
			if _, err := s.vault.OpenAccount(r.Context(), asset, id.Caller); err != nil {
				writeError(w, err)
				return
			}
		}
		if req.Accounts, err = s.vault.RedeemAccounts(token, id.Caller); err != nil {
			writeError(w, err)
			return
		}
	}
	res, err := s.vault.Redeem(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.recordReceipt(r, "redeem", res.BasketToken, id.Caller, res.Burned, res.Payouts)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"basket_token": crypto.FormatAddress(res.BasketToken),
		"source":       crypto.FormatAddress(res.Source),
		"burned":       res.Burned,
		"payouts":      s.legViews(res.Payouts),
	})
}

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var body openAccountBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	asset, err := requiredAddress(body.Asset, "asset")
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := optionalAddress(body.Owner, "owner")
	if err != nil {
		writeError(w, err)
		return
	}
	if owner.IsZero() {
		owner = id.Caller
	}
	ref, err := s.vault.OpenAccount(r.Context(), asset, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ref":   crypto.FormatAddress(ref),
		"asset": crypto.FormatAddress(asset),
		"owner": crypto.FormatAddress(owner),
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	ref, err := pathAddress(r, "ref")
	if err != nil {
		writeError(w, err)
		return
	}
	account, ok, err := s.vault.Account(ref)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, bank.ErrAccountNotFound)
		return
	}
	out := map[string]interface{}{
		"ref":           crypto.FormatAddress(account.Ref),
		"asset":         crypto.FormatAddress(account.Asset),
		"owner":         crypto.FormatAddress(account.Owner),
		"owner_derived": account.OwnerDerived,
		"balance":       account.Balance,
	}
	if asset, ok, err := s.vault.Asset(account.Asset); err == nil && ok {
		out["balance_display"] = bank.FormatAmount(account.Balance, asset.Decimals)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	asset, err := pathAddress(r, "asset")
	if err != nil {
		writeError(w, err)
		return
	}
	var body mintBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	to, err := optionalAddress(body.To, "to")
	if err != nil {
		writeError(w, err)
		return
	}
	if to.IsZero() {
		if to, err = s.vault.OpenAccount(r.Context(), asset, id.Caller); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := s.vault.MintAsset(r.Context(), asset, to, body.Amount, id.Caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset":  crypto.FormatAddress(asset),
		"to":     crypto.FormatAddress(to),
		"amount": body.Amount,
	})
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"receipts": []storage.Receipt{}})
		return
	}
	id, _ := IdentityFrom(r.Context())
	filter := storage.ReceiptFilter{Caller: crypto.FormatAddress(id.Caller)}
	if raw := r.URL.Query().Get("basket"); raw != "" {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: basket: %v", errBadRequest, err))
			return
		}
		filter.Basket = crypto.FormatAddress(addr)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: limit must be an integer", errBadRequest))
			return
		}
		filter.Limit = limit
	}
	receipts, err := s.store.ListReceipts(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(receipts))
	for _, rc := range receipts {
		out = append(out, map[string]interface{}{
			"id":         rc.ID,
			"kind":       rc.Kind,
			"basket":     rc.Basket,
			"units":      rc.Units,
			"amounts":    rc.Amounts,
			"created_at": rc.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"receipts": out})
}

func (s *Server) handleGetPauses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"paused": s.pauses.Paused()})
}

func (s *Server) handleSetPause(w http.ResponseWriter, r *http.Request) {
	var body pauseBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Module) == "" {
		writeError(w, fmt.Errorf("%w: module required", errBadRequest))
		return
	}
	s.pauses.SetPaused(body.Module, body.Paused)
	s.logger.Info("module pause updated", "module", body.Module, "paused", body.Paused)
	writeJSON(w, http.StatusOK, map[string]interface{}{"paused": s.pauses.Paused()})
}

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var body registerAssetBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	assetID, err := requiredAddress(body.Asset, "asset")
	if err != nil {
		writeError(w, err)
		return
	}
	authority, err := requiredAddress(body.MintAuthority, "mint_authority")
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := s.vault.RegisterAsset(r.Context(), assetID, body.Decimals, authority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset":          crypto.FormatAddress(asset.ID),
		"decimals":       asset.Decimals,
		"mint_authority": crypto.FormatAddress(asset.MintAuthority),
		"supply":         asset.Supply,
	})
}

func (s *Server) legViews(legs []basket.Leg) []legView {
	out := make([]legView, 0, len(legs))
	for _, leg := range legs {
		view := legView{Asset: crypto.FormatAddress(leg.Asset), Amount: leg.Amount}
		if asset, ok, err := s.vault.Asset(leg.Asset); err == nil && ok {
			view.Formatted = bank.FormatAmount(leg.Amount, asset.Decimals)
		}
		out = append(out, view)
	}
	return out
}

func (s *Server) recordReceipt(r *http.Request, kind string, token, caller types.Address, units uint64, legs []basket.Leg) {
	if s.store == nil {
		return
	}
	amounts := make([]string, len(legs))
	for i, leg := range legs {
		amounts[i] = strconv.FormatUint(leg.Amount, 10)
	}
	receipt := &storage.Receipt{
		Kind:    kind,
		Basket:  crypto.FormatAddress(token),
		Caller:  crypto.FormatAddress(caller),
		Units:   strconv.FormatUint(units, 10),
		Amounts: strings.Join(amounts, ","),
	}
	if err := s.store.RecordReceipt(r.Context(), receipt); err != nil {
		s.logger.Warn("record receipt failed", "kind", kind, "error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func pathAddress(r *http.Request, param string) (types.Address, error) {
	return requiredAddress(chi.URLParam(r, param), param)
}

func requiredAddress(raw, field string) (types.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return types.Address{}, fmt.Errorf("%w: %s required", errBadRequest, field)
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return addr, nil
}

func optionalAddress(raw, field string) (types.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return types.Address{}, nil
	}
	return requiredAddress(raw, field)
}

func parseAddresses(raw []string, field string) ([]types.Address, error) {
	out := make([]types.Address, len(raw))
	for i, value := range raw {
		addr, err := requiredAddress(value, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func formatAddresses(addrs []types.Address) []string {
	out := make([]string, len(addrs))
	for i, addr := range addrs {
		out[i] = crypto.FormatAddress(addr)
	}
	return out
}
