package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mintgate/pkg/platform/httputil"
)

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meta, err := h.ledger.Metadata(ctx)
	if err != nil {
		h.fail(w, r, "metadata", err)
		return
	}
	supply, err := h.ledger.TotalSupply(ctx)
	if err != nil {
		h.fail(w, r, "total_supply", err)
		return
	}
	paused, err := h.ledger.Paused(ctx)
	if err != nil {
		h.fail(w, r, "paused", err)
		return
	}
	supervisor, err := h.ledger.Supervisor(ctx)
	if err != nil {
		h.fail(w, r, "supervisor", err)
		return
	}
	pending, err := h.ledger.PendingSupervisor(ctx)
	if err != nil {
		h.fail(w, r, "pending_supervisor", err)
		return
	}
	impl, err := h.ledger.Implementation(ctx)
	if err != nil {
		h.fail(w, r, "implementation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &LedgerResponse{
		Self:              hexOrEmpty(meta.Self),
		Name:              meta.Name,
		Symbol:            meta.Symbol,
		Decimals:          meta.Decimals,
		TotalSupply:       supply.Dec(),
		Paused:            paused,
		Supervisor:        hexOrEmpty(supervisor),
		PendingSupervisor: hexOrEmpty(pending),
		Version:           impl.Version,
	})
}

func (h *Handler) handleImplementation(w http.ResponseWriter, r *http.Request) {
	impl, err := h.ledger.Implementation(r.Context())
	if err != nil {
		h.fail(w, r, "implementation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toImplementationResponse(impl))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount("account", chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	balance, err := h.ledger.BalanceOf(r.Context(), account)
	if err != nil {
		h.fail(w, r, "balance_of", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &AmountResponse{Amount: balance.Dec()})
}

func (h *Handler) handleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAccount("account", chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	spender, err := parseAccount("spender", chi.URLParam(r, "spender"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	allowance, err := h.ledger.Allowance(r.Context(), owner, spender)
	if err != nil {
		h.fail(w, r, "allowance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &AmountResponse{Amount: allowance.Dec()})
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req MintRequest
	if !h.decode(w, r, "mint", &req) {
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.Mint(r.Context(), caller, to, amount); err != nil {
		h.fail(w, r, "mint", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req BurnRequest
	if !h.decode(w, r, "burn", &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.Burn(r.Context(), caller, amount); err != nil {
		h.fail(w, r, "burn", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBurnBlackFunds(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req AccountRequest
	if !h.decode(w, r, "burn_black_funds", &req) {
		return
	}
	account, err := parseAccount("account", req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.BurnBlackFunds(r.Context(), caller, account); err != nil {
		h.fail(w, r, "burn_black_funds", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !h.decode(w, r, "transfer", &req) {
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.Transfer(r.Context(), caller, to, amount); err != nil {
		h.fail(w, r, "transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req TransferFromRequest
	if !h.decode(w, r, "transfer_from", &req) {
		return
	}
	from, err := parseAccount("from", req.From)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.TransferFrom(r.Context(), caller, from, to, amount); err != nil {
		h.fail(w, r, "transfer_from", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req ApproveRequest
	if !h.decode(w, r, "approve", &req) {
		return
	}
	spender, err := parseAccount("spender", req.Spender)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.Approve(r.Context(), caller, spender, amount); err != nil {
		h.fail(w, r, "approve", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
