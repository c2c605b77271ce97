package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mintgate/internal/bridge"
	"mintgate/pkg/domain"
	"mintgate/pkg/platform/httputil"
)

func (h *Handler) handleBridge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := h.ledger.BridgeConfig(ctx)
	if err != nil {
		h.fail(w, r, "bridge_config", err)
		return
	}
	rate, err := h.ledger.DecimalConversionRate(ctx)
	if err != nil {
		h.fail(w, r, "decimal_conversion_rate", err)
		return
	}
	token, err := h.ledger.Token(ctx)
	if err != nil {
		h.fail(w, r, "token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &BridgeResponse{
		LocalChain:       uint32(cfg.LocalChain),
		Endpoint:         cfg.Endpoint,
		SharedDecimals:   cfg.SharedDecimals,
		LocalDecimals:    cfg.LocalDecimals,
		ConversionRate:   rate.Dec(),
		Delegate:         hexOrEmpty(cfg.Delegate),
		Token:            hexOrEmpty(token),
		ApprovalRequired: h.ledger.ApprovalRequired(),
	})
}

func (h *Handler) handlePeer(w http.ResponseWriter, r *http.Request) {
	chain, err := parseChain(chi.URLParam(r, "chain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	peer, err := h.ledger.Peer(r.Context(), chain)
	if err != nil {
		h.fail(w, r, "peer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &AccountResponse{Account: hexOrEmpty(peer)})
}

func (h *Handler) handleIsOperator(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount("account", chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ok, err := h.ledger.IsAuthorizedOperator(r.Context(), account)
	if err != nil {
		h.fail(w, r, "is_authorized_operator", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &BoolResponse{Value: ok})
}

func (h *Handler) handleInitializeBridge(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req InitializeBridgeRequest
	if !h.decode(w, r, "initialize_bridge", &req) {
		return
	}
	cfg := bridge.Config{
		LocalChain:     domain.ChainID(req.LocalChain),
		Endpoint:       req.Endpoint,
		SharedDecimals: req.SharedDecimals,
	}
	if req.Delegate != "" {
		delegate, err := parseAccount("delegate", req.Delegate)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		cfg.Delegate = delegate
	}
	if err := h.ledger.InitializeBridge(r.Context(), caller, cfg); err != nil {
		h.fail(w, r, "initialize_bridge", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleSetDelegate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req DelegateRequest
	if !h.decode(w, r, "set_delegate", &req) {
		return
	}
	delegate, err := parseAccount("delegate", req.Delegate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.SetDelegate(r.Context(), caller, delegate); err != nil {
		h.fail(w, r, "set_delegate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetPeer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	chain, err := parseChain(chi.URLParam(r, "chain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req PeerRequest
	if !h.decode(w, r, "set_peer", &req) {
		return
	}
	peer, err := parseAccount("peer", req.Peer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.SetPeer(r.Context(), caller, chain, peer); err != nil {
		h.fail(w, r, "set_peer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req SendRequest
	if !h.decode(w, r, "send", &req) {
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
	msg, err := h.ledger.Send(r.Context(), caller, domain.ChainID(req.Dst), to, amount)
	if err != nil {
		h.fail(w, r, "send", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, &SendResponse{
		GUID:         msg.GUID.String(),
		Dst:          uint32(msg.Dst),
		To:           msg.To.Hex(),
		Amount:       msg.Amount.Dec(),
		SharedAmount: msg.SharedAmount,
	})
}
