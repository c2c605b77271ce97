package httptransport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
	"mintgate/pkg/platform/httputil"
)

func (h *Handler) roleParam(w http.ResponseWriter, r *http.Request) (domain.Role, bool) {
	role, err := parseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.Role{}, false
	}
	return role, true
}

func (h *Handler) handleRoleMembers(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	members, err := h.ledger.RoleMembers(r.Context(), role)
	if err != nil {
		h.fail(w, r, "role_members", err)
		return
	}
	out := &RoleMembersResponse{Role: role.String(), Members: make([]string, 0, len(members))}
	for _, m := range members {
		out.Members = append(out.Members, m.Hex())
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHasRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	account, err := parseAccount("account", chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	held, err := h.ledger.HasRole(r.Context(), role, account)
	if err != nil {
		h.fail(w, r, "has_role", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &BoolResponse{Value: held})
}

func (h *Handler) handleGetRoleAdmin(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	admin, err := h.ledger.GetRoleAdmin(r.Context(), role)
	if err != nil {
		h.fail(w, r, "get_role_admin", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &RoleAdminResponse{Role: role.String(), Admin: admin.String()})
}

func (h *Handler) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	role, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	var req AccountRequest
	if !h.decode(w, r, "grant_role", &req) {
		return
	}
	account, err := parseAccount("account", req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.GrantRole(r.Context(), caller, role, account); err != nil {
		h.fail(w, r, "grant_role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	role, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	var req AccountRequest
	if !h.decode(w, r, "revoke_role", &req) {
		return
	}
	account, err := parseAccount("account", req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.RevokeRole(r.Context(), caller, role, account); err != nil {
		h.fail(w, r, "revoke_role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRenounceRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	role, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	var req RenounceRequest
	if !h.decode(w, r, "renounce_role", &req) {
		return
	}
	confirmation, err := parseAccount("confirmation", req.Confirmation)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.RenounceRole(r.Context(), caller, role, confirmation); err != nil {
		h.fail(w, r, "renounce_role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetRoleAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	role, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	var req RoleAdminRequest
	if !h.decode(w, r, "set_role_admin", &req) {
		return
	}
	admin, err := parseRole(req.Admin)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.SetRoleAdmin(r.Context(), caller, role, admin); err != nil {
		h.fail(w, r, "set_role_admin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBeginSupervisorTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CandidateRequest
	if !h.decode(w, r, "begin_supervisor_transfer", &req) {
		return
	}
	candidate, err := parseAccount("candidate", req.Candidate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.BeginSupervisorTransfer(r.Context(), caller, candidate); err != nil {
		h.fail(w, r, "begin_supervisor_transfer", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleCancelSupervisorTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.ledger.CancelSupervisorTransfer(r.Context(), caller); err != nil {
		h.fail(w, r, "cancel_supervisor_transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAcceptSupervisorTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.ledger.AcceptSupervisorTransfer(r.Context(), caller); err != nil {
		h.fail(w, r, "accept_supervisor_transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIsBanned(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount("account", chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	banned, err := h.ledger.IsBanned(r.Context(), account)
	if err != nil {
		h.fail(w, r, "is_banned", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &BoolResponse{Value: banned})
}

func (h *Handler) handleAddToBlacklist(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req AccountRequest
	if !h.decode(w, r, "add_to_blacklist", &req) {
		return
	}
	account, err := parseAccount("account", req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.AddToBlacklist(r.Context(), caller, account); err != nil {
		h.fail(w, r, "add_to_blacklist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveFromBlacklist(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	account, err := parseAccount("account", chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.RemoveFromBlacklist(r.Context(), caller, account); err != nil {
		h.fail(w, r, "remove_from_blacklist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.ledger.Pause(r.Context(), caller); err != nil {
		h.fail(w, r, "pause", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.ledger.Unpause(r.Context(), caller); err != nil {
		h.fail(w, r, "unpause", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req UpgradeRequest
	if !h.decode(w, r, "upgrade", &req) {
		return
	}
	next := state.Implementation{
		Name:      strings.TrimSpace(req.Name),
		Version:   req.Version,
		Reference: strings.TrimSpace(req.Reference),
	}
	if err := h.ledger.Upgrade(r.Context(), caller, next); err != nil {
		h.fail(w, r, "upgrade", err)
		return
	}
	impl, err := h.ledger.Implementation(r.Context())
	if err != nil {
		h.fail(w, r, "implementation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toImplementationResponse(impl))
}
