package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mintgate/internal/bridge"
	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
	"mintgate/pkg/platform/httputil"
	"mintgate/pkg/platform/middleware/auth"
	"mintgate/pkg/platform/middleware/request"
	"mintgate/pkg/platform/middleware/requesttime"
	"mintgate/pkg/requestcontext"
)

// Ledger is the set of node operations exposed over HTTP.
type Ledger interface {
	Metadata(ctx context.Context) (state.Metadata, error)
	TotalSupply(ctx context.Context) (*domain.Amount, error)
	BalanceOf(ctx context.Context, account domain.Account) (*domain.Amount, error)
	Allowance(ctx context.Context, owner, spender domain.Account) (*domain.Amount, error)
	Mint(ctx context.Context, caller, to domain.Account, amount *domain.Amount) error
	Burn(ctx context.Context, caller domain.Account, amount *domain.Amount) error
	BurnBlackFunds(ctx context.Context, caller, account domain.Account) error
	Transfer(ctx context.Context, caller, to domain.Account, amount *domain.Amount) error
	TransferFrom(ctx context.Context, spender, from, to domain.Account, amount *domain.Amount) error
	Approve(ctx context.Context, owner, spender domain.Account, amount *domain.Amount) error

	GrantRole(ctx context.Context, caller domain.Account, role domain.Role, account domain.Account) error
	RevokeRole(ctx context.Context, caller domain.Account, role domain.Role, account domain.Account) error
	RenounceRole(ctx context.Context, caller domain.Account, role domain.Role, confirmation domain.Account) error
	SetRoleAdmin(ctx context.Context, caller domain.Account, role, admin domain.Role) error
	HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error)
	GetRoleAdmin(ctx context.Context, role domain.Role) (domain.Role, error)
	RoleMembers(ctx context.Context, role domain.Role) ([]domain.Account, error)
	BeginSupervisorTransfer(ctx context.Context, caller, candidate domain.Account) error
	CancelSupervisorTransfer(ctx context.Context, caller domain.Account) error
	AcceptSupervisorTransfer(ctx context.Context, caller domain.Account) error
	Supervisor(ctx context.Context) (domain.Account, error)
	PendingSupervisor(ctx context.Context) (domain.Account, error)

	AddToBlacklist(ctx context.Context, caller, account domain.Account) error
	RemoveFromBlacklist(ctx context.Context, caller, account domain.Account) error
	IsBanned(ctx context.Context, account domain.Account) (bool, error)
	Pause(ctx context.Context, caller domain.Account) error
	Unpause(ctx context.Context, caller domain.Account) error
	Paused(ctx context.Context) (bool, error)
	Upgrade(ctx context.Context, caller domain.Account, next state.Implementation) error
	Implementation(ctx context.Context) (state.Implementation, error)

	InitializeBridge(ctx context.Context, caller domain.Account, cfg bridge.Config) error
	SetDelegate(ctx context.Context, caller, delegate domain.Account) error
	SetPeer(ctx context.Context, caller domain.Account, chain domain.ChainID, peer domain.Account) error
	Send(ctx context.Context, caller domain.Account, dst domain.ChainID, to domain.Account, amount *domain.Amount) (bridge.Message, error)
	BridgeConfig(ctx context.Context) (state.BridgeConfig, error)
	DecimalConversionRate(ctx context.Context) (*domain.Amount, error)
	IsAuthorizedOperator(ctx context.Context, account domain.Account) (bool, error)
	Peer(ctx context.Context, chain domain.ChainID) (domain.Account, error)
	Token(ctx context.Context) (domain.Account, error)
	ApprovalRequired() bool
}

// Handler is the thin HTTP layer. It parses requests, takes the caller from
// the authenticated context and delegates to the ledger without embedding
// business logic.
type Handler struct {
	ledger       Ledger
	logger       *slog.Logger
	jwtValidator auth.JWTValidator
	events       EventReader
	timeout      time.Duration
}

// EventReader serves the committed event history.
type EventReader interface {
	List(ctx context.Context, account domain.Account) ([]audit.Event, error)
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

type HandlerOption func(*Handler)

// WithEvents mounts GET /v1/events backed by reader.
func WithEvents(reader EventReader) HandlerOption {
	return func(h *Handler) {
		h.events = reader
	}
}

func NewHandler(ledger Ledger, jwtValidator auth.JWTValidator, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		ledger:       ledger,
		logger:       logger,
		jwtValidator: jwtValidator,
		timeout:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every ledger route on r. Reads are public; writes require a
// bearer token naming the caller account.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(request.Recovery(h.logger))
	api.Use(request.RequestID)
	api.Use(request.Logger(h.logger))
	api.Use(chimw.Timeout(h.timeout))
	api.Use(request.ContentTypeJSON)
	api.Use(requesttime.Middleware)

	api.Get("/ledger", h.handleLedger)
	api.Get("/implementation", h.handleImplementation)
	api.Get("/accounts/{account}/balance", h.handleBalance)
	api.Get("/accounts/{account}/allowances/{spender}", h.handleAllowance)
	api.Get("/accounts/{account}/banned", h.handleIsBanned)
	api.Get("/roles/{role}/members", h.handleRoleMembers)
	api.Get("/roles/{role}/members/{account}", h.handleHasRole)
	api.Get("/roles/{role}/admin", h.handleGetRoleAdmin)
	api.Get("/bridge", h.handleBridge)
	api.Get("/bridge/peers/{chain}", h.handlePeer)
	api.Get("/bridge/operators/{account}", h.handleIsOperator)
	if h.events != nil {
		api.Get("/events", h.handleEvents)
	}

	api.Group(func(r chi.Router) {
		r.Use(auth.RequireCaller(h.jwtValidator, h.logger))

		r.Post("/mint", h.handleMint)
		r.Post("/burn", h.handleBurn)
		r.Post("/burn-black-funds", h.handleBurnBlackFunds)
		r.Post("/transfer", h.handleTransfer)
		r.Post("/transfer-from", h.handleTransferFrom)
		r.Post("/approve", h.handleApprove)

		r.Post("/roles/{role}/grant", h.handleGrantRole)
		r.Post("/roles/{role}/revoke", h.handleRevokeRole)
		r.Post("/roles/{role}/renounce", h.handleRenounceRole)
		r.Put("/roles/{role}/admin", h.handleSetRoleAdmin)
		r.Post("/supervisor/transfer", h.handleBeginSupervisorTransfer)
		r.Delete("/supervisor/transfer", h.handleCancelSupervisorTransfer)
		r.Post("/supervisor/transfer/accept", h.handleAcceptSupervisorTransfer)

		r.Post("/blacklist", h.handleAddToBlacklist)
		r.Delete("/blacklist/{account}", h.handleRemoveFromBlacklist)
		r.Post("/pause", h.handlePause)
		r.Post("/unpause", h.handleUnpause)
		r.Post("/upgrade", h.handleUpgrade)

		r.Post("/bridge", h.handleInitializeBridge)
		r.Put("/bridge/delegate", h.handleSetDelegate)
		r.Put("/bridge/peers/{chain}", h.handleSetPeer)
		r.Post("/bridge/send", h.handleSend)
	})

	r.Mount("/v1", api)
}

// NewRouter builds a root router with the ledger API under /v1 plus any extra
// mounts (health, metrics).
func NewRouter(h *Handler, extra map[string]http.Handler) chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	for path, handler := range extra {
		r.Handle(path, handler)
	}
	return r
}

// caller returns the authenticated caller. RequireCaller guarantees one on
// every write route.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	ctx := r.Context()
	if !requestcontext.HasCaller(ctx) {
		// This should never happen if RequireCaller middleware is configured correctly
		h.logger.ErrorContext(ctx, "caller missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.Account{}, false
	}
	return requestcontext.Caller(ctx), true
}

// fail writes err, logging at the level its code deserves.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "ledger request failed",
			"op", op,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.DebugContext(ctx, "ledger request rejected",
			"op", op,
			"code", string(dErrors.CodeOf(err)),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

// decode reads the JSON body into v, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"op", op,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, err)
		return false
	}
	return true
}
