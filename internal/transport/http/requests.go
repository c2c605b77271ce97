package httptransport

import (
	"time"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

// Amounts travel as decimal strings so 256-bit values survive JSON.

type MintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type BurnRequest struct {
	Amount string `json:"amount"`
}

type AccountRequest struct {
	Account string `json:"account"`
}

type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TransferFromRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ApproveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type RenounceRequest struct {
	Confirmation string `json:"confirmation"`
}

type RoleAdminRequest struct {
	Admin string `json:"admin"`
}

type CandidateRequest struct {
	Candidate string `json:"candidate"`
}

type UpgradeRequest struct {
	Name      string `json:"name"`
	Version   uint64 `json:"version"`
	Reference string `json:"reference"`
}

type InitializeBridgeRequest struct {
	LocalChain     uint32 `json:"local_chain"`
	Endpoint       string `json:"endpoint"`
	SharedDecimals uint8  `json:"shared_decimals"`
	Delegate       string `json:"delegate,omitempty"`
}

type DelegateRequest struct {
	Delegate string `json:"delegate"`
}

type PeerRequest struct {
	Peer string `json:"peer"`
}

type SendRequest struct {
	Dst    uint32 `json:"dst"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type AmountResponse struct {
	Amount string `json:"amount"`
}

type BoolResponse struct {
	Value bool `json:"value"`
}

type AccountResponse struct {
	Account string `json:"account"`
}

type LedgerResponse struct {
	Self              string `json:"self"`
	Name              string `json:"name"`
	Symbol            string `json:"symbol"`
	Decimals          uint8  `json:"decimals"`
	TotalSupply       string `json:"total_supply"`
	Paused            bool   `json:"paused"`
	Supervisor        string `json:"supervisor"`
	PendingSupervisor string `json:"pending_supervisor,omitempty"`
	Version           uint64 `json:"version"`
}

type ImplementationResponse struct {
	Name      string    `json:"name"`
	Version   uint64    `json:"version"`
	Reference string    `json:"reference,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RoleMembersResponse struct {
	Role    string   `json:"role"`
	Members []string `json:"members"`
}

type RoleAdminResponse struct {
	Role  string `json:"role"`
	Admin string `json:"admin"`
}

type BridgeResponse struct {
	LocalChain       uint32 `json:"local_chain"`
	Endpoint         string `json:"endpoint"`
	SharedDecimals   uint8  `json:"shared_decimals"`
	LocalDecimals    uint8  `json:"local_decimals"`
	ConversionRate   string `json:"decimal_conversion_rate"`
	Delegate         string `json:"delegate"`
	Token            string `json:"token"`
	ApprovalRequired bool   `json:"approval_required"`
}

type SendResponse struct {
	GUID         string `json:"guid"`
	Dst          uint32 `json:"dst"`
	To           string `json:"to"`
	Amount       string `json:"amount"`
	SharedAmount uint64 `json:"shared_amount"`
}

func toImplementationResponse(impl state.Implementation) *ImplementationResponse {
	return &ImplementationResponse{
		Name:      impl.Name,
		Version:   impl.Version,
		Reference: impl.Reference,
		UpdatedAt: impl.UpdatedAt,
	}
}

// parseAccount parses an account field. The null account is accepted here;
// the ledger decides where it is forbidden.
func parseAccount(field, value string) (domain.Account, error) {
	a, err := domain.ParseAccount(value)
	if err != nil {
		return domain.Account{}, dErrors.New(dErrors.CodeBadRequest, field+" must be a 20-byte hex account")
	}
	return a, nil
}

func parseAmount(value string) (*domain.Amount, error) {
	a, err := domain.ParseAmount(value)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "amount must be a non-negative decimal integer")
	}
	return a, nil
}

func parseRole(value string) (domain.Role, error) {
	r, err := domain.ParseRole(value)
	if err != nil {
		return domain.Role{}, dErrors.New(dErrors.CodeBadRequest, "role must be a known role name or 32-byte hex")
	}
	return r, nil
}

func parseChain(value string) (domain.ChainID, error) {
	c, err := domain.ParseChainID(value)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "chain must be a positive 32-bit integer")
	}
	return c, nil
}

func hexOrEmpty(a domain.Account) string {
	if domain.IsNull(a) {
		return ""
	}
	return a.Hex()
}
