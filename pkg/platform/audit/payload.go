package audit

import (
	"encoding/json"
	"fmt"

	"mintgate/pkg/domain"
)

// payload is the JSON body persisted for an event. Name, ID and timestamp
// live in their own columns.
type payload struct {
	Caller            string `json:"caller,omitempty"`
	Account           string `json:"account,omitempty"`
	Counterparty      string `json:"counterparty,omitempty"`
	Role              string `json:"role,omitempty"`
	AdminRole         string `json:"admin_role,omitempty"`
	PreviousAdminRole string `json:"previous_admin_role,omitempty"`
	Amount            string `json:"amount,omitempty"`
	Chain             uint32 `json:"chain,omitempty"`
	GUID              string `json:"guid,omitempty"`
	Detail            string `json:"detail,omitempty"`
	RequestID         string `json:"request_id,omitempty"`
}

func hasRole(name AuditEvent) bool {
	return name == EventRoleGranted || name == EventRoleRevoked || name == EventRoleAdminChanged
}

// MarshalPayload encodes the event body. Null accounts are omitted, and roles
// only for role events, since the zero role is the supervisor role.
func MarshalPayload(e Event) ([]byte, error) {
	p := payload{
		Chain:     uint32(e.Chain),
		GUID:      e.GUID,
		Detail:    e.Detail,
		RequestID: e.RequestID,
	}
	if !domain.IsNull(e.Caller) {
		p.Caller = e.Caller.Hex()
	}
	if !domain.IsNull(e.Account) {
		p.Account = e.Account.Hex()
	}
	if !domain.IsNull(e.Counterparty) {
		p.Counterparty = e.Counterparty.Hex()
	}
	if hasRole(e.Name) {
		p.Role = e.Role.Hex()
	}
	if e.Name == EventRoleAdminChanged {
		p.AdminRole = e.AdminRole.Hex()
		p.PreviousAdminRole = e.PreviousAdminRole.Hex()
	}
	if e.Amount != nil {
		p.Amount = e.Amount.Dec()
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return b, nil
}

// UnmarshalPayload fills the body fields of e from data.
func UnmarshalPayload(data []byte, e *Event) error {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}
	var err error
	account := func(s string) domain.Account {
		if s == "" || err != nil {
			return domain.NullAccount
		}
		a, perr := domain.ParseAccount(s)
		if perr != nil {
			err = perr
		}
		return a
	}
	role := func(s string) domain.Role {
		if s == "" || err != nil {
			return domain.Role{}
		}
		r, perr := domain.ParseRole(s)
		if perr != nil {
			err = perr
		}
		return r
	}
	e.Caller = account(p.Caller)
	e.Account = account(p.Account)
	e.Counterparty = account(p.Counterparty)
	e.Role = role(p.Role)
	e.AdminRole = role(p.AdminRole)
	e.PreviousAdminRole = role(p.PreviousAdminRole)
	if p.Amount != "" && err == nil {
		e.Amount, err = domain.ParseAmount(p.Amount)
	}
	if err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}
	e.Chain = domain.ChainID(p.Chain)
	e.GUID = p.GUID
	e.Detail = p.Detail
	e.RequestID = p.RequestID
	return nil
}
