package httptransport

import (
	"net/http"
	"strconv"
	"time"

	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
	"mintgate/pkg/platform/httputil"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

type EventResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Timestamp    string `json:"timestamp"`
	Caller       string `json:"caller,omitempty"`
	Account      string `json:"account,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Chain        uint32 `json:"chain,omitempty"`
	GUID         string `json:"guid,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

type EventsResponse struct {
	Events []EventResponse `json:"events"`
}

func toEventResponse(e audit.Event) EventResponse {
	out := EventResponse{
		ID:           e.ID.String(),
		Name:         string(e.Name),
		Category:     string(e.Category()),
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
		Caller:       hexOrEmpty(e.Caller),
		Account:      hexOrEmpty(e.Account),
		Counterparty: hexOrEmpty(e.Counterparty),
		Chain:        uint32(e.Chain),
		GUID:         e.GUID,
		Detail:       e.Detail,
	}
	if e.Amount != nil {
		out.Amount = e.Amount.Dec()
	}
	return out
}

// handleEvents lists events involving ?account=, or the most recent ?limit=
// events when no account is given.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		events []audit.Event
		err    error
	)
	if raw := q.Get("account"); raw != "" {
		account, perr := parseAccount("account", raw)
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		events, err = h.events.List(ctx, account)
	} else {
		limit := defaultEventLimit
		if raw := q.Get("limit"); raw != "" {
			n, perr := strconv.Atoi(raw)
			if perr != nil || n <= 0 || n > maxEventLimit {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 500"))
				return
			}
			limit = n
		}
		events, err = h.events.Recent(ctx, limit)
	}
	if err != nil {
		h.fail(w, r, "list_events", err)
		return
	}

	out := &EventsResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, toEventResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
