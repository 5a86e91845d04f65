package api

import (
	"net/http"
	"strconv"

	"github.com/chainplays/chainplays/storage"
)

// StatusResponse is the body of the /status endpoint.
type StatusResponse struct {
	Mode         string           `json:"mode"`
	Cursor       uint64           `json:"cursor"`
	QueueLength  int              `json:"queueLength"`
	Tally        map[uint8]uint64 `json:"tally"`
	TotalVotes   uint64           `json:"totalVotes"`
	TotalActions uint64           `json:"totalActions"`
	LastAction   string           `json:"lastAction,omitempty"`
}

// VotesResponse is the body of the /votes endpoint.
type VotesResponse struct {
	Votes []*storage.VoteRecord `json:"votes"`
}

// ActionsResponse is the body of the /actions endpoint.
type ActionsResponse struct {
	Actions []*storage.ActionRecord `json:"actions"`
}

const (
	defaultJournalLimit = 20
	maxJournalLimit     = 200
)

// journalLimit parses the optional ?limit= query parameter.
func journalLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultJournalLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, ErrMalformedParam.Withf("limit %q", raw)
	}
	if n > maxJournalLimit {
		n = maxJournalLimit
	}
	return n, nil
}

// status returns the live state of the pipeline: aggregation mode, next block
// to poll, pending actions, the open window tally and the journal totals.
func (a *API) status(w http.ResponseWriter, _ *http.Request) {
	resp := &StatusResponse{
		Mode:         a.aggregator.Strategy().String(),
		QueueLength:  a.queue.Len(),
		Tally:        map[uint8]uint64{},
		TotalVotes:   a.storage.TotalVotes(),
		TotalActions: a.storage.TotalActions(),
	}
	if a.cursor != nil {
		resp.Cursor = a.cursor()
	}
	for cmd, count := range a.aggregator.Tally().Snapshot() {
		resp.Tally[uint8(cmd)] = count
	}
	if last, err := a.storage.RecentActions(1); err == nil && len(last) == 1 {
		resp.LastAction = last[0].Button
	}
	httpWriteJSON(w, resp)
}

// votes returns the most recent journaled votes, oldest first.
func (a *API) votes(w http.ResponseWriter, r *http.Request) {
	limit, err := journalLimit(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	recs, err := a.storage.RecentVotes(limit)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if recs == nil {
		recs = []*storage.VoteRecord{}
	}
	httpWriteJSON(w, &VotesResponse{Votes: recs})
}

// actions returns the most recent journaled actions, oldest first.
func (a *API) actions(w http.ResponseWriter, r *http.Request) {
	limit, err := journalLimit(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	recs, err := a.storage.RecentActions(limit)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if recs == nil {
		recs = []*storage.ActionRecord{}
	}
	httpWriteJSON(w, &ActionsResponse{Actions: recs})
}
