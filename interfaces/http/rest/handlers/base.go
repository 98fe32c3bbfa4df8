package handlers

import (
	"net/http"

	"killrvideo/application/commands/bus"
	mutations "killrvideo/application/commands/handlers"
	"killrvideo/application/fanout"
	querybus "killrvideo/application/queries/bus"
	"killrvideo/pkg/auth"
	"killrvideo/pkg/common"
	"killrvideo/pkg/errors"

	"go.uber.org/zap"
)

// Deps are the collaborators every resource handler shares
type Deps struct {
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	ErrorHandler *errors.ErrorHandler
	Logger       *zap.Logger
}

type base struct {
	Deps
}

// MutationResponse reports every fan-out target of a mutation
type MutationResponse struct {
	ID        string                         `json:"id"`
	Mutation  string                         `json:"mutation"`
	Results   map[string]fanout.TargetResult `json:"results"`
	Failed    []string                       `json:"failed,omitempty"`
	Retryable bool                           `json:"retryable,omitempty"`
}

// respondMutation renders a command result. All targets applied is 201, a
// redelivered rating is 200, some targets applied is 207 and nothing applied
// is 503. Errors raised before any write go through the error handler.
func (h *base) respondMutation(w http.ResponseWriter, r *http.Request, res interface{}, err error) {
	result, ok := res.(*mutations.Result)
	if !ok || result == nil || result.Outcome == nil {
		if err == nil {
			err = errors.NewInternalError("command returned no outcome")
		}
		h.ErrorHandler.Handle(w, r, err)
		return
	}

	outcome := result.Outcome
	response := MutationResponse{
		ID:       result.ID,
		Mutation: outcome.Mutation,
		Results:  outcome.Results,
		Failed:   outcome.Failed(),
	}

	status := http.StatusCreated
	switch {
	case err == nil && duplicate(outcome):
		status = http.StatusOK
	case err == nil:
	case errors.IsPartialFanout(err) && len(outcome.Applied()) > 0:
		status = http.StatusMultiStatus
		response.Retryable = true
	case errors.IsPartialFanout(err), errors.IsAtomicGroup(err):
		status = http.StatusServiceUnavailable
		response.Retryable = true
	default:
		h.ErrorHandler.Handle(w, r, err)
		return
	}

	if status >= 300 {
		h.Logger.Warn("Mutation not fully applied",
			zap.String("mutation", outcome.Mutation),
			zap.String("id", result.ID),
			zap.Strings("failed", response.Failed),
			zap.Error(err),
		)
	}
	common.RespondWithMeta(w, status, response, &common.MetaInfo{RequestID: common.ExtractRequestID(r)})
}

func duplicate(o *fanout.Outcome) bool {
	for _, res := range o.Results {
		if res.Status == fanout.StatusSkipped && errors.IsDuplicateDelivery(res.Err()) {
			return true
		}
	}
	return false
}

// respondQuery renders a read result or its error
func (h *base) respondQuery(w http.ResponseWriter, r *http.Request, res interface{}, err error) {
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}
	common.RespondWithMeta(w, http.StatusOK, res, &common.MetaInfo{RequestID: common.ExtractRequestID(r)})
}

// respondList renders a list with its size and the cursor of the next page
func (h *base) respondList(w http.ResponseWriter, r *http.Request, items interface{}, count int, next string) {
	common.RespondWithMeta(w, http.StatusOK, items, &common.MetaInfo{
		RequestID: common.ExtractRequestID(r),
		Count:     &count,
		Next:      next,
	})
}

func (h *base) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.ErrorHandler.Handle(w, r, errors.NewValidationError(err.Error()))
}

func (h *base) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(w, r, v, common.MaxBodyBytes); err != nil {
		h.badRequest(w, r, err)
		return false
	}
	return true
}

// actingUser resolves the user a mutation acts for. An authenticated caller
// acts as themselves and may not name another user; without authentication
// the claimed id is used as is.
func actingUser(r *http.Request, claimed string) (string, error) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		return claimed, nil
	}
	if claimed != "" && claimed != user.UserID.String() {
		return "", errors.NewForbiddenError("cannot act on behalf of another user")
	}
	return user.UserID.String(), nil
}
