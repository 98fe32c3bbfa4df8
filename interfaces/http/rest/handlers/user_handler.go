package handlers

import (
	"net/http"
	"time"

	"killrvideo/application/commands"
	"killrvideo/application/queries"
	"killrvideo/pkg/auth"
	"killrvideo/pkg/common"
	"killrvideo/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler handles user accounts and sign-in
type UserHandler struct {
	base
	tokens *auth.TokenManager
}

// NewUserHandler creates a new user handler. tokens may be nil, in which
// case sign-in is unavailable.
func NewUserHandler(deps Deps, tokens *auth.TokenManager) *UserHandler {
	return &UserHandler{base: base{deps}, tokens: tokens}
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateUserCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	res, err := h.CommandBus.Send(r.Context(), cmd)
	h.respondMutation(w, r, res, err)
}

// GetUser handles GET /users/{userID}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.QueryBus.Ask(r.Context(), queries.GetUserQuery{UserID: chi.URLParam(r, "userID")})
	h.respondQuery(w, r, res, err)
}

// ListUserVideos handles GET /users/{userID}/videos?from=&to=&oldestFirst=&limit=
func (h *UserHandler) ListUserVideos(w http.ResponseWriter, r *http.Request) {
	from, err := common.QueryTime(r, "from")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	to, err := common.QueryTime(r, "to")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	limit, err := common.QueryInt(r, "limit")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	res, err := h.QueryBus.Ask(r.Context(), queries.ListUserVideosQuery{
		UserID:      chi.URLParam(r, "userID"),
		From:        from,
		To:          to,
		OldestFirst: common.QueryBool(r, "oldestFirst"),
		Limit:       limit,
	})
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}
	previews := res.([]queries.VideoPreview)
	h.respondList(w, r, previews, len(previews), "")
}

// SessionResponse carries a signed bearer token
type SessionResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateSession handles POST /sessions: it verifies credentials and issues
// a bearer token
func (h *UserHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		h.ErrorHandler.Handle(w, r, errors.NewUnavailableError("authentication"))
		return
	}

	var q queries.VerifyCredentialsQuery
	if !h.decode(w, r, &q) {
		return
	}
	res, err := h.QueryBus.Ask(r.Context(), q)
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}

	cred := res.(queries.CredentialView)
	token, expires, err := h.tokens.GenerateToken(cred.UserID.String(), cred.Email)
	if err != nil {
		h.ErrorHandler.Handle(w, r, errors.NewInternalError("failed to issue token").WithCause(err))
		return
	}
	h.Logger.Debug("Session created", zap.String("user_id", cred.UserID.String()))
	common.RespondJSON(w, http.StatusCreated, SessionResponse{
		Token:     token,
		UserID:    cred.UserID.String(),
		ExpiresAt: expires,
	})
}
