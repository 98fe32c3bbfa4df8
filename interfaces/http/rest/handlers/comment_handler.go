package handlers

import (
	"net/http"

	"killrvideo/application/commands"
	"killrvideo/application/queries"
	"killrvideo/pkg/common"

	"github.com/go-chi/chi/v5"
)

// CommentHandler handles video comments
type CommentHandler struct {
	base
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(deps Deps) *CommentHandler {
	return &CommentHandler{base: base{deps}}
}

// AddCommentRequest is the body of POST /videos/{videoID}/comments
type AddCommentRequest struct {
	UserID  string `json:"userId"`
	Comment string `json:"comment"`
}

// AddComment handles POST /videos/{videoID}/comments
func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req AddCommentRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID, err := actingUser(r, req.UserID)
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}

	res, err := h.CommandBus.Send(r.Context(), commands.AddCommentCommand{
		VideoID: chi.URLParam(r, "videoID"),
		UserID:  userID,
		Comment: req.Comment,
	})
	h.respondMutation(w, r, res, err)
}

// VideoComments handles GET /videos/{videoID}/comments?cursor=&limit=
func (h *CommentHandler) VideoComments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, queries.ListCommentsQuery{VideoID: chi.URLParam(r, "videoID")})
}

// UserComments handles GET /users/{userID}/comments?cursor=&limit=
func (h *CommentHandler) UserComments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, queries.ListCommentsQuery{UserID: chi.URLParam(r, "userID")})
}

// list pages newest first; the cursor is the id of the last comment seen
func (h *CommentHandler) list(w http.ResponseWriter, r *http.Request, q queries.ListCommentsQuery) {
	page, err := common.ExtractPageParams(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	q.Before = page.Cursor
	q.Limit = page.Limit

	res, err := h.QueryBus.Ask(r.Context(), q)
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}
	comments := res.([]queries.CommentView)

	next := ""
	if page.Limit > 0 && len(comments) == page.Limit {
		next = comments[len(comments)-1].CommentID.String()
	}
	h.respondList(w, r, comments, len(comments), next)
}
