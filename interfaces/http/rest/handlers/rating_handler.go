package handlers

import (
	"net/http"

	"killrvideo/application/commands"
	"killrvideo/application/queries"
	"killrvideo/pkg/auth"

	"github.com/go-chi/chi/v5"
)

// RatingHandler handles video ratings
type RatingHandler struct {
	base
}

// NewRatingHandler creates a new rating handler
func NewRatingHandler(deps Deps) *RatingHandler {
	return &RatingHandler{base: base{deps}}
}

// RateVideoRequest is the body of PUT /videos/{videoID}/rating
type RateVideoRequest struct {
	UserID       string `json:"userId"`
	Rating       int    `json:"rating"`
	SubmissionID string `json:"submissionId"`
}

// RateVideo handles PUT /videos/{videoID}/rating. The Idempotency-Key header
// is used as the submission id when the body carries none.
func (h *RatingHandler) RateVideo(w http.ResponseWriter, r *http.Request) {
	var req RateVideoRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID, err := actingUser(r, req.UserID)
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}
	if req.SubmissionID == "" {
		req.SubmissionID = r.Header.Get("Idempotency-Key")
	}

	res, err := h.CommandBus.Send(r.Context(), commands.RateVideoCommand{
		VideoID:      chi.URLParam(r, "videoID"),
		UserID:       userID,
		Rating:       req.Rating,
		SubmissionID: req.SubmissionID,
	})
	h.respondMutation(w, r, res, err)
}

// GetRating handles GET /videos/{videoID}/rating?userId=. An authenticated
// caller without userId also gets their own rating.
func (h *RatingHandler) GetRating(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if user, ok := auth.GetUserFromContext(r.Context()); ok && userID == "" {
		userID = user.UserID.String()
	}
	res, err := h.QueryBus.Ask(r.Context(), queries.GetRatingQuery{
		VideoID: chi.URLParam(r, "videoID"),
		UserID:  userID,
	})
	h.respondQuery(w, r, res, err)
}
