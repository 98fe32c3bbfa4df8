package handlers

import (
	"net/http"

	"killrvideo/application/commands"
	"killrvideo/application/queries"
	"killrvideo/pkg/common"

	"github.com/go-chi/chi/v5"
)

// PlaybackHandler handles playback statistics
type PlaybackHandler struct {
	base
}

// NewPlaybackHandler creates a new playback handler
func NewPlaybackHandler(deps Deps) *PlaybackHandler {
	return &PlaybackHandler{base: base{deps}}
}

// PlaybackEventRequest is the body of POST /videos/{videoID}/playback
type PlaybackEventRequest struct {
	UserID      string `json:"userId"`
	Event       string `json:"event"`
	VideoOffset int64  `json:"videoOffset"`
}

// RecordEvent handles POST /videos/{videoID}/playback
func (h *PlaybackHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req PlaybackEventRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID, err := actingUser(r, req.UserID)
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}

	res, err := h.CommandBus.Send(r.Context(), commands.RecordPlaybackEventCommand{
		VideoID:     chi.URLParam(r, "videoID"),
		UserID:      userID,
		Event:       req.Event,
		VideoOffset: req.VideoOffset,
	})
	h.respondMutation(w, r, res, err)
}

// History handles GET /videos/{videoID}/playback?userId=&limit=
func (h *PlaybackHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}
	limit, err := common.QueryInt(r, "limit")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	res, err := h.QueryBus.Ask(r.Context(), queries.PlaybackHistoryQuery{
		VideoID: chi.URLParam(r, "videoID"),
		UserID:  userID,
		Limit:   limit,
	})
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}
	events := res.([]queries.PlaybackEventView)
	h.respondList(w, r, events, len(events), "")
}
