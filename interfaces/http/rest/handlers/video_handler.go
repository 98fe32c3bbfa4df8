package handlers

import (
	"net/http"

	"killrvideo/application/commands"
	"killrvideo/application/queries"
	"killrvideo/pkg/common"

	"github.com/go-chi/chi/v5"
)

// VideoHandler handles video catalog requests
type VideoHandler struct {
	base
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(deps Deps) *VideoHandler {
	return &VideoHandler{base: base{deps}}
}

// AddVideo handles POST /videos. Posting an existing videoId replaces the
// video in every view.
func (h *VideoHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	var cmd commands.AddVideoCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	userID, err := actingUser(r, cmd.UserID)
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}
	cmd.UserID = userID

	res, err := h.CommandBus.Send(r.Context(), cmd)
	h.respondMutation(w, r, res, err)
}

// GetVideo handles GET /videos/{videoID}
func (h *VideoHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	res, err := h.QueryBus.Ask(r.Context(), queries.GetVideoQuery{VideoID: chi.URLParam(r, "videoID")})
	h.respondQuery(w, r, res, err)
}

// LatestVideos handles GET /videos/latest?day=&days=&limit=
func (h *VideoHandler) LatestVideos(w http.ResponseWriter, r *http.Request) {
	days, err := common.QueryInt(r, "days")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	limit, err := common.QueryInt(r, "limit")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	res, err := h.QueryBus.Ask(r.Context(), queries.LatestVideosQuery{
		Day:   r.URL.Query().Get("day"),
		Days:  days,
		Limit: limit,
	})
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}
	previews := res.([]queries.VideoPreview)
	h.respondList(w, r, previews, len(previews), "")
}

// VideosByTag handles GET /tags/{tag}/videos?limit=
func (h *VideoHandler) VideosByTag(w http.ResponseWriter, r *http.Request) {
	limit, err := common.QueryInt(r, "limit")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	res, err := h.QueryBus.Ask(r.Context(), queries.VideosByTagQuery{Tag: chi.URLParam(r, "tag"), Limit: limit})
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}
	previews := res.([]queries.VideoPreview)
	h.respondList(w, r, previews, len(previews), "")
}

// SuggestTags handles GET /tags?prefix=&limit=
func (h *VideoHandler) SuggestTags(w http.ResponseWriter, r *http.Request) {
	limit, err := common.QueryInt(r, "limit")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	res, err := h.QueryBus.Ask(r.Context(), queries.SuggestTagsQuery{Prefix: r.URL.Query().Get("prefix"), Limit: limit})
	if err != nil {
		h.ErrorHandler.Handle(w, r, err)
		return
	}
	tags := res.([]string)
	h.respondList(w, r, tags, len(tags), "")
}
