package handlers

import (
	"net/http"

	"killrvideo/application/commands"
	"killrvideo/application/queries"
	"killrvideo/pkg/common"

	"github.com/go-chi/chi/v5"
)

// UploadHandler handles uploaded videos and their encoding jobs
type UploadHandler struct {
	base
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(deps Deps) *UploadHandler {
	return &UploadHandler{base: base{deps}}
}

// RegisterUpload handles POST /uploads
func (h *UploadHandler) RegisterUpload(w http.ResponseWriter, r *http.Request) {
	var cmd commands.RegisterUploadCommand
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

// GetUpload handles GET /uploads/{videoID} and GET /uploads?jobId=
func (h *UploadHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	res, err := h.QueryBus.Ask(r.Context(), queries.GetUploadQuery{
		VideoID: chi.URLParam(r, "videoID"),
		JobID:   r.URL.Query().Get("jobId"),
	})
	h.respondQuery(w, r, res, err)
}

// JobTransitionRequest is the body of POST /jobs/{jobID}/transitions
type JobTransitionRequest struct {
	ETag     string `json:"etag"`
	OldState string `json:"oldState"`
	NewState string `json:"newState"`
}

// AdvanceJob handles POST /jobs/{jobID}/transitions
func (h *UploadHandler) AdvanceJob(w http.ResponseWriter, r *http.Request) {
	var req JobTransitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.CommandBus.Send(r.Context(), commands.AdvanceUploadJobStateCommand{
		JobID:    chi.URLParam(r, "jobID"),
		ETag:     req.ETag,
		OldState: req.OldState,
		NewState: req.NewState,
	})
	h.respondMutation(w, r, res, err)
}

// JobStatus handles GET /jobs/{jobID}?limit=
func (h *UploadHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	limit, err := common.QueryInt(r, "limit")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	res, err := h.QueryBus.Ask(r.Context(), queries.JobStatusQuery{JobID: chi.URLParam(r, "jobID"), Limit: limit})
	h.respondQuery(w, r, res, err)
}
