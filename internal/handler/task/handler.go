package task

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planextra/backend/internal/middleware"
	taskModel "github.com/planextra/backend/internal/model/task"
	taskService "github.com/planextra/backend/internal/service/task"
	"github.com/planextra/backend/internal/store"
	"github.com/planextra/backend/pkg/utils"
)

// Handler exposes task and comment routes. All routes require an
// authenticated user.
type Handler struct {
	taskSvc *taskService.Service
}

// New creates the task handler.
func New(taskSvc *taskService.Service) *Handler {
	return &Handler{taskSvc: taskSvc}
}

// RegisterRoutes registers task routes on an authenticated router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/workspaces/{workspaceID}/tasks", h.handleList)
	r.Post("/workspaces/{workspaceID}/tasks", h.handleCreate)
	r.Put("/tasks/{taskID}", h.handleUpdate)
	r.Delete("/tasks/{taskID}", h.handleDelete)
	r.Get("/tasks/{taskID}/comments", h.handleListComments)
	r.Post("/tasks/{taskID}/comments", h.handleCreateComment)
}

type taskPayload struct {
	Text     string             `json:"text"`
	Category taskModel.Category `json:"category"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	tasks, err := h.taskSvc.List(r.Context(), user.ID, chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, tasks)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.taskSvc.Create(r.Context(), user.ID, chi.URLParam(r, "workspaceID"), payload.Text, payload.Category)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.taskSvc.Update(r.Context(), user.ID, chi.URLParam(r, "taskID"), payload.Text, payload.Category)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	if err := h.taskSvc.Delete(r.Context(), user.ID, chi.URLParam(r, "taskID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	comments, err := h.taskSvc.Comments(r.Context(), user.ID, chi.URLParam(r, "taskID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, comments)
}

func (h *Handler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comment, err := h.taskSvc.Comment(r.Context(), user.ID, chi.URLParam(r, "taskID"), payload.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, comment)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, taskService.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, taskService.ErrTextRequired),
		errors.Is(err, taskService.ErrTextTooLong),
		errors.Is(err, taskService.ErrInvalidCategory):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
