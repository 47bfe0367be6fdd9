package workspace

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planextra/backend/internal/middleware"
	"github.com/planextra/backend/internal/model/identity"
	wsService "github.com/planextra/backend/internal/service/workspace"
	"github.com/planextra/backend/internal/store"
	"github.com/planextra/backend/pkg/utils"
)

// Handler exposes workspace and membership routes. All routes require an
// authenticated user.
type Handler struct {
	wsSvc *wsService.Service
}

// New creates the workspace handler.
func New(wsSvc *wsService.Service) *Handler {
	return &Handler{wsSvc: wsSvc}
}

// RegisterRoutes registers workspace routes on an authenticated router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/workspaces", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Post("/join", h.handleJoinByCode)
		r.Get("/{workspaceID}", h.handleGet)
		r.Post("/{workspaceID}/new-invite-code", h.handleNewInviteCode)
		r.Delete("/{workspaceID}", h.handleDelete)
		r.Get("/{workspaceID}/members", h.handleListMembers)
		r.Post("/{workspaceID}/members", h.handleAddMember)
		r.Delete("/{workspaceID}/members/{userID}", h.handleRemoveMember)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var payload struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ws, err := h.wsSvc.Create(r.Context(), user.ID, payload.Name, payload.Description)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, ws)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	list, err := h.wsSvc.ListFor(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var payload struct {
		InviteCode string `json:"inviteCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ws, err := h.wsSvc.JoinByCode(r.Context(), user.ID, payload.InviteCode)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ws)
}

func (h *Handler) handleNewInviteCode(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	code, err := h.wsSvc.RegenerateInviteCode(r.Context(), user.ID, chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"inviteCode": code})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	ws, err := h.wsSvc.Get(r.Context(), user.ID, chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ws)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	if err := h.wsSvc.Delete(r.Context(), user.ID, chi.URLParam(r, "workspaceID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	members, err := h.wsSvc.Members(r.Context(), user.ID, chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, members)
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var payload struct {
		UserID string        `json:"userId"`
		Role   identity.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if payload.Role == "" {
		payload.Role = identity.RoleViewer
	}

	if err := h.wsSvc.AddMember(r.Context(), user.ID, chi.URLParam(r, "workspaceID"), payload.UserID, payload.Role); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	err := h.wsSvc.RemoveMember(r.Context(), user.ID, chi.URLParam(r, "workspaceID"), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wsService.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "workspace not found")
	case errors.Is(err, store.ErrNotAMember):
		utils.RespondError(w, http.StatusNotFound, "member not found")
	case errors.Is(err, wsService.ErrInvalidInvite):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wsService.ErrNameRequired),
		errors.Is(err, wsService.ErrInvalidRole),
		errors.Is(err, wsService.ErrOwnerRemoval),
		errors.Is(err, wsService.ErrAlreadyMember):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
