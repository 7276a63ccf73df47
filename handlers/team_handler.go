package handlers

import (
	"net/http"

	"github.com/Dosada05/field-control/models"
	"github.com/Dosada05/field-control/services"
)

type TeamHandler struct {
	teams services.TeamService
}

func NewTeamHandler(teams services.TeamService) *TeamHandler {
	return &TeamHandler{teams: teams}
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var team models.Team
	if err := readJSON(w, r, &team); err != nil {
		badRequestResponse(w, err)
		return
	}
	if err := h.teams.Create(r.Context(), &team); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	team, err := h.teams.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var team models.Team
	if err := readJSON(w, r, &team); err != nil {
		badRequestResponse(w, err)
		return
	}
	team.ID = id
	if err := h.teams.Update(r.Context(), &team); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	if err := h.teams.Delete(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
