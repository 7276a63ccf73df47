package handlers

import (
	"net/http"

	"github.com/Dosada05/field-control/models"
	"github.com/Dosada05/field-control/services"
)

type BracketHandler struct {
	bracket services.BracketService
}

func NewBracketHandler(bracket services.BracketService) *BracketHandler {
	return &BracketHandler{bracket: bracket}
}

type generateBracketRequest struct {
	// Alliance ids in seed order, best seed first.
	Alliances []int `json:"alliances"`
}

func (h *BracketHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var request generateBracketRequest
	if err := readJSON(w, r, &request); err != nil {
		badRequestResponse(w, err)
		return
	}
	fixtures, err := h.bracket.Generate(r.Context(), request.Alliances)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fixtures)
}

func (h *BracketHandler) List(w http.ResponseWriter, r *http.Request) {
	fixtures, err := h.bracket.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fixtures)
}

func (h *BracketHandler) UpdateWinner(w http.ResponseWriter, r *http.Request) {
	var update models.FixtureUpdate
	if err := readJSON(w, r, &update); err != nil {
		badRequestResponse(w, err)
		return
	}
	fixture, err := h.bracket.UpdateWinner(r.Context(), update)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fixture)
}

func (h *BracketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.bracket.DeleteAll(r.Context()); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
