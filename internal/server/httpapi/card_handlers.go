package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/authn"
)

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrInvalidInput
	}
	return id, nil
}

func principal(r *http.Request) authn.Principal {
	p, _ := authn.PrincipalFrom(r.Context())
	return p
}

func (a *API) listCards(w http.ResponseWriter, r *http.Request) {
	list, err := a.vault.ListForAccount(r.Context(), principal(r).AccountID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCardList(list))
}

func (a *API) getDefaultCard(w http.ResponseWriter, r *http.Request) {
	c, err := a.vault.GetDefault(r.Context(), principal(r).AccountID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCardResponse(c))
}

func (a *API) createCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !a.bind(w, r, &req) {
		return
	}

	c, err := a.vault.CreateCard(r.Context(), principal(r).AccountID, req.details(), req.address())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCardResponse(c))
}

func (a *API) updateCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req cardRequest
	if !a.bind(w, r, &req) {
		return
	}

	c, err := a.vault.UpdateCard(r.Context(), principal(r).AccountID, id, req.details(), req.address())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCardResponse(c))
}

func (a *API) setDefaultCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.vault.SetDefault(r.Context(), principal(r).AccountID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.vault.DeleteCard(r.Context(), principal(r).AccountID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) adminListCards(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := a.vault.ListForAccount(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info(r.Context(), "admin listed cards", "admin_account_id", principal(r).AccountID, "account_id", id)
	writeJSON(w, http.StatusOK, newCardList(list))
}
