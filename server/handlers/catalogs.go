package handlers

import "net/http"

// CatalogsHandler serves the catalog indexes a campaign would use and the
// layer each was resolved from.
type CatalogsHandler struct {
	source ProviderSource
}

// NewCatalogsHandler creates a new CatalogsHandler.
func NewCatalogsHandler(source ProviderSource) *CatalogsHandler {
	return &CatalogsHandler{source: source}
}

// ServeHTTP implements http.Handler.
func (h *CatalogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Provider().Catalogs(r.Context()))
}
