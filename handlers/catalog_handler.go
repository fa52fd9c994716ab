package handlers

import (
	"net/http"

	"studioAPI/internal/templates"
	"studioAPI/internal/types/assettype"
)

type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

// GetAssetTypes lists every output format with its pixel size.
func (h *CatalogHandler) GetAssetTypes(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, assettype.Catalogue())
}

func (h *CatalogHandler) GetTemplates(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, templates.All())
}
