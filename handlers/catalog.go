package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"catalog-importer/models"
	"catalog-importer/services"
	"catalog-importer/utils"
)

const catalogPath = "/products.json"

// CatalogController serves the public product feed.
type CatalogController struct {
	catalog *services.CatalogService
	logger  *utils.Logger
}

func NewCatalogController(catalog *services.CatalogService, logger *utils.Logger) *CatalogController {
	return &CatalogController{catalog: catalog, logger: logger}
}

func (c *CatalogController) Register(r *mux.Router) {
	r.HandleFunc(catalogPath, c.List).Methods(http.MethodGet)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *CatalogController) List(w http.ResponseWriter, r *http.Request) {
	catalog, err := c.catalog.Load(r.Context())
	if errors.Is(err, models.ErrPageNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.logger.Error("[http] Catalog load failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "catalog unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}
