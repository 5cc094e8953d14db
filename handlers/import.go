package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"catalog-importer/models"
	"catalog-importer/services"
	"catalog-importer/storage"
	"catalog-importer/utils"
)

const (
	importPath     = "/admin/products/import-csv"
	maxUploadBytes = 32 << 20
)

// ImportController serves the admin product upload endpoint. Imports run
// one at a time.
type ImportController struct {
	mu       sync.Mutex
	importer *services.Importer
	reporter *services.Reporter
	logger   *utils.Logger
}

func NewImportController(importer *services.Importer, reporter *services.Reporter, logger *utils.Logger) *ImportController {
	return &ImportController{importer: importer, reporter: reporter, logger: logger}
}

func (c *ImportController) Register(r *mux.Router) {
	r.HandleFunc(importPath, c.Import).Methods(http.MethodPost)
}

type rowErrorView struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type resultView struct {
	DryRun            bool           `json:"dry_run"`
	RootCreated       bool           `json:"root_created"`
	CategoriesCreated int            `json:"categories_created"`
	ProductsCreated   int            `json:"products_created"`
	ProductsUpdated   int            `json:"products_updated"`
	Errors            []rowErrorView `json:"errors"`
}

type importResponse struct {
	Success string      `json:"success,omitempty"`
	Warning string      `json:"warning,omitempty"`
	Error   string      `json:"error,omitempty"`
	Result  *resultView `json:"result,omitempty"`
}

// Import reads the multipart "csv_file" upload (CSV or XLSX) and runs it
// through the importer. "dry_run" accepts any strconv.ParseBool value.
func (c *ImportController) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, importResponse{Error: "Invalid upload: " + err.Error()})
		return
	}

	file, header, err := r.FormFile("csv_file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, importResponse{Error: "csv_file is required"})
		return
	}
	defer file.Close()

	dryRun := false
	if v := r.FormValue("dry_run"); v != "" {
		if dryRun, err = strconv.ParseBool(v); err != nil {
			writeJSON(w, http.StatusBadRequest, importResponse{Error: "dry_run must be a boolean"})
			return
		}
	}

	rows, err := storage.ReadRows(file, header.Filename)
	if err != nil {
		c.logger.Warn("[http] Rejected upload %q: %v", header.Filename, err)
		writeJSON(w, readStatus(err), importResponse{Error: "Error reading CSV file: " + err.Error()})
		return
	}

	c.mu.Lock()
	res, err := c.importer.Import(r.Context(), rows, dryRun)
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("[http] Import of %q failed: %v", header.Filename, err)
		writeJSON(w, importStatus(err), importResponse{Error: err.Error()})
		return
	}

	success, warning := c.reporter.Messages(res)
	writeJSON(w, http.StatusOK, importResponse{
		Success: success,
		Warning: warning,
		Result:  newResultView(res),
	})
}

func newResultView(res *models.Result) *resultView {
	view := &resultView{
		DryRun:            res.DryRun,
		RootCreated:       res.RootCreated,
		CategoriesCreated: res.CategoriesCreated,
		ProductsCreated:   res.ProductsCreated,
		ProductsUpdated:   res.ProductsUpdated,
		Errors:            make([]rowErrorView, 0, len(res.Errors)),
	}
	for _, e := range res.Errors {
		view.Errors = append(view.Errors, rowErrorView{Row: e.Row, Reason: e.Reason})
	}
	return view
}

// readStatus maps a source error to a status; missing columns are a
// well-formed request with unusable content.
func readStatus(err error) int {
	var mcErr *models.MissingColumnsError
	if errors.As(err, &mcErr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

// importStatus maps a fatal import error to a status. Tree precondition
// failures are conflicts with the site's current state; anything else is
// a store failure.
func importStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNoHomePage),
		errors.Is(err, models.ErrPageNotLive),
		errors.Is(err, models.ErrSingletonExists),
		errors.Is(err, models.ErrInvalidParent):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
