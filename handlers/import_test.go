package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-importer/models"
	"catalog-importer/services"
	"catalog-importer/storage"
	"catalog-importer/utils"
)

func newTestRouter(t *testing.T, seedHome bool) (*mux.Router, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	if seedHome {
		_, _, err := services.EnsureHome(context.Background(), store, "Home")
		require.NoError(t, err)
	}
	logger := utils.Discard()
	c := NewImportController(services.NewImporter(store, logger, "Products"), services.NewReporter(10), logger)
	r := mux.NewRouter()
	c.Register(r)
	return r, store
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("csv_file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, importPath, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) importResponse {
	t.Helper()
	var resp importResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

const sampleCSV = "product_category,product,price\n" +
	"Racks,Rack A,19.99\n" +
	"Racks,Rack B,25.00\n" +
	"Shelves,Shelf A,bad\n"

func TestImportEndpointPartialSuccess(t *testing.T) {
	r, store := newTestRouter(t, true)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "products.csv", sampleCSV, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "Successfully imported 2 products in 1 new categories", resp.Success)
	assert.Contains(t, resp.Warning, "Row 4: invalid price 'bad'")
	require.NotNil(t, resp.Result)
	assert.Equal(t, 2, resp.Result.ProductsCreated)
	require.Len(t, resp.Result.Errors, 1)
	assert.Equal(t, 4, resp.Result.Errors[0].Row)
	assert.Len(t, store.Pages(), 5)
}

func TestImportEndpointDryRun(t *testing.T) {
	r, store := newTestRouter(t, true)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "products.csv", sampleCSV, map[string]string{"dry_run": "true"}))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Result.DryRun)
	assert.Equal(t, 1, resp.Result.CategoriesCreated)
	assert.Len(t, store.Pages(), 1)
}

func TestImportEndpointFatalErrors(t *testing.T) {
	tests := []struct {
		name     string
		seedHome bool
		req      func(t *testing.T) *http.Request
		want     int
	}{
		{
			name:     "missing file",
			seedHome: true,
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "", "", nil) },
			want:     http.StatusBadRequest,
		},
		{
			name:     "missing columns",
			seedHome: true,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "products.csv", "category,product\nRacks,Rack A\n", nil)
			},
			want: http.StatusUnprocessableEntity,
		},
		{
			name:     "bad dry_run flag",
			seedHome: true,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "products.csv", sampleCSV, map[string]string{"dry_run": "maybe"})
			},
			want: http.StatusBadRequest,
		},
		{
			name:     "no home page",
			seedHome: false,
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "products.csv", sampleCSV, nil) },
			want:     http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store := newTestRouter(t, tt.seedHome)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, tt.req(t))

			assert.Equal(t, tt.want, rec.Code)
			resp := decode(t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.Nil(t, resp.Result)
			for _, p := range store.Pages() {
				assert.NotEqual(t, models.KindCategory, p.Kind)
			}
		})
	}
}

func TestImportEndpointRejectsGet(t *testing.T) {
	r, _ := newTestRouter(t, true)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, importPath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestImportEndpointAcceptsStrayQuotes(t *testing.T) {
	r, store := newTestRouter(t, true)
	body := "product_category,product,price\n" +
		"Racks,Rack 12\" Wide,25.00\n" +
		"Shelves,Shelf A,10\n"

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "products.csv", body, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Empty(t, resp.Warning)
	assert.Equal(t, 2, resp.Result.ProductsCreated)

	var titles []string
	for _, p := range store.Pages() {
		if p.Kind == models.KindProduct {
			titles = append(titles, p.Title)
		}
	}
	assert.Equal(t, []string{"Rack 12\" Wide", "Shelf A"}, titles)
}

func TestImportStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, importStatus(fmt.Errorf("%w: listing root", models.ErrPageNotLive)))
	assert.Equal(t, http.StatusConflict, importStatus(models.ErrNoHomePage))
	assert.Equal(t, http.StatusInternalServerError, importStatus(errors.New("connection reset")))
}
