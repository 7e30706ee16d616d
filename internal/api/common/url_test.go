package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAndValidateURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		paramValue string
		wantValue  string
		wantErrMsg string
	}{
		{name: "plain identifier", paramValue: "0b2f4ad1-node", wantValue: "0b2f4ad1-node"},
		{name: "workspace name", paramValue: "user-admin", wantValue: "user-admin"},
		{name: "encoded colon", paramValue: "Acme%3APage", wantValue: "Acme:Page"},
		{name: "encoded slash", paramValue: "a%2Fb", wantValue: "a/b"},
		{name: "encoded space only", paramValue: "%20", wantErrMsg: "name cannot be empty"},
		{name: "space in middle", paramValue: "user%20admin", wantErrMsg: "name cannot contain whitespace"},
		{name: "tab at end", paramValue: "live%09", wantErrMsg: "name cannot contain whitespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				got    string
				gotErr error
			)
			r := chi.NewRouter()
			r.Get("/workspaces/{name}", func(w http.ResponseWriter, req *http.Request) {
				got, gotErr = GetAndValidateURLParam(req, "name")
				w.WriteHeader(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workspaces/"+tt.paramValue, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			if tt.wantErrMsg != "" {
				require.Error(t, gotErr)
				assert.Equal(t, tt.wantErrMsg, gotErr.Error())
				return
			}
			require.NoError(t, gotErr)
			assert.Equal(t, tt.wantValue, got)
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	t.Parallel()

	var body struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Empty(t, body.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"live"}`))
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, "live", body.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.Error(t, DecodeJSONBody(req, &body))
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, "site exists", http.StatusConflict)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"site exists"}`, rec.Body.String())
}
