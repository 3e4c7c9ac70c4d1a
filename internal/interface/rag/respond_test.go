package rag

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/saintwyss/rag-corp-sub003/pkg/errors"
)

func TestWriteJSONEncodesBodyAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, testLogger(), 201, map[string]string{"ok": "yes"})
	require.Equal(t, 201, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "yes", body["ok"])
}

func TestWriteJSONNilBodyWritesNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, testLogger(), 204, nil)
	require.Equal(t, 204, rec.Code)
	require.Empty(t, rec.Body.Bytes())
}

func TestWriteErrorMapsDomainErrorToStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, testLogger(), apperrors.Wrap(apperrors.CodeForbidden, "nope", nil))
	require.Equal(t, 403, rec.Code)

	var body map[string]map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "forbidden", body["error"]["code"])
	require.Equal(t, "nope", body["error"]["message"])
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a","bogus":1}`))
	var dst struct {
		Name string `json:"name"`
	}
	err := decodeJSON(req, &dst)
	require.Error(t, err)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
