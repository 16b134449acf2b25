package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/coordcore/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32)
	assert.Empty(t, GetTraceID(ctx), "original context must remain unchanged")

	assert.NotEqual(t, traceID, GetTraceID(SetTraceID(ctx)))
}

func TestGetTraceID_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestRespondWithJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusCreated, map[string]int{"balance": 10})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"balance":10}`, w.Body.String())
}

func TestRespondWithJSON_RawSectionsUnescaped(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, map[string]json.RawMessage{
		"herramientas": json.RawMessage(`[{"nombre":"Llave <12mm> & dado"}]`),
	})

	assert.Equal(t, `{"herramientas":[{"nombre":"Llave <12mm> & dado"}]}`+"\n", w.Body.String())
}

func TestRespondWithErrorAndLog_RedactsLogs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := logger.WithLogger(SetTraceID(context.Background()), log)
	req := httptest.NewRequest(http.MethodGet, "/api/backups", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	RespondWithErrorAndLog(w, req, http.StatusInternalServerError, "Failed to list backups",
		errors.New("dial postgres://coord:s3cret@db:5432/coord"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to list backups", resp.Error)
	assert.Equal(t, GetTraceID(ctx), resp.TraceID)

	logged := buf.String()
	assert.Contains(t, logged, `"level":"ERROR"`)
	assert.Contains(t, logged, "[REDACTED_CREDENTIAL]")
	assert.NotContains(t, logged, "s3cret")
}

type amountRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"amount": 5}`, false},
		{"unknown field", `{"amount": 5, "x": 1}`, true},
		{"two objects", `{"amount": 5}{"amount": 6}`, true},
		{"not json", `amount=5`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var v amountRequest
			err := DecodeJSON(httptest.NewRecorder(), req, &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(5), v.Amount)
		})
	}
}

func TestValidationMessage(t *testing.T) {
	err := ValidateRequest(amountRequest{Amount: -1})
	require.Error(t, err)
	assert.Equal(t, "Validation error: amount: must be greater than 0", ValidationMessage(err))

	assert.NoError(t, ValidateRequest(amountRequest{Amount: 1}))
	assert.Equal(t, "Validation error", ValidationMessage(errors.New("other")))
}
