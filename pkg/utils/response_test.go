package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"barrel-backend/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.ErrOutOfBounds.WithMessage("too full"), http.StatusBadRequest, "E_OUT_OF_BOUNDS"},
		{apperr.ErrNotRecipient, http.StatusForbidden, "E_NOT_RECIPIENT"},
		{apperr.NotFound("barrel", "b1"), http.StatusNotFound, "E_NOT_FOUND"},
		{apperr.ErrDuplicateCode, http.StatusConflict, "E_DUPLICATE_CODE"},
		{apperr.ErrNotCompleted, http.StatusUnprocessableEntity, "E_NOT_COMPLETED"},
		{errors.New("connection reset"), http.StatusInternalServerError, "E_INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			assert.Equal(t, tt.status, WriteError(rec, tt.err))
			assert.Equal(t, tt.status, rec.Code)

			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error)
			assert.NotContains(t, body.Message, "connection reset")
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Code string `json:"code"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"C1"}`))
	require.NoError(t, DecodeJSON(r, &v))
	assert.Equal(t, "C1", v.Code)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"C1","extra":1}`))
	assert.ErrorIs(t, DecodeJSON(r, &v), apperr.ErrInvalidField)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.ErrorIs(t, DecodeJSON(r, &v), apperr.ErrInvalidField)
}
