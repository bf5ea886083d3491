package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableQuery struct {
	Last   int    `query:"last" default:"0" validate:"gte=0,lte=10"`
	Format string `query:"format" default:"json" validate:"oneof=json csv"`
}

func serve(t *testing.T, target string, h echo.HandlerFunc) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(nil)
	e.GET("/t", h)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestReadAndValidateRequest(t *testing.T) {
	var got tableQuery
	handler := func(c echo.Context) error {
		got = tableQuery{}
		if err := ReadAndValidateRequest(c, &got); err != nil {
			return err
		}
		return SuccessResponse(c, got)
	}

	rec, env := serve(t, "/t", handler)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "json", got.Format, "default filled")

	rec, env = serve(t, "/t?format=xml&last=11", handler)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, env.Status)

	var body AppError
	raw, _ := json.Marshal(env.Data)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "ERR_VALIDATION", body.Code)
	require.Len(t, body.Details, 2)
	assert.Equal(t, "last", body.Details[0].Field)
	assert.Equal(t, "ERR_LTE", body.Details[0].Code)
	assert.Equal(t, "10", body.Details[0].Limit)
	assert.Equal(t, "format", body.Details[1].Field)
	assert.Equal(t, []string{"json", "csv"}, body.Details[1].Options)

	rec, _ = serve(t, "/t?last=abc", handler)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorHandlerHidesCauses(t *testing.T) {
	rec, env := serve(t, "/t", func(echo.Context) error {
		return errors.New("dial tcp 10.0.0.1:9000: refused")
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusInternalServerError, env.Status)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")

	rec, _ = serve(t, "/t", func(echo.Context) error {
		return NotFoundErrorf("run %s not found", "r1")
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "run r1 not found")

	rec, _ = serve(t, "/t", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusMethodNotAllowed)
	})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
