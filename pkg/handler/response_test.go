package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buffon/errguard/pkg/host"
	"github.com/buffon/errguard/pkg/metrics"
)

func TestResponseJSONMatchesResponse(t *testing.T) {
	data, err := json.Marshal(Response)
	require.NoError(t, err)
	assert.Equal(t, string(ResponseJSON), string(data))
	assert.Equal(t, `{"status":{"succeed":0,"error_code":"500","error_desc":"The Server Has Gone Away~"}}`, string(ResponseJSON))
}

func TestReturnMsgTerminates(t *testing.T) {
	f := cliFixture(t)

	reached := false
	code := f.rt.Run(context.Background(), func(context.Context) {
		f.h.ReturnMsg()
		reached = true
	})

	assert.Equal(t, ExitFailure, code)
	assert.False(t, reached)
	assert.Equal(t, string(ResponseJSON), f.out.String())
	assert.Equal(t, int64(1), f.rec.GetSnapshot()["responses"])
}

func TestReturnMsgHTTP(t *testing.T) {
	w := httptest.NewRecorder()
	rt := host.New(host.Options{Output: w})
	h := New(rt, Config{LogRoot: t.TempDir()}, WithMetrics(metrics.NewRecorder()))

	code := rt.Run(context.Background(), func(context.Context) {
		h.ReturnMsg()
	})

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, string(ResponseJSON), w.Body.String())
}
