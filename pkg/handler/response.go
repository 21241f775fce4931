package handler

import (
	"context"
	"net/http"
)

// Status is the status object of the failure response
type Status struct {
	Succeed   int    `json:"succeed"`
	ErrorCode string `json:"error_code"`
	ErrorDesc string `json:"error_desc"`
}

// Body is the failure response
type Body struct {
	Status Status `json:"status"`
}

// Response is the fixed failure response. It never depends on the triggering
// error.
var Response = Body{
	Status: Status{
		Succeed:   0,
		ErrorCode: "500",
		ErrorDesc: "The Server Has Gone Away~",
	},
}

// ResponseJSON is the encoded form of Response
var ResponseJSON = []byte(`{"status":{"succeed":0,"error_code":"500","error_desc":"The Server Has Gone Away~"}}`)

// ReturnMsg writes the failure response to the runtime output and ends the
// unit with ExitFailure. HTTP outputs also get a JSON content type and status
// 500.
func (h *Handler) ReturnMsg() {
	out := h.rt.Output()
	if w, ok := out.(http.ResponseWriter); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
	}

	if _, err := out.Write(ResponseJSON); err != nil {
		h.events.LogWriteFailed(context.Background(), "response", err)
	} else {
		h.metrics.RecordResponse()
	}

	h.rt.Exit(ExitFailure)
}
