package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"basketvault/native/bank"
	"basketvault/native/basket"
)

var errBadRequest = errors.New("bad request")

type problem struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeProblem(w http.ResponseWriter, status int, message, kind string) {
	writeJSON(w, status, problem{Error: message, Kind: kind})
}

// writeError maps a vault error onto a status code.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadRequest) {
		writeProblem(w, http.StatusBadRequest, err.Error(), "request")
		return
	}
	kind := basket.KindOf(err)
	writeProblem(w, statusFor(err, kind), err.Error(), string(kind))
}

func statusFor(err error, kind basket.Kind) int {
	if errors.Is(err, basket.ErrBasketNotFound) || errors.Is(err, bank.ErrAccountNotFound) {
		return http.StatusNotFound
	}
	switch kind {
	case basket.KindConfiguration, basket.KindDeposit, basket.KindRedeem:
		return http.StatusBadRequest
	case basket.KindAuthorization:
		return http.StatusForbidden
	case basket.KindResource:
		return http.StatusConflict
	case basket.KindPaused:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
