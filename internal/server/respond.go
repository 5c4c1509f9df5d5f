package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/logging"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindInvalidInput, apperr.KindContextBudgetExceeded:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConversationBusy:
		return http.StatusConflict
	case apperr.KindRetrievalUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindGenerationFailed:
		return http.StatusBadGateway
	case apperr.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a success envelope around data.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError translates err into its stable code and message. The cause is
// logged, never sent.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("kind", kind.String()), slog.Any("error", err))
	} else {
		log.Info("request rejected", slog.String("kind", kind.String()), slog.Any("error", err))
	}
	writeErrorBody(w, status, apperr.Code(err), apperr.Message(err))
}

// writeErrorBody writes an error envelope with an explicit code.
func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &errorBody{Code: code, Message: message}})
}

// decodeJSON decodes the request body into v, rejecting unknown fields so
// typos surface as INVALID_INPUT.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Newf(apperr.KindInvalidInput, "server.decode", "request body exceeds %d bytes", maxErr.Limit)
		}
		return apperr.New(apperr.KindInvalidInput, "server.decode", err)
	}
	return nil
}
