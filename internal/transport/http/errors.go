package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hazeclub/drops-api/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidQuantity     = "invalid_quantity"
	codeInvalidPrice        = "invalid_price"
	codeInvalidType         = "invalid_type"
	codeInvalidSchedule     = "invalid_schedule"
	codeNameRequired        = "name_required"
	codeIdempotencyRequired = "idempotency_key_required"
	codeIdempotencyConflict = "idempotency_conflict"
	codeDropNotFound        = "drop_not_found"
	codeLineNotFound        = "line_not_found"
	codeReservationNotFound = "reservation_not_found"
	codeQueueEntryNotFound  = "queue_entry_not_found"
	codeInvalidTransition   = "invalid_transition"
	codeConflict            = "conflict"
	codeSoldOut             = "sold_out"
	codeAlreadyQueued       = "already_queued"
	codeQueueClosed         = "queue_closed"
	codeDropNotLive         = "drop_not_live"
	codeNoActiveTurn        = "no_active_turn"
	codeUnauthenticated     = "unauthenticated"
	codeForbidden           = "forbidden"
	codeReservationExpired  = "reservation_expired"
	codeReservationClosed   = "reservation_closed"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps a service error onto a status and stable error code.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
	case errors.Is(err, domain.ErrInvalidType):
		writeError(w, http.StatusBadRequest, codeInvalidType, err.Error())
	case errors.Is(err, domain.ErrInvalidSchedule):
		writeError(w, http.StatusBadRequest, codeInvalidSchedule, err.Error())
	case errors.Is(err, domain.ErrNameRequired):
		writeError(w, http.StatusBadRequest, codeNameRequired, err.Error())
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		writeError(w, http.StatusBadRequest, codeIdempotencyRequired, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, domain.ErrNoActiveTurn):
		writeError(w, http.StatusForbidden, codeNoActiveTurn, err.Error())
	case errors.Is(err, domain.ErrDropNotFound):
		writeError(w, http.StatusNotFound, codeDropNotFound, err.Error())
	case errors.Is(err, domain.ErrLineNotFound):
		writeError(w, http.StatusNotFound, codeLineNotFound, err.Error())
	case errors.Is(err, domain.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
	case errors.Is(err, domain.ErrQueueEntryNotFound):
		writeError(w, http.StatusNotFound, codeQueueEntryNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientInventory), errors.Is(err, domain.ErrSoldOut):
		writeError(w, http.StatusConflict, codeSoldOut, err.Error())
	case errors.Is(err, domain.ErrAlreadyQueued):
		writeError(w, http.StatusConflict, codeAlreadyQueued, err.Error())
	case errors.Is(err, domain.ErrDropNotQueueable):
		writeError(w, http.StatusConflict, codeQueueClosed, err.Error())
	case errors.Is(err, domain.ErrDropNotLive):
		writeError(w, http.StatusConflict, codeDropNotLive, err.Error())
	case errors.Is(err, domain.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, codeIdempotencyConflict, err.Error())
	case errors.Is(err, domain.ErrReservationConfirmed), errors.Is(err, domain.ErrReservationReleased):
		writeError(w, http.StatusConflict, codeReservationClosed, err.Error())
	case errors.Is(err, domain.ErrReservationExpired):
		writeError(w, http.StatusGone, codeReservationExpired, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
