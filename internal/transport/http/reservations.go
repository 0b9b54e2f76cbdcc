package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hazeclub/drops-api/internal/app"
	"github.com/hazeclub/drops-api/internal/domain"
	"github.com/hazeclub/drops-api/internal/flags"
)

const idempotencyHeader = "Idempotency-Key"

// InventoryReserver is the minimal interface needed to place a reservation.
type InventoryReserver interface {
	Reserve(ctx context.Context, snap flags.Snapshot, in app.ReserveInput) (domain.Reservation, error)
}

// ReservationService is the minimal interface needed for operations on an
// existing reservation.
type ReservationService interface {
	Confirm(ctx context.Context, snap flags.Snapshot, in app.ConfirmInput) (app.ConfirmResult, error)
	Release(ctx context.Context, in app.ReleaseInput) error
	GetReservation(ctx context.Context, reservationID, userID string) (domain.Reservation, error)
}

// HandleCreateReservation returns an HTTP handler for POST /reservations.
func HandleCreateReservation(svc InventoryReserver, flagSrc flags.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		var req createReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.Reserve(r.Context(), flagSrc.Current(), app.ReserveInput{
			DropLineID: req.DropLineID,
			UserID:     id.UserID,
			VIP:        id.VIP,
			Quantity:   req.Quantity,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(reservationResponse(res))
	}
}

// HandleReservation returns an HTTP handler for /reservations/{id} and
// /reservations/{id}/confirm.
func HandleReservation(svc ReservationService, flagSrc flags.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resID, confirm, ok := parseReservationPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		if confirm {
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			key := r.Header.Get(idempotencyHeader)
			if key == "" {
				writeError(w, http.StatusBadRequest, codeIdempotencyRequired, domain.ErrIdempotencyKeyRequired.Error())
				return
			}

			res, err := svc.Confirm(r.Context(), flagSrc.Current(), app.ConfirmInput{
				ReservationID:  resID,
				UserID:         id.UserID,
				IdempotencyKey: key,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			if res.Created {
				w.WriteHeader(http.StatusCreated)
			} else {
				w.WriteHeader(http.StatusOK)
			}
			_ = json.NewEncoder(w).Encode(orderResponse(res.Order))
			return
		}

		switch r.Method {
		case http.MethodGet:
			res, err := svc.GetReservation(r.Context(), resID, id.UserID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(reservationResponse(res))
		case http.MethodDelete:
			err := svc.Release(r.Context(), app.ReleaseInput{
				ReservationID: resID,
				UserID:        id.UserID,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func parseReservationPath(path string) (id string, confirm bool, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch len(parts) {
	case 2:
		if parts[0] != "reservations" || parts[1] == "" {
			return "", false, false
		}
		return parts[1], false, true
	case 3:
		if parts[0] != "reservations" || parts[1] == "" || parts[2] != "confirm" {
			return "", false, false
		}
		return parts[1], true, true
	default:
		return "", false, false
	}
}

type createReservationRequest struct {
	DropLineID string `json:"drop_line_id"`
	Quantity   int    `json:"quantity"`
}

func reservationResponse(res domain.Reservation) reservationBody {
	return reservationBody{
		ID:             res.ID,
		DropID:         res.DropID,
		DropLineID:     res.DropLineID,
		Quantity:       res.Quantity,
		Status:         string(res.Status),
		UnitPriceCents: res.UnitPriceCents,
		ExpiresAt:      res.ExpiresAt,
	}
}

type reservationBody struct {
	ID             string    `json:"id"`
	DropID         string    `json:"drop_id"`
	DropLineID     string    `json:"drop_line_id"`
	Quantity       int       `json:"quantity"`
	Status         string    `json:"status"`
	UnitPriceCents int       `json:"unit_price_cents"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func orderResponse(order domain.Order) orderBody {
	return orderBody{
		ID:             order.ID,
		ReservationID:  order.ReservationID,
		DropID:         order.DropID,
		DropLineID:     order.DropLineID,
		Quantity:       order.Quantity,
		UnitPriceCents: order.UnitPriceCents,
		TotalCents:     order.TotalCents,
		CreatedAt:      order.CreatedAt,
	}
}

type orderBody struct {
	ID             string    `json:"id"`
	ReservationID  string    `json:"reservation_id"`
	DropID         string    `json:"drop_id"`
	DropLineID     string    `json:"drop_line_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
	CreatedAt      time.Time `json:"created_at"`
}
