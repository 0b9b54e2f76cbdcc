package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hazeclub/drops-api/internal/app"
	"github.com/hazeclub/drops-api/internal/domain"
)

// AdminDropService is the minimal interface needed for admin drop and line
// endpoints.
type AdminDropService interface {
	CreateDrop(ctx context.Context, in app.CreateDropInput) (domain.Drop, error)
	GetDrop(ctx context.Context, id string) (domain.Drop, error)
	ListDrops(ctx context.Context) ([]domain.Drop, error)
	AddDropLine(ctx context.Context, in app.AddDropLineInput) (domain.DropLine, error)
	ListLines(ctx context.Context, dropID string) ([]domain.DropLine, error)
}

// DropLifecycle is the minimal interface needed for lifecycle transitions.
type DropLifecycle interface {
	Publish(ctx context.Context, dropID string) (domain.Drop, error)
	Unpublish(ctx context.Context, dropID string) (domain.Drop, error)
	EndNow(ctx context.Context, dropID string) (domain.Drop, error)
}

// HandleAdminDrops returns an HTTP handler for admin drop creation/listing.
func HandleAdminDrops(svc AdminDropService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			drops, err := svc.ListDrops(r.Context())
			if err != nil {
				writeDomainError(w, err)
				return
			}
			resp := make([]adminDropBody, 0, len(drops))
			for _, drop := range drops {
				resp = append(resp, adminDropResponse(drop))
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		case http.MethodPost:
			var req createDropRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			startTime, err := time.Parse(time.RFC3339, req.StartTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidSchedule, "invalid start_time format")
				return
			}
			var endTime *time.Time
			if req.EndTime != "" {
				parsed, err := time.Parse(time.RFC3339, req.EndTime)
				if err != nil {
					writeError(w, http.StatusBadRequest, codeInvalidSchedule, "invalid end_time format")
					return
				}
				endTime = &parsed
			}

			drop, err := svc.CreateDrop(r.Context(), app.CreateDropInput{
				Name:                req.Name,
				Type:                domain.DropType(req.Type),
				StartTime:           startTime,
				EndTime:             endTime,
				MaxQuantity:         req.MaxQuantity,
				VIPEarlyAccessHours: req.VIPEarlyAccessHours,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(adminDropResponse(drop))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminDrop returns an HTTP handler for /admin/drops/{id} subpaths:
// the drop itself, its lines, and the publish/unpublish/end transitions.
func HandleAdminDrop(svc AdminDropService, lifecycle DropLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dropID, action, ok := parseAdminDropPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		if _, ok := requireAdmin(w, r); !ok {
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			drop, err := svc.GetDrop(r.Context(), dropID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(adminDropResponse(drop))
		case "lines":
			handleAdminDropLines(w, r, svc, dropID)
		case "publish", "unpublish", "end":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			var drop domain.Drop
			var err error
			switch action {
			case "publish":
				drop, err = lifecycle.Publish(r.Context(), dropID)
			case "unpublish":
				drop, err = lifecycle.Unpublish(r.Context(), dropID)
			case "end":
				drop, err = lifecycle.EndNow(r.Context(), dropID)
			}
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(adminDropResponse(drop))
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleAdminDropLines(w http.ResponseWriter, r *http.Request, svc AdminDropService, dropID string) {
	switch r.Method {
	case http.MethodGet:
		lines, err := svc.ListLines(r.Context(), dropID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]adminLineBody, 0, len(lines))
		for _, line := range lines {
			resp = append(resp, adminLineResponse(line))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	case http.MethodPost:
		var req createLineRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		line, err := svc.AddDropLine(r.Context(), app.AddDropLineInput{
			DropID:             dropID,
			Name:               req.Name,
			QuantityAvailable:  req.QuantityAvailable,
			UnitBasePriceCents: req.UnitBasePriceCents,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(adminLineResponse(line))
	default:
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	}
}

func parseAdminDropPath(path string) (dropID, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || len(parts) > 4 {
		return "", "", false
	}
	if parts[0] != "admin" || parts[1] != "drops" || parts[2] == "" {
		return "", "", false
	}
	if len(parts) == 3 {
		return parts[2], "", true
	}
	if parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

type createDropRequest struct {
	Name                string `json:"name"`
	Type                string `json:"type"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time,omitempty"`
	MaxQuantity         *int   `json:"max_quantity,omitempty"`
	VIPEarlyAccessHours int    `json:"vip_early_access_hours,omitempty"`
}

type createLineRequest struct {
	Name               string `json:"name"`
	QuantityAvailable  int    `json:"quantity_available"`
	UnitBasePriceCents int    `json:"unit_base_price_cents"`
}

func adminDropResponse(drop domain.Drop) adminDropBody {
	return adminDropBody{
		ID:                  drop.ID,
		Name:                drop.Name,
		Type:                string(drop.Type),
		Status:              string(drop.Status),
		StartTime:           drop.StartTime,
		EndTime:             drop.EndTime,
		MaxQuantity:         drop.MaxQuantity,
		VIPEarlyAccessHours: drop.VIPEarlyAccessHours,
		CreatedAt:           drop.CreatedAt,
	}
}

type adminDropBody struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Type                string     `json:"type"`
	Status              string     `json:"status"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty"`
	MaxQuantity         *int       `json:"max_quantity,omitempty"`
	VIPEarlyAccessHours int        `json:"vip_early_access_hours"`
	CreatedAt           time.Time  `json:"created_at"`
}

func adminLineResponse(line domain.DropLine) adminLineBody {
	return adminLineBody{
		ID:                 line.ID,
		DropID:             line.DropID,
		Name:               line.Name,
		QuantityAvailable:  line.QuantityAvailable,
		QuantitySold:       line.QuantitySold,
		UnitBasePriceCents: line.UnitBasePriceCents,
		CreatedAt:          line.CreatedAt,
	}
}

type adminLineBody struct {
	ID                 string    `json:"id"`
	DropID             string    `json:"drop_id"`
	Name               string    `json:"name"`
	QuantityAvailable  int       `json:"quantity_available"`
	QuantitySold       int       `json:"quantity_sold"`
	UnitBasePriceCents int       `json:"unit_base_price_cents"`
	CreatedAt          time.Time `json:"created_at"`
}
