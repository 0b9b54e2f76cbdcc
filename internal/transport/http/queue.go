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

// QueueManager is the minimal interface needed for queue endpoints.
type QueueManager interface {
	Join(ctx context.Context, in app.JoinInput) (app.JoinResult, error)
	Status(ctx context.Context, dropID, userID string) (domain.QueueEntry, error)
	Leave(ctx context.Context, dropID, userID string) error
}

// HandleQueue returns an HTTP handler for /drops/{id}/queue. POST joins,
// GET reads the caller's entry, DELETE abandons it. All three require an
// authenticated caller.
func HandleQueue(svc QueueManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dropID, ok := parseQueuePath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodPost:
			res, err := svc.Join(r.Context(), app.JoinInput{
				DropID: dropID,
				UserID: id.UserID,
				VIP:    id.VIP,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(queueEntryResponse(res.Entry))
		case http.MethodGet:
			entry, err := svc.Status(r.Context(), dropID, id.UserID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(queueEntryResponse(entry))
		case http.MethodDelete:
			if err := svc.Leave(r.Context(), dropID, id.UserID); err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func parseQueuePath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "drops" || parts[2] != "queue" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func queueEntryResponse(entry domain.QueueEntry) queueEntryBody {
	return queueEntryBody{
		ID:        entry.ID,
		DropID:    entry.DropID,
		Position:  entry.Position,
		Status:    string(entry.Status),
		ExpiresAt: entry.ExpiresAt,
	}
}

type queueEntryBody struct {
	ID        string     `json:"id"`
	DropID    string     `json:"drop_id"`
	Position  int        `json:"position"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
