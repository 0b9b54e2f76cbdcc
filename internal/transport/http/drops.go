package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hazeclub/drops-api/internal/app"
	"github.com/hazeclub/drops-api/internal/flags"
)

// DropViewer is the minimal interface needed for the public drop page.
type DropViewer interface {
	DropDetail(ctx context.Context, snap flags.Snapshot, dropID string, vip bool) (app.DropView, error)
}

// HandleGetDrop returns an HTTP handler for the public drop detail page.
// Anonymous callers get the non-VIP view.
func HandleGetDrop(svc DropViewer, flagSrc flags.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		dropID, ok := parseDropPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		vip := false
		if id, ok := identityFrom(r); ok {
			vip = id.VIP
		}

		view, err := svc.DropDetail(r.Context(), flagSrc.Current(), dropID, vip)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dropViewResponse(view))
	}
}

func parseDropPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "drops" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func dropViewResponse(view app.DropView) dropDetailResponse {
	resp := dropDetailResponse{
		ID:        view.Drop.ID,
		Name:      view.Drop.Name,
		Type:      string(view.Drop.Type),
		Phase:     string(view.Phase),
		Gated:     view.Gated,
		StartTime: view.Drop.StartTime,
		EndTime:   view.Drop.EndTime,
		Lines:     make([]lineDetailResponse, 0, len(view.Lines)),
	}
	for _, lv := range view.Lines {
		line := lineDetailResponse{
			ID:                lv.Line.ID,
			Name:              lv.Line.Name,
			QuantityAvailable: lv.Line.QuantityAvailable,
			Remaining:         lv.Line.Remaining(),
			SoldOut:           lv.SoldOut,
		}
		if lv.Quote != nil {
			line.Pricing = &linePricingResponse{
				BasePriceCents:    lv.Quote.BasePriceCents,
				CurrentPriceCents: lv.Quote.CurrentPriceCents,
				RemainingRatio:    lv.Quote.RemainingRatio,
				Tier:              string(lv.Quote.Tier),
			}
		}
		resp.Lines = append(resp.Lines, line)
	}
	return resp
}

type dropDetailResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Type      string               `json:"type"`
	Phase     string               `json:"phase"`
	Gated     bool                 `json:"gated"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`
	Lines     []lineDetailResponse `json:"lines"`
}

type lineDetailResponse struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	QuantityAvailable int                  `json:"quantity_available"`
	Remaining         int                  `json:"remaining"`
	SoldOut           bool                 `json:"sold_out"`
	Pricing           *linePricingResponse `json:"pricing,omitempty"`
}

type linePricingResponse struct {
	BasePriceCents    int     `json:"base_price_cents"`
	CurrentPriceCents int     `json:"current_price_cents"`
	RemainingRatio    float64 `json:"remaining_ratio"`
	Tier              string  `json:"tier"`
}
