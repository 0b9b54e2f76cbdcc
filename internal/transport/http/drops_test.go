package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazeclub/drops-api/internal/app"
	"github.com/hazeclub/drops-api/internal/domain"
	"github.com/hazeclub/drops-api/internal/flags"
	"github.com/hazeclub/drops-api/internal/pricing"
)

func TestHandleGetDrop(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 4, 20, 16, 0, 0, 0, time.UTC)
	view := app.DropView{
		Drop: domain.Drop{
			ID:        "drop-1",
			Name:      "420 Capsule",
			Type:      domain.DropTypeLimited,
			Status:    domain.DropStatusScheduled,
			StartTime: start,
		},
		Phase: domain.PhaseLive,
		Gated: true,
		Lines: []app.LineView{
			{
				Line: domain.DropLine{
					ID:                "line-1",
					DropID:            "drop-1",
					Name:              "Dank Hoodie",
					QuantityAvailable: 100,
					QuantitySold:      85,
				},
				Quote: &pricing.Quote{
					BasePriceCents:    2000,
					CurrentPriceCents: 2300,
					RemainingRatio:    0.15,
					Tier:              pricing.TierElevated,
				},
			},
			{
				Line: domain.DropLine{
					ID:                "line-2",
					DropID:            "drop-1",
					Name:              "Dank Tee",
					QuantityAvailable: 50,
					QuantitySold:      50,
				},
				SoldOut: true,
			},
		},
	}

	tests := []struct {
		name           string
		path           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "ok",
			path:           "/drops/drop-1",
			expectedStatus: http.StatusOK,
			expectedSubstr: `"current_price_cents":2300`,
		},
		{
			name:           "sold out line marked",
			path:           "/drops/drop-1",
			expectedStatus: http.StatusOK,
			expectedSubstr: `"sold_out":true`,
		},
		{
			name:           "not found",
			path:           "/drops/missing",
			serviceErr:     domain.ErrDropNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid path",
			path:           "/drops/drop-1/extra/bits",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &stubDropViewer{view: view, err: tt.serviceErr}

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			HandleGetDrop(svc, testFlagSrc()).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleGetDrop_PassesVIPFromIdentity(t *testing.T) {
	t.Parallel()

	svc := &stubDropViewer{view: app.DropView{Phase: domain.PhaseVIPLive}}

	req := httptest.NewRequest(http.MethodGet, "/drops/drop-1", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: "user-1", VIP: true}))
	rec := httptest.NewRecorder()

	HandleGetDrop(svc, testFlagSrc()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !svc.gotVIP {
		t.Fatal("expected VIP flag forwarded to service")
	}
}

type stubDropViewer struct {
	view   app.DropView
	err    error
	gotVIP bool
}

func (s *stubDropViewer) DropDetail(_ context.Context, _ flags.Snapshot, _ string, vip bool) (app.DropView, error) {
	s.gotVIP = vip
	return s.view, s.err
}
