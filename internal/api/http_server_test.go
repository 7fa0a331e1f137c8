package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"hotelbooking/internal/config"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/models"
	"hotelbooking/internal/records"
	"hotelbooking/internal/report"
	"hotelbooking/internal/service"
	"hotelbooking/internal/store"
)

var errDown = errors.New("store down")

// downStore fails every read once down is set.
type downStore struct {
	*store.MemoryStore
	down bool
}

func (d *downStore) QueryIndex(ctx context.Context, q store.Query) (*store.Page, error) {
	if d.down {
		return nil, errDown
	}
	return d.MemoryStore.QueryIndex(ctx, q)
}

func (d *downStore) Scan(ctx context.Context, q store.ScanQuery) (*store.Page, error) {
	if d.down {
		return nil, errDown
	}
	return d.MemoryStore.Scan(ctx, q)
}

func (d *downStore) Ping(ctx context.Context) error {
	if d.down {
		return errDown
	}
	return d.MemoryStore.Ping(ctx)
}

type testAPI struct {
	store  *downStore
	server *httptest.Server
}

func newTestAPI(t *testing.T, cfg config.APIConfig, verifier domain.TokenVerifier, shared domain.RateLimiter) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)
	st := &downStore{MemoryStore: store.NewMemoryStore()}

	ctx := context.Background()
	require.NoError(t, st.Put(ctx, records.CompanyToRecord(models.Company{ID: "c1", Name: "Acme"})))
	require.NoError(t, st.Put(ctx, records.LocationToRecord(models.Location{ID: "h1", Name: "Seaside", CompanyID: "c1", SortOrder: 1})))
	for _, n := range []string{"102", "101"} {
		require.NoError(t, st.Put(ctx, records.RoomToRecord(models.Room{Number: n, LocationID: "h1", IsActive: true})))
	}

	checker := service.NewAvailabilityChecker(st, 10, &logger)
	writer := service.NewReservationService(st, checker, events.NewEventBus(), service.ReservationOptions{GuardNights: true}, &logger)
	query := service.NewQueryService(st, nil, 10, &logger)

	srv := NewHTTPServer(cfg, Services{
		Writer:   writer,
		Checker:  checker,
		Query:    query,
		Exporter: report.NewExporter(t.TempDir(), &logger),
		Store:    st,
	}, NewHTTPAuth(cfg, verifier, shared, &logger), &logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{store: st, server: ts}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func bookingBody(id, room, in, out string) map[string]any {
	return map[string]any{
		"reservation_id":    id,
		"room_number":       room,
		"check_in_date":     in,
		"check_out_date":    out,
		"status":            models.StatusConfirmed,
		"contact_name":      "Grace",
		"contact_last_name": "Hopper",
		"contact_phone":     "+1555",
		"guests":            []map[string]string{{"first_name": "Grace", "last_name": "Hopper"}},
	}
}

func TestHTTP_ReferenceData(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil, nil)

	resp := api.do(t, http.MethodGet, "/hotels", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hotels := decode[struct {
		Hotels []models.Location `json:"hotels"`
	}](t, resp)
	require.Len(t, hotels.Hotels, 1)
	assert.Equal(t, "Seaside", hotels.Hotels[0].Name)

	resp = api.do(t, http.MethodGet, "/hotels/h1/rooms", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rooms := decode[struct {
		Rooms []models.Room `json:"rooms"`
	}](t, resp)
	require.Len(t, rooms.Rooms, 2)
	assert.Equal(t, "101", rooms.Rooms[0].Number)

	resp = api.do(t, http.MethodGet, "/companies/c1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/companies/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_ReservationLifecycle(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil, nil)

	resp := api.do(t, http.MethodPost, "/hotels/h1/reservations", bookingBody("r1", "101", "2025-03-01", "2025-03-04"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/hotels/h1/reservations/r1", resp.Header.Get("Location"))
	created := decode[models.Reservation](t, resp)
	assert.Equal(t, models.DefaultSystemUser, created.ModifiedBy)
	assert.Equal(t, 1, created.GuestCount)

	t.Run("overlap conflicts", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/hotels/h1/reservations", bookingBody("r2", "101", "2025-03-03", "2025-03-05"))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/hotels/h1/reservations", bookingBody("r1", "102", "2025-04-01", "2025-04-02"))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("back to back is allowed", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/hotels/h1/reservations", bookingBody("r3", "101", "2025-03-04", "2025-03-06"))
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("availability", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/hotels/h1/availability?room=101&check_in=2025-03-02&check_out=2025-03-03", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decode[map[string]any](t, resp)["available"].(bool))

		resp = api.do(t, http.MethodGet, "/hotels/h1/availability?room=101&check_in=2025-03-02&check_out=2025-03-03&exclude=r1", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, decode[map[string]any](t, resp)["available"].(bool))

		resp = api.do(t, http.MethodGet, "/hotels/h1/availability?room=101&check_in=2025-03-03&check_out=2025-03-02", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("update", func(t *testing.T) {
		resp := api.do(t, http.MethodPut, "/hotels/h1/reservations/r1", map[string]any{"notes": "late arrival"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		updated := decode[models.Reservation](t, resp)
		assert.Equal(t, "late arrival", updated.Notes)
		assert.Equal(t, "2025-03-01", updated.CheckInDate)

		resp = api.do(t, http.MethodPut, "/hotels/h1/reservations/r1", map[string]any{"check_out_date": "2025-03-05"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp = api.do(t, http.MethodPut, "/hotels/h1/reservations/missing", map[string]any{"notes": "x"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("list", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/hotels/h1/reservations?start_date=2025-03-01&end_date=2025-03-31", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Count int `json:"count"`
		}](t, resp)
		assert.Equal(t, 2, body.Count)

		resp = api.do(t, http.MethodGet, "/hotels/h1/reservations?start_date=bad&end_date=2025-03-31", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp := api.do(t, http.MethodDelete, "/hotels/h1/reservations/r3", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		deleted := decode[models.Reservation](t, resp)
		assert.True(t, deleted.IsDeleted)

		resp = api.do(t, http.MethodGet, "/hotels/h1/reservations/deleted?start_date=2025-01-01&end_date=2099-12-31", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Reservations []models.Reservation `json:"reservations"`
		}](t, resp)
		require.Len(t, body.Reservations, 1)
		assert.Equal(t, "r3", body.Reservations[0].ID)

		resp = api.do(t, http.MethodPost, "/hotels/h1/reservations", bookingBody("r4", "101", "2025-03-04", "2025-03-06"))
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("get", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/hotels/h1/reservations/r1", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "r1", decode[models.Reservation](t, resp).ID)

		resp = api.do(t, http.MethodGet, "/hotels/other/reservations/r1", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHTTP_BadRequests(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil, nil)

	body := bookingBody("r1", "101", "2025-03-01", "2025-03-04")
	body["unknown_field"] = true
	resp := api.do(t, http.MethodPost, "/hotels/h1/reservations", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body = bookingBody("r1", "101", "2025-03-04", "2025-03-01")
	resp = api.do(t, http.MethodPost, "/hotels/h1/reservations", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["error"], "check_out_date")

	resp = api.do(t, http.MethodGet, "/hotels/h1/availability?check_in=2025-03-01&check_out=2025-03-02", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTP_StoreUnavailable(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil, nil)
	api.store.down = true

	resp := api.do(t, http.MethodPost, "/hotels/h1/reservations", bookingBody("r1", "101", "2025-03-01", "2025-03-04"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "store unavailable, retry later", decode[map[string]string](t, resp)["error"])

	resp = api.do(t, http.MethodGet, "/hotels/h1/reservations?start_date=2025-03-01&end_date=2025-03-31", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_Health(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil, nil)

	resp := api.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	resp = api.do(t, http.MethodGet, "/healthz", nil, requestIDHeader, "req-42")
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))
}

func TestHTTP_Reports(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil, nil)

	resp := api.do(t, http.MethodPost, "/hotels/h1/reservations", bookingBody("r1", "101", "2025-03-01", "2025-03-04"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/hotels/h1/reports/checkins.xlsx?date=2025-03-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)

	found := false
	for _, row := range rows {
		for _, cell := range row {
			if cell == "Grace Hopper" {
				found = true
			}
		}
	}
	assert.True(t, found, "guest row missing from report")

	resp = api.do(t, http.MethodGet, "/hotels/h1/reports/unknown.xlsx", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/hotels/h1/reports/checkouts.xlsx?date=bad", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
