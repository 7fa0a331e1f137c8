package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"
	"hotelbooking/internal/report"
)

const maxBodyBytes = 1 << 20

func (s *HTTPServer) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.svc.Query.ListCompanies(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
}

func (s *HTTPServer) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	company, err := s.svc.Query.GetCompany(r.Context(), r.PathValue("companyID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (s *HTTPServer) handleListHotels(w http.ResponseWriter, r *http.Request) {
	locations, err := s.svc.Query.ListLocations(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hotels": locations})
}

func (s *HTTPServer) handleGetHotel(w http.ResponseWriter, r *http.Request) {
	location, err := s.svc.Query.GetLocation(r.Context(), r.PathValue("hotelID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, location)
}

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.svc.Query.ListRooms(r.Context(), r.PathValue("hotelID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hotelID := r.PathValue("hotelID")
	room := strings.TrimSpace(q.Get("room"))
	checkIn := strings.TrimSpace(q.Get("check_in"))
	checkOut := strings.TrimSpace(q.Get("check_out"))

	if room == "" {
		writeError(w, http.StatusBadRequest, "room is required")
		return
	}
	in, err := models.ParseDate(checkIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_in; expected YYYY-MM-DD")
		return
	}
	out, err := models.ParseDate(checkOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_out; expected YYYY-MM-DD")
		return
	}
	if !in.Before(out) {
		writeError(w, http.StatusBadRequest, "check_out must be after check_in")
		return
	}

	available := s.svc.Checker.IsAvailable(r.Context(), hotelID, room, checkIn, checkOut, strings.TrimSpace(q.Get("exclude")))
	writeJSON(w, http.StatusOK, map[string]any{
		"hotel_id":    hotelID,
		"room_number": room,
		"check_in":    checkIn,
		"check_out":   checkOut,
		"available":   available,
	})
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.svc.Query.ListReservations(r.Context(), r.PathValue("hotelID"), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list, "count": len(list)})
}

func (s *HTTPServer) handleListDeleted(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.svc.Query.ListDeletedReservations(r.Context(), r.PathValue("hotelID"), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list, "count": len(list)})
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Query.GetReservation(r.Context(), r.PathValue("hotelID"), r.PathValue("reservationID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var draft models.ReservationDraft
	if err := decodeBody(w, r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.svc.Writer.Create(r.Context(), callerName(r), r.PathValue("hotelID"), draft)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/hotels/%s/reservations/%s", res.HotelID, res.ID))
	writeJSON(w, http.StatusCreated, res)
}

func (s *HTTPServer) handleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	var patch models.ReservationPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.svc.Writer.Update(r.Context(), callerName(r), r.PathValue("hotelID"), r.PathValue("reservationID"), patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Writer.SoftDelete(r.Context(), callerName(r), r.PathValue("hotelID"), r.PathValue("reservationID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReport streams checkins.xlsx, checkouts.xlsx or deleted.xlsx.
func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Exporter == nil {
		writeError(w, http.StatusNotFound, "reports are disabled")
		return
	}
	name, ok := strings.CutSuffix(r.PathValue("report"), ".xlsx")
	kind, known := report.ParseKind(name)
	if !ok || !known {
		writeError(w, http.StatusNotFound, "unknown report")
		return
	}

	ctx := r.Context()
	hotelID := r.PathValue("hotelID")
	q := r.URL.Query()

	var (
		list   []models.Reservation
		period string
		err    error
	)
	switch kind {
	case report.CheckIns:
		period = q.Get("date")
		list, err = s.svc.Query.CheckInReport(ctx, hotelID, period)
	case report.CheckOuts:
		period = q.Get("date")
		list, err = s.svc.Query.CheckOutReport(ctx, hotelID, period)
	case report.Deleted:
		period = q.Get("start_date") + " - " + q.Get("end_date")
		list, err = s.svc.Query.ListDeletedReservations(ctx, hotelID, q.Get("start_date"), q.Get("end_date"))
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	hotelName := hotelID
	if loc, err := s.svc.Query.GetLocation(ctx, hotelID); err == nil {
		hotelName = loc.Name
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(kind, hotelID, period)))
	if err := s.svc.Exporter.Write(w, kind, hotelName, period, list); err != nil {
		s.logger.Error().Err(err).Str("report", string(kind)).Msg("Failed to write report")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
