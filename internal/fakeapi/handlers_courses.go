package fakeapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

func (s *Server) CoursesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		out := s.coursesJSON(func(*Course) bool { return true })
		s.lock.Unlock()
		writeSuccess(w, http.StatusOK, out, "")
	}
}

func (s *Server) CourseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		defer s.lock.Unlock()
		c, ok := s.courses[r.PathValue("id")]
		if !ok {
			writeFailure(w, http.StatusNotFound, "course not found")
			return
		}
		writeSuccess(w, http.StatusOK, s.courseJSON(c), "")
	}
}

// CoursesWeekHandler lists the courses dated in the Monday to Sunday week containing ?date
func (s *Server) CoursesWeekHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		offset := (int(day.Weekday()) + 6) % 7
		monday := day.AddDate(0, 0, -offset)
		nextMonday := monday.AddDate(0, 0, 7)

		s.lock.Lock()
		out := s.coursesJSON(func(c *Course) bool {
			d, err := time.Parse(dateLayout, c.CourseDate)
			return err == nil && !d.Before(monday) && d.Before(nextMonday)
		})
		s.lock.Unlock()
		writeSuccess(w, http.StatusOK, out, "")
	}
}

func (s *Server) BookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, courseID := userIDFrom(r), r.PathValue("id")

		s.lock.Lock()
		defer s.lock.Unlock()
		a, ok := s.accounts[userID]
		if !ok {
			writeFailure(w, http.StatusNotFound, "user not found")
			return
		}
		if a.Role != "member" {
			writeFailure(w, http.StatusForbidden, "your role cannot book courses")
			return
		}
		c, ok := s.courses[courseID]
		if !ok {
			writeFailure(w, http.StatusNotFound, "course not found")
			return
		}
		if existing, ok := s.bookings[courseID][userID]; ok {
			switch existing.Status {
			case "confirmed":
				writeFailure(w, http.StatusBadRequest, "already booked")
				return
			case "canceled":
				existing.Status = "confirmed"
				writeSuccess(w, http.StatusOK, bookingJSON(existing, courseID, userID), "booking reactivated")
				return
			}
		}
		if s.confirmedCount(courseID) >= c.Capacity {
			writeFailure(w, http.StatusBadRequest, "course is full")
			return
		}
		b := s.setBooking(courseID, userID, "confirmed")
		writeSuccess(w, http.StatusCreated, bookingJSON(b, courseID, userID), "booked")
	}
}

func (s *Server) CancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, courseID := userIDFrom(r), r.PathValue("id")

		s.lock.Lock()
		defer s.lock.Unlock()
		a, ok := s.accounts[userID]
		if !ok {
			writeFailure(w, http.StatusNotFound, "user not found")
			return
		}
		if a.Role != "member" {
			writeFailure(w, http.StatusForbidden, "your role cannot cancel bookings")
			return
		}
		b, ok := s.bookings[courseID][userID]
		if !ok {
			writeFailure(w, http.StatusNotFound, "booking not found")
			return
		}
		if b.Status == "canceled" {
			writeSuccess(w, http.StatusOK, nil, "booking already canceled")
			return
		}
		b.Status = "canceled"
		writeSuccess(w, http.StatusOK, nil, "booking canceled")
	}
}

// BookingStatusHandler answers in the format chosen with SetStatusShape
func (s *Server) BookingStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, courseID := userIDFrom(r), r.PathValue("id")

		s.lock.Lock()
		c, ok := s.courses[courseID]
		if !ok {
			s.lock.Unlock()
			writeFailure(w, http.StatusNotFound, "course not found")
			return
		}
		data := map[string]interface{}{
			"courseId":   numericID(courseID),
			"status":     "not_booked",
			"courseName": c.Name,
		}
		if b, ok := s.bookings[courseID][userID]; ok {
			data["status"] = b.Status
			data["bookingId"] = numericID(b.ID)
			data["bookingTime"] = b.CreatedAt.Format("2006-01-02T15:04:05Z")
		}
		shape := s.statusShape
		s.lock.Unlock()

		status := data["status"].(string)
		switch shape {
		case ShapeBare:
			writeJSON(w, http.StatusOK, data)
		case ShapeData:
			writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
		case ShapeString:
			writeJSON(w, http.StatusOK, status)
		case ShapeStringEnvelope:
			raw, _ := json.Marshal(map[string]interface{}{"success": true, "data": data})
			writeJSON(w, http.StatusOK, string(raw))
		case ShapeText:
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(status))
		default:
			writeSuccess(w, http.StatusOK, data, "")
		}
	}
}

// UserBookingsHandler lists the courses the caller holds a confirmed booking for
func (s *Server) UserBookingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFrom(r)
		s.lock.Lock()
		out := s.coursesJSON(func(c *Course) bool {
			b, ok := s.bookings[c.ID][userID]
			return ok && b.Status == "confirmed"
		})
		s.lock.Unlock()
		writeSuccess(w, http.StatusOK, out, "")
	}
}

// coursesJSON renders the matching courses ordered by id. Callers hold the lock.
func (s *Server) coursesJSON(match func(*Course) bool) []map[string]interface{} {
	ids := make([]string, 0, len(s.courses))
	for id, c := range s.courses {
		if match(c) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
	out := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.courseJSON(s.courses[id]))
	}
	return out
}
