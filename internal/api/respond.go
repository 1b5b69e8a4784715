package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/store"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondValidation writes a 400 for a ValidationError and reports whether
// err was one.
func respondValidation(w http.ResponseWriter, err error) bool {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		respondWithError(w, http.StatusBadRequest, ve.Error())
		return true
	}
	return false
}

func uploadID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, &model.ValidationError{Field: "id", Msg: "must be a UUID"}
	}
	return id, nil
}

// parsePeriod reads month and year. Both are required.
func parsePeriod(month, year string) (model.Period, error) {
	month, year = strings.TrimSpace(month), strings.TrimSpace(year)
	if month == "" || year == "" {
		return model.Period{}, &model.ValidationError{Field: "period", Msg: "month and year are required"}
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return model.Period{}, &model.ValidationError{Field: "year", Msg: fmt.Sprintf("must be an integer, got %q", year)}
	}
	return model.NewPeriod(month, y)
}

// filterFromQuery builds a store.Filter from practiceId, month, year and
// status query parameters. The period is mandatory; practiceId and status
// narrow it further.
func filterFromQuery(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	var f store.Filter
	if p := strings.TrimSpace(q.Get("practiceId")); p != "" {
		f.PracticeID = &p
	}
	period, err := parsePeriod(q.Get("month"), q.Get("year"))
	if err != nil {
		return f, err
	}
	f.Period = &period
	if s := q.Get("status"); s != "" {
		st := model.UploadStatus(s)
		switch st {
		case model.StatusPending, model.StatusProcessed, model.StatusParseErrors:
			f.Status = &st
		default:
			return f, &model.ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", s)}
		}
	}
	return f, nil
}
