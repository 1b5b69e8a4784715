package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gyeh/eraload/internal/feeschedule"
	"github.com/gyeh/eraload/internal/ingest"
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
	"github.com/gyeh/eraload/internal/reconcile"
	"github.com/gyeh/eraload/internal/store"
)

type fakeUploads struct {
	create func(f model.RemittanceFile) (*model.EraUpload, error)
	retry  func(id uuid.UUID) (*model.EraUpload, error)

	uploads map[uuid.UUID]*model.EraUpload
	items   map[uuid.UUID][]model.LineItem
	filter  store.Filter
	got     model.RemittanceFile
}

func newFakeUploads() *fakeUploads {
	return &fakeUploads{
		uploads: make(map[uuid.UUID]*model.EraUpload),
		items:   make(map[uuid.UUID][]model.LineItem),
	}
}

func (f *fakeUploads) CreateUpload(_ context.Context, rf model.RemittanceFile) (*model.EraUpload, error) {
	f.got = rf
	if err := rf.Validate(); err != nil {
		return nil, err
	}
	return f.create(rf)
}

func (f *fakeUploads) RetryUpload(_ context.Context, id uuid.UUID) (*model.EraUpload, error) {
	return f.retry(id)
}

func (f *fakeUploads) GetUpload(_ context.Context, id uuid.UUID) (*model.EraUpload, []model.LineItem, error) {
	u, ok := f.uploads[id]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	return u, f.items[id], nil
}

func (f *fakeUploads) ListUploads(_ context.Context, flt store.Filter) ([]model.EraUpload, error) {
	f.filter = flt
	var out []model.EraUpload
	for _, u := range f.uploads {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUploads) DeleteUpload(_ context.Context, id uuid.UUID) error {
	if _, ok := f.uploads[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.uploads, id)
	delete(f.items, id)
	return nil
}

type fakeSource struct {
	items  []model.LineItem
	filter store.Filter
	err    error
}

func (s *fakeSource) PeriodLineItems(_ context.Context, f store.Filter) ([]model.LineItem, error) {
	s.filter = f
	return s.items, s.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func processed(u *model.EraUpload) *model.EraUpload {
	now := time.Now()
	u.Status = model.StatusProcessed
	u.ProcessedAt = &now
	return u
}

func newUpload(rf model.RemittanceFile) *model.EraUpload {
	return &model.EraUpload{
		ID:         uuid.New(),
		Filename:   rf.Filename,
		PracticeID: rf.PracticeID,
		Month:      rf.Period.Month,
		Year:       rf.Period.Year,
		Status:     model.StatusPending,
		UploadedAt: time.Now(),
	}
}

func sampleItems(upload uuid.UUID) []model.LineItem {
	return []model.LineItem{
		{
			ID: uuid.New(), UploadID: upload, Seq: 1, PatientName: "JANE DOE", CPTCode: "99490",
			ProgramType: model.ProgramCCM, BilledCents: 10000, PaidCents: 6200, AdjustmentCents: 3800,
			SystemRevenueCents: money.Ptr(6200), VarianceCents: money.Ptr(0),
			PatientMatched: true, MatchStatus: model.MatchMatched,
		},
		{
			ID: uuid.New(), UploadID: upload, Seq: 2, PatientName: "ANN LEE", CPTCode: "99484",
			ProgramType: model.ProgramBHI, BilledCents: 6000, PaidCents: 4000, AdjustmentCents: 2000,
			SystemRevenueCents: money.Ptr(4800), VarianceCents: money.Ptr(-800),
			PatientMatched: true, MatchStatus: model.MatchMatched,
		},
		{
			ID: uuid.New(), UploadID: upload, Seq: 3, CPTCode: "00000",
			ProgramType: model.ProgramUnknown, BilledCents: 2000, PaidCents: 1500, AdjustmentCents: 500,
			MatchStatus: model.MatchUnmatched,
		},
	}
}

type testServer struct {
	uploads *fakeUploads
	source  *fakeSource
	router  http.Handler
}

func newTestServer(t *testing.T, db Pinger) *testServer {
	t.Helper()
	ts := &testServer{uploads: newFakeUploads(), source: &fakeSource{}}
	log := zerolog.Nop()
	h := NewHandler(ts.uploads, reconcile.NewAggregator(ts.source, log), db, log, 1<<20)
	ts.router = h.Router()
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var validFields = map[string]string{"practiceId": "P1", "month": "jan", "year": "2024"}

func TestCreateUpload_Processed(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.uploads.create = func(rf model.RemittanceFile) (*model.EraUpload, error) {
		u := processed(newUpload(rf))
		u.ErrorDetail = []string{"segment 12: claim without patient name"}
		return u, nil
	}

	rec := ts.do(multipartRequest(t, validFields, "jan.835", []byte("ISA*...")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[createResponse](t, rec)
	assert.Equal(t, model.StatusProcessed, resp.Status)
	assert.Equal(t, []string{"segment 12: claim without patient name"}, resp.Warnings)
	_, err := uuid.Parse(resp.UploadID)
	assert.NoError(t, err)

	assert.Equal(t, "P1", ts.uploads.got.PracticeID)
	assert.Equal(t, model.Period{Month: "JAN", Year: 2024}, ts.uploads.got.Period)
	assert.Equal(t, "jan.835", ts.uploads.got.Filename)
	assert.Equal(t, []byte("ISA*..."), ts.uploads.got.Content)
}

func TestCreateUpload_ParseErrorsIsCreated(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.uploads.create = func(rf model.RemittanceFile) (*model.EraUpload, error) {
		u := newUpload(rf)
		u.Status = model.StatusParseErrors
		u.ErrorDetail = []string{"no ISA segment"}
		return u, nil
	}

	rec := ts.do(multipartRequest(t, validFields, "bad.835", []byte("garbage")))
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[createResponse](t, rec)
	assert.Equal(t, model.StatusParseErrors, resp.Status)
	assert.Equal(t, []string{"no ISA segment"}, resp.Warnings)
}

func TestCreateUpload_OracleUnavailable(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.uploads.create = func(rf model.RemittanceFile) (*model.EraUpload, error) {
		err := &ingest.PipelineError{Phase: ingest.PhaseMatch, Err: fmt.Errorf("rates: %w", feeschedule.ErrUnavailable)}
		return newUpload(rf), err
	}

	rec := ts.do(multipartRequest(t, validFields, "jan.835", []byte("ISA")))
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[createResponse](t, rec)
	assert.Equal(t, model.StatusPending, resp.Status)
	assert.NotNil(t, resp.Warnings)
}

func TestCreateUpload_Validation(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.uploads.create = func(rf model.RemittanceFile) (*model.EraUpload, error) {
		t.Fatal("create must not be reached")
		return nil, nil
	}

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
	}{
		{"missing file", validFields, ""},
		{"bad month", map[string]string{"practiceId": "P1", "month": "JANUARY", "year": "2024"}, "a.835"},
		{"bad year", map[string]string{"practiceId": "P1", "month": "JAN", "year": "24x"}, "a.835"},
		{"short year", map[string]string{"practiceId": "P1", "month": "JAN", "year": "24"}, "a.835"},
		{"missing period", map[string]string{"practiceId": "P1"}, "a.835"},
		{"missing practice", map[string]string{"month": "JAN", "year": "2024"}, "a.835"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(multipartRequest(t, tt.fields, tt.filename, []byte("ISA")))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode[map[string]string](t, rec)["error"], "invalid")
		})
	}
}

func TestCreateUpload_TooLarge(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.uploads.create = func(rf model.RemittanceFile) (*model.EraUpload, error) {
		return processed(newUpload(rf)), nil
	}
	rec := ts.do(multipartRequest(t, validFields, "big.835", bytes.Repeat([]byte("x"), 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetUpload(t *testing.T) {
	ts := newTestServer(t, nil)
	u := processed(newUpload(model.RemittanceFile{PracticeID: "P1", Filename: "a.835", Period: model.Period{Month: "JAN", Year: 2024}}))
	u.TotalPaidCents = 11700
	ts.uploads.uploads[u.ID] = u
	ts.uploads.items[u.ID] = sampleItems(u.ID)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/uploads/"+u.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Upload    map[string]any   `json:"upload"`
		LineItems []map[string]any `json:"lineItems"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, u.ID.String(), body.Upload["id"])
	assert.Equal(t, float64(11700), body.Upload["totalPaidCents"])
	assert.Equal(t, "117.00", body.Upload["totalPaid"])

	require.Len(t, body.LineItems, 3)
	assert.Equal(t, "-8.00", body.LineItems[1]["variance"])
	assert.Equal(t, float64(-800), body.LineItems[1]["varianceCents"])
	assert.Nil(t, body.LineItems[2]["systemRevenue"])
	assert.Nil(t, body.LineItems[2]["systemRevenueCents"])
	assert.Equal(t, "unmatched", body.LineItems[2]["matchStatus"])
}

func TestGetUpload_Errors(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/uploads/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/uploads/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUploads_Filter(t *testing.T) {
	ts := newTestServer(t, nil)
	u := processed(newUpload(model.RemittanceFile{PracticeID: "P1", Filename: "a.835", Period: model.Period{Month: "FEB", Year: 2024}}))
	ts.uploads.uploads[u.ID] = u

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/uploads?practiceId=P1&month=feb&year=2024&status=processed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "P1", list[0]["practiceId"])

	f := ts.uploads.filter
	require.NotNil(t, f.PracticeID)
	assert.Equal(t, "P1", *f.PracticeID)
	require.NotNil(t, f.Period)
	assert.Equal(t, model.Period{Month: "FEB", Year: 2024}, *f.Period)
	require.NotNil(t, f.Status)
	assert.Equal(t, model.StatusProcessed, *f.Status)

	for _, q := range []string{"month=FEB", "year=2024", "month=XYZ&year=2024", "month=FEB&year=2024&status=done"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/uploads?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListUploads_PeriodRequired(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, q := range []string{"", "?practiceId=P1", "?status=processed"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/uploads"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, decode[map[string]string](t, rec)["error"], "invalid period")
	}
	assert.Nil(t, ts.uploads.filter.Period, "store must not be queried")
}

func TestListUploads_EmptyIsArray(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/uploads?month=JAN&year=2024", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Nil(t, ts.uploads.filter.PracticeID)
	require.NotNil(t, ts.uploads.filter.Period)
	assert.Equal(t, model.Period{Month: "JAN", Year: 2024}, *ts.uploads.filter.Period)
}

func TestDeleteUpload(t *testing.T) {
	ts := newTestServer(t, nil)
	u := processed(newUpload(model.RemittanceFile{PracticeID: "P1", Filename: "a.835", Period: model.Period{Month: "JAN", Year: 2024}}))
	ts.uploads.uploads[u.ID] = u

	rec := ts.do(httptest.NewRequest(http.MethodDelete, "/uploads/"+u.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/uploads/"+u.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryUpload(t *testing.T) {
	ts := newTestServer(t, nil)
	pendingID, doneID, downID := uuid.New(), uuid.New(), uuid.New()
	ts.uploads.retry = func(id uuid.UUID) (*model.EraUpload, error) {
		switch id {
		case pendingID:
			u := processed(&model.EraUpload{ID: id})
			return u, nil
		case doneID:
			return nil, store.ErrNotPending
		case downID:
			return &model.EraUpload{ID: id, Status: model.StatusPending}, feeschedule.ErrUnavailable
		}
		return nil, store.ErrNotFound
	}

	tests := []struct {
		id   uuid.UUID
		code int
	}{
		{pendingID, http.StatusOK},
		{doneID, http.StatusConflict},
		{downID, http.StatusAccepted},
		{uuid.New(), http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := ts.do(httptest.NewRequest(http.MethodPost, "/uploads/"+tt.id.String()+"/retry", nil))
		assert.Equal(t, tt.code, rec.Code, rec.Body.String())
	}
}

func TestReconciliation(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.source.items = sampleItems(uuid.New())

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/reconciliation?practiceId=P1&month=JAN&year=2024", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[reconciliationView](t, rec)
	assert.Equal(t, 1, body.Summary.UploadCount)
	assert.Equal(t, 3, body.Summary.LineItemCount)
	assert.Equal(t, int64(11700), body.Summary.TotalPaidCents)
	assert.Equal(t, "117.00", body.Summary.TotalPaid)
	assert.Equal(t, int64(11000), body.Summary.TotalRevenueCents)
	assert.Equal(t, "-8.00", body.Summary.TotalVariance)
	require.Len(t, body.Discrepancies, 1)
	assert.Equal(t, "ANN LEE", body.Discrepancies[0].PatientName)
	assert.Equal(t, "-8.00", body.Discrepancies[0].VarianceDollars)

	require.NotNil(t, ts.source.filter.PracticeID)
	assert.Equal(t, "P1", *ts.source.filter.PracticeID)
}

func TestReconciliation_PeriodRequired(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, path := range []string{
		"/reconciliation",
		"/reconciliation?practiceId=P1",
		"/reconciliation?month=JAN",
		"/reconciliation/export",
		"/reconciliation/export?practiceId=P1&format=parquet",
	} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, decode[map[string]string](t, rec)["error"], "invalid period", path)
	}
	assert.Nil(t, ts.source.filter.Period, "source must not be queried")
}

func TestReconciliation_Empty(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/reconciliation?month=JAN&year=2024", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"discrepancies":[]`)
	assert.Nil(t, ts.source.filter.PracticeID)
}

func TestReconciliation_SourceError(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.source.err = errors.New("connection reset")
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/reconciliation?month=JAN&year=2024", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestExport(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.source.items = sampleItems(uuid.New())

	t.Run("xlsx", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/reconciliation/export?practiceId=P1&month=JAN&year=2024", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "reconciliation.xlsx")

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		v, err := f.GetCellValue("Summary", "B1")
		require.NoError(t, err)
		assert.Equal(t, "P1", v)
	})

	t.Run("parquet", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/reconciliation/export?format=parquet&month=JAN&year=2024", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, contentTypeParquet, rec.Header().Get("Content-Type"))

		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		rows, err := parquet.Read[model.LineItemRow](bytes.NewReader(body), int64(len(body)))
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("bad format", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/reconciliation/export?format=csv&month=JAN&year=2024", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestExport_WriteErrorLogged(t *testing.T) {
	var logs bytes.Buffer
	log := zerolog.New(&logs)
	src := &fakeSource{items: sampleItems(uuid.New())}
	h := NewHandler(newFakeUploads(), reconcile.NewAggregator(src, log), nil, log, 1<<20)

	w := brokenWriter{httptest.NewRecorder()}
	h.Export(w, httptest.NewRequest(http.MethodGet, "/reconciliation/export?format=parquet&month=JAN&year=2024", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "export write failed")
	assert.Contains(t, logs.String(), "broken pipe")
	assert.Contains(t, logs.String(), `"format":"parquet"`)
}

func TestHealth(t *testing.T) {
	rec := newTestServer(t, fakePinger{}).do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = newTestServer(t, fakePinger{err: errors.New("down")}).do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `eraload_http_requests_total{endpoint="/health",method="GET",status="200"}`)
}
