package feeschedule

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
)

type rateResponse struct {
	ProgramType   string `json:"programType"`
	ExpectedCents int64  `json:"expectedCents"`
}

type encounterResponse struct {
	Found bool `json:"found"`
}

// HTTPOracle queries the billing engine over HTTP:
//
//	GET /rates?practiceId=&cptCode=&month=&year=          -> 200 rateResponse | 404
//	GET /encounters?practiceId=&patientName=&cptCode=&... -> 200 encounterResponse
type HTTPOracle struct {
	client *resty.Client
	log    zerolog.Logger
}

// NewHTTPOracle builds an oracle client. Transport failures and 5xx
// responses are retried by resty before being reported as ErrUnavailable.
func NewHTTPOracle(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPOracle {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &HTTPOracle{client: client, log: log.With().Str("component", "fee_schedule_http").Logger()}
}

// LookupRate implements Oracle.
func (o *HTTPOracle) LookupRate(ctx context.Context, q RateQuery) (Rate, error) {
	var body rateResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"practiceId": q.PracticeID,
			"cptCode":    q.CPTCode,
			"month":      string(q.Period.Month),
			"year":       strconv.Itoa(q.Period.Year),
		}).
		SetResult(&body).
		Get("/rates")
	if err != nil {
		if ctx.Err() != nil {
			return Rate{}, ctx.Err()
		}
		o.log.Warn().Err(err).Str("cpt", q.CPTCode).Msg("rate lookup failed")
		return Rate{}, fmt.Errorf("%w: rate %s: %v", ErrUnavailable, q.CPTCode, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return Rate{
			ProgramType:   model.ProgramType(body.ProgramType),
			ExpectedCents: money.Cents(body.ExpectedCents),
		}, nil
	case http.StatusNotFound:
		return Rate{}, ErrNotFound
	default:
		o.log.Warn().Int("status", resp.StatusCode()).Str("cpt", q.CPTCode).Msg("rate lookup rejected")
		return Rate{}, fmt.Errorf("%w: rate %s: status %d", ErrUnavailable, q.CPTCode, resp.StatusCode())
	}
}

// HasEncounter implements Oracle.
func (o *HTTPOracle) HasEncounter(ctx context.Context, q EncounterQuery) (bool, error) {
	var body encounterResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"practiceId":  q.PracticeID,
			"patientName": q.PatientName,
			"cptCode":     q.CPTCode,
			"month":       string(q.Period.Month),
			"year":        strconv.Itoa(q.Period.Year),
		}).
		SetResult(&body).
		Get("/encounters")
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("%w: encounter %s: %v", ErrUnavailable, q.CPTCode, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return body.Found, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: encounter %s: status %d", ErrUnavailable, q.CPTCode, resp.StatusCode())
	}
}

var _ Oracle = (*HTTPOracle)(nil)
