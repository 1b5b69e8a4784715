package main

import (
	"errors"

	"github.com/gyeh/eraload/internal/exitcode"
	"github.com/gyeh/eraload/internal/feeschedule"
	"github.com/gyeh/eraload/internal/ingest"
	"github.com/gyeh/eraload/internal/model"
)

// outcomeCode maps the result of one upload run to a process exit code.
func outcomeCode(u *model.EraUpload, err error) int {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return exitcode.ValidationError
	case errors.Is(err, feeschedule.ErrUnavailable):
		return exitcode.OracleUnavailable
	case u != nil && u.Status == model.StatusParseErrors:
		return exitcode.ParseError
	case err == nil && u != nil && u.Status == model.StatusProcessed:
		return exitcode.Success
	}

	var pe *ingest.PipelineError
	if errors.As(err, &pe) && pe.Phase == ingest.PhasePreflight {
		return exitcode.DBConnError
	}
	return exitcode.FinalizeError
}
