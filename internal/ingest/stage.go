package ingest

import (
	"github.com/gyeh/eraload/internal/config"
	"github.com/gyeh/eraload/internal/remit"
	"github.com/gyeh/eraload/internal/x12"
)

// Stage runs the read and decode phases over raw content. On failure it
// reports which of the two phases failed; both failures are fatal to the
// file.
func Stage(content []byte, cfg *config.Config) (*remit.Result, string, error) {
	var opts []x12.Option
	if cfg.EnvelopeScanBytes > 0 {
		opts = append(opts, x12.WithScanLimit(cfg.EnvelopeScanBytes))
	}
	reader, err := x12.NewReader(content, opts...)
	if err != nil {
		return nil, PhaseRead, err
	}

	res, err := remit.Decode(reader, remit.Options{Claimless: cfg.Claimless()})
	if err != nil {
		return nil, PhaseDecode, err
	}
	return res, "", nil
}
