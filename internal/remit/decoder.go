package remit

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
	"github.com/gyeh/eraload/internal/normalize"
	"github.com/gyeh/eraload/internal/x12"
)

// ClaimlessPolicy decides what happens to a service line seen before any
// claim payment segment.
type ClaimlessPolicy string

const (
	// ClaimlessSurface keeps the line as a claim-less item with a warning.
	ClaimlessSurface ClaimlessPolicy = "surface"
	// ClaimlessDrop discards the line but still records a warning.
	ClaimlessDrop ClaimlessPolicy = "drop"
)

// ParseClaimlessPolicy accepts "surface" or "drop"; "" means surface.
func ParseClaimlessPolicy(s string) (ClaimlessPolicy, error) {
	switch ClaimlessPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ClaimlessSurface:
		return ClaimlessSurface, nil
	case ClaimlessDrop:
		return ClaimlessDrop, nil
	}
	return "", fmt.Errorf("unknown claimless policy %q (want surface or drop)", s)
}

// Options tunes decoding.
type Options struct {
	Claimless ClaimlessPolicy
}

// Warning is a non-fatal per-segment or per-field decode issue.
type Warning struct {
	Segment int    // segment index in the file, -1 when not tied to one
	Tag     string // segment tag, if any
	Msg     string
}

func (w Warning) String() string {
	if w.Tag == "" {
		return w.Msg
	}
	return fmt.Sprintf("segment %d (%s): %s", w.Segment, w.Tag, w.Msg)
}

// Result is the decoded content of one remittance file. LineItems are in
// file order; each Claim lists the indexes of its lines.
type Result struct {
	Claims    []model.Claim
	LineItems []model.LineItem
	Warnings  []Warning
}

// WarningStrings renders all warnings for persistence.
func (r *Result) WarningStrings() []string {
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.String()
	}
	return out
}

// ClaimAdjustments totals the claim-level adjustments not attached to a line.
func (r *Result) ClaimAdjustments() money.Cents {
	var total money.Cents
	for i := range r.Claims {
		total += r.Claims[i].AdjustmentCents
	}
	return total
}

// Status is processed when at least one line item was produced.
func (r *Result) Status() model.UploadStatus {
	if len(r.LineItems) == 0 {
		return model.StatusParseErrors
	}
	return model.StatusProcessed
}

// SegmentSource yields segments until io.EOF. *x12.Reader satisfies it.
type SegmentSource interface {
	Next() (x12.Segment, error)
	Delimiters() x12.Delimiters
}

// minElements is the element count below which a known segment is malformed.
var minElements = map[string]int{
	"CLP": 4,
	"SVC": 3,
	"CAS": 3,
	"NM1": 3,
	"DTM": 2,
}

type decoder struct {
	opts      Options
	component byte
	res       *Result
	claim     *model.Claim // current claim, nil before the first CLP
	line      int          // index of the open line item, -1 when none
}

// Decode groups segments into claims and line items. Only reader errors are
// returned; everything else is recorded as a Warning.
func Decode(src SegmentSource, opts Options) (*Result, error) {
	if opts.Claimless == "" {
		opts.Claimless = ClaimlessSurface
	}
	d := &decoder{
		opts:      opts,
		component: src.Delimiters().Component,
		res:       &Result{},
		line:      -1,
	}

	for {
		seg, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		d.handle(seg)
	}
	d.flush()

	if len(d.res.LineItems) == 0 {
		d.res.Warnings = append(d.res.Warnings, Warning{Segment: -1, Msg: "no service lines found"})
	}
	return d.res, nil
}

func (d *decoder) handle(seg x12.Segment) {
	if want, ok := minElements[seg.Tag]; ok && len(seg.Elements) < want {
		d.warn(seg, fmt.Sprintf("expected at least %d elements, got %d", want, len(seg.Elements)))
	}

	switch seg.Tag {
	case "CLP":
		d.startClaim(seg)
	case "NM1":
		d.patient(seg)
	case "SVC":
		d.serviceLine(seg)
	case "CAS":
		d.adjustment(seg)
	case "DTM":
		d.serviceDate(seg)
	case "LX":
		// LX groups claims under a header number; the open line is closed.
		d.line = -1
	}
}

func (d *decoder) startClaim(seg x12.Segment) {
	d.flush()
	c := &model.Claim{
		ClaimID:    strings.TrimSpace(seg.Element(1)),
		StatusCode: strings.TrimSpace(seg.Element(2)),
	}
	var err error
	if c.BilledCents, err = normalize.Amount("CLP03", seg.Element(3)); err != nil {
		d.warn(seg, err.Error())
	}
	if c.PaidCents, err = normalize.Amount("CLP04", seg.Element(4)); err != nil {
		d.warn(seg, err.Error())
	}
	d.claim = c
	d.line = -1
}

func (d *decoder) flush() {
	if d.claim == nil {
		return
	}
	if len(d.claim.Lines) == 0 {
		d.res.Warnings = append(d.res.Warnings, Warning{
			Segment: -1,
			Msg:     fmt.Sprintf("claim %q has no service lines", d.claim.ClaimID),
		})
	}
	d.res.Claims = append(d.res.Claims, *d.claim)
	d.claim = nil
	d.line = -1
}

// patient handles NM1*QC (patient). Other entity codes are ignored.
func (d *decoder) patient(seg x12.Segment) {
	if seg.Element(1) != "QC" || d.claim == nil {
		return
	}
	name := normalize.PersonName(seg.Element(3), seg.Element(4), seg.Element(5))
	d.claim.PatientName = name
	for _, idx := range d.claim.Lines {
		d.res.LineItems[idx].PatientName = name
	}
}

func (d *decoder) serviceLine(seg x12.Segment) {
	item := model.LineItem{
		Seq:         len(d.res.LineItems),
		ProgramType: model.ProgramUnknown,
		MatchStatus: model.MatchUnmatched,
	}

	if d.claim == nil {
		d.warn(seg, "service line before any claim payment segment")
		if d.opts.Claimless == ClaimlessDrop {
			d.line = -1
			return
		}
		item.Warnings = append(item.Warnings, "claim-less service line")
	} else {
		item.ClaimID = d.claim.ClaimID
		item.PatientName = d.claim.PatientName
	}

	item.CPTCode, item.Modifiers = normalize.SplitProcedure(x12.SplitComposite(seg.Element(1), d.component))
	if item.CPTCode == "" {
		d.itemWarn(seg, &item, "missing procedure code")
	}

	var err error
	if item.BilledCents, err = normalize.Amount("SVC02", seg.Element(2)); err != nil {
		d.itemWarn(seg, &item, err.Error())
	}
	if item.PaidCents, err = normalize.Amount("SVC03", seg.Element(3)); err != nil {
		d.itemWarn(seg, &item, err.Error())
	}

	d.res.LineItems = append(d.res.LineItems, item)
	d.line = len(d.res.LineItems) - 1
	if d.claim != nil {
		d.claim.Lines = append(d.claim.Lines, d.line)
	}
}

// adjustment handles CAS: group code then up to six reason/amount/quantity
// triplets.
func (d *decoder) adjustment(seg x12.Segment) {
	group := strings.TrimSpace(seg.Element(1))
	if _, ok := groupCodes[group]; !ok && group != "" {
		d.warn(seg, fmt.Sprintf("unknown adjustment group %q", group))
	}

	var total money.Cents
	var reasons []string
	for i := 2; i+1 <= len(seg.Elements) && i <= 17; i += 3 {
		reason := strings.TrimSpace(seg.Element(i))
		if reason == "" {
			continue
		}
		amt, err := normalize.Amount(fmt.Sprintf("CAS%02d", i+1), seg.Element(i+1))
		if err != nil {
			d.warn(seg, err.Error())
			if d.line >= 0 {
				d.res.LineItems[d.line].Warnings = append(d.res.LineItems[d.line].Warnings, err.Error())
			}
		}
		total += amt
		reasons = append(reasons, describeAdjustment(group, reason))
	}
	if len(reasons) == 0 {
		return
	}

	switch {
	case d.line >= 0:
		it := &d.res.LineItems[d.line]
		it.AdjustmentCents += total
		it.AdjustmentReason = joinReason(it.AdjustmentReason, reasons)
	case d.claim != nil:
		d.claim.AdjustmentCents += total
		d.claim.AdjustmentReason = joinReason(d.claim.AdjustmentReason, reasons)
	default:
		d.warn(seg, "adjustment outside any claim or service line")
	}
}

// serviceDate handles DTM*472 (service date) for the open line item.
func (d *decoder) serviceDate(seg x12.Segment) {
	if seg.Element(1) != "472" || d.line < 0 {
		return
	}
	if t := normalize.ParseDate(seg.Element(2)); t != nil {
		d.res.LineItems[d.line].ServiceDate = t
	} else {
		d.itemWarn(seg, &d.res.LineItems[d.line], fmt.Sprintf("invalid service date %q", seg.Element(2)))
	}
}

func (d *decoder) warn(seg x12.Segment, msg string) {
	d.res.Warnings = append(d.res.Warnings, Warning{Segment: seg.Index, Tag: seg.Tag, Msg: msg})
}

func (d *decoder) itemWarn(seg x12.Segment, item *model.LineItem, msg string) {
	d.warn(seg, msg)
	item.Warnings = append(item.Warnings, msg)
}

func joinReason(existing string, reasons []string) string {
	joined := strings.Join(reasons, "; ")
	if existing == "" {
		return joined
	}
	return existing + "; " + joined
}
