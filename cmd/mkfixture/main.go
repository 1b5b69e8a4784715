// mkfixture writes a synthetic 835 remittance file together with matching
// fee schedule and encounter Parquet extracts for local runs.
// Usage: go run ./cmd/mkfixture --out testdata/fixture --claims 50 --practice PRACTICE001 --month JAN --year 2024
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	goparquet "github.com/parquet-go/parquet-go"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
)

type service struct {
	code     string
	program  model.ProgramType
	expected money.Cents
	billed   money.Cents
}

// Every seventh claim bills an uncontracted code; every fifth is underpaid.
var services = []service{
	{"99490", model.ProgramCCM, 6200, 10000},
	{"99484", model.ProgramBHI, 4800, 6000},
	{"99457", model.ProgramRPM, 5000, 7500},
	{"99439", model.ProgramCCM, 4700, 6500},
	{"99426", model.ProgramPCM, 6300, 9000},
	{"98980", model.ProgramRTM, 5100, 7000},
}

var (
	firstNames = []string{"JANE", "RICHARD", "ANN", "MARIA", "DAVID", "LINDA", "JAMES", "SUSAN"}
	lastNames  = []string{"DOE", "ROE", "LEE", "GARCIA", "SMITH", "NGUYEN", "BROWN", "PATEL"}
)

type claimLine struct {
	patientFirst string
	patientLast  string
	svc          service
	paid         money.Cents
	enrolled     bool
}

func main() {
	out := flag.String("out", "testdata/fixture", "output directory")
	claims := flag.Int("claims", 20, "number of claims in the 835")
	practice := flag.String("practice", "PRACTICE001", "practice ID")
	month := flag.String("month", "JAN", "billing month")
	year := flag.Int("year", 2024, "billing year")
	flag.Parse()

	period, err := model.NewPeriod(*month, *year)
	if err != nil {
		fmt.Fprintf(os.Stderr, "period: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	lines := buildLines(*claims)

	remitPath := filepath.Join(*out, "remit.835")
	if err := os.WriteFile(remitPath, []byte(render835(*practice, period, lines)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write 835: %v\n", err)
		os.Exit(1)
	}

	rates := make([]model.FeeScheduleRow, 0, len(services))
	for _, s := range services {
		rates = append(rates, model.FeeScheduleRow{
			PracticeID:    *practice,
			CPTCode:       s.code,
			Month:         string(period.Month),
			Year:          int32(period.Year),
			ProgramType:   string(s.program),
			ExpectedCents: s.expected.Int64(),
		})
	}
	var encounters []model.EncounterRow
	for _, l := range lines {
		if !l.enrolled {
			continue
		}
		encounters = append(encounters, model.EncounterRow{
			PracticeID:  *practice,
			PatientName: l.patientFirst + " " + l.patientLast,
			CPTCode:     l.svc.code,
			Month:       string(period.Month),
			Year:        int32(period.Year),
		})
	}

	ratesPath := filepath.Join(*out, "fee_schedule.parquet")
	if err := writeParquet(ratesPath, rates); err != nil {
		fmt.Fprintf(os.Stderr, "write fee schedule: %v\n", err)
		os.Exit(1)
	}
	encountersPath := filepath.Join(*out, "encounters.parquet")
	if err := writeParquet(encountersPath, encounters); err != nil {
		fmt.Fprintf(os.Stderr, "write encounters: %v\n", err)
		os.Exit(1)
	}

	var paid, expected money.Cents
	unmatched := 0
	for _, l := range lines {
		paid += l.paid
		if l.svc.expected == 0 || !l.enrolled {
			unmatched++
			continue
		}
		expected += l.svc.expected
	}

	fmt.Printf("Wrote %s (%d claims)\n", remitPath, len(lines))
	fmt.Printf("Wrote %s (%d rates)\n", ratesPath, len(rates))
	fmt.Printf("Wrote %s (%d encounters)\n", encountersPath, len(encounters))
	fmt.Printf("\nPaid %s, expected (matched) %s, %d lines expected unmatched\n", paid, expected, unmatched)
}

func buildLines(n int) []claimLine {
	lines := make([]claimLine, n)
	for i := range lines {
		svc := services[i%len(services)]
		if i%7 == 6 {
			svc = service{code: "00000", billed: 2000}
		}
		paid := svc.expected
		if svc.expected == 0 {
			paid = svc.billed * 3 / 4
		} else if i%5 == 4 {
			paid = svc.expected - 800
		}
		lines[i] = claimLine{
			patientFirst: firstNames[i%len(firstNames)],
			patientLast:  lastNames[(i/len(firstNames)+i)%len(lastNames)],
			svc:          svc,
			paid:         paid,
			enrolled:     i%11 != 10,
		}
	}
	return lines
}

// render835 emits one transaction set with a claim per line.
func render835(practice string, p model.Period, lines []claimLine) string {
	now := time.Now().UTC()
	var total money.Cents
	for _, l := range lines {
		total += l.paid
	}

	var body []string
	seg := func(s string) { body = append(body, s) }
	seg("ST*835*0001")
	seg(fmt.Sprintf("BPR*I*%s*C*ACH*CCP*01*999999999*DA*123456*1512345678**01*999988880*DA*98765*%s", total, now.Format("20060102")))
	seg("TRN*1*12345*1512345678")
	seg("DTM*405*" + now.Format("20060102"))
	seg("N1*PR*MEDICARE PART B")
	seg("N1*PE*" + practice + "*XX*1234567893")
	seg("LX*1")
	for i, l := range lines {
		adj := l.svc.billed - l.paid
		day := i%28 + 1
		seg(fmt.Sprintf("CLP*PCN%04d*1*%s*%s**MB*ICN%04d*11", i+1, l.svc.billed, l.paid, i+1))
		seg(fmt.Sprintf("NM1*QC*1*%s*%s****MI*MBI%07d", l.patientLast, l.patientFirst, i+1))
		seg(fmt.Sprintf("SVC*HC:%s*%s*%s**1", l.svc.code, l.svc.billed, l.paid))
		seg(fmt.Sprintf("DTM*472*%04d%02d%02d", p.Year, p.Month.Number(), day))
		if adj != 0 {
			seg(fmt.Sprintf("CAS*CO*45*%s", adj))
		}
	}
	seg(fmt.Sprintf("SE*%d*0001", len(body)+1))

	isa := fmt.Sprintf("ISA*00*          *00*          *ZZ*%-15s*ZZ*%-15s*%s*%s*^*00501*000000042*0*P*:",
		"MEDICAREPAYER", truncate(practice, 15), now.Format("060102"), now.Format("1504"))
	segments := []string{
		isa,
		fmt.Sprintf("GS*HP*MEDICAREPAYER*%s*%s*%s*42*X*005010X221A1", practice, now.Format("20060102"), now.Format("1504")),
	}
	segments = append(segments, body...)
	segments = append(segments, "GE*1*42", "IEA*1*000000042")
	return strings.Join(segments, "~\n") + "~\n"
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func writeParquet[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := goparquet.NewGenericWriter[T](f)
	if _, err := w.Write(rows); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}
