// Package export renders derived flow data as semicolon-separated tables and
// Excel workbooks.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/02loveslollipop/station-telemetry/internal/flow"
)

const (
	dateLayout = "02/01/2006"
	timeLayout = "15:04:05"
)

// ProcessedHeader lists the columns of the processed samples table.
var ProcessedHeader = []string{
	"Date",
	"Heure",
	"Niveau (m)",
	"Niveau filtré (m)",
	"Débit Entrée (m³/h)",
	"Débit Sortie (m³/h)",
	"Volume cumulé (m³)",
}

// DailyHeader lists the columns of the daily volumes table.
var DailyHeader = []string{"Date", "Volume (m³)"}

func fixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// ProcessedRow formats one processed sample in the station's location.
func ProcessedRow(p flow.ProcessedSample, loc *time.Location) []string {
	local := p.Date.In(loc)
	filtered := ""
	if p.FilteredLevel != nil {
		filtered = fixed(*p.FilteredLevel, 3)
	}
	return []string{
		local.Format(dateLayout),
		local.Format(timeLayout),
		fixed(p.Level, 3),
		filtered,
		fixed(p.QEntree, 2),
		fixed(p.QSortie, 2),
		fixed(p.VolumeIndex, 2),
	}
}

// DailyRow formats one daily volume.
func DailyRow(d flow.DailyVolume) []string {
	return []string{d.Date.Format(dateLayout), fixed(d.Volume, 2)}
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw
}

// WriteProcessedCSV writes the processed samples table. Nothing is written
// for an empty input, not even the header.
func WriteProcessedCSV(w io.Writer, samples []flow.ProcessedSample, loc *time.Location) error {
	if len(samples) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	cw := newWriter(w)
	if err := cw.Write(ProcessedHeader); err != nil {
		return err
	}
	for _, p := range samples {
		if err := cw.Write(ProcessedRow(p, loc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDailyCSV writes the daily volumes table, nothing for an empty input.
func WriteDailyCSV(w io.Writer, volumes []flow.DailyVolume) error {
	if len(volumes) == 0 {
		return nil
	}
	cw := newWriter(w)
	if err := cw.Write(DailyHeader); err != nil {
		return err
	}
	for _, d := range volumes {
		if err := cw.Write(DailyRow(d)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
