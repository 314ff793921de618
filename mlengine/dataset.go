package mlengine

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadHistoricalCSV reads the historical dataset into records. The header
// drives column mapping: the grouping keys and year are required, every
// other column is treated as a numeric measure. Cells that fail to parse
// as numbers become missing values rather than errors.
func LoadHistoricalCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, required := range []string{colProvince, colCommodity, colSeason, colYear} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("historical data missing column %q", required)
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		cell := func(name string) string {
			i := idx[name]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		year, err := strconv.Atoi(cell(colYear))
		if err != nil {
			// A row without a usable year cannot join any time series.
			continue
		}
		rec := Record{
			Province:  cell(colProvince),
			Commodity: cell(colCommodity),
			Season:    cell(colSeason),
			Year:      year,
			Values:    make(map[string]float64),
		}
		for i, name := range header {
			switch name {
			case colProvince, colCommodity, colSeason, colYear:
				continue
			}
			if i >= len(row) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				continue // missing value
			}
			rec.Values[name] = v
		}
		records = append(records, rec)
	}
	return records, nil
}
