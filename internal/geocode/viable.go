package geocode

import (
	"encoding/csv"
	"io"
	"os"
	"strings"
)

// LoadServiceable reads the serviceable-municipality list from a CSV with a
// municipality_name column (or single-column rows), normalized and deduped.
func LoadServiceable(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseServiceable(f)
}

func parseServiceable(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var out []string
	seen := make(map[string]struct{})
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		name := row[0]
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(name), "municipality_name") {
				continue
			}
		}
		normalized := NormalizeLocation(name)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out, nil
}

// Viable reports whether a resolved location falls inside the serviceable
// list: best whole-string match at or above the threshold. The 90 default is
// an inherited calibration, kept configurable.
func Viable(location string, serviceable []string, threshold int) string {
	normalized := NormalizeLocation(location)
	if normalized == "" || len(serviceable) == 0 {
		return "No"
	}

	best := 0
	for _, candidate := range serviceable {
		if score := Ratio(normalized, candidate); score > best {
			best = score
		}
	}
	if best >= threshold {
		return "Yes"
	}
	return "No"
}
