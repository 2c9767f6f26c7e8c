// Package village loads and queries the read-only village catalog.
//
// The catalog is reference data, not user data: it is read once at start-up
// from a CSV export of the public rural experience village dataset and kept
// in memory for the life of the process. Collections, draws and memories
// refer to villages only by ID.
package village

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sakif/village-gacha/internal/model"
)

//go:embed data/villages.csv
var defaultCSV []byte

// CSV header names, as published in the source dataset.
const (
	colName           = "체험마을명"
	colSido           = "시도명"
	colSigungu        = "시군구명"
	colRoadAddress    = "소재지도로명주소"
	colLotAddress     = "소재지지번주소"
	colPhone          = "대표전화번호"
	colLatitude       = "위도"
	colLongitude      = "경도"
	colProgramName    = "체험프로그램명"
	colProgramContent = "체험프로그램구분"
)

// Catalog is an immutable, ID-indexed list of villages. It is safe for
// concurrent use because nothing mutates it after Load returns.
type Catalog struct {
	villages []model.Village // file order
	byID     map[int64]*model.Village
}

// LoadDefault parses the catalog compiled into the binary.
func LoadDefault(logger *slog.Logger) (*Catalog, error) {
	return Load(bytes.NewReader(defaultCSV), logger)
}

// LoadFile parses a catalog CSV from disk. An empty path means the
// embedded default.
func LoadFile(path string, logger *slog.Logger) (*Catalog, error) {
	if path == "" {
		return LoadDefault(logger)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("village: opening %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, logger)
}

// Load parses CSV with a header row.
//
// IDs are assigned 1..N by data row position, skipped rows included.
// Rows without a village name are skipped with a warning. Text is NFC
// normalised: the same Hangul can arrive decomposed (NFD) from macOS
// exports, and exact-match filters would otherwise miss it.
func Load(r io.Reader, logger *slog.Logger) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("village: reading header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff") // UTF-8 BOM from spreadsheet exports
		index[normalize(h)] = i
	}
	if _, ok := index[colName]; !ok {
		return nil, fmt.Errorf("village: header has no %q column", colName)
	}

	c := &Catalog{byID: make(map[int64]*model.Village)}
	var line int64
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			logger.Warn("skipping malformed village row",
				slog.Int64("row", line),
				slog.String("error", err.Error()),
			)
			continue
		}

		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return normalize(record[i])
		}

		name := get(colName)
		if name == "" {
			logger.Warn("skipping village row without a name", slog.Int64("row", line))
			continue
		}

		address := get(colRoadAddress)
		if address == "" {
			address = get(colLotAddress)
		}

		c.villages = append(c.villages, model.Village{
			ID:             line,
			Name:           name,
			SidoName:       get(colSido),
			SigunguName:    get(colSigungu),
			Address:        address,
			PhoneNumber:    get(colPhone),
			Latitude:       parseCoord(get(colLatitude)),
			Longitude:      parseCoord(get(colLongitude)),
			ProgramName:    get(colProgramName),
			ProgramContent: get(colProgramContent),
			ImageURL:       ImageURL(line),
		})
	}

	for i := range c.villages {
		c.byID[c.villages[i].ID] = &c.villages[i]
	}

	logger.Info("village catalog loaded", slog.Int("villages", len(c.villages)))
	return c, nil
}

// New builds a catalog from already-parsed villages. Used by tests and by
// callers that source villages elsewhere.
func New(villages []model.Village) *Catalog {
	c := &Catalog{
		villages: append([]model.Village(nil), villages...),
		byID:     make(map[int64]*model.Village, len(villages)),
	}
	for i := range c.villages {
		c.byID[c.villages[i].ID] = &c.villages[i]
	}
	return c
}

// ImageURL is the placeholder photo for a village. picsum has ids 1..1000.
func ImageURL(id int64) string {
	return fmt.Sprintf("https://picsum.photos/id/%d/800/600", (id%1000)+1)
}

// Len returns the number of villages.
func (c *Catalog) Len() int {
	return len(c.villages)
}

// All returns every village in file order. Callers must not modify the slice.
func (c *Catalog) All() []model.Village {
	return c.villages
}

// ByID returns a copy of the village, or false if there is none.
func (c *Catalog) ByID(id int64) (model.Village, bool) {
	v, ok := c.byID[id]
	if !ok {
		return model.Village{}, false
	}
	return *v, true
}

// Filter returns villages whose SidoName equals f.Region (when set) and
// whose ProgramName contains f.ProgramType (when set), in file order.
// The result is never nil.
func (c *Catalog) Filter(f model.VillageFilter) []model.Village {
	region := normalize(f.Region)
	program := normalize(f.ProgramType)

	out := make([]model.Village, 0)
	for _, v := range c.villages {
		if region != "" && v.SidoName != region {
			continue
		}
		if program != "" && !strings.Contains(v.ProgramName, program) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Pick selects one candidate uniformly. intn must return a value in [0, n).
// Returns false when candidates is empty.
func Pick(candidates []model.Village, intn func(n int) int) (model.Village, bool) {
	if len(candidates) == 0 {
		return model.Village{}, false
	}
	return candidates[intn(len(candidates))], true
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// parseCoord returns 0 for empty or unparsable coordinates.
func parseCoord(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
