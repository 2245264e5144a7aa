package reference

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/tre1322/best-of-analyzer/internal/canon"
	"github.com/tre1322/best-of-analyzer/internal/fetcher"
)

// FileSource reads reference tables from local files. An empty path yields
// an empty table.
type FileSource struct {
	AnchorsPath string
	MasterPath  string
}

// Anchors implements Source.
func (s FileSource) Anchors(ctx context.Context) ([]canon.AnchorRule, error) {
	if s.AnchorsPath == "" {
		return nil, nil
	}
	f, err := os.Open(s.AnchorsPath)
	if err != nil {
		return nil, eris.Wrap(err, "reference: open anchors")
	}
	defer f.Close() //nolint:errcheck

	switch strings.ToLower(filepath.Ext(s.AnchorsPath)) {
	case ".yaml", ".yml":
		return ReadAnchorsYAML(f)
	default:
		return ReadAnchorsCSV(ctx, f)
	}
}

// Businesses implements Source.
func (s FileSource) Businesses(_ context.Context) ([]Business, error) {
	if s.MasterPath == "" {
		return nil, nil
	}
	f, err := os.Open(s.MasterPath)
	if err != nil {
		return nil, eris.Wrap(err, "reference: open master directory")
	}
	defer f.Close() //nolint:errcheck

	return ReadMaster(f)
}

// ReadAnchorsCSV parses a CSV with "anchor" and "canonical" columns. Anchors
// are trimmed and lowercased; row order is kept and a repeated anchor keeps
// its first position but takes the later canonical name.
func ReadAnchorsCSV(ctx context.Context, r io.Reader) ([]canon.AnchorRule, error) {
	rows, err := fetcher.ReadCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true})
	if err != nil {
		return nil, eris.Wrap(err, "reference: read anchors csv")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	colIdx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		colIdx[strings.ToLower(h)] = i
	}
	anchorCol, ok := colIdx["anchor"]
	if !ok {
		return nil, eris.New("reference: anchors csv missing 'anchor' column")
	}
	canonicalCol, ok := colIdx["canonical"]
	if !ok {
		return nil, eris.New("reference: anchors csv missing 'canonical' column")
	}

	getCol := func(row []string, idx int) string {
		if idx < len(row) {
			return row[idx]
		}
		return ""
	}

	var raw []canon.AnchorRule
	for _, row := range rows[1:] {
		raw = append(raw, canon.AnchorRule{
			Fragment:  getCol(row, anchorCol),
			Canonical: getCol(row, canonicalCol),
		})
	}
	return cleanAnchors(raw), nil
}

// ReadAnchorsYAML parses a YAML list of {anchor, canonical} mappings.
func ReadAnchorsYAML(r io.Reader) ([]canon.AnchorRule, error) {
	var raw []canon.AnchorRule
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "reference: decode anchors yaml")
	}
	return cleanAnchors(raw), nil
}

func cleanAnchors(raw []canon.AnchorRule) []canon.AnchorRule {
	pos := make(map[string]int, len(raw))
	out := make([]canon.AnchorRule, 0, len(raw))
	for _, a := range raw {
		frag := strings.ToLower(strings.TrimSpace(a.Fragment))
		canonical := strings.TrimSpace(a.Canonical)
		if frag == "" || canonical == "" {
			continue
		}
		if i, ok := pos[frag]; ok {
			out[i].Canonical = canonical
			continue
		}
		pos[frag] = len(out)
		out = append(out, canon.AnchorRule{Fragment: frag, Canonical: canonical})
	}
	return out
}

// ReadMaster decodes a master directory CSV. Only "Business Name" is
// required; rows without a name are dropped.
func ReadMaster(r io.Reader) ([]Business, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "reference: read master header")
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	hasName := false
	for _, h := range header {
		if h == "Business Name" {
			hasName = true
		}
	}
	if !hasName {
		return nil, eris.New("reference: master directory missing 'Business Name' column")
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return nil, eris.Wrap(err, "reference: master decoder")
	}

	var out []Business
	for {
		var b Business
		if err := dec.Decode(&b); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "reference: decode master row")
		}
		b.Name = strings.TrimSpace(b.Name)
		if b.Name == "" {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// WriteMaster encodes businesses in the master directory CSV layout.
func WriteMaster(w io.Writer, businesses []Business) error {
	cw := csv.NewWriter(w)
	if err := csvutil.NewEncoder(cw).Encode(businesses); err != nil {
		return eris.Wrap(err, "reference: encode master directory")
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "reference: flush master directory")
	}
	return nil
}
