package feature

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
)

type featureColumn struct {
	Channel int
	Name    string
}

func (c featureColumn) header() string { return featureKey(c.Name, c.Channel) }

func columnsForConfig(cfg Config) []featureColumn {
	var cols []featureColumn
	if cfg.PC != nil {
		for _, f := range cfg.PC.Features {
			cols = append(cols, featureColumn{Channel: cfg.PC.Channel, Name: f})
		}
	}
	for _, spec := range cfg.FL {
		for _, f := range spec.Features {
			cols = append(cols, featureColumn{Channel: spec.Channel, Name: f})
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Channel != cols[j].Channel {
			return cols[i].Channel < cols[j].Channel
		}
		return cols[i].Name < cols[j].Name
	})
	return cols
}

// WriteCSV writes rows in the fixed traces CSV format: LF newlines, UTF-8,
// no BOM, a header-only file when rows is empty.
func WriteCSV(w io.Writer, rows []FeatureRow, cfg Config) error {
	cols := columnsForConfig(cfg)
	cw := csv.NewWriter(w)

	header := []string{"fov", "cell", "frame", "time", "good", "position_x", "position_y", "bbox_x0", "bbox_y0", "bbox_x1", "bbox_y1"}
	for _, c := range cols {
		header = append(header, c.header())
	}
	if err := cw.Write(header); err != nil {
		return perr.E(perr.IoError, "write csv header", err)
	}

	for _, r := range rows {
		record := []string{
			fmt.Sprintf("%d", r.FOV),
			fmt.Sprintf("%d", r.Cell),
			fmt.Sprintf("%d", r.Frame),
			fmt.Sprintf("%.6f", r.Time),
			fmt.Sprintf("%t", r.Good),
			fmt.Sprintf("%.6f", r.PosX),
			fmt.Sprintf("%.6f", r.PosY),
			fmt.Sprintf("%d", r.BBoxX0),
			fmt.Sprintf("%d", r.BBoxY0),
			fmt.Sprintf("%d", r.BBoxX1),
			fmt.Sprintf("%d", r.BBoxY1),
		}
		for _, c := range cols {
			record = append(record, fmt.Sprintf("%.6f", r.Features[c.header()]))
		}
		if err := cw.Write(record); err != nil {
			return perr.E(perr.IoError, "write csv row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return perr.E(perr.IoError, "flush csv", err)
	}
	return nil
}
