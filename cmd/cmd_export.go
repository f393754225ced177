// cmd_export.go - Export Command fuer Gewichts-Bit-Ebenen
// Hauptfunktionen: ExportHandler, writeManifest, verifyExport
package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/mnsim/xbarsim/ml"
	"github.com/mnsim/xbarsim/xbar"
)

const (
	manifestName = "manifest.json"
	planeSuffix  = ".bin"
)

// manifest - Lesesicht auf manifest.json
type manifest struct {
	ID       string           `json:"id"`
	Encoding string           `json:"encoding"`
	State    xbar.LayerState  `json:"state"`
	Planes   map[string][]int `json:"planes"`
	Layer    map[string]any   `json:"layer"`
}

// ExportHandler - Kalibriert eine Schicht und schreibt ihre Bit-Ebenen
func ExportHandler(cmd *cobra.Command, args []string) error {
	dir := args[0]

	encName, _ := cmd.Flags().GetString("encoding")
	enc, err := xbar.ParseEncoding(encName)
	if err != nil {
		return err
	}
	lo, err := layerOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := enc.CheckCellBit(lo.Hardware.WeightBit); err != nil {
		return err
	}

	s, err := calibratedSession(cmd)
	if err != nil {
		return err
	}
	x := s.randomInput()
	if _, err := s.layer.StructureForward(x); err != nil {
		return err
	}
	if err := s.layer.SetFixMethod(xbar.SingleFixTest); err != nil {
		return err
	}

	planes, err := s.layer.ExportPlanes()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	var data [][]string
	shapes := orderedmap.New[string, []int]()
	for _, k := range planes.Keys() {
		b, err := xbar.EncodePlane(planes[k], enc)
		if err != nil {
			return err
		}
		name := k.Name() + planeSuffix
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			return err
		}

		shape := planes[k].Shape()
		shapes.Set(k.Name(), shape)
		data = append(data, []string{name, fmt.Sprint(shape), strconv.Itoa(len(b))})
	}

	id, err := writeManifest(dir, s, enc, shapes)
	if err != nil {
		return err
	}
	slog.Info("exported bit planes", "dir", dir, "id", id, "planes", len(planes), "encoding", enc)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"NAME", "SHAPE", "BYTES"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	if verify, _ := cmd.Flags().GetBool("verify"); verify {
		diff, err := verifyExport(dir, s, x)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nverified %d planes, max abs difference %g\n", len(planes), diff)
	}
	return nil
}

// writeManifest - Schreibt LayerInfo, Ledger und Ebenen-Shapes als JSON
func writeManifest(dir string, s *session, enc xbar.Encoding, shapes *orderedmap.OrderedMap[string, []int]) (string, error) {
	id := uuid.NewString()

	m := orderedmap.New[string, any]()
	m.Set("id", id)
	m.Set("encoding", enc.String())
	m.Set("hardware", s.Hardware)
	m.Set("quantize", s.Quantize)
	m.Set("layer", s.layer.Info().Map())
	m.Set("state", s.layer.State())
	m.Set("planes", shapes)

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	return id, os.WriteFile(filepath.Join(dir, manifestName), b, 0o644)
}

// readPlanes - Liest manifest.json und alle darin genannten Ebenen
func readPlanes(dir string) (manifest, xbar.Planes, error) {
	var m manifest
	b, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return m, nil, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, nil, fmt.Errorf("%s: %w", manifestName, err)
	}
	enc, err := xbar.ParseEncoding(m.Encoding)
	if err != nil {
		return m, nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return m, nil, err
	}

	planes := make(xbar.Planes)
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), planeSuffix)
		if !ok || e.IsDir() {
			continue
		}
		key, err := xbar.ParsePlaneName(name)
		if err != nil {
			return m, nil, err
		}
		shape, ok := m.Planes[name]
		if !ok {
			return m, nil, fmt.Errorf("%s not in %s: %w", e.Name(), manifestName, xbar.ErrPlaneMismatch)
		}

		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return m, nil, err
		}
		if planes[key], err = xbar.DecodePlane(b, enc, shape...); err != nil {
			return m, nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
	}
	return m, planes, nil
}

// verifyExport - Vergleicht den Forward mit gelesenen Ebenen gegen den Forward mit Gewichten.
// Jede Abweichung ist ein Fehler.
func verifyExport(dir string, s *session, x *ml.Tensor) (float64, error) {
	m, planes, err := readPlanes(dir)
	if err != nil {
		return 0, err
	}
	if got := xbar.ScaleRecordFromTable(m.State.BitScaleList); got != s.layer.Scales() {
		return 0, fmt.Errorf("manifest ledger %v differs from layer %v: %w", got, s.layer.Scales(), xbar.ErrPlaneMismatch)
	}

	xq, err := s.quantizedInput(x)
	if err != nil {
		return 0, err
	}
	want, err := s.layer.Forward(nil, xq)
	if err != nil {
		return 0, err
	}
	got, err := s.layer.ForwardWithPlanes(xq, planes)
	if err != nil {
		return 0, err
	}
	diff, err := want.MaxAbsDiff(got)
	if err != nil {
		return 0, err
	}
	if diff != 0 {
		return diff, fmt.Errorf("crossbar output from %s differs by %g: %w", dir, diff, xbar.ErrPlaneMismatch)
	}
	return diff, nil
}
