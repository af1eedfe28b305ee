// Package export renders snapshots, reports and scores as CSV, Markdown and
// plain-text context.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
)

var (
	tagHeader       = []string{"Name", "Scope", "DataType", "TagType", "Dimensions", "AliasFor", "Usage", "ExternalAccess", "Constant", "Description"}
	referenceHeader = []string{"TagName", "Program", "Routine", "Rung", "Instruction", "Operand", "Usage"}
	unusedHeader    = []string{"File", "Name", "Scope", "DataType", "TagType", "Description"}
)

func opt(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func writeAll(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTagsCSV writes one row per tag in declaration order.
func WriteTagsCSV(w io.Writer, tags []models.Tag) error {
	return writeAll(w, tagHeader, len(tags), func(i int) []string {
		t := tags[i]
		return []string{
			t.Name, t.Scope, t.DataType, t.TagType,
			opt(t.Dimensions), opt(t.AliasFor), opt(t.Usage), opt(t.ExternalAccess),
			strconv.FormatBool(t.Constant), opt(t.Description),
		}
	})
}

// WriteReferencesCSV writes one row per tag reference.
func WriteReferencesCSV(w io.Writer, refs []models.TagReference) error {
	return writeAll(w, referenceHeader, len(refs), func(i int) []string {
		r := refs[i]
		return []string{
			r.TagName, r.ProgramName, r.RoutineName,
			strconv.Itoa(r.RungNumber), r.Instruction, strconv.Itoa(r.OperandIndex), string(r.UsageType),
		}
	})
}

// WriteUnusedCSV writes the project unused tag list.
func WriteUnusedCSV(w io.Writer, tags []metrics.UnusedTag) error {
	return writeAll(w, unusedHeader, len(tags), func(i int) []string {
		t := tags[i]
		return []string{t.FileName, t.Name, t.Scope, t.DataType, t.TagType, opt(t.Description)}
	})
}
