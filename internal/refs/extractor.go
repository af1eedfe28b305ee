package refs

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/observability"
)

// Extractor turns rung logic into TagReference rows.
type Extractor struct {
	table   *InstructionTable
	workers int
	logger  *slog.Logger

	// warned holds mnemonics already logged as unknown.
	warned sync.Map
}

// NewExtractor creates an extractor. workers <= 0 uses GOMAXPROCS.
func NewExtractor(table *InstructionTable, workers int) *Extractor {
	if table == nil {
		table = DefaultInstructionTable()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Extractor{
		table:   table,
		workers: workers,
		logger:  slog.Default().With("component", "refs"),
	}
}

// Extract indexes every rung of the snapshot. Rungs are processed in
// parallel; the result is in rung order and then operand order, so repeated
// runs produce identical output.
func (e *Extractor) Extract(ctx context.Context, snap *models.Snapshot) ([]models.TagReference, error) {
	aois := snap.AOIByName()
	results := make([][]models.TagReference, len(snap.Rungs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range snap.Rungs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.ExtractRung(snap.Rungs[i], aois, snap.FileID, snap.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]models.TagReference, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	observability.ReferencesExtracted.Add(float64(total))
	return out, nil
}

// ExtractRung indexes one rung. Every occurrence is kept, including repeats
// of the same tag. aois maps upper-case AOI names to definitions.
func (e *Extractor) ExtractRung(rung models.Rung, aois map[string]models.AOI, fileID, versionID string) []models.TagReference {
	calls, err := Tokenize(rung.LogicText)
	if err != nil {
		e.logger.Warn("rung logic not fully tokenized",
			"program", rung.ProgramName, "routine", rung.RoutineName,
			"rung", rung.Number, "error", err)
	}

	var out []models.TagReference
	emit := func(call string, idx int, tag string, usage models.UsageType) {
		out = append(out, models.TagReference{
			TagName:      tag,
			FileID:       fileID,
			VersionID:    versionID,
			ProgramName:  rung.ProgramName,
			RoutineName:  rung.RoutineName,
			RungNumber:   rung.Number,
			Instruction:  call,
			OperandIndex: idx,
			UsageType:    usage,
		})
	}

	for _, call := range calls {
		signature := e.signature(call.Mnemonic, aois).forCall(call.Operands)
		for idx, op := range call.Operands {
			role := signature.RoleAt(idx)
			switch role {
			case Ignore:
				continue
			case Expression:
				for _, id := range expressionIdentifiers(op) {
					emit(call.Mnemonic, idx, id, models.UsageRead)
				}
				continue
			}
			if isLiteral(op) {
				continue
			}
			if !isTagPath(op) {
				// Inline expressions are accepted where a source value is expected.
				for _, id := range expressionIdentifiers(op) {
					emit(call.Mnemonic, idx, id, models.UsageRead)
				}
				continue
			}
			emit(call.Mnemonic, idx, op, usageFor(role))
			for _, id := range indexIdentifiers(op) {
				emit(call.Mnemonic, idx, id, models.UsageRead)
			}
		}
	}
	return out
}

// signature resolves an AOI call first, then the instruction table, then the
// conservative all-Read default. Logix names are case-insensitive; aois is
// keyed by upper-case name as built by Snapshot.AOIByName.
func (e *Extractor) signature(mnemonic string, aois map[string]models.AOI) Signature {
	if aoi, ok := aois[strings.ToUpper(mnemonic)]; ok {
		return AOISignature(aoi)
	}
	if s, ok := e.table.Lookup(mnemonic); ok {
		return s
	}
	observability.UnknownMnemonics.Inc()
	if _, seen := e.warned.LoadOrStore(mnemonic, struct{}{}); !seen {
		e.logger.Warn("unknown instruction mnemonic, operands treated as Read", "mnemonic", mnemonic)
	}
	return Signature{Rest: Read}
}

// AOISignature derives operand roles for a call to an add-on instruction:
// the instance tag first, then the required parameters in declaration order.
func AOISignature(aoi models.AOI) Signature {
	params := aoi.CallOperands()
	roles := make([]Role, 0, len(params)+1)
	roles = append(roles, ReadWrite)
	for _, p := range params {
		switch p.Usage {
		case models.ParameterOutput:
			roles = append(roles, Write)
		case models.ParameterInOut:
			roles = append(roles, ReadWrite)
		default:
			roles = append(roles, Read)
		}
	}
	return Signature{Roles: roles, Rest: Read}
}

func usageFor(r Role) models.UsageType {
	switch r {
	case Write:
		return models.UsageWrite
	case ReadWrite:
		return models.UsageReadWrite
	}
	return models.UsageRead
}
