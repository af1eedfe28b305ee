package snapshotdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb"

	"github.com/plc-analyzer/backend/internal/models"
)

func nullStr(p *string) driver.Value {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) driver.Value {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func emptyAsNull(s string) driver.Value {
	if s == "" {
		return nil
	}
	return s
}

// appendAll bulk loads n rows into table through one Appender.
func appendAll(conn *duckdb.Conn, table string, n int, row func(i int) []driver.Value) error {
	if n == 0 {
		return nil
	}
	appender, err := duckdb.NewAppenderFromConn(conn, "", table)
	if err != nil {
		return fmt.Errorf("failed to create appender for %s: %w", table, err)
	}
	defer appender.Close()

	for i := 0; i < n; i++ {
		if err := appender.AppendRow(row(i)...); err != nil {
			return fmt.Errorf("failed to append %s row %d: %w", table, i, err)
		}
	}
	return appender.Flush()
}

func appendSnapshot(ctx context.Context, conn *duckdb.Conn, snap *models.Snapshot) error {
	sec := snap.Sections
	steps := []func() error{
		func() error {
			return appendAll(conn, "snapshot_meta", 1, func(int) []driver.Value {
				return []driver.Value{
					snap.ID, emptyAsNull(snap.FileID), emptyAsNull(snap.FileName), string(snap.Kind),
					emptyAsNull(snap.SchemaRevision), nullStr(snap.SoftwareRevision),
					nullStr(snap.ControllerName), nullStr(snap.TargetType), snap.ParsedAt.UTC(),
					sec.DataTypes, sec.AOIs, sec.Modules, sec.Tags, sec.Programs, sec.Tasks,
				}
			})
		},
		func() error {
			return appendAll(conn, "tags", len(snap.Tags), func(i int) []driver.Value {
				t := snap.Tags[i]
				return []driver.Value{
					int32(i), t.Name, t.DataType, t.Scope, t.TagType,
					nullStr(t.Description), nullStr(t.Usage), nullStr(t.AliasFor), nullStr(t.Dimensions),
					nullStr(t.Radix), nullStr(t.ExternalAccess), t.Constant,
				}
			})
		},
		func() error {
			return appendAll(conn, "udts", len(snap.UDTs), func(i int) []driver.Value {
				u := snap.UDTs[i]
				return []driver.Value{int32(i), u.Name, nullStr(u.Family), nullStr(u.Description)}
			})
		},
		func() error {
			type member struct {
				udt, ord int
				m        models.UDTMember
			}
			var rows []member
			for ui, u := range snap.UDTs {
				for mi, m := range u.Members {
					rows = append(rows, member{ui, mi, m})
				}
			}
			return appendAll(conn, "udt_members", len(rows), func(i int) []driver.Value {
				r := rows[i]
				return []driver.Value{
					int32(r.udt), int32(r.ord), r.m.Name, r.m.DataType, nullInt(r.m.Dimension),
					nullStr(r.m.Description), r.m.Hidden,
				}
			})
		},
		func() error {
			return appendAll(conn, "aois", len(snap.AOIs), func(i int) []driver.Value {
				a := snap.AOIs[i]
				return []driver.Value{int32(i), a.Name, a.Revision, nullStr(a.Vendor), nullStr(a.Description)}
			})
		},
		func() error {
			type param struct {
				aoi, ord int
				p        models.AOIParameter
			}
			var rows []param
			for ai, a := range snap.AOIs {
				for pi, p := range a.Parameters {
					rows = append(rows, param{ai, pi, p})
				}
			}
			return appendAll(conn, "aoi_parameters", len(rows), func(i int) []driver.Value {
				r := rows[i]
				return []driver.Value{
					int32(r.aoi), int32(r.ord), r.p.Name, r.p.DataType, string(r.p.Usage),
					r.p.Required, r.p.Visible, nullStr(r.p.Description), nullStr(r.p.ExternalAccess),
				}
			})
		},
		func() error {
			return appendAll(conn, "programs", len(snap.Programs), func(i int) []driver.Value {
				p := snap.Programs[i]
				return []driver.Value{int32(i), p.Name, nullStr(p.MainRoutine), p.Disabled, nullStr(p.Description)}
			})
		},
		func() error {
			return appendAll(conn, "routines", len(snap.Routines), func(i int) []driver.Value {
				r := snap.Routines[i]
				return []driver.Value{
					int32(i), r.ProgramName, r.Name, string(r.Type), nullStr(r.Description), int64(r.RungCount),
				}
			})
		},
		func() error {
			return appendAll(conn, "rungs", len(snap.Rungs), func(i int) []driver.Value {
				r := snap.Rungs[i]
				return []driver.Value{
					int32(i), r.ProgramName, r.RoutineName, int64(r.Number), emptyAsNull(r.Type),
					nullStr(r.Comment), r.LogicText,
				}
			})
		},
		func() error {
			return appendAll(conn, "modules", len(snap.Modules), func(i int) []driver.Value {
				m := snap.Modules[i]
				var info driver.Value
				if len(m.ConnectionInfo) > 0 {
					info = string(m.ConnectionInfo)
				}
				return []driver.Value{
					int32(i), m.Name, nullStr(m.CatalogNumber), nullStr(m.ParentModule), nullInt(m.Slot), info,
				}
			})
		},
		func() error {
			return appendAll(conn, "tasks", len(snap.Tasks), func(i int) []driver.Value {
				t := snap.Tasks[i]
				return []driver.Value{
					int32(i), t.Name, string(t.Type), nullInt(t.Rate), int64(t.Priority), nullInt(t.Watchdog),
					t.InhibitTask, t.DisableUpdateOutputs, nullStr(t.Description),
				}
			})
		},
		func() error {
			type scheduled struct {
				task, ord int
				name      string
			}
			var rows []scheduled
			for ti, t := range snap.Tasks {
				for pi, p := range t.ScheduledPrograms {
					rows = append(rows, scheduled{ti, pi, p})
				}
			}
			return appendAll(conn, "task_programs", len(rows), func(i int) []driver.Value {
				r := rows[i]
				return []driver.Value{int32(r.task), int32(r.ord), r.name}
			})
		},
		func() error {
			return appendAll(conn, "tag_references", len(snap.References), func(i int) []driver.Value {
				r := snap.References[i]
				return []driver.Value{
					int32(i), r.TagName, r.ProgramName, r.RoutineName, int64(r.RungNumber),
					r.Instruction, int64(r.OperandIndex), string(r.UsageType),
				}
			})
		},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
