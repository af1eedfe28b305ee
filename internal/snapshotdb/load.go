package snapshotdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/plc-analyzer/backend/internal/models"
)

func strOf(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func intOf(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func (s *Store) pathFor(versionID string) (string, error) {
	s.mu.RLock()
	path, ok := s.paths[versionID]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrSnapshotNotFound, versionID)
	}
	return path, nil
}

// openReadOnly opens a published snapshot for queries.
func (s *Store) openReadOnly(versionID string) (*sql.DB, error) {
	path, err := s.pathFor(versionID)
	if err != nil {
		return nil, err
	}
	c, err := connector(path + "?access_mode=READ_ONLY")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connector: %w", err)
	}
	return sql.OpenDB(c), nil
}

// queryEach runs query and calls scan for every row.
func queryEach(ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) error, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Load reads a complete snapshot back in declaration order.
func (s *Store) Load(ctx context.Context, versionID string) (*models.Snapshot, error) {
	db, err := s.openReadOnly(versionID)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	snap := models.NewSnapshot()
	if err := loadMeta(ctx, db, snap); err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", versionID, err)
	}

	loaders := []struct {
		name string
		fn   func(context.Context, *sql.DB, *models.Snapshot) error
	}{
		{"tags", loadTags},
		{"udts", loadUDTs},
		{"aois", loadAOIs},
		{"programs", loadPrograms},
		{"routines", loadRoutines},
		{"rungs", loadRungs},
		{"modules", loadModules},
		{"tasks", loadTasks},
		{"tag_references", loadReferences},
	}
	for _, l := range loaders {
		if err := l.fn(ctx, db, snap); err != nil {
			return nil, fmt.Errorf("loading snapshot %s %s: %w", versionID, l.name, err)
		}
	}
	return snap, nil
}

func loadMeta(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	var (
		fileID, fileName, schemaRev, softwareRev, controller, target sql.NullString
		kind                                                         string
		parsedAt                                                     time.Time
		sec                                                          models.Sections
	)
	err := db.QueryRowContext(ctx, `
		SELECT version_id, file_id, file_name, kind, schema_revision, software_revision,
		       controller_name, target_type, parsed_at,
		       has_data_types, has_aois, has_modules, has_tags, has_programs, has_tasks
		FROM snapshot_meta`).Scan(
		&snap.ID, &fileID, &fileName, &kind, &schemaRev, &softwareRev, &controller, &target, &parsedAt,
		&sec.DataTypes, &sec.AOIs, &sec.Modules, &sec.Tags, &sec.Programs, &sec.Tasks,
	)
	if err != nil {
		return err
	}
	snap.FileID = fileID.String
	snap.FileName = fileName.String
	snap.Kind = models.FileKind(kind)
	snap.SchemaRevision = schemaRev.String
	snap.SoftwareRevision = strOf(softwareRev)
	snap.ControllerName = strOf(controller)
	snap.TargetType = strOf(target)
	snap.ParsedAt = parsedAt
	snap.Sections = sec
	return nil
}

func loadTags(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	return queryEach(ctx, db, `
		SELECT name, data_type, scope, tag_type, description, usage, alias_for, dimensions,
		       radix, external_access, is_constant
		FROM tags ORDER BY ord`, func(rows *sql.Rows) error {
		var (
			t                                   models.Tag
			dataType, tagType                   sql.NullString
			desc, usage, alias, dims, radix, ea sql.NullString
		)
		if err := rows.Scan(&t.Name, &dataType, &t.Scope, &tagType, &desc, &usage, &alias, &dims, &radix, &ea, &t.Constant); err != nil {
			return err
		}
		t.DataType = dataType.String
		t.TagType = tagType.String
		t.Description = strOf(desc)
		t.Usage = strOf(usage)
		t.AliasFor = strOf(alias)
		t.Dimensions = strOf(dims)
		t.Radix = strOf(radix)
		t.ExternalAccess = strOf(ea)
		snap.Tags = append(snap.Tags, t)
		return nil
	})
}

func loadUDTs(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	err := queryEach(ctx, db, `SELECT name, family, description FROM udts ORDER BY ord`, func(rows *sql.Rows) error {
		var (
			u            models.UDT
			family, desc sql.NullString
		)
		if err := rows.Scan(&u.Name, &family, &desc); err != nil {
			return err
		}
		u.Family = strOf(family)
		u.Description = strOf(desc)
		u.Members = make([]models.UDTMember, 0)
		snap.UDTs = append(snap.UDTs, u)
		return nil
	})
	if err != nil {
		return err
	}
	return queryEach(ctx, db, `
		SELECT udt_ord, name, data_type, dimension, description, hidden
		FROM udt_members ORDER BY udt_ord, ord`, func(rows *sql.Rows) error {
		var (
			udt            int
			m              models.UDTMember
			dataType, desc sql.NullString
			dim            sql.NullInt64
		)
		if err := rows.Scan(&udt, &m.Name, &dataType, &dim, &desc, &m.Hidden); err != nil {
			return err
		}
		if udt < 0 || udt >= len(snap.UDTs) {
			return fmt.Errorf("member %s references missing udt %d", m.Name, udt)
		}
		m.DataType = dataType.String
		m.Dimension = intOf(dim)
		m.Description = strOf(desc)
		snap.UDTs[udt].Members = append(snap.UDTs[udt].Members, m)
		return nil
	})
}

func loadAOIs(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	err := queryEach(ctx, db, `SELECT name, revision, vendor, description FROM aois ORDER BY ord`, func(rows *sql.Rows) error {
		var (
			a                  models.AOI
			rev, vendor, descr sql.NullString
		)
		if err := rows.Scan(&a.Name, &rev, &vendor, &descr); err != nil {
			return err
		}
		a.Revision = rev.String
		a.Vendor = strOf(vendor)
		a.Description = strOf(descr)
		a.Parameters = make([]models.AOIParameter, 0)
		snap.AOIs = append(snap.AOIs, a)
		return nil
	})
	if err != nil {
		return err
	}
	return queryEach(ctx, db, `
		SELECT aoi_ord, name, data_type, usage, required, visible, description, external_access
		FROM aoi_parameters ORDER BY aoi_ord, ord`, func(rows *sql.Rows) error {
		var (
			aoi                        int
			p                          models.AOIParameter
			dataType, usage, desc, ext sql.NullString
		)
		if err := rows.Scan(&aoi, &p.Name, &dataType, &usage, &p.Required, &p.Visible, &desc, &ext); err != nil {
			return err
		}
		if aoi < 0 || aoi >= len(snap.AOIs) {
			return fmt.Errorf("parameter %s references missing aoi %d", p.Name, aoi)
		}
		p.DataType = dataType.String
		p.Usage = models.ParameterUsage(usage.String)
		p.Description = strOf(desc)
		p.ExternalAccess = strOf(ext)
		snap.AOIs[aoi].Parameters = append(snap.AOIs[aoi].Parameters, p)
		return nil
	})
}

func loadPrograms(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	return queryEach(ctx, db, `SELECT name, main_routine, disabled, description FROM programs ORDER BY ord`, func(rows *sql.Rows) error {
		var (
			p          models.Program
			main, desc sql.NullString
		)
		if err := rows.Scan(&p.Name, &main, &p.Disabled, &desc); err != nil {
			return err
		}
		p.MainRoutine = strOf(main)
		p.Description = strOf(desc)
		snap.Programs = append(snap.Programs, p)
		return nil
	})
}

func loadRoutines(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	return queryEach(ctx, db, `
		SELECT program_name, name, type, description, rung_count
		FROM routines ORDER BY ord`, func(rows *sql.Rows) error {
		var (
			r          models.Routine
			typ, descr sql.NullString
		)
		if err := rows.Scan(&r.ProgramName, &r.Name, &typ, &descr, &r.RungCount); err != nil {
			return err
		}
		r.Type = models.RoutineType(typ.String)
		r.Description = strOf(descr)
		snap.Routines = append(snap.Routines, r)
		return nil
	})
}

func loadRungs(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	return queryEach(ctx, db, `
		SELECT program_name, routine_name, number, type, comment, logic_text
		FROM rungs ORDER BY ord`, func(rows *sql.Rows) error {
		var (
			r            models.Rung
			typ, comment sql.NullString
		)
		if err := rows.Scan(&r.ProgramName, &r.RoutineName, &r.Number, &typ, &comment, &r.LogicText); err != nil {
			return err
		}
		r.Type = typ.String
		r.Comment = strOf(comment)
		snap.Rungs = append(snap.Rungs, r)
		return nil
	})
}

func loadModules(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	return queryEach(ctx, db, `
		SELECT name, catalog_number, parent_module, slot, connection_info
		FROM modules ORDER BY ord`, func(rows *sql.Rows) error {
		var (
			m                     models.IOModule
			catalog, parent, info sql.NullString
			slot                  sql.NullInt64
		)
		if err := rows.Scan(&m.Name, &catalog, &parent, &slot, &info); err != nil {
			return err
		}
		m.CatalogNumber = strOf(catalog)
		m.ParentModule = strOf(parent)
		m.Slot = intOf(slot)
		if info.Valid {
			m.ConnectionInfo = json.RawMessage(info.String)
		}
		snap.Modules = append(snap.Modules, m)
		return nil
	})
}

func loadTasks(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	err := queryEach(ctx, db, `
		SELECT name, type, rate, priority, watchdog, inhibit_task, disable_update_outputs, description
		FROM tasks ORDER BY ord`, func(rows *sql.Rows) error {
		var (
			t              models.Task
			typ            string
			rate, watchdog sql.NullInt64
			desc           sql.NullString
		)
		if err := rows.Scan(&t.Name, &typ, &rate, &t.Priority, &watchdog, &t.InhibitTask, &t.DisableUpdateOutputs, &desc); err != nil {
			return err
		}
		t.Type = models.TaskType(typ)
		t.Rate = intOf(rate)
		t.Watchdog = intOf(watchdog)
		t.Description = strOf(desc)
		t.ScheduledPrograms = make([]string, 0)
		snap.Tasks = append(snap.Tasks, t)
		return nil
	})
	if err != nil {
		return err
	}
	return queryEach(ctx, db, `SELECT task_ord, program_name FROM task_programs ORDER BY task_ord, ord`, func(rows *sql.Rows) error {
		var (
			task int
			name string
		)
		if err := rows.Scan(&task, &name); err != nil {
			return err
		}
		if task < 0 || task >= len(snap.Tasks) {
			return fmt.Errorf("scheduled program %s references missing task %d", name, task)
		}
		snap.Tasks[task].ScheduledPrograms = append(snap.Tasks[task].ScheduledPrograms, name)
		return nil
	})
}

const referenceColumns = `tag_name, program_name, routine_name, rung_number, instruction, operand_index, usage_type`

func scanReference(rows *sql.Rows, snap *models.Snapshot) (models.TagReference, error) {
	var (
		r     models.TagReference
		usage string
	)
	if err := rows.Scan(&r.TagName, &r.ProgramName, &r.RoutineName, &r.RungNumber, &r.Instruction, &r.OperandIndex, &usage); err != nil {
		return r, err
	}
	r.UsageType = models.UsageType(usage)
	r.FileID = snap.FileID
	r.VersionID = snap.ID
	return r, nil
}

func loadReferences(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	return queryEach(ctx, db, `SELECT `+referenceColumns+` FROM tag_references ORDER BY ord`, func(rows *sql.Rows) error {
		r, err := scanReference(rows, snap)
		if err != nil {
			return err
		}
		snap.References = append(snap.References, r)
		return nil
	})
}

// ReferenceQuery filters a cross-reference search.
type ReferenceQuery struct {
	// Tag matches the exact operand; with Members set, operands naming a
	// member or element of Tag match too.
	Tag     string
	Members bool
	Usage   models.UsageType
	Program string
	Limit   int
}

// Match applies q to an in-memory reference. It agrees with the filter
// SearchReferences runs in SQL; Limit is left to the caller.
func (q ReferenceQuery) Match(r models.TagReference) bool {
	if q.Tag != "" && r.TagName != q.Tag {
		if !q.Members || !(strings.HasPrefix(r.TagName, q.Tag+".") || strings.HasPrefix(r.TagName, q.Tag+"[")) {
			return false
		}
	}
	if q.Usage != "" && r.UsageType != q.Usage {
		return false
	}
	return q.Program == "" || r.ProgramName == q.Program
}

// SearchReferences returns the references of a version matching q, in
// extraction order.
func (s *Store) SearchReferences(ctx context.Context, versionID string, q ReferenceQuery) ([]models.TagReference, error) {
	db, err := s.openReadOnly(versionID)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	snap := models.NewSnapshot()
	if err := loadMeta(ctx, db, snap); err != nil {
		return nil, fmt.Errorf("searching snapshot %s: %w", versionID, err)
	}

	var (
		where []string
		args  []any
	)
	if q.Tag != "" {
		if q.Members {
			where = append(where, "(tag_name = ? OR starts_with(tag_name, ? || '.') OR starts_with(tag_name, ? || '['))")
			args = append(args, q.Tag, q.Tag, q.Tag)
		} else {
			where = append(where, "tag_name = ?")
			args = append(args, q.Tag)
		}
	}
	if q.Usage != "" {
		where = append(where, "usage_type = ?")
		args = append(args, string(q.Usage))
	}
	if q.Program != "" {
		where = append(where, "program_name = ?")
		args = append(args, q.Program)
	}

	query := `SELECT ` + referenceColumns + ` FROM tag_references`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ord"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	out := make([]models.TagReference, 0)
	err = queryEach(ctx, db, query, func(rows *sql.Rows) error {
		r, err := scanReference(rows, snap)
		if err != nil {
			return err
		}
		out = append(out, r)
		return nil
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("searching snapshot %s: %w", versionID, err)
	}
	return out, nil
}
