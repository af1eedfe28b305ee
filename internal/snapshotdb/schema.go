package snapshotdb

// Every table carries an ord column holding declaration order. Child rows
// reference their parent by the parent's ord. Numbers read from the file
// are BIGINT so no source value is narrowed.
var schema = []string{
	`CREATE TABLE snapshot_meta (
		version_id        VARCHAR NOT NULL,
		file_id           VARCHAR,
		file_name         VARCHAR,
		kind              VARCHAR NOT NULL,
		schema_revision   VARCHAR,
		software_revision VARCHAR,
		controller_name   VARCHAR,
		target_type       VARCHAR,
		parsed_at         TIMESTAMP NOT NULL,
		has_data_types    BOOLEAN NOT NULL,
		has_aois          BOOLEAN NOT NULL,
		has_modules       BOOLEAN NOT NULL,
		has_tags          BOOLEAN NOT NULL,
		has_programs      BOOLEAN NOT NULL,
		has_tasks         BOOLEAN NOT NULL
	)`,
	`CREATE TABLE tags (
		ord             INTEGER NOT NULL,
		name            VARCHAR NOT NULL,
		data_type       VARCHAR,
		scope           VARCHAR NOT NULL,
		tag_type        VARCHAR,
		description     VARCHAR,
		usage           VARCHAR,
		alias_for       VARCHAR,
		dimensions      VARCHAR,
		radix           VARCHAR,
		external_access VARCHAR,
		is_constant     BOOLEAN NOT NULL
	)`,
	`CREATE TABLE udts (
		ord         INTEGER NOT NULL,
		name        VARCHAR NOT NULL,
		family      VARCHAR,
		description VARCHAR
	)`,
	`CREATE TABLE udt_members (
		udt_ord     INTEGER NOT NULL,
		ord         INTEGER NOT NULL,
		name        VARCHAR NOT NULL,
		data_type   VARCHAR,
		dimension   BIGINT,
		description VARCHAR,
		hidden      BOOLEAN NOT NULL
	)`,
	`CREATE TABLE aois (
		ord         INTEGER NOT NULL,
		name        VARCHAR NOT NULL,
		revision    VARCHAR,
		vendor      VARCHAR,
		description VARCHAR
	)`,
	`CREATE TABLE aoi_parameters (
		aoi_ord         INTEGER NOT NULL,
		ord             INTEGER NOT NULL,
		name            VARCHAR NOT NULL,
		data_type       VARCHAR,
		usage           VARCHAR,
		required        BOOLEAN NOT NULL,
		visible         BOOLEAN NOT NULL,
		description     VARCHAR,
		external_access VARCHAR
	)`,
	`CREATE TABLE programs (
		ord          INTEGER NOT NULL,
		name         VARCHAR NOT NULL,
		main_routine VARCHAR,
		disabled     BOOLEAN NOT NULL,
		description  VARCHAR
	)`,
	`CREATE TABLE routines (
		ord          INTEGER NOT NULL,
		program_name VARCHAR NOT NULL,
		name         VARCHAR NOT NULL,
		type         VARCHAR,
		description  VARCHAR,
		rung_count   BIGINT NOT NULL
	)`,
	`CREATE TABLE rungs (
		ord          INTEGER NOT NULL,
		program_name VARCHAR NOT NULL,
		routine_name VARCHAR NOT NULL,
		number       BIGINT NOT NULL,
		type         VARCHAR,
		comment      VARCHAR,
		logic_text   VARCHAR NOT NULL
	)`,
	`CREATE TABLE modules (
		ord             INTEGER NOT NULL,
		name            VARCHAR NOT NULL,
		catalog_number  VARCHAR,
		parent_module   VARCHAR,
		slot            BIGINT,
		connection_info VARCHAR
	)`,
	`CREATE TABLE tasks (
		ord                    INTEGER NOT NULL,
		name                   VARCHAR NOT NULL,
		type                   VARCHAR NOT NULL,
		rate                   BIGINT,
		priority               BIGINT NOT NULL,
		watchdog               BIGINT,
		inhibit_task           BOOLEAN NOT NULL,
		disable_update_outputs BOOLEAN NOT NULL,
		description            VARCHAR
	)`,
	`CREATE TABLE task_programs (
		task_ord     INTEGER NOT NULL,
		ord          INTEGER NOT NULL,
		program_name VARCHAR NOT NULL
	)`,
	`CREATE TABLE tag_references (
		ord           INTEGER NOT NULL,
		tag_name      VARCHAR NOT NULL,
		program_name  VARCHAR NOT NULL,
		routine_name  VARCHAR NOT NULL,
		rung_number   BIGINT NOT NULL,
		instruction   VARCHAR NOT NULL,
		operand_index BIGINT NOT NULL,
		usage_type    VARCHAR NOT NULL
	)`,
}

// Indexes are created after the bulk load.
var indexes = []string{
	"CREATE INDEX idx_refs_tag ON tag_references(tag_name)",
	"CREATE INDEX idx_rungs_routine ON rungs(program_name, routine_name)",
	"CREATE INDEX idx_tags_name ON tags(name)",
}
