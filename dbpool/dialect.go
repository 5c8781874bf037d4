package dbpool

// Dialect provides engine-specific SQL fragments so callers don't need to
// know which engine is in use.
type Dialect struct {
	Engine Engine
}

// NewDialect creates a Dialect for the given engine.
func NewDialect(engine Engine) *Dialect {
	return &Dialect{Engine: engine}
}

// ListTablesQuery returns the SQL to list user tables.
func (d *Dialect) ListTablesQuery() string {
	switch d.Engine {
	case EngineDuckDB:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = 'main'"
	case EngineSQLite:
		return "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'"
	case EngineSnowflake:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = CURRENT_SCHEMA()"
	default:
		return "SHOW TABLES"
	}
}

// SchemaColumnsQuery returns the SQL that lists every user column in one
// pass: (table_name, column_name, data_type) ordered by table and position.
// Used to build the full schema snapshot handed to SQL generation.
func (d *Dialect) SchemaColumnsQuery() string {
	switch d.Engine {
	case EngineDuckDB:
		return "SELECT table_name, column_name, data_type FROM information_schema.columns " +
			"WHERE table_schema = 'main' ORDER BY table_name, ordinal_position"
	case EngineSQLite:
		return "SELECT m.name AS table_name, p.name AS column_name, p.type AS data_type " +
			"FROM sqlite_master m, pragma_table_info(m.name) p " +
			"WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' ORDER BY m.name, p.cid"
	case EngineSnowflake:
		return "SELECT table_name, column_name, data_type FROM information_schema.columns " +
			"WHERE table_schema = CURRENT_SCHEMA() ORDER BY table_name, ordinal_position"
	default:
		return "SELECT table_name, column_name, data_type FROM information_schema.columns " +
			"WHERE table_schema = DATABASE() ORDER BY table_name, ordinal_position"
	}
}
