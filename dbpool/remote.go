package dbpool

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/snowflakedb/gosnowflake"
)

// openRemote opens a connection to a network database (MySQL or Snowflake).
// opts.Path carries the driver-specific DSN. Remote engines do not support
// the read-only access mode; callers enforce read-only at the SQL layer.
func (m *DBManager) openRemote(driver string, opts OpenOptions) (*sql.DB, error) {
	maxRetries, baseMs := retryParams(opts)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := sql.Open(driver, opts.Path)
		if err == nil {
			configureRemotePool(db)
			err = db.Ping()
			if err != nil {
				db.Close()
			}
		}

		if err != nil {
			lastErr = err
			m.logger(fmt.Sprintf("[dbpool] %s attempt %d/%d failed: %v", driver, i+1, maxRetries, err))
			if maxRetries > 1 {
				time.Sleep(time.Duration(baseMs*(i+1)) * time.Millisecond)
			}
			continue
		}

		return db, nil
	}

	return nil, fmt.Errorf("dbpool: failed to connect %s after %d retries: %w", driver, maxRetries, lastErr)
}
