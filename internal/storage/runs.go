package storage

// RunRecord is one completed run's accounting row.
type RunRecord struct {
	RunID      string `json:"run_id"`
	ThreadID   string `json:"thread_id"`
	Status     string `json:"status"`
	EventCount int64  `json:"event_count"`
	ByteCount  int64  `json:"byte_count"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

// RecordRun inserts or replaces a run's accounting row. Replaying the same
// run_id overwrites; client-supplied ids are not guaranteed unique.
func (d *Database) RecordRun(r RunRecord) error {
	if r.CreatedAt == "" {
		r.CreatedAt = nowRFC3339()
	}
	_, err := d.exec(
		`INSERT INTO runs (run_id, thread_id, status, event_count, byte_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   thread_id = excluded.thread_id,
		   status = excluded.status,
		   event_count = excluded.event_count,
		   byte_count = excluded.byte_count,
		   duration_ms = excluded.duration_ms,
		   created_at = excluded.created_at`,
		r.RunID, r.ThreadID, r.Status, r.EventCount, r.ByteCount, r.DurationMs, r.CreatedAt,
	)
	return err
}

// ListRecentRuns returns the most recent runs, newest first.
func (d *Database) ListRecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.query(
		`SELECT run_id, thread_id, status, event_count, byte_count, duration_ms, created_at
		 FROM runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.ThreadID, &r.Status, &r.EventCount, &r.ByteCount, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RequestRecord is one completed HTTP request's accounting row.
type RequestRecord struct {
	Method     string
	Path       string
	Status     int
	Bytes      int64
	DurationMs int64
	Streaming  bool
}

// RecordRequest appends a request accounting row.
func (d *Database) RecordRequest(r RequestRecord) error {
	streaming := 0
	if r.Streaming {
		streaming = 1
	}
	_, err := d.exec(
		`INSERT INTO request_log (method, path, status, bytes, duration_ms, streaming, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Method, r.Path, r.Status, r.Bytes, r.DurationMs, streaming, nowRFC3339(),
	)
	return err
}

// PruneBefore deletes run and request rows created before the cutoff
// (RFC3339). Returns the number of rows removed.
func (d *Database) PruneBefore(cutoff string) (int64, error) {
	var total int64
	res, err := d.exec(`DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	res, err = d.exec(`DELETE FROM request_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return total, err
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}
