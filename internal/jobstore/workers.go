package jobstore

import "time"

// workerLiveWindow is how recently a worker must have heartbeated to count
// as active.
const workerLiveWindow = 30 * time.Second

// Worker mirrors a workers table row.
type Worker struct {
	ID            string
	Hostname      string
	LastHeartbeat time.Time
	StartedAt     time.Time
}

// RegisterWorker upserts a worker's registry row on startup.
func (s *Store) RegisterWorker(id, hostname string) error {
	now := nowUTC()
	_, err := s.db.Write.Exec(`
		INSERT INTO workers (id, hostname, last_heartbeat, started_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET hostname = excluded.hostname, last_heartbeat = excluded.last_heartbeat`,
		id, hostname, now, now,
	)
	return err
}

// TouchWorker bumps a worker's last_heartbeat, keeping it counted as active.
func (s *Store) TouchWorker(id string) error {
	_, err := s.db.Write.Exec(`UPDATE workers SET last_heartbeat = ? WHERE id = ?`, nowUTC(), id)
	return err
}

// ActiveWorkerCount returns the number of workers that have heartbeated
// within workerLiveWindow.
func (s *Store) ActiveWorkerCount() (int, error) {
	cutoff := nowUTC().Add(-workerLiveWindow)
	var n int
	err := s.db.Read.QueryRow(`SELECT COUNT(*) FROM workers WHERE last_heartbeat > ?`, cutoff).Scan(&n)
	return n, err
}
