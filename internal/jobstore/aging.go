package jobstore

// maxAgedPriority is the ceiling priority aging raises a pending job to.
const maxAgedPriority = 1000

// AgeTick raises the priority of every pending job by one, capped at
// maxAgedPriority, so a long-waiting low-priority job eventually outranks
// a steady stream of newer high-priority arrivals.
func (s *Store) AgeTick() (int64, error) {
	res, err := s.db.Write.Exec(`
		UPDATE jobs SET priority = MIN(priority + 1, ?), updated_at = ? WHERE status = ?`,
		maxAgedPriority, nowUTC(), StatusPending,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
