package indexdb

// Read-side helpers over the index. These run on callers' goroutines against
// the same single-connection pool; keep them to dashboards and tests.

type PlacementRow struct {
	Tick    uint64
	AgentID string
	Seq     int64
	Item    string
	Pos     [3]int
	Via     string
	OK      bool
	Code    string
}

type AckRow struct {
	AgentID        string
	LastAppliedSeq int64
	ClientAckSeq   int64
	Tick           uint64
}

func (s *SQLiteIndex) RecentPlacements(limit int) ([]PlacementRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT tick,agent_id,seq,item,x,y,z,via,ok,COALESCE(code,'') FROM placements ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlacementRow
	for rows.Next() {
		var r PlacementRow
		var okInt int
		if err := rows.Scan(&r.Tick, &r.AgentID, &r.Seq, &r.Item, &r.Pos[0], &r.Pos[1], &r.Pos[2], &r.Via, &okInt, &r.Code); err != nil {
			return nil, err
		}
		r.OK = okInt != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) AckWatermarks() ([]AckRow, error) {
	rows, err := s.db.Query(`SELECT agent_id,last_applied_seq,client_ack_seq,tick FROM acks ORDER BY agent_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AckRow
	for rows.Next() {
		var r AckRow
		if err := rows.Scan(&r.AgentID, &r.LastAppliedSeq, &r.ClientAckSeq, &r.Tick); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BuilderTotals counts committed block mutations per actor.
func (s *SQLiteIndex) BuilderTotals() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT actor, COUNT(*) FROM audits WHERE action='SET_BLOCK' GROUP BY actor`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var actor string
		var n int
		if err := rows.Scan(&actor, &n); err != nil {
			return nil, err
		}
		out[actor] = n
	}
	return out, rows.Err()
}
