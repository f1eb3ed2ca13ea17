// Package indexdb maintains a queryable sqlite read-model of the tick
// stream: placements, ack watermarks, audits. It is fed asynchronously and
// drops writes rather than stall the sim; the zstd journals stay the source
// of truth.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelbrush.dev/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqPlacement
	reqAck
	reqMeta
)

type req struct {
	kind reqKind

	tick      world.TickLogEntry
	audit     world.AuditEntry
	placement world.PlacementEntry
	ack       world.AckEntry
	metaKey   string
	metaValue string
	metaDone  chan struct{}
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: brush stamps can audit hundreds of blocks per tick.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL is a reasonable
	// durability tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			actions INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			agent_id TEXT NOT NULL,
			name TEXT NOT NULL,
			joined_tick INTEGER NOT NULL,
			left_tick INTEGER,
			PRIMARY KEY (agent_id, joined_tick)
		);`,
		`CREATE TABLE IF NOT EXISTS placements (
			tick INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			item TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			via TEXT NOT NULL,
			ok INTEGER NOT NULL,
			code TEXT,
			PRIMARY KEY (agent_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_placements_tick ON placements(tick);`,
		`CREATE INDEX IF NOT EXISTS idx_placements_pos ON placements(x, z, y);`,
		`CREATE TABLE IF NOT EXISTS acks (
			agent_id TEXT PRIMARY KEY,
			last_applied_seq INTEGER NOT NULL,
			client_ack_seq INTEGER NOT NULL,
			tick INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block INTEGER NOT NULL,
			to_block INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Flush blocks until every enqueued write so far has been applied. Test and
// shutdown helper; the hot path never calls it.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqMeta, metaKey: "__flush", metaValue: "", metaDone: done}
	<-done
}

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind; journals remain authoritative.
	}
}

// WriteTick implements world.TickLogger.
func (s *SQLiteIndex) WriteTick(e world.TickLogEntry) error {
	s.enqueue(req{kind: reqTick, tick: e})
	return nil
}

// WriteAudit implements world.AuditLogger.
func (s *SQLiteIndex) WriteAudit(e world.AuditEntry) error {
	s.enqueue(req{kind: reqAudit, audit: e})
	return nil
}

// WritePlacement implements world.PlacementLogger.
func (s *SQLiteIndex) WritePlacement(e world.PlacementEntry) error {
	s.enqueue(req{kind: reqPlacement, placement: e})
	return nil
}

// WriteAck implements world.AckLogger.
func (s *SQLiteIndex) WriteAck(e world.AckEntry) error {
	s.enqueue(req{kind: reqAck, ack: e})
	return nil
}

// SetMeta records a key/value pair (world id, seed, config digests).
func (s *SQLiteIndex) SetMeta(key string, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.enqueue(req{kind: reqMeta, metaKey: key, metaValue: string(b)})
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,joins,leaves,actions) VALUES(?,?,?,?,?)`)
	insertJoin, _ := s.db.Prepare(`INSERT OR REPLACE INTO sessions(agent_id,name,joined_tick) VALUES(?,?,?)`)
	closeSession, _ := s.db.Prepare(`UPDATE sessions SET left_tick=? WHERE agent_id=? AND left_tick IS NULL`)
	insertPlacement, _ := s.db.Prepare(`INSERT OR REPLACE INTO placements(tick,agent_id,seq,item,x,y,z,via,ok,code) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	upsertAck, _ := s.db.Prepare(`INSERT INTO acks(agent_id,last_applied_seq,client_ack_seq,tick) VALUES(?,?,?,?)
		ON CONFLICT(agent_id) DO UPDATE SET
			last_applied_seq=MAX(last_applied_seq, excluded.last_applied_seq),
			client_ack_seq=MAX(client_ack_seq, excluded.client_ack_seq),
			tick=excluded.tick`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,x,y,z,from_block,to_block) VALUES(?,?,?,?,?,?,?,?,?)`)
	upsertMeta, _ := s.db.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	for _, st := range []*sql.Stmt{insertTick, insertJoin, closeSession, insertPlacement, upsertAck, insertAudit, upsertMeta} {
		if st != nil {
			defer st.Close()
		}
	}

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqMeta && r.metaDone != nil {
			commit()
			close(r.metaDone)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if insertTick == nil {
				break
			}
			if _, err := tx.Stmt(insertTick).Exec(
				int64(r.tick.Tick), r.tick.Digest,
				len(r.tick.Joins), len(r.tick.Leaves), len(r.tick.Actions),
			); err != nil {
				rollback()
				continue
			}
			opCount++
			for _, j := range r.tick.Joins {
				if insertJoin == nil {
					break
				}
				if _, err := tx.Stmt(insertJoin).Exec(j.AgentID, j.Name, int64(r.tick.Tick)); err != nil {
					rollback()
					break
				}
				opCount++
			}
			for _, id := range r.tick.Leaves {
				if closeSession == nil {
					break
				}
				if _, err := tx.Stmt(closeSession).Exec(int64(r.tick.Tick), id); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			if insertAudit == nil {
				break
			}
			if _, err := tx.Stmt(insertAudit).Exec(
				int64(a.Tick), seq, a.Actor, a.Action,
				a.Pos[0], a.Pos[1], a.Pos[2],
				int64(a.From), int64(a.To),
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqPlacement:
			p := r.placement
			if insertPlacement == nil {
				break
			}
			okInt := 0
			if p.OK {
				okInt = 1
			}
			if _, err := tx.Stmt(insertPlacement).Exec(
				int64(p.Tick), p.AgentID, p.Seq, p.Item,
				p.Pos[0], p.Pos[1], p.Pos[2],
				p.Via, okInt, p.Code,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqAck:
			a := r.ack
			if upsertAck == nil {
				break
			}
			if _, err := tx.Stmt(upsertAck).Exec(a.AgentID, a.LastAppliedSeq, a.ClientAckSeq, int64(a.Tick)); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqMeta:
			if upsertMeta == nil {
				break
			}
			if _, err := tx.Stmt(upsertMeta).Exec(r.metaKey, r.metaValue); err != nil {
				rollback()
				continue
			}
			opCount++
		}

		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
	commit()
}
