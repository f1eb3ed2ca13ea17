package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	agentID := fs.String("agent", "", "agent_id filter (placements)")
	_ = fs.Parse(args)

	q := "meta"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}

	switch q {
	case "meta":
		rows, err := db.Query(`SELECT key,value FROM meta ORDER BY key`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			if err := rows.Scan(&r.Key, &r.Value); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,joins,leaves,actions FROM ticks ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick    int64  `json:"tick"`
				Digest  string `json:"digest"`
				Joins   int    `json:"joins"`
				Leaves  int    `json:"leaves"`
				Actions int    `json:"actions"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Joins, &r.Leaves, &r.Actions); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "sessions":
		rows, err := db.Query(`SELECT agent_id,name,joined_tick,left_tick FROM sessions ORDER BY joined_tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				AgentID    string        `json:"agent_id"`
				Name       string        `json:"name"`
				JoinedTick int64         `json:"joined_tick"`
				LeftTick   sql.NullInt64 `json:"left_tick"`
			}
			if err := rows.Scan(&r.AgentID, &r.Name, &r.JoinedTick, &r.LeftTick); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "placements":
		sqlQ := `SELECT tick,agent_id,seq,item,x,y,z,via,ok,COALESCE(code,'') FROM placements ORDER BY tick DESC, seq DESC LIMIT ?`
		qargs := []any{*limit}
		if strings.TrimSpace(*agentID) != "" {
			sqlQ = `SELECT tick,agent_id,seq,item,x,y,z,via,ok,COALESCE(code,'') FROM placements WHERE agent_id=? ORDER BY seq DESC LIMIT ?`
			qargs = []any{strings.TrimSpace(*agentID), *limit}
		}
		rows, err := db.Query(sqlQ, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick    int64  `json:"tick"`
				AgentID string `json:"agent_id"`
				Seq     int64  `json:"seq"`
				Item    string `json:"item"`
				X       int    `json:"x"`
				Y       int    `json:"y"`
				Z       int    `json:"z"`
				Via     string `json:"via"`
				OK      bool   `json:"ok"`
				Code    string `json:"code,omitempty"`
			}
			var okInt int
			if err := rows.Scan(&r.Tick, &r.AgentID, &r.Seq, &r.Item, &r.X, &r.Y, &r.Z, &r.Via, &okInt, &r.Code); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.OK = okInt != 0
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "acks":
		rows, err := db.Query(`SELECT agent_id,last_applied_seq,client_ack_seq,tick FROM acks ORDER BY agent_id`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				AgentID        string `json:"agent_id"`
				LastAppliedSeq int64  `json:"last_applied_seq"`
				ClientAckSeq   int64  `json:"client_ack_seq"`
				Tick           int64  `json:"tick"`
			}
			if err := rows.Scan(&r.AgentID, &r.LastAppliedSeq, &r.ClientAckSeq, &r.Tick); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "builders":
		rows, err := db.Query(`SELECT actor, COUNT(*) AS blocks FROM audits WHERE action='SET_BLOCK' GROUP BY actor ORDER BY blocks DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Actor  string `json:"actor"`
				Blocks int    `json:"blocks"`
			}
			if err := rows.Scan(&r.Actor, &r.Blocks); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-limit N] [-agent ID] meta|ticks|sessions|placements|acks|builders")
		os.Exit(2)
	}
}
