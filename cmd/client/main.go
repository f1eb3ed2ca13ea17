// Scripted demo client: joins, walks clear of spawn protection, runs a
// brush session (set, rotate, move, stamp), mixes in plain placements with
// a duplicate-seq retry, and reconciles everything against the server's
// PLACE_ACK watermark.
package main

import (
	"flag"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"voxelbrush.dev/internal/client"
	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
)

var (
	headline = color.New(color.FgCyan, color.Bold)
	good     = color.New(color.FgGreen)
	bad      = color.New(color.FgRed)
	info     = color.New(color.FgWhite)
	syncCol  = color.New(color.FgYellow)
)

type demo struct {
	mu sync.Mutex

	session *client.Session
	preview *client.Preview
	spec    *client.Speculative
	pos     geo.Vec3i
	logger  *log.Logger
}

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "demo", "agent name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)

	sess, err := client.Dial(*url, *name, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer sess.Close()

	welcome := sess.Welcome()
	headline.Printf("joined %s as %s at tick %d, spawn %v\n", welcome.WorldID, welcome.AgentID, welcome.Tick, welcome.SpawnPos)

	d := &demo{
		session: sess,
		preview: client.NewPreview(welcome.WorldParams.OrientationCount),
		spec:    client.NewSpeculative(64),
		pos:     geo.FromArray(welcome.SpawnPos),
		logger:  logger,
	}

	done := make(chan error, 1)
	go func() { done <- sess.Run(d.handlers()) }()

	d.script()

	_ = sess.Close()
	if err := <-done; err != nil {
		logger.Printf("session ended: %v", err)
	}
}

func (d *demo) handlers() client.Handlers {
	return client.Handlers{
		OnBrushState: func(m protocol.BrushStateMsg) {
			d.mu.Lock()
			defer d.mu.Unlock()
			if err := d.preview.ApplyBrushState(m); err != nil {
				bad.Printf("BRUSH_STATE rejected: %v\n", err)
				return
			}
			syncCol.Printf("BRUSH_STATE active=%v orientation=%d yaw=%.2f pos=%v snap=%s\n",
				m.Active, m.OrientationIndex, m.RotationY, m.Pos, m.Snapping)
		},
		OnDimensionPreview: func(m protocol.DimensionPreviewMsg) {
			d.mu.Lock()
			defer d.mu.Unlock()
			if err := d.preview.ApplyDimensionPreview(m); err != nil {
				bad.Printf("DIMENSION_PREVIEW rejected: %v\n", err)
				return
			}
			if d.preview.Active() {
				syncCol.Printf("DIMENSION_PREVIEW dim=%d anchor=%v\n", m.DimensionID, *m.Pos)
			} else {
				syncCol.Printf("DIMENSION_PREVIEW disabled\n")
			}
		},
		OnPlaceAck: func(m protocol.PlaceAckMsg) {
			d.mu.Lock()
			released, err := d.spec.AckUpTo(m.LastAppliedSeq)
			pending := d.spec.Pending()
			d.mu.Unlock()
			if err != nil {
				bad.Printf("PLACE_ACK violation: %v\n", err)
				return
			}
			syncCol.Printf("PLACE_ACK last_applied_seq=%d released=%d pending=%d\n", m.LastAppliedSeq, len(released), pending)
			_ = d.session.SendAck(m.LastAppliedSeq)
		},
		OnEvents: func(m protocol.EventsMsg) {
			for _, e := range m.Events {
				d.printEvent(e)
			}
		},
		OnError: func(m protocol.ErrorMsg) {
			bad.Printf("ERROR %s: %s\n", m.Code, m.Message)
		},
	}
}

func (d *demo) printEvent(e protocol.Event) {
	typ, _ := e["type"].(string)
	ok, _ := e["ok"].(bool)
	switch typ {
	case "PLACE_RESULT":
		seq := int64(asFloat(e["seq"]))
		d.mu.Lock()
		if ok {
			d.spec.Confirm(seq)
		} else {
			d.spec.Fail(seq)
		}
		d.mu.Unlock()
		if ok {
			good.Printf("place seq=%d committed\n", seq)
		} else {
			bad.Printf("place seq=%d rejected code=%v (rolled back)\n", seq, e["code"])
		}
	case "ACTION_RESULT":
		if ok {
			good.Printf("instant %v ok\n", e["ref"])
		} else {
			bad.Printf("instant %v failed code=%v %v\n", e["ref"], e["code"], e["message"])
		}
	default:
		info.Printf("event %s: %v\n", typ, e)
	}
}

// script drives the whole loop end to end. Pauses are one tick or more so
// the server flushes between stages.
func (d *demo) script() {
	tickPause := time.Second / time.Duration(d.session.Welcome().WorldParams.TickRateHz)

	// Walk east until clear of spawn protection.
	for i := 0; i < 3; i++ {
		d.move(d.pos.Add(geo.Vec3i{X: 7}))
		time.Sleep(tickPause)
	}

	// Brush session anchored ahead of us.
	anchor := d.pos.Add(geo.Vec3i{X: 3})
	d.instant(protocol.InstantReq{ID: client.NewInstantID("brush_set"), Type: "BRUSH_SET",
		TemplateID: "cabin_3x3", Pos: posArr(anchor), Snapping: "GRID"})
	time.Sleep(tickPause)
	d.instant(protocol.InstantReq{ID: client.NewInstantID("rotate"), Type: "BRUSH_ROTATE", Steps: 1, Yaw: 0.39})
	time.Sleep(tickPause)
	d.instant(protocol.InstantReq{ID: client.NewInstantID("brush_move"), Type: "BRUSH_MOVE", Pos: posArr(anchor.Add(geo.Vec3i{Z: 2}))})
	time.Sleep(tickPause)

	// Stamp the template: a placement holding the brush tool.
	d.place("BUILD_BRUSH", anchor.Add(geo.Vec3i{Z: 2}), "UP")
	time.Sleep(2 * tickPause)

	d.instant(protocol.InstantReq{ID: client.NewInstantID("clear"), Type: "BRUSH_CLEAR"})
	time.Sleep(tickPause)

	// Plain placements against the ground next to us.
	ground := d.pos.Add(geo.Vec3i{X: 1, Y: -1})
	seq := d.place("PLANK", ground, "UP")
	time.Sleep(tickPause)
	d.place("STONE", ground.Add(geo.Vec3i{Z: 1}), "UP")
	time.Sleep(2 * tickPause)

	// Retry an already-decided seq: the server must re-ack, not re-apply.
	headline.Printf("retrying seq=%d (duplicate)\n", seq)
	d.sendPlaces([]protocol.PlaceReq{{Seq: seq, Item: "PLANK", Target: targetRef(ground, "UP")}})
	time.Sleep(2 * tickPause)

	d.mu.Lock()
	pending := d.spec.Pending()
	watermark := d.spec.LastAcked()
	d.mu.Unlock()
	headline.Printf("done: watermark=%d pending=%d\n", watermark, pending)
}

func (d *demo) move(to geo.Vec3i) {
	d.instant(protocol.InstantReq{ID: client.NewInstantID("move"), Type: "MOVE", Pos: posArr(to)})
	d.mu.Lock()
	d.pos = to
	d.mu.Unlock()
	info.Printf("-> MOVE %v\n", to)
}

func (d *demo) instant(req protocol.InstantReq) {
	if err := d.session.SendAct(d.session.EstimatedTick(), []protocol.InstantReq{req}, nil); err != nil {
		d.logger.Fatalf("send act: %v", err)
	}
	info.Printf("-> %s %s\n", req.Type, req.ID)
}

// place issues a speculative placement and returns its seq.
func (d *demo) place(item string, target geo.Vec3i, face string) int64 {
	d.mu.Lock()
	seq := d.spec.NextSeq()
	predicted := target.Add(geo.Face(face).Offset())
	if err := d.spec.Store(client.PendingPlace{Seq: seq, Item: item, Predicted: predicted}); err != nil {
		d.mu.Unlock()
		d.logger.Fatalf("speculate: %v", err)
	}
	d.mu.Unlock()

	d.sendPlaces([]protocol.PlaceReq{{Seq: seq, Item: item, Target: targetRef(target, face)}})
	info.Printf("-> PLACE seq=%d item=%s target=%v face=%s\n", seq, item, target, face)
	return seq
}

func (d *demo) sendPlaces(places []protocol.PlaceReq) {
	if err := d.session.SendAct(d.session.EstimatedTick(), nil, places); err != nil {
		d.logger.Fatalf("send act: %v", err)
	}
}

func posArr(v geo.Vec3i) *[3]int {
	a := v.ToArray()
	return &a
}

func targetRef(pos geo.Vec3i, face string) *protocol.TargetRef {
	return &protocol.TargetRef{Pos: pos.ToArray(), Face: face}
}

// asFloat reads a JSON number out of a decoded event map.
func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
