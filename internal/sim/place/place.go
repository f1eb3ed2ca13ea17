// Package place defines the block-placement interception contract. Feature
// runtimes register interceptors on a Chain; the world consults the chain
// before running its default placement path and honors the first
// non-passthrough decision.
package place

import "voxelbrush.dev/internal/geo"

// Authority says which execution context a world runs under. Only the
// authoritative server sim may let interceptors consume placements; replicas
// (client-side speculation) always fall through to the default path.
type Authority int

const (
	AuthorityServer Authority = iota
	AuthorityReplica
)

// WorldRef is the narrow world view handed to interceptors.
type WorldRef interface {
	ID() string
	Authority() Authority
}

// PlacerRef identifies the acting agent.
type PlacerRef interface {
	AgentID() string
}

// ItemStack is the stack the placer is holding for this attempt.
type ItemStack struct {
	Item  string
	Count int
}

// Selection is the targeted block face of a placement attempt.
type Selection struct {
	Pos  geo.Vec3i
	Face geo.Face
	Hit  *[3]float64
}

// Attempt is the read-only input of one placement attempt. Fields may be
// nil when the actor supplied incomplete input; the chain never consults
// interceptors in that case.
type Attempt struct {
	World  WorldRef
	Placer PlacerRef
	Stack  *ItemStack
	Target *Selection
}

type Decision uint8

const (
	// Passthrough lets the default placement path run, including its own
	// failure-code reporting.
	Passthrough Decision = iota
	// OverrideSuccess marks the attempt consumed and succeeded; the default
	// path must not run.
	OverrideSuccess
	// OverrideFailure rejects the attempt with Result.Code; the default path
	// must not run.
	OverrideFailure
)

func (d Decision) String() string {
	switch d {
	case Passthrough:
		return "PASSTHROUGH"
	case OverrideSuccess:
		return "OVERRIDE_SUCCESS"
	case OverrideFailure:
		return "OVERRIDE_FAILURE"
	}
	return "UNKNOWN"
}

// Result is an interceptor's decision. Code is set only for OverrideFailure.
// Via names the interceptor that decided; the chain fills it in and it stays
// empty for passthrough.
type Result struct {
	Decision Decision
	Code     string
	Via      string
}

var passthrough = Result{Decision: Passthrough}

// Interceptor inspects a placement attempt and may consume it. Interceptors
// run inline on the world goroutine: they must not block, spawn work, or
// hold locks, and their decision is final for the attempt.
type Interceptor interface {
	Name() string
	InterceptPlacement(Attempt) Result
}

// Chain holds interceptors in registration order. Wire it up before the
// world starts; registration is not synchronized.
type Chain struct {
	interceptors []Interceptor
}

func NewChain(interceptors ...Interceptor) *Chain {
	return &Chain{interceptors: interceptors}
}

func (c *Chain) Register(i Interceptor) {
	c.interceptors = append(c.interceptors, i)
}

func (c *Chain) Len() int { return len(c.interceptors) }

// Intercept applies the chain contract to one attempt:
// absent inputs defer to the default path without consulting anyone,
// non-authoritative contexts always defer, and otherwise the first
// non-passthrough interceptor wins.
func (c *Chain) Intercept(a Attempt) Result {
	if a.World == nil || a.Placer == nil || a.Stack == nil || a.Target == nil {
		return passthrough
	}
	if a.World.Authority() != AuthorityServer {
		return passthrough
	}
	for _, ic := range c.interceptors {
		if r := ic.InterceptPlacement(a); r.Decision != Passthrough {
			r.Via = ic.Name()
			return r
		}
	}
	return passthrough
}
