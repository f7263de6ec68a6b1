// Package system implements the System DAG and its runners (spec §4.8):
// wiring declared as leader/follower name pairs (pipes), and two runners —
// single-threaded (a FIFO dedup queue on one goroutine) and multi-threaded
// (one goroutine per follower, condvar-style wakeups) — that both replay
// the wiring the same way, differing only in concurrency.
//
// Unlike the original implementation, whose System is built from Python
// classes resolved by name through reflection, nodes here are named,
// pre-constructed process.Follower/process.Leader values supplied by the
// caller: Go has no dynamic class registry to replay that trick with, and
// explicit construction is how every teacher main.go wires its own
// dependencies anyway.
package system

import (
	"context"
	"fmt"

	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/process"
)

// Node is one named application participating in the system. Leader and
// Follower are both optional; a processor (the pack's term for a node that
// is both) sets both.
type Node struct {
	Name     string
	Leader   *process.Leader
	Follower *process.Follower
	Log      notification.Log // this node's own notification log, if it leads anyone
}

// Edge declares that Upstream leads Downstream: Downstream follows
// Upstream's log.
type Edge struct {
	Upstream   string
	Downstream string
}

// System is a DAG of named nodes and the leader->follower edges between
// them, mirroring eventsourcing.system.System's nodes/edges/leads/follows
// bookkeeping.
type System struct {
	nodes map[string]Node
	edges []Edge
	leads map[string][]string
}

// New builds a System from nodes and the edges connecting them. It calls
// every edge's Follower.Follow(Upstream, node.Log) eagerly, the "follow"
// half of SingleThreadedRunner.start's "lead and follow" step; the "lead"
// half (Leader.Lead) is done by NewSingleThreadedRunner or
// NewMultiThreadedRunner, so leaders prompt nobody until a runner is built.
func New(nodes []Node, edges []Edge) (*System, error) {
	s := &System{
		nodes: make(map[string]Node, len(nodes)),
		leads: make(map[string][]string),
		edges: edges,
	}
	for _, n := range nodes {
		s.nodes[n.Name] = n
	}
	for _, e := range edges {
		upstream, ok := s.nodes[e.Upstream]
		if !ok {
			return nil, fmt.Errorf("system: unknown upstream node %q", e.Upstream)
		}
		downstream, ok := s.nodes[e.Downstream]
		if !ok {
			return nil, fmt.Errorf("system: unknown downstream node %q", e.Downstream)
		}
		if downstream.Follower == nil {
			return nil, fmt.Errorf("system: node %q is not a follower", e.Downstream)
		}
		if upstream.Leader == nil || upstream.Log == nil {
			return nil, fmt.Errorf("system: node %q is not a leader", e.Upstream)
		}
		downstream.Follower.Follow(e.Upstream, upstream.Log)
		s.leads[e.Upstream] = append(s.leads[e.Upstream], e.Downstream)
	}
	return s, nil
}

// Leads returns the downstream node names that follow upstreamName.
func (s *System) Leads(upstreamName string) []string {
	return s.leads[upstreamName]
}

// Node returns the named node and whether it exists.
func (s *System) Node(name string) (Node, bool) {
	n, ok := s.nodes[name]
	return n, ok
}

// SingleThreadedRunner runs every follower's PullAndProcess on the calling
// goroutine, deduplicating re-entrant prompts with a FIFO queue — ported
// from singlethreadedrunner.SingleThreadedRunner.receive_prompt: a prompt
// arriving while one is already being drained is queued, not processed
// re-entrantly.
type SingleThreadedRunner struct {
	system  *System
	pending []string
	running bool
}

// NewSingleThreadedRunner builds a runner over system. Every leader in
// system is wired (via Lead) to call this runner's ReceivePrompt.
func NewSingleThreadedRunner(system *System) *SingleThreadedRunner {
	r := &SingleThreadedRunner{system: system}
	for _, n := range system.nodes {
		if n.Leader != nil {
			n.Leader.Lead(r)
		}
	}
	return r
}

// ReceivePrompt implements process.Promptable. If a drain is already in
// progress on this goroutine, leaderName is only enqueued; the active
// drain loop will pick it up. A leaderName already sitting in the pending
// queue is coalesced rather than enqueued twice.
func (r *SingleThreadedRunner) ReceivePrompt(ctx context.Context, leaderName string) error {
	if !contains(r.pending, leaderName) {
		r.pending = append(r.pending, leaderName)
	}
	if r.running {
		return nil
	}
	r.running = true
	defer func() { r.running = false }()

	for len(r.pending) > 0 {
		leader := r.pending[0]
		r.pending = r.pending[1:]
		for _, followerName := range r.system.Leads(leader) {
			node, ok := r.system.Node(followerName)
			if !ok || node.Follower == nil {
				continue
			}
			if err := node.Follower.PullAndProcess(ctx, leader); err != nil {
				return err
			}
		}
	}
	return nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
