// Package process implements gearmand's processing stage (spec.md §4.4):
// the single dispatch point that applies protocol semantics to each
// decoded packet under the registry's lock and enqueues outbound packets
// on affected connections.
package process

import (
	"strconv"
	"time"

	"github.com/cuemby/gearmand/pkg/conn"
	"github.com/cuemby/gearmand/pkg/events"
	"github.com/cuemby/gearmand/pkg/log"
	"github.com/cuemby/gearmand/pkg/metrics"
	"github.com/cuemby/gearmand/pkg/reduce"
	"github.com/cuemby/gearmand/pkg/registry"
	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
)

// Processor wires the registry, the map-reduce aggregator, and the live
// connection table together behind one Handle entry point.
type Processor struct {
	Reg    *registry.Registry
	Agg    *reduce.Aggregator
	Conns  *ConnTable
	Events *events.Bus // optional, nil disables lifecycle event publication
}

// New creates a processor over an already-constructed registry and
// aggregator.
func New(reg *registry.Registry, agg *reduce.Aggregator, conns *ConnTable, bus *events.Bus) *Processor {
	return &Processor{Reg: reg, Agg: agg, Conns: conns, Events: bus}
}

// Handle dispatches one decoded packet, the processing stage's sole entry
// point (spec.md §4.4).
func (p *Processor) Handle(c *conn.Connection, pkt *wire.Packet) {
	metrics.PacketsHandledTotal.WithLabelValues(pkt.Command.String()).Inc()

	switch pkt.Command {
	case wire.SubmitJob:
		p.submit(c, pkt, types.PriorityNormal, false, 0)
	case wire.SubmitJobHigh:
		p.submit(c, pkt, types.PriorityHigh, false, 0)
	case wire.SubmitJobLow:
		p.submit(c, pkt, types.PriorityLow, false, 0)
	case wire.SubmitJobBG:
		p.submit(c, pkt, types.PriorityNormal, true, 0)
	case wire.SubmitJobHighBG:
		p.submit(c, pkt, types.PriorityHigh, true, 0)
	case wire.SubmitJobLowBG:
		p.submit(c, pkt, types.PriorityLow, true, 0)
	case wire.SubmitJobEpoch:
		p.submitEpoch(c, pkt)
	case wire.SubmitReduceJob:
		p.submitReduce(c, pkt, false)
	case wire.SubmitReduceJobBackground:
		p.submitReduce(c, pkt, true)

	case wire.GrabJob:
		p.grab(c, false, false)
	case wire.GrabJobUniq:
		p.grab(c, true, false)
	case wire.GrabJobAll:
		p.grab(c, true, true)

	case wire.PreSleep:
		p.preSleep(c)

	case wire.WorkData:
		// A reduce-job partition's output goes to the aggregator, not to
		// the mapper job's subscribers.
		if handle := types.JobHandle(pkt.Arg(0)); p.Agg.IsPartition(handle) {
			p.Agg.AddChunk(handle, pkt.Arg(1))
		} else {
			p.fanOut(pkt, wire.WorkData, false)
		}
	case wire.WorkWarning:
		p.fanOut(pkt, wire.WorkWarning, false)
	case wire.WorkStatus:
		p.workStatus(pkt)
	case wire.WorkComplete:
		p.workComplete(pkt)
	case wire.WorkFail:
		p.workFail(pkt)
	case wire.WorkException:
		p.fanOut(pkt, wire.WorkException, true)

	case wire.GetStatus:
		p.getStatus(c, pkt, false)
	case wire.GetStatusUnique:
		p.getStatus(c, pkt, true)

	case wire.CanDo:
		c.AddFunction(string(pkt.Arg(0)), 0)
		p.Reg.RegisterWorker(c.ID, string(pkt.Arg(0)), 0)
		c.SetRole(types.RoleWorker)
	case wire.CanDoTimeout:
		timeout := parseTimeout(pkt.Arg(1))
		c.AddFunction(string(pkt.Arg(0)), timeout)
		p.Reg.RegisterWorker(c.ID, string(pkt.Arg(0)), timeout)
		c.SetRole(types.RoleWorker)
	case wire.CantDo:
		c.RemoveFunction(string(pkt.Arg(0)))
		p.Reg.UnregisterWorker(c.ID, string(pkt.Arg(0)))
	case wire.ResetAbilities:
		fns := c.Functions()
		c.ResetAbilities()
		p.Reg.ResetAbilities(c.ID, fns)
	case wire.AllYours:
		// Legacy no-op, acknowledged silently (spec.md §4.4).

	case wire.EchoReq:
		c.Send(&wire.Packet{Magic: wire.Response, Command: wire.EchoRes, Args: pkt.Args})

	case wire.OptionReq:
		p.optionReq(c, pkt)

	case wire.SetClientID:
		c.SetClientID(string(pkt.Arg(0)))

	default:
		log.WithComponent("process").Debug().Str("command", pkt.Command.String()).Msg("unhandled command")
	}
}

func parseTimeout(raw []byte) time.Duration {
	secs, err := strconv.Atoi(string(raw))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
