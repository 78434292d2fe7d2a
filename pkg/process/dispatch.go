package process

import (
	"strconv"

	"github.com/cuemby/gearmand/pkg/conn"
	"github.com/cuemby/gearmand/pkg/events"
	"github.com/cuemby/gearmand/pkg/log"
	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
)

func parseProgress(raw []byte) int64 {
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func boolByte(b bool) []byte {
	if b {
		return []byte("1")
	}
	return []byte("0")
}

func intBytes(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

// grab implements GRAB_JOB / GRAB_JOB_UNIQ / GRAB_JOB_ALL. uniq adds the
// unique key to the reply; all additionally adds the reducer function,
// this port's resolution of spec.md §9's JOB_ASSIGN_ALL argument-order
// open question: [handle, function, unique, reducer, payload].
func (p *Processor) grab(c *conn.Connection, uniq, all bool) {
	c.SetRole(types.RoleWorker)
	job, ok := p.Reg.Grab(c.ID, c.Functions())
	if !ok {
		c.Send(&wire.Packet{Magic: wire.Response, Command: wire.NoJob})
		return
	}

	switch {
	case all:
		c.Send(&wire.Packet{Magic: wire.Response, Command: wire.JobAssignAll, Args: [][]byte{
			[]byte(job.Handle), []byte(job.Function), []byte(job.Unique), []byte(job.Reducer), job.Payload,
		}})
	case uniq:
		c.Send(&wire.Packet{Magic: wire.Response, Command: wire.JobAssignUniq, Args: [][]byte{
			[]byte(job.Handle), []byte(job.Function), []byte(job.Unique), job.Payload,
		}})
	default:
		c.Send(&wire.Packet{Magic: wire.Response, Command: wire.JobAssign, Args: [][]byte{
			[]byte(job.Handle), []byte(job.Function), job.Payload,
		}})
	}
}

// preSleep implements PRE_SLEEP: a worker that already has a dispatchable
// job is woken immediately instead of parked (spec.md §3 invariant 7).
// NoopSent gates the send so a worker already woken (or never parked)
// never gets a second NOOP for the same sleep.
func (p *Processor) preSleep(c *conn.Connection) {
	c.SetRole(types.RoleWorker)
	// Each PRE_SLEEP starts a new sleep; a NOOP from an earlier one must
	// not suppress this one's wakeup.
	c.SetNoopSent(false)
	if p.Reg.PreSleep(c.ID, c.Functions()) {
		if !c.NoopIsSent() {
			c.SetNoopSent(true)
			c.Send(&wire.Packet{Magic: wire.Response, Command: wire.Noop})
		}
		return
	}
	c.SetSleeping(true)
	c.SetNoopSent(false)
}

// fanOut forwards a WORK_DATA / WORK_WARNING / WORK_EXCEPTION packet to a
// job's subscribers unchanged. exceptionsOnly restricts delivery to
// connections that sent OPTION_REQ exceptions (spec.md §9 open question).
func (p *Processor) fanOut(pkt *wire.Packet, cmd wire.Command, exceptionsOnly bool) {
	handle := types.JobHandle(pkt.Arg(0))
	subs, err := p.Reg.Subscribers(handle)
	if err != nil {
		return
	}
	for _, id := range subs {
		wc, ok := p.Conns.Lookup(id)
		if !ok {
			continue
		}
		if exceptionsOnly && !wc.ExceptionsOn() {
			continue
		}
		wc.Send(&wire.Packet{Magic: wire.Response, Command: cmd, Args: pkt.Args})
	}
}

// workStatus implements WORK_STATUS: the progress update itself is fanned
// out to subscribers unchanged, after the registry records it.
func (p *Processor) workStatus(pkt *wire.Packet) {
	handle := types.JobHandle(pkt.Arg(0))
	numerator, denominator := parseProgress(pkt.Arg(1)), parseProgress(pkt.Arg(2))
	subs, err := p.Reg.Report(handle, numerator, denominator)
	if err != nil {
		return
	}
	for _, id := range subs {
		p.Conns.Send(id, &wire.Packet{Magic: wire.Response, Command: wire.WorkStatus, Args: pkt.Args})
	}
}

// workComplete implements WORK_COMPLETE. A mapper job tracked by the
// aggregator finalizes its partitions into a single reduce submission
// instead of notifying its own subscribers directly (spec.md §4.6).
func (p *Processor) workComplete(pkt *wire.Packet) {
	handle := types.JobHandle(pkt.Arg(0))
	payload := pkt.Arg(1)

	if p.Agg.IsPartition(handle) {
		p.Agg.AddChunk(handle, payload)
		res, ok, err := p.Agg.Complete(handle)
		p.Reg.Complete(handle) // mapper bookkeeping; its own subscribers already transferred
		if !ok {
			return
		}
		if err != nil {
			log.WithComponent("process").Warn().Err(err).Msg("reduce submission failed")
			return
		}
		if p.Events != nil {
			p.Events.Publish(events.Event{Type: events.JobCreated, Function: res.Job.Function, Handle: string(res.Job.Handle)})
		}
		for _, id := range res.Job.Subscribers {
			if wc, ok := p.Conns.Lookup(id); ok {
				wc.Send(&wire.Packet{Magic: wire.Response, Command: wire.JobCreated, Args: [][]byte{[]byte(res.Job.Handle)}})
			}
		}
		return
	}

	subs, job, err := p.Reg.Complete(handle)
	if err != nil {
		return
	}
	if p.Events != nil {
		p.Events.Publish(events.Event{Type: events.JobCompleted, Function: job.Function, Handle: string(handle)})
	}
	for _, id := range subs {
		p.Conns.Send(id, &wire.Packet{Magic: wire.Response, Command: wire.WorkComplete, Args: [][]byte{[]byte(handle), payload}})
	}
}

// workFail implements WORK_FAIL. A mapper job failing outright (retries
// exhausted) aborts the aggregation without invoking the reducer (spec.md
// §4.6); a mapper with retries left simply requeues and nothing is sent.
func (p *Processor) workFail(pkt *wire.Packet) {
	handle := types.JobHandle(pkt.Arg(0))

	if p.Agg.IsPartition(handle) {
		result, err := p.Reg.Fail(handle)
		if err != nil || result.Retry {
			return
		}
		subs, _ := p.Agg.Abort(handle)
		for _, id := range subs {
			p.Conns.Send(id, &wire.Packet{Magic: wire.Response, Command: wire.WorkFail, Args: [][]byte{[]byte(handle)}})
		}
		return
	}

	job, _ := p.Reg.Job(handle)
	result, err := p.Reg.Fail(handle)
	if err != nil || result.Retry {
		return
	}
	if p.Events != nil {
		fn := ""
		if job != nil {
			fn = job.Function
		}
		p.Events.Publish(events.Event{Type: events.JobFailed, Function: fn, Handle: string(handle)})
	}
	for _, id := range result.Subscribers {
		p.Conns.Send(id, &wire.Packet{Magic: wire.Response, Command: wire.WorkFail, Args: [][]byte{[]byte(handle)}})
	}
}

// getStatus implements GET_STATUS / GET_STATUS_UNIQUE.
func (p *Processor) getStatus(c *conn.Connection, pkt *wire.Packet, uniq bool) {
	handle := types.JobHandle(pkt.Arg(0))

	if uniq {
		known, running, unique, num, denom := p.Reg.StatusFull(handle)
		c.Send(&wire.Packet{Magic: wire.Response, Command: wire.StatusResUnique, Args: [][]byte{
			[]byte(handle), []byte(unique), boolByte(known), boolByte(running), intBytes(num), intBytes(denom),
		}})
		return
	}

	known, running, num, denom := p.Reg.Status(handle)
	c.Send(&wire.Packet{Magic: wire.Response, Command: wire.StatusRes, Args: [][]byte{
		[]byte(handle), boolByte(known), boolByte(running), intBytes(num), intBytes(denom),
	}})
}

// optionReq implements OPTION_REQ. "exceptions" is the only option
// gearmand clients actually negotiate; anything else is rejected.
func (p *Processor) optionReq(c *conn.Connection, pkt *wire.Packet) {
	opt := string(pkt.Arg(0))
	if opt != "exceptions" {
		c.Send(&wire.Packet{Magic: wire.Response, Command: wire.Error, Args: [][]byte{
			[]byte("unknown_option"), []byte("unrecognized option: " + opt),
		}})
		return
	}
	c.SetExceptionsEnabled(true)
	c.Send(&wire.Packet{Magic: wire.Response, Command: wire.OptionRes, Args: [][]byte{[]byte(opt)}})
}
