package process

import (
	"strconv"

	"github.com/cuemby/gearmand/pkg/conn"
	"github.com/cuemby/gearmand/pkg/events"
	"github.com/cuemby/gearmand/pkg/log"
	"github.com/cuemby/gearmand/pkg/registry"
	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
)

func (p *Processor) submit(c *conn.Connection, pkt *wire.Packet, priority types.Priority, background bool, epoch int64) {
	c.SetRole(types.RoleClient)
	fn := string(pkt.Arg(0))
	unique := string(pkt.Arg(1))
	payload := pkt.Arg(2)

	res, err := p.Reg.Submit(fn, unique, priority, payload, epoch, background, c.ID)
	p.replySubmit(c, res, err)
}

func (p *Processor) submitEpoch(c *conn.Connection, pkt *wire.Packet) {
	c.SetRole(types.RoleClient)
	fn := string(pkt.Arg(0))
	unique := string(pkt.Arg(1))
	epoch, _ := strconv.ParseInt(string(pkt.Arg(2)), 10, 64)
	payload := pkt.Arg(3)

	res, err := p.Reg.Submit(fn, unique, types.PriorityNormal, payload, epoch, true, c.ID)
	p.replySubmit(c, res, err)
}

func (p *Processor) submitReduce(c *conn.Connection, pkt *wire.Packet, background bool) {
	c.SetRole(types.RoleClient)
	mapper := string(pkt.Arg(0))
	reducer := string(pkt.Arg(1))
	unique := string(pkt.Arg(2))
	priority := parsePriority(pkt.Arg(3))
	payload := pkt.Arg(4)

	res, err := p.Reg.Submit(mapper, unique, priority, payload, 0, background, c.ID)
	if err != nil {
		p.sendError(c, err)
		return
	}
	if res.Created {
		res.Job.Reducer = reducer
		p.Agg.Begin(res.Job.Handle, reducer, unique, priority, 0, background, res.Job.Subscribers)
	}
	p.replySubmit(c, res, nil)
}

func parsePriority(raw []byte) types.Priority {
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return types.PriorityNormal
	}
	switch types.Priority(n) {
	case types.PriorityHigh, types.PriorityLow:
		return types.Priority(n)
	default:
		return types.PriorityNormal
	}
}

func (p *Processor) replySubmit(c *conn.Connection, res registry.SubmitResult, err error) {
	if err != nil {
		p.sendError(c, err)
		return
	}
	c.Send(&wire.Packet{Magic: wire.Response, Command: wire.JobCreated, Args: [][]byte{[]byte(res.Job.Handle)}})

	if p.Events != nil && res.Created {
		p.Events.Publish(events.Event{Type: events.JobCreated, Function: res.Job.Function, Handle: string(res.Job.Handle)})
	}

	for _, workerID := range res.ToWake {
		if wc, ok := p.Conns.Lookup(workerID); ok {
			wc.SetSleeping(false)
			if !wc.NoopIsSent() {
				wc.SetNoopSent(true)
				wc.Send(&wire.Packet{Magic: wire.Response, Command: wire.Noop})
			}
		}
	}
}

func (p *Processor) sendError(c *conn.Connection, err error) {
	log.WithComponent("process").Debug().Err(err).Msg("submit failed")
	code := "unknown_error"
	if _, ok := err.(registry.ErrQueueFull); ok {
		code = "job_queue_full"
	}
	c.Send(&wire.Packet{Magic: wire.Response, Command: wire.Error, Args: [][]byte{[]byte(code), []byte(err.Error())}})
}
