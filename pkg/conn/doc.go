/*
Package conn implements gearmand's per-socket connection state (spec.md
§3, §4.2): role, CAN_DO registrations, sleeping/exceptions/noop flags, and
the bounded inbound/outbound packet handling an I/O thread drives.

spec.md §9 asks reimplementers to replace the C original's manual
non-blocking FSM and self-pipe wakeups with whatever a target language
does idiomatically rather than hand-rolling epoll; here that is a
goroutine pair per connection (read pump, write pump) communicating
through a bounded channel, modeled on the accept-goroutine-per-connection
shape a plain Go TCP server uses. Send enqueues outbound packets
non-blockingly and switches the connection to CloseAfterFlush on overflow,
reproducing the C FSM's overflow policy without its intrusive list
bookkeeping.
*/
package conn
