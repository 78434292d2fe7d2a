/*
Package registry implements gearmand's job registry (spec.md §3, §4.4,
§4.5): the Function table, its three priority FIFOs, unique-key
coalescence, scheduled (epoch) jobs, worker assignment, and the
client/job subscription bookkeeping the processing stage fans packets out
against.

A single sync.Mutex serializes every mutation to the Function/Job graph,
matching spec.md §4.4's explicit tradeoff in favor of one coarse lock over
finer-grained locking. Every exported method acquires it for the duration
of one logical operation and returns plain values (connection ids,
subscriber lists) for pkg/process to act on — the registry never holds a
reference to an actual net.Conn or *conn.Connection, so a connection can
be torn down and released to the garbage collector without the registry
dangling (spec.md §3's "Ownership" paragraph).
*/
package registry
