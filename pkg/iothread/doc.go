/*
Package iothread implements gearmand's I/O thread pool (spec.md §4.3): a
configurable number of threads, each owning a slice of connections, with
the listener assigning new connections round-robin.

The C original gives each thread its own event loop, self-pipe wakeup
byte, and a capped free-list recycling idle connection structs; per
spec.md §9's explicit license to rely on the host allocator instead of
hand-rolled pooling, each Thread here is a lightweight control loop
reading WakeupKind tokens off a channel, while actual connection I/O runs
on the goroutine conn.Serve starts per connection (Go's scheduler is the
"event loop"). A connection's memory is freed by the garbage collector
once Thread.remove drops the last reference, which is what bounds
per-thread memory here instead of an explicit pool.
*/
package iothread
