/*
Package types defines gearmand's domain model: Job, Function, and the
connection-role vocabulary shared by pkg/conn, pkg/registry, and
pkg/process.

# Core types

  - Job: a unit of work with a handle, optional coalescence key, priority,
    payload, optional epoch, and the client/worker connections attached to
    it.
  - Function: a named worker capability with its queued/running job
    counts and registered worker set.
  - Priority: HIGH, NORMAL, or LOW, matching spec.md's three-tier queue.
  - Role: a connection's identity, Unknown until its first SUBMIT_JOB or
    CAN_DO packet resolves it to Client or Worker.

# Design

Types here are plain structs with typed int enums exposing a String()
method; they carry no
behavior of their own. Mutation and invariant enforcement (coalescence,
queue ordering, epoch gating) live in pkg/registry, which holds the only
lock across the Function/Job graph.
*/
package types
