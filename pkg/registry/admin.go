package registry

import "github.com/cuemby/gearmand/pkg/types"

// FunctionStatus is one row of the admin `status` reply (spec.md §4.8).
type FunctionStatus struct {
	Name    string
	Running int
	Total   int
	Workers int
}

// StatusReport returns a snapshot of every function for admin `status`.
func (r *Registry) StatusReport() []FunctionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]FunctionStatus, 0, len(r.functions))
	for _, f := range r.functions {
		out = append(out, FunctionStatus{
			Name:    f.name,
			Running: f.running,
			Total:   f.queueLen() + f.running,
			Workers: len(f.workers),
		})
	}
	return out
}

// WorkerInfo is one row of the admin `workers` reply.
type WorkerInfo struct {
	Conn      types.ConnID
	Functions []string
}

// WorkerReport lists every distinct worker connection and the functions
// it has registered, for admin `workers`.
func (r *Registry) WorkerReport() []WorkerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	byConn := make(map[types.ConnID][]string)
	for name, f := range r.functions {
		for _, w := range f.workers {
			byConn[w] = append(byConn[w], name)
		}
	}
	out := make([]WorkerInfo, 0, len(byConn))
	for conn, fns := range byConn {
		out = append(out, WorkerInfo{Conn: conn, Functions: fns})
	}
	return out
}
