// Package admin implements gearmand's line-oriented text admin protocol
// (spec.md §4.8): status/workers/maxqueue/shutdown/version/getpid/
// create-function/drop-function, each a thin formatter over pkg/registry.
package admin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/gearmand/pkg/conn"
	"github.com/cuemby/gearmand/pkg/registry"
	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
)

// ConnLookup resolves a connection id to its live connection, for the
// `workers` command's ip/client-id columns.
type ConnLookup func(types.ConnID) (*conn.Connection, bool)

// Dispatcher handles one text-admin line at a time.
type Dispatcher struct {
	Reg     *registry.Registry
	Lookup  ConnLookup
	Version string
	Pid     int

	// Shutdown is invoked for the `shutdown` command; graceful distinguishes
	// `shutdown graceful` from an immediate shutdown (spec.md §4.9).
	Shutdown func(graceful bool)
}

// Handle parses and executes one admin line, returning the full reply
// (already newline-terminated, multi-line replies ending in ".\n").
func (d *Dispatcher) Handle(line string) string {
	al := wire.ParseAdminLine(line)
	switch al.Command {
	case "status":
		return d.status()
	case "workers":
		return d.workers()
	case "maxqueue":
		return d.maxqueue(al.Args)
	case "shutdown":
		return d.shutdown(al.Args)
	case "version":
		return d.Version + "\n"
	case "getpid":
		return "OK " + strconv.Itoa(d.Pid) + "\n"
	case "create-function":
		return d.createFunction(al.Args)
	case "drop-function":
		return d.dropFunction(al.Args)
	default:
		return "ERR unknown_command Unknown server command: " + al.Command + "\n"
	}
}

func (d *Dispatcher) status() string {
	var b strings.Builder
	for _, f := range d.Reg.StatusReport() {
		fmt.Fprintf(&b, "%s\t%d\t%d\t%d\n", f.Name, f.Running, f.Total, f.Workers)
	}
	b.WriteString(".\n")
	return b.String()
}

func (d *Dispatcher) workers() string {
	var b strings.Builder
	for _, w := range d.Reg.WorkerReport() {
		ip, clientID := "-", "-"
		if d.Lookup != nil {
			if c, ok := d.Lookup(w.Conn); ok {
				ip = c.RemoteAddr()
				clientID = c.ClientID
			}
		}
		fmt.Fprintf(&b, "%s %s %s : %s\n", "-", ip, clientID, strings.Join(w.Functions, " "))
	}
	b.WriteString(".\n")
	return b.String()
}

func (d *Dispatcher) maxqueue(args []string) string {
	if len(args) < 2 {
		return "ERR invalid_arguments maxqueue requires FUNCTION SIZE\n"
	}
	size, err := strconv.Atoi(args[1])
	if err != nil {
		return "ERR invalid_arguments SIZE must be an integer\n"
	}
	d.Reg.SetMaxQueueSize(args[0], size)
	return "OK\n"
}

func (d *Dispatcher) shutdown(args []string) string {
	graceful := len(args) > 0 && args[0] == "graceful"
	if d.Shutdown != nil {
		d.Shutdown(graceful)
	}
	return "OK\n"
}

func (d *Dispatcher) createFunction(args []string) string {
	if len(args) < 1 {
		return "ERR invalid_arguments create-function requires NAME\n"
	}
	d.Reg.CreateFunction(args[0])
	return "OK\n"
}

func (d *Dispatcher) dropFunction(args []string) string {
	if len(args) < 1 {
		return "ERR invalid_arguments drop-function requires NAME\n"
	}
	d.Reg.DropFunction(args[0])
	return "OK\n"
}
