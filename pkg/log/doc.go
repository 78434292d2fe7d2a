/*
Package log provides structured logging for gearmand using zerolog.

Level is chosen by verbosity count rather than a named string, matching
spec.md's `-v` flag (each repetition drops one level: default Warn, -v
Info, -vv Debug). WithComponent returns a child logger tagged with a
component name (wire, conn, iothread, registry, queue, reduce, admin,
server).

# Log file rotation

gearmand's C original reopens its log file handle every 60 seconds so an
external log-rotate tool (logrotate, etc.) can rename the file out from
under it. RotatingFileWriter reproduces that by reopening the configured
path on a ticker and swapping the underlying *os.File under a mutex; Init
wires it in only when Config.FilePath is set, otherwise it logs to Output
(stdout by default) exactly as zerolog normally does.

# Usage

	log.Init(log.Config{Verbosity: 2, JSONOutput: true, FilePath: "/var/log/gearmand.log"})
	logger := log.WithComponent("registry")
	logger.Info().Str("function", "reverse").Msg("function created")
*/
package log
