package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Config holds logging configuration.
type Config struct {
	// Verbosity follows spec.md's -v flag: 0 = warn, 1 = info, 2+ = debug.
	Verbosity  int
	JSONOutput bool
	Output     io.Writer
	// FilePath, if set, is reopened every 60 seconds so external log
	// rotation can rename the file out from under the running process.
	FilePath string
}

func levelForVerbosity(v int) zerolog.Level {
	switch {
	case v <= 0:
		return zerolog.WarnLevel
	case v == 1:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

// Init initializes the global logger. The returned RotatingFileWriter is
// nil unless Config.FilePath was set; callers should Close it on shutdown.
func Init(cfg Config) *RotatingFileWriter {
	zerolog.SetGlobalLevel(levelForVerbosity(cfg.Verbosity))

	var rotating *RotatingFileWriter
	output := cfg.Output
	if cfg.FilePath != "" {
		if rf, err := NewRotatingFileWriter(cfg.FilePath, 60*time.Second); err == nil {
			rotating = rf
			output = rf
		}
	}
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
	return rotating
}

// WithComponent creates a child logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }
func Fatal(msg string) { Logger.Fatal().Msg(msg) }

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

// RotatingFileWriter reopens its underlying file on an interval so an
// external log-rotate tool can rename the path out from under the process;
// the next write after rotation creates a fresh file at the same path.
type RotatingFileWriter struct {
	path string

	mu     sync.Mutex
	file   *os.File
	ticker *time.Ticker
	stopCh chan struct{}
}

// NewRotatingFileWriter opens path and starts reopening it every interval.
func NewRotatingFileWriter(path string, interval time.Duration) (*RotatingFileWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	w := &RotatingFileWriter{
		path:   path,
		file:   f,
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *RotatingFileWriter) run() {
	for {
		select {
		case <-w.ticker.C:
			w.reopen()
		case <-w.stopCh:
			return
		}
	}
}

func (w *RotatingFileWriter) reopen() {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}

	w.mu.Lock()
	old := w.file
	w.file = f
	w.mu.Unlock()

	old.Close()
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Write(p)
}

// Close stops the rotation ticker and closes the underlying file.
func (w *RotatingFileWriter) Close() error {
	w.ticker.Stop()
	close(w.stopCh)

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
