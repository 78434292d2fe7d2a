package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/cuemby/gearmand/pkg/config"
	"github.com/cuemby/gearmand/pkg/events"
	"github.com/cuemby/gearmand/pkg/log"
	"github.com/cuemby/gearmand/pkg/queue"
	"github.com/cuemby/gearmand/pkg/queue/boltqueue"
	"github.com/cuemby/gearmand/pkg/queue/memory"
	"github.com/cuemby/gearmand/pkg/queue/redisqueue"
	"github.com/cuemby/gearmand/pkg/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gearmand",
	Short: "gearmand - a distributed job queue server",
	Long: `gearmand accepts jobs from clients over a binary frame protocol,
dispatches them to registered workers, and optionally persists
background jobs across restarts.`,
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"gearmand version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	f := rootCmd.Flags()
	f.IntP("port", "p", 4730, "Port to listen on for the job protocol")
	f.IntP("threads", "t", 4, "Number of I/O threads")
	f.IntP("backlog", "b", 32, "Listen backlog")
	f.IntP("file-descriptors", "f", 0, "RLIMIT_NOFILE to request (0 = leave unchanged)")
	f.IntP("job-retries", "j", 0, "Retries before a failing job is given up on")
	f.IntP("worker-wakeup", "w", 0, "Sleeping workers to wake per job (0 = all)")
	f.BoolP("round-robin", "R", false, "Assign jobs to a worker's functions round-robin instead of in order")
	f.StringP("queue-type", "q", "memory", "Persistent queue backend: memory, bolt, or redis")
	f.StringP("log-file", "l", "", "Log file path (reopened every 60s for external rotation)")
	f.StringP("listen", "L", "0.0.0.0", "Address to bind the job protocol listener to")
	f.StringP("pid-file", "P", "", "File to write the process id to")
	f.BoolP("daemon", "d", false, "Run as a daemon (detach from the controlling terminal)")
	f.StringP("user", "u", "", "Switch to this user after binding sockets")
	f.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	f.Bool("syslog", false, "Write log output as JSON lines (no syslog connection is made)")
	f.Bool("check-args", false, "Validate flags and exit without starting the server")

	f.String("data-dir", "", "Data directory for the bolt queue backend")
	f.String("redis-addr", config.EnvOr("REDIS_ADDR", "localhost:6379"), "Redis address for --queue-type=redis")
	f.String("admin-addr", "", "Dedicated address for the text admin protocol (empty disables the extra listener; admin is always detected on the job port too)")
	f.String("metrics-addr", "", "Address to serve /metrics and /healthz on (empty disables it)")

	f.String("events-kafka-brokers", config.EnvOr("KAFKA_BROKERS", ""), "Comma-separated Kafka brokers for job-lifecycle event fan-out (empty disables it)")
	f.String("events-kafka-topic", "gearmand.job-events", "Kafka topic for job-lifecycle events")
}

func run(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()
	f := cmd.Flags()

	cfg := config.Config{}
	cfg.Port, _ = f.GetInt("port")
	cfg.Threads, _ = f.GetInt("threads")
	cfg.Backlog, _ = f.GetInt("backlog")
	cfg.FileDescriptors, _ = f.GetInt("file-descriptors")
	cfg.JobRetries, _ = f.GetInt("job-retries")
	cfg.WorkerWakeup, _ = f.GetInt("worker-wakeup")
	cfg.RoundRobin, _ = f.GetBool("round-robin")
	qt, _ := f.GetString("queue-type")
	cfg.QueueType = config.QueueType(qt)
	cfg.LogFile, _ = f.GetString("log-file")
	listenHost, _ := f.GetString("listen")
	cfg.PidFile, _ = f.GetString("pid-file")
	cfg.Daemon, _ = f.GetBool("daemon")
	cfg.User, _ = f.GetString("user")
	cfg.Verbose, _ = f.GetCount("verbose")
	cfg.Syslog, _ = f.GetBool("syslog")
	cfg.CheckArgs, _ = f.GetBool("check-args")
	cfg.DataDir, _ = f.GetString("data-dir")
	cfg.RedisAddr, _ = f.GetString("redis-addr")
	cfg.AdminAddr, _ = f.GetString("admin-addr")
	cfg.MetricsAddr, _ = f.GetString("metrics-addr")
	brokers, _ := f.GetString("events-kafka-brokers")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.KafkaTopic, _ = f.GetString("events-kafka-topic")
	cfg.ListenAddr = listenHost + ":" + strconv.Itoa(cfg.Port)

	if cfg.CheckArgs {
		fmt.Println("OK: flags valid")
		return nil
	}

	if cfg.Daemon {
		fmt.Fprintln(os.Stderr, "warning: --daemon is not supported; run gearmand under a process supervisor instead")
	}

	rotating := log.Init(log.Config{
		Verbosity:  cfg.Verbose,
		JSONOutput: cfg.Syslog || cfg.LogFile != "",
		FilePath:   cfg.LogFile,
	})

	q, err := openQueue(cfg)
	if err != nil {
		return fmt.Errorf("open queue backend %q: %w", cfg.QueueType, err)
	}

	var bus *events.Bus
	if len(cfg.KafkaBrokers) > 0 {
		bus = events.NewBus()
		bus.SetProducer(events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic))
	}

	hostname, _ := os.Hostname()
	srv := server.New(server.Config{
		ListenAddr:   cfg.ListenAddr,
		AdminAddr:    cfg.AdminAddr,
		MetricsAddr:  cfg.MetricsAddr,
		Threads:      cfg.Threads,
		Hostname:     hostname,
		JobRetries:   cfg.JobRetries,
		WorkerWakeup: cfg.WorkerWakeup,
		RoundRobin:   cfg.RoundRobin,
		Version:      "gearmand " + Version,
	}, q, bus)
	srv.AttachLogWriter(rotating)

	if cfg.FileDescriptors > 0 {
		if err := server.SetFileDescriptorLimit(cfg.FileDescriptors); err != nil {
			log.WithComponent("main").Warn().Err(err).Msg("failed to raise file descriptor limit")
		}
	}

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if cfg.User != "" {
		if err := server.DropPrivileges(cfg.User); err != nil {
			return fmt.Errorf("drop privileges: %w", err)
		}
	}

	if cfg.PidFile != "" {
		if err := os.WriteFile(cfg.PidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
			log.WithComponent("main").Warn().Err(err).Msg("failed to write pid file")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	signal.Ignore(syscall.SIGPIPE)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGUSR1:
			log.WithComponent("main").Info().Msg("SIGUSR1 received, shutting down gracefully")
			return srv.ShutdownGraceful(ctx)
		default:
			log.WithComponent("main").Info().Str("signal", sig.String()).Msg("shutting down")
			return srv.Shutdown(ctx)
		}
	}
	return nil
}

func openQueue(cfg config.Config) (queue.Adapter, error) {
	switch cfg.QueueType {
	case config.QueueBolt:
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		return boltqueue.Open(dataDir)
	case config.QueueRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return redisqueue.New(client), nil
	default:
		return memory.New(), nil
	}
}
