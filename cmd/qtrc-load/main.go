// qtrc-load exercises the qtrc session lifecycle against an in-memory store,
// generating primary and secondary trace sessions at a fixed interval. It's a
// smoke-test and demo tool, not a benchmark.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/qtrclabs/qtrc"
	"github.com/qtrclabs/qtrc/qtrcstore"
)

func main() {
	var (
		ctx    = context.Background()
		stderr = os.Stderr
		args   = os.Args[1:]
	)
	err := exec(ctx, stderr, args)
	switch {
	case err == nil:
		os.Exit(0)
	case errors.As(err, &(run.SignalError{})):
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func exec(ctx context.Context, stderr io.Writer, args []string) error {
	var flags struct {
		sessions    int
		interval    time.Duration
		secondaries int
		slowAfter   time.Duration
		sampleRate  float64
		queueSize   int
		retain      int
		budget      int64
		metricsAddr string
		logLevel    string
	}

	fs := ff.NewFlags("qtrc-load")
	{
		fs.AddFlag(ff.CoreFlagConfig{ShortName: 'n', LongName: "sessions", Value: ffval.NewValueDefault(&flags.sessions, 0), Usage: "number of sessions to generate, 0 for unlimited"})
		fs.AddFlag(ff.CoreFlagConfig{ShortName: 'i', LongName: "interval", Value: ffval.NewValueDefault(&flags.interval, 10*time.Millisecond), Usage: "delay between sessions"})
		fs.AddFlag(ff.CoreFlagConfig{ShortName: 's', LongName: "secondaries", Value: ffval.NewValueDefault(&flags.secondaries, 2), Usage: "secondary sessions per primary"})
		fs.AddFlag(ff.CoreFlagConfig{/*          */ LongName: "slow-after", Value: ffval.NewValueDefault(&flags.slowAfter, 100*time.Millisecond), Usage: "slow-query threshold"})
		fs.AddFlag(ff.CoreFlagConfig{/*          */ LongName: "sample", Value: ffval.NewValueDefault(&flags.sampleRate, 1.0), Usage: "fraction of sessions whose records are written"})
		fs.AddFlag(ff.CoreFlagConfig{/*          */ LongName: "queue", Value: ffval.NewValueDefault(&flags.queueSize, 1024), Usage: "write queue size"})
		fs.AddFlag(ff.CoreFlagConfig{/*          */ LongName: "retain", Value: ffval.NewValueDefault(&flags.retain, 256), Usage: "written session records retained in memory"})
		fs.AddFlag(ff.CoreFlagConfig{/*          */ LongName: "budget", Value: ffval.NewValueDefault(&flags.budget, int64(10000)), Usage: "shared record budget"})
		fs.AddFlag(ff.CoreFlagConfig{ShortName: 'm', LongName: "metrics", Value: ffval.NewValue(&flags.metricsAddr), Usage: "listen address for Prometheus metrics, empty to disable"})
		fs.AddFlag(ff.CoreFlagConfig{ShortName: 'l', LongName: "log", Value: ffval.NewEnum(&flags.logLevel, "info", "debug", "trace", "none"), Usage: "log level"})
	}

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("QTRC")); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			err = nil
		}
		return err
	}

	var logger zerolog.Logger
	{
		level := zerolog.InfoLevel
		switch flags.logLevel {
		case "debug":
			level = zerolog.DebugLevel
		case "trace":
			level = zerolog.TraceLevel
		case "none":
			level = zerolog.Disabled
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger().Level(level)
	}

	store := qtrcstore.New(qtrcstore.Config{
		Logger:    logger,
		QueueSize: flags.queueSize,
		Retain:    flags.retain,
		Budget:    flags.budget,
		ShouldWrite: func() bool {
			return rand.Float64() < flags.sampleRate
		},
		SlowQuery: func(elapsed time.Duration) bool {
			return elapsed >= flags.slowAfter
		},
	})

	var g run.Group

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return store.Run(ctx)
		}, func(error) {
			cancel()
		})
	}

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return generate(ctx, store, flags.sessions, flags.interval, flags.secondaries, logger)
		}, func(error) {
			cancel()
		})
	}

	if flags.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(qtrcstore.NewCollector(store))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: flags.metricsAddr, Handler: mux}

		g.Add(func() error {
			logger.Info().Str("addr", flags.metricsAddr).Msg("serving metrics")
			return server.ListenAndServe()
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		})
	}

	{
		g.Add(run.SignalHandler(ctx, os.Interrupt))
	}

	defer func() {
		stats := store.Stats()
		logger.Info().
			Uint64("sessions_ended", stats.SessionsEnded.Load()).
			Uint64("records_written", stats.RecordsWritten.Load()).
			Uint64("records_dropped", stats.RecordsDropped.Load()).
			Uint64("queue_drops", stats.QueueDrops.Load()).
			Uint64("trace_errors", stats.TraceErrors.Load()).
			Int64("budget_remaining", store.Budget().Remaining()).
			Msg("done")
	}()

	return g.Run()
}

var sampleQueries = []string{
	"SELECT * FROM users WHERE id = ?",
	"INSERT INTO events (id, payload) VALUES (?, ?)",
	"UPDATE counters SET value = value + 1 WHERE name = ?",
	"DELETE FROM sessions WHERE expired < ?",
}

func generate(ctx context.Context, store *qtrcstore.Store, n int, interval time.Duration, secondaries int, logger zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; n <= 0 || i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		oneSession(store, secondaries)
	}

	logger.Info().Int("sessions", n).Msg("generation complete")
	return nil
}

func oneSession(store *qtrcstore.Store, secondaries int) {
	s := store.NewSession(qtrc.RolePrimary)
	defer s.Close()

	s.Begin()

	switch rand.Intn(3) {
	case 0:
		s.AddQuery(sampleQueries[rand.Intn(len(sampleQueries))])
	case 1:
		s.AddQuery(sampleQueries[0])
		s.AddQuery(sampleQueries[1])
		s.SetBatchlogEndpoints([]netip.Addr{
			netip.MustParseAddr("10.0.0.1"),
			netip.MustParseAddr("10.0.0.2"),
		})
	case 2:
		s.AddQuery(sampleQueries[rand.Intn(len(sampleQueries))])
		s.SetPageSize(1 + rand.Intn(5000))
	}

	s.SetConsistency(qtrc.ConsistencyQuorum)
	if rand.Intn(2) == 0 {
		serial := qtrc.ConsistencySerial
		s.SetSerialConsistency(&serial)
	}
	s.SetUserTimestamp(time.Now().UnixMicro())

	s.Tracef("parsing statement")
	s.Tracef("executing on %d replicas", 1+rand.Intn(3))

	for i := 0; i < secondaries; i++ {
		sub := store.NewSession(qtrc.RoleSecondary)
		sub.Begin()
		sub.Tracef("replica read %d", i)
		sub.Close()
	}

	s.Tracef("request complete")
}
