// Command queuectl is the control-plane CLI for a durable local
// command-execution queue: enqueue work, inspect its state, manage the
// dead-letter queue, start or stop worker processes, and read or write
// runtime configuration.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/job"
	qsql "github.com/queuectl/queuectl/sql"
)

const defaultDBPath = "queuectl.db"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	dbPath := os.Getenv("QUEUECTL_DB")
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	db, err := openDB(dbPath)
	if err != nil {
		log.Error("cannot open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	store := qsql.NewStore(db)
	control := queuectl.NewControl(store)
	ctx := context.Background()

	args := os.Args[2:]
	switch os.Args[1] {
	case "enqueue":
		cmdEnqueue(ctx, control, args)
	case "list":
		cmdList(ctx, control, args)
	case "status":
		cmdStatus(ctx, control)
	case "dlq":
		cmdDLQ(ctx, control, args)
	case "worker":
		cmdWorker(ctx, store, control, log, args)
	case "config":
		cmdConfig(ctx, control, args)
	case "history":
		cmdHistory(ctx, control, args)
	case "gc":
		cmdGC(ctx, store, log, args)
	default:
		printUsage()
		os.Exit(1)
	}
}

func openDB(path string) (*bun.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := qsql.Migrate(context.Background(), db); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: queuectl <command> [args]

commands:
  enqueue [--retries N] <command...>   enqueue a command
  list [--state STATE]                 list jobs
  status                               show counts and active workers
  dlq list|retry <job>                 dead letter queue operations
  worker start|stop [--count N] [--backoff N]
  config set|get <key> [value]         configuration
  history [--job-id N]                 job history
  gc [--state STATE] [--older-than D] [--watch D]  purge terminal jobs`)
}

func cmdEnqueue(ctx context.Context, c *queuectl.Control, args []string) {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	retries := fs.Int("retries", 3, "default max retries")
	fs.Parse(args)

	id, err := c.Enqueue(ctx, fs.Args(), uint32(*retries))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("enqueued %d\n", id)
}

func cmdList(ctx context.Context, c *queuectl.Control, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	state := fs.String("state", "", "pending|processing|completed|failed|dead")
	fs.Parse(args)

	var status job.Status
	label := "all"
	if *state != "" {
		st, err := job.ParseStatus(*state)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		status = st
		label = string(st)
	}

	jobs, err := c.List(ctx, status)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Jobs (%s):\n", label)
	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return
	}
	for _, j := range jobs {
		fmt.Printf("  %d\t%s\tattempts=%d/%d\tcmd=%s\n", j.Id, j.Status, j.Attempts, j.MaxRetries, j.Command)
	}
}

func cmdStatus(ctx context.Context, c *queuectl.Control) {
	res, err := c.Status(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("Jobs:")
	for _, st := range job.All() {
		fmt.Printf("  %s: %d\n", st, res.Counts[st])
	}
	fmt.Printf("Active workers: %d\n", res.ActiveWorkers)
}

func cmdDLQ(ctx context.Context, c *queuectl.Control, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "dlq requires list|retry")
		os.Exit(1)
	}
	switch args[0] {
	case "list":
		jobs, err := c.DLQList(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if len(jobs) == 0 {
			fmt.Println("DLQ is empty")
			return
		}
		for _, j := range jobs {
			ext := j.ExternalID
			if ext == "" {
				ext = "-"
			}
			fmt.Printf("%d (%s)\tdead\tcmd=%s\n", j.Id, ext, j.Command)
		}
	case "retry":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "dlq retry requires a job id")
			os.Exit(1)
		}
		identifier := args[1]
		ok, err := c.DLQRetry(ctx, identifier)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "job %s not in DLQ\n", identifier)
			os.Exit(1)
		}
		fmt.Printf("retried %s\n", identifier)
	default:
		fmt.Fprintln(os.Stderr, "unknown action")
		os.Exit(1)
	}
}

func cmdWorker(ctx context.Context, store queuectl.Store, c *queuectl.Control, log *slog.Logger, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "worker requires start|stop")
		os.Exit(1)
	}
	switch args[0] {
	case "start":
		fs := flag.NewFlagSet("worker start", flag.ExitOnError)
		count := fs.Int("count", 1, "number of workers")
		backoff := fs.Uint64("backoff", 2, "backoff exponentiation base")
		fs.Parse(args[1:])

		if err := c.SignalWorkersStop(ctx, false); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		exec := queuectl.NewExecutor()
		cfg := &queuectl.WorkerConfig{PollInterval: time.Second, BackoffBase: *backoff}

		workers := make([]*queuectl.Worker, 0, *count)
		ids := make([]string, 0, *count)
		for i := 0; i < *count; i++ {
			w := queuectl.NewWorker(store, exec, cfg, log)
			if err := w.Start(ctx); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			workers = append(workers, w)
			ids = append(ids, w.ID())
		}
		fmt.Printf("started %d worker(s): %s\n", len(ids), strings.Join(ids, ", "))

		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-sigCtx.Done()

		fmt.Println("stopping workers...")
		_ = c.SignalWorkersStop(context.Background(), true)
		for _, w := range workers {
			if err := w.Stop(10 * time.Second); err != nil {
				log.Warn("worker did not stop cleanly", "worker", w.ID(), "err", err)
			}
		}
	case "stop":
		if err := c.SignalWorkersStop(ctx, true); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("signaled workers to stop")
	default:
		fmt.Fprintln(os.Stderr, "unknown action")
		os.Exit(1)
	}
}

func cmdConfig(ctx context.Context, c *queuectl.Control, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "config requires set|get <key> [value]")
		os.Exit(1)
	}
	action, key := args[0], args[1]
	switch action {
	case "set":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "value is required for config set")
			os.Exit(1)
		}
		value := args[2]
		if err := c.ConfigSet(ctx, key, value); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("%s=%s\n", strings.ReplaceAll(key, "-", "_"), value)
	case "get":
		val, ok, err := c.ConfigGet(ctx, key)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("not found")
			return
		}
		fmt.Println(val)
	default:
		fmt.Fprintln(os.Stderr, "config requires set|get")
		os.Exit(1)
	}
}

type historyRow struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	State      string `json:"state"`
	Attempts   uint32 `json:"attempts"`
	MaxRetries uint32 `json:"max_retries"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func cmdHistory(ctx context.Context, c *queuectl.Control, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	jobID := fs.Int64("job-id", 0, "single job id")
	fs.Parse(args)

	var idPtr *int64
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "job-id" {
			idPtr = jobID
		}
	})

	jobs, err := c.History(ctx, idPtr)
	if err != nil || len(jobs) == 0 {
		fmt.Println("<none>")
		return
	}
	for _, j := range jobs {
		row := historyRow{
			ID:         strconv.FormatInt(j.Id, 10),
			Command:    j.Command,
			State:      string(j.Status),
			Attempts:   j.Attempts,
			MaxRetries: j.MaxRetries,
			CreatedAt:  toISOZ(j.CreatedAt),
			UpdatedAt:  toISOZ(j.UpdatedAt),
		}
		data, _ := json.Marshal(row)
		fmt.Println(string(data))
	}
}

func toISOZ(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05") + "Z"
}

func cmdGC(ctx context.Context, store queuectl.Store, log *slog.Logger, args []string) {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	state := fs.String("state", "", "completed|dead (default both)")
	olderThan := fs.Duration("older-than", 0, "only purge rows last updated before this long ago")
	watch := fs.Duration("watch", 0, "instead of a one-shot purge, sweep on this interval until interrupted")
	fs.Parse(args)

	var status job.Status
	if *state != "" {
		st, err := job.ParseStatus(*state)
		if err != nil || (st != job.Completed && st != job.Dead) {
			fmt.Fprintln(os.Stderr, "gc --state must be completed or dead")
			os.Exit(1)
		}
		status = st
	}

	if *watch > 0 {
		cw := queuectl.NewCleanWorker(store, &queuectl.CleanConfig{
			Status:   status,
			Interval: *watch,
			Before:   *olderThan > 0,
			Delta:    *olderThan,
		}, log)
		if err := cw.Start(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("sweeping every %s\n", *watch)

		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-sigCtx.Done()

		if err := cw.Stop(10 * time.Second); err != nil {
			log.Warn("gc sweeper did not stop cleanly", "err", err)
		}
		return
	}

	var before *time.Time
	if *olderThan > 0 {
		t := time.Now().Add(-*olderThan)
		before = &t
	}

	count, err := store.Purge(ctx, status, before)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("purged %d job(s)\n", count)
}
