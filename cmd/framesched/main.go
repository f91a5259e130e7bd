package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"framesched/internal/app"
)

func main() {
	var (
		cfgPath  string
		sessions int
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (yaml or json)")
	flag.IntVar(&sessions, "sessions", 0, "print the N most recent saved sessions and exit")
	flag.Parse()

	if sessions > 0 {
		if err := printSessions(cfgPath, sessions); err != nil {
			fmt.Fprintln(os.Stderr, "sessions:", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	var reason app.StopReason
	select {
	case <-ctx.Done():
		reason = app.StopSignal
	case <-a.Done():
		switch {
		case ctx.Err() != nil:
			reason = app.StopSignal
		case a.Err() != nil:
			reason = app.StopFatalError
		default:
			reason = app.StopQuit
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		fmt.Fprintln(os.Stderr, "stop:", err)
	}
	if reason == app.StopFatalError {
		fmt.Fprintln(os.Stderr, "fatal:", a.Err())
		os.Exit(1)
	}
}

func printSessions(cfgPath string, limit int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := app.RecentSessions(ctx, cfgPath, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tFRAMES\tDISPATCHES\tSTOP")
	for _, s := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
			s.ID,
			s.StartedAt.Local().Format(time.DateTime),
			s.Duration().Round(time.Millisecond),
			s.Frames,
			s.Dispatches,
			s.StopReason,
		)
		for _, t := range s.Tasks {
			fmt.Fprintf(tw, "\t  %s\tevery %s\t\t%d\tpanics=%d late<=%s\n",
				t.Name, t.Period, t.Dispatches, t.Panics, t.MaxLateness)
		}
	}
	return tw.Flush()
}
