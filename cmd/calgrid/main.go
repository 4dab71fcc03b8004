package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/osmakov/calgrid/config"
	"github.com/osmakov/calgrid/internal/clients/caldav"
	"github.com/osmakov/calgrid/internal/domain"
	"github.com/osmakov/calgrid/internal/ics"
	"github.com/osmakov/calgrid/internal/layout"
	"github.com/osmakov/calgrid/internal/scheduler"
	"github.com/osmakov/calgrid/internal/service"
	"github.com/osmakov/calgrid/internal/storage"
	"github.com/osmakov/calgrid/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cmd := &cli.Command{
		Name:  "calgrid",
		Usage: "calendar grid engine over CalDAV",
		Commands: []*cli.Command{
			syncCommand(),
			agendaCommand(),
			exportCommand(),
			importCommand(),
			freeBusyCommand(),
			watchCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// app bundles the wired components a command works with.
type app struct {
	cfg      *config.Config
	client   *caldav.Client
	store    *store.Store
	snapshot *storage.Snapshot
	planner  *service.Planner
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var sources []caldav.CalendarSource
	for i, cal := range cfg.DomainCalendars() {
		sources = append(sources, caldav.CalendarSource{
			Calendar: cal,
			Path:     cfg.Calendars[i].Path,
		})
	}

	client := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.UserEmail, sources)

	snapshot, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}

	st := store.New()
	planner := service.NewPlanner(st, client, snapshot, cfg.Timezone)

	return &app{
		cfg:      cfg,
		client:   client,
		store:    st,
		snapshot: snapshot,
		planner:  planner,
	}, nil
}

func (a *app) Close() {
	if err := a.snapshot.Close(); err != nil {
		log.Printf("Error closing snapshot: %v", err)
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "pull events from the server once",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.planner.WarmStart(); err != nil {
				log.Printf("Warm start skipped: %v", err)
			}

			refresher := scheduler.New(a.cfg.RefreshCron, a.cfg.Timezone, a.client, a.store, a.snapshot, nil)
			result, err := refresher.Refresh(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Synced: %d added, %d updated, %d deleted (%d events total)\n",
				result.Added, result.Updated, result.Deleted, a.store.Len())
			return nil
		},
	}
}

func agendaCommand() *cli.Command {
	return &cli.Command{
		Name:  "agenda",
		Usage: "print one day's events with overlap lanes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "day to print (YYYY-MM-DD, default today)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			day := time.Now().In(a.cfg.Timezone)
			if raw := cmd.String("date"); raw != "" {
				day, err = time.ParseInLocation("2006-01-02", raw, a.cfg.Timezone)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", raw, err)
				}
			}
			day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, a.cfg.Timezone)

			if err := a.planner.WarmStart(); err != nil {
				return err
			}
			if a.store.Len() == 0 {
				if err := a.planner.Refresh(ctx, day.AddDate(0, 0, -1), day.AddDate(0, 1, 0)); err != nil {
					return err
				}
			}

			events := a.store.Day(day)
			if len(events) == 0 {
				fmt.Printf("No events on %s\n", day.Format("2006-01-02"))
				return nil
			}

			renderAgenda(os.Stdout, day, events, a.cfg.Timezone)
			return nil
		},
	}
}

// renderAgenda prints one day's events with lane indentation. Events
// whose full span extends past the day get a continuation marker.
func renderAgenda(w io.Writer, day time.Time, events []domain.Event, loc *time.Location) {
	assignments := layout.PackDay(events, day)
	byID := make(map[string]layout.Assignment, len(assignments))
	for _, as := range assignments {
		byID[as.EventID] = as
	}

	fmt.Fprintf(w, "Agenda for %s (%d lanes)\n", day.Format("Monday 2006-01-02"), layout.LaneCount(assignments))
	for _, ev := range events {
		as, ok := byID[ev.ID]
		if !ok {
			continue
		}
		indent := ""
		for i := 0; i < as.Lane; i++ {
			indent += "  | "
		}
		span := fmt.Sprintf("%s-%s",
			ev.Start.In(loc).Format("15:04"),
			ev.End.In(loc).Format("15:04"))
		if ev.AllDay {
			span = "all day    "
		}
		marker := ""
		if !as.Clipped.Equal(ev.Interval()) {
			marker = " (continues)"
		}
		fmt.Fprintf(w, "  %s %s%s%s\n", span, indent, ev.Title, marker)
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write stored events as iCalendar",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "output file (default stdout)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.planner.WarmStart(); err != nil {
				return err
			}
			if a.store.Len() == 0 {
				from := time.Now().AddDate(0, 0, -7)
				if err := a.planner.Refresh(ctx, from, from.AddDate(0, 3, 0)); err != nil {
					return err
				}
			}

			out := os.Stdout
			if path := cmd.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create %s: %w", path, err)
				}
				defer f.Close()
				out = f
			}
			return ics.Export(out, a.store.Events())
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "create events from an iCalendar file",
		ArgsUsage: "<file.ics>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "calendar", Usage: "target calendar id", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one ics file argument")
			}
			f, err := os.Open(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("open ics file: %w", err)
			}
			defer f.Close()

			drafts, err := ics.Import(f)
			if err != nil {
				return err
			}
			if len(drafts) == 0 {
				fmt.Println("No importable events found")
				return nil
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			calendarID := cmd.String("calendar")
			created := 0
			for _, draft := range drafts {
				draft.CalendarID = calendarID
				if _, err := a.planner.Create(ctx, draft); err != nil {
					log.Printf("Skipping %q: %v", draft.Title, err)
					continue
				}
				created++
			}
			fmt.Printf("Imported %d of %d events into %s\n", created, len(drafts), calendarID)
			return nil
		},
	}
}

func freeBusyCommand() *cli.Command {
	return &cli.Command{
		Name:  "freebusy",
		Usage: "print busy blocks for a date range",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "range start (YYYY-MM-DD, default today)"},
			&cli.IntFlag{Name: "days", Value: 7, Usage: "range length in days"},
			&cli.StringSliceFlag{Name: "calendar", Usage: "calendar ids to include (default all)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			from := time.Now().In(a.cfg.Timezone)
			if raw := cmd.String("from"); raw != "" {
				from, err = time.ParseInLocation("2006-01-02", raw, a.cfg.Timezone)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", raw, err)
				}
			}
			from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, a.cfg.Timezone)
			to := from.AddDate(0, 0, int(cmd.Int("days")))

			busy, err := a.planner.FreeBusy(ctx, from, to, cmd.StringSlice("calendar"))
			if err != nil {
				return err
			}
			if len(busy) == 0 {
				fmt.Println("Free for the whole range")
				return nil
			}
			for _, b := range busy {
				fmt.Printf("  %s - %s  (%s)\n",
					b.Start.In(a.cfg.Timezone).Format("2006-01-02 15:04"),
					b.End.In(a.cfg.Timezone).Format("15:04"),
					b.CalendarID)
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "keep syncing on the configured cadence until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.planner.WarmStart(); err != nil {
				log.Printf("Warm start skipped: %v", err)
			}

			refresher := scheduler.New(a.cfg.RefreshCron, a.cfg.Timezone, a.client, a.store, a.snapshot,
				func(n domain.Notification) {
					if n.Event != nil {
						log.Printf("Event %s: %s", n.Action, n.Event.Title)
					}
				})

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			go func() {
				if err := refresher.Start(runCtx); err != nil {
					log.Printf("Refresher error: %v", err)
				}
			}()

			if _, err := refresher.Refresh(runCtx); err != nil {
				log.Printf("Initial refresh failed: %v", err)
			}
			log.Printf("Watching %d calendars (%d events known)", len(a.cfg.Calendars), a.store.Len())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			log.Println("Shutting down...")
			cancel()
			refresher.Stop()
			return nil
		},
	}
}
