package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/tasksheet/pkg/alert"
	"github.com/harrisonrobin/tasksheet/pkg/auth"
	"github.com/harrisonrobin/tasksheet/pkg/config"
	"github.com/harrisonrobin/tasksheet/pkg/export"
	"github.com/harrisonrobin/tasksheet/pkg/model"
	"github.com/harrisonrobin/tasksheet/pkg/server"
)

var (
	debug       bool
	sheetFlag   string
	backendFlag string
	redisFlag   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tasksheet",
		Short:         "Shared task ledger backed by a Google spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&sheetFlag, "sheet", "", "spreadsheet name to use (overrides config)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "ledger backend: sheets or sqlite (overrides config)")
	rootCmd.PersistentFlags().StringVar(&redisFlag, "redis", "", "redis address for the ledger cache (overrides config)")

	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(setSheetCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google and cache the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := auth.Reauthenticate(cmd.Context()); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			log.Printf("Authentication successful! Token saved to %s", auth.TokenFile)
			return nil
		},
	}
}

func setSheetCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "set-sheet NAME",
		Short: "Set the default spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.Spreadsheet = args[0]
			cfg.SpreadsheetID = id
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Printf("Default spreadsheet set to: %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "spreadsheet id, skipping the lookup by name")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the connection to the ledger store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()
			name, err := a.pinger.Ping(ctx)
			if err != nil {
				return fmt.Errorf("connection check failed: %w", err)
			}
			fmt.Printf("Store reachable (%s)\n", name)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.openSession(ctx)
			if err != nil {
				log.Warnf("starting with an empty ledger: %v", err)
			}
			dispatcher, err := a.dispatcher(ctx)
			if err != nil {
				log.Warnf("notifications disabled: %v", err)
			}

			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.Recover())
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: []string{"*"},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			}))
			server.New(session, dispatcher, a.pinger, a.cfg.Timeout).Register(e)

			if listen == "" {
				listen = a.cfg.Listen
			}
			errCh := make(chan error, 1)
			go func() {
				log.Infof("listening on %s", listen)
				errCh <- e.Start(listen)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func alertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List open tasks that are overdue or high priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			alerts := alert.Alertable(session.Tasks(), session.Today())
			if len(alerts) == 0 {
				fmt.Println("No alerts.")
				return nil
			}
			return printAlerts(os.Stdout, alerts)
		},
	}
}

func printAlerts(w io.Writer, alerts []alert.Alert) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tDUE\tPRIORITY\tSTATUS\tASSIGNEES\t")
	for _, al := range alerts {
		due := al.Task.Due.String()
		if al.Overdue {
			due += " (overdue)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			al.Position+1, al.Task.Title, due, al.Task.Priority, al.Task.Status, al.Task.AssigneeList())
	}
	return tw.Flush()
}

func notifyCmd() *cobra.Command {
	var (
		to    string
		tasks []int
	)
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Mail an assignee their open tasks",
		Long: `Mail an assignee the open tasks assigned to them.

By default every open task assigned to the addressee is included; --task
limits the message to the given ledger rows (1-based, as listed by alerts).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(to) == "" {
				return fmt.Errorf("--to is required")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			positions := make([]int, 0, len(tasks))
			if len(tasks) == 0 {
				for i, t := range session.Tasks() {
					if !t.IsDone() && t.AssignedTo(to) {
						positions = append(positions, i)
					}
				}
			} else {
				for _, n := range tasks {
					positions = append(positions, n-1)
				}
			}
			if err := session.FlagForNotify(positions); err != nil {
				return err
			}

			d, err := a.dispatcher(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()
			res, err := d.Dispatch(ctx, session, to)
			if err != nil {
				return err
			}
			fmt.Printf("Sent %d task(s) to %s\n", len(res.Positions), res.To.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "assignee name to notify")
	cmd.Flags().IntSliceVar(&tasks, "task", nil, "ledger rows to include (1-based)")
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			return writeExport(out, session.Tasks())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func writeExport(path string, tasks []model.Task) error {
	if path == "" || path == "-" {
		return export.WriteCSV(os.Stdout, tasks)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WriteCSV(f, tasks); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
