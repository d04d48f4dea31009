// orderctl is the operator console for a running promoshop server: it lists,
// summarizes and exports orders and moves them through their statuses.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lmittmann/tint"

	"github.com/promoshop/promoshop/internal/client"
	"github.com/promoshop/promoshop/internal/dashboard"
	"github.com/promoshop/promoshop/internal/models"
	"github.com/promoshop/promoshop/internal/orders"
)

const usage = `usage: orderctl <command> [flags]

commands:
  list        print orders, newest first
  stats       print order totals
  export      write orders to a .csv or .xls file
  transition  change an order's status: transition <order-id> <status>

environment:
  ORDERCTL_BASE_URL, ORDERCTL_TIMEOUT, ORDERCTL_PAGE_SIZE,
  ORDERCTL_TIMEZONE, ORDERCTL_STATUS_POLICY, ORDERCTL_LOG_LEVEL
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], nil, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type console struct {
	cfg    *cliConfig
	board  *dashboard.Board
	loc    *time.Location
	logger *slog.Logger
	stdout io.Writer
}

// run returns the process exit code. A nil environ reads the process environment.
func run(ctx context.Context, args []string, environ map[string]string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := loadConfig(environ)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := slog.New(tint.NewHandler(stderr, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.Kitchen,
		NoColor:    stderr != os.Stderr,
	}))

	c, err := newConsole(cfg, logger, stdout)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer c.board.Close()

	var cmdErr error
	switch args[0] {
	case "list":
		cmdErr = c.list(ctx, args[1:])
	case "stats":
		cmdErr = c.stats(ctx, args[1:])
	case "export":
		cmdErr = c.export(ctx, args[1:])
	case "transition":
		cmdErr = c.transition(ctx, args[1:])
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if errors.Is(cmdErr, flag.ErrHelp) {
		return 2
	}
	if cmdErr != nil {
		logger.Error(args[0]+" failed", "error", cmdErr)
		return 1
	}
	return 0
}

func newConsole(cfg *cliConfig, logger *slog.Logger, stdout io.Writer) (*console, error) {
	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}
	machine, err := orders.NewMachine(orders.Policy(cfg.StatusPolicy), logger.With("component", "status_machine"))
	if err != nil {
		return nil, err
	}
	remote, err := client.New(client.Config{
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.Timeout,
		PageSize: cfg.PageSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &console{
		cfg:    cfg,
		board:  dashboard.New(remote, machine, loc, logger),
		loc:    loc,
		logger: logger,
		stdout: stdout,
	}, nil
}

func filterFlags(fs *flag.FlagSet) *orders.Filter {
	filter := &orders.Filter{}
	fs.StringVar(&filter.Search, "search", "", "match id, customer, phone or campaign title")
	fs.StringVar(&filter.Status, "status", orders.StatusAll, "only orders with this status")
	fs.Func("sort", "date-desc, date-asc, amount-desc or amount-asc", func(value string) error {
		filter.Sort = orders.SortKey(value)
		return nil
	})
	return filter
}

func (c *console) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	filter := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.board.Load(ctx); err != nil {
		return err
	}

	view := c.board.View(*filter)
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCUSTOMER\tCAMPAIGN\tQTY\tTOTAL\tSTATUS\tPAYMENT")
	for _, order := range view.Orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			order.ID,
			order.CreatedAt.In(c.loc).Format("2006-01-02 15:04"),
			order.CustomerName,
			order.CampaignTitle,
			order.Quantity,
			order.TotalPrice().StringFixed(2),
			order.Status,
			order.PaymentStatus,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%d of %d orders\n", len(view.Orders), view.Stats.Total)
	return nil
}

func (c *console) stats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.board.Load(ctx); err != nil {
		return err
	}

	stats := c.board.View(orders.Filter{}).Stats
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "orders\t%d\n", stats.Total)
	fmt.Fprintf(tw, "revenue\t%s\n", stats.TotalRevenue.StringFixed(2))
	fmt.Fprintf(tw, "savings\t%s\n", stats.TotalSavings.StringFixed(2))
	for _, status := range models.OrderStatuses() {
		fmt.Fprintf(tw, "%s\t%d\n", status, stats.ByStatus[status])
	}
	return tw.Flush()
}

func (c *console) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	filter := filterFlags(fs)
	formatFlag := fs.String("format", string(orders.FormatCSV), "csv or xls")
	output := fs.String("o", "", "output path, - for stdout (default: dated file name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := orders.ParseExportFormat(*formatFlag)
	if err != nil {
		return err
	}
	if err := c.board.Load(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	filename, err := c.board.Export(ctx, &buf, format, *filter, time.Now())
	if err != nil {
		return err
	}

	switch *output {
	case "-":
		_, err = buf.WriteTo(c.stdout)
		return err
	case "":
		*output = filename
	}
	if err := os.WriteFile(*output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	c.logger.Info("export written", "path", *output, "bytes", buf.Len())
	fmt.Fprintln(c.stdout, *output)
	return nil
}

func (c *console) transition(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("transition", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: orderctl transition <order-id> <status>")
	}
	orderID := fs.Arg(0)
	target, ok := models.ParseOrderStatus(fs.Arg(1))
	if !ok {
		return fmt.Errorf("%w: unknown status %q", orders.ErrInvalidTransition, fs.Arg(1))
	}
	if err := c.board.Load(ctx); err != nil {
		return err
	}

	var from models.OrderStatus
	for _, order := range c.board.View(orders.Filter{Search: orderID}).Orders {
		if order.ID == orderID {
			from = order.Status
		}
	}

	updated, err := c.board.Transition(ctx, orderID, target)
	if err != nil {
		if errors.Is(err, orders.ErrInvalidTransition) && from != "" {
			return fmt.Errorf("%w (%s)", err, nextHint(from))
		}
		return err
	}
	fmt.Fprintf(c.stdout, "%s: %s -> %s\n", updated.ID, from, updated.Status)
	return nil
}

func nextHint(from models.OrderStatus) string {
	next := orders.Next(from)
	if len(next) == 0 {
		return fmt.Sprintf("%s is final", from)
	}
	names := make([]string, len(next))
	for i, status := range next {
		names[i] = string(status)
	}
	return "next: " + strings.Join(names, ", ")
}
