package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/yfarmers/feedledger/internal/balances"
	"github.com/yfarmers/feedledger/internal/ledger"
)

// DayViewer resolves the opening stock and movements of a shop day.
type DayViewer interface {
	DayView(ctx context.Context, shop string, date ledger.Date) (ledger.DayView, error)
	CheckTransferMirrors(ctx context.Context, date ledger.Date, apply bool) (ledger.MirrorReport, error)
}

// NetValuer computes the business position on a date.
type NetValuer interface {
	NetValue(ctx context.Context, date ledger.Date) (balances.NetValue, error)
}

// LedgerCLI offers operator commands over the ledger.
type LedgerCLI struct {
	ledger   DayViewer
	balances NetValuer
	printer  *message.Printer
}

// NewLedgerCLI constructs the helper.
func NewLedgerCLI(l DayViewer, b NetValuer) *LedgerCLI {
	return &LedgerCLI{ledger: l, balances: b, printer: message.NewPrinter(language.English)}
}

// OutputOptions selects where and how results are printed.
type OutputOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *OutputOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// ClosingOptions defines the flags of the closing command.
type ClosingOptions struct {
	Shop string
	Date string
	OutputOptions
}

// ClosingCommand prints the day's movements and closing stock of one shop.
func (c *LedgerCLI) ClosingCommand(ctx context.Context, opts ClosingOptions) int {
	opts.defaults()
	if opts.Shop == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "closing: --shop is required")
		return 1
	}
	date, err := ledger.ParseDate(opts.Date)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "closing: invalid date %q (expected DD-MM-YYYY)\n", opts.Date)
		return 1
	}
	view, err := c.ledger.DayView(ctx, opts.Shop, date)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "closing: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		return encodeJSON(opts.OutputOptions, "closing", view)
	}
	c.renderClosing(opts.Stdout, opts.Shop, date, view)
	return 0
}

func (c *LedgerCLI) renderClosing(out io.Writer, shop string, date ledger.Date, view ledger.DayView) {
	_, _ = fmt.Fprintf(out, "%s on %s (opening: %s)\n", shop, date.Key(), view.Opening.State)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "Product\tOpening\tIn\tSold\tOut\tReleased\tClosing\tSales\t")
	for _, m := range view.Movements {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			m.Name, c.qty(m.Opening), c.qty(m.Received()), c.qty(m.Sold), c.qty(m.TransferredOut),
			c.qty(m.Released), c.qty(m.Closing), c.money(m.SalesAmount))
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(out, "Total closing: %s bags\n", c.qty(view.TotalClosing))
	_, _ = fmt.Fprintf(out, "Sales total: %s\n", c.money(view.SalesTotal))
	_, _ = fmt.Fprintf(out, "Stock value: %s\n", c.money(view.StockValue))
}

// MirrorOptions defines the flags of the mirrors command.
type MirrorOptions struct {
	Date  string
	Apply bool
	OutputOptions
}

// MirrorsCommand checks transfer mirrors for a date. It exits with 10 when
// issues remain after the run.
func (c *LedgerCLI) MirrorsCommand(ctx context.Context, opts MirrorOptions) int {
	opts.defaults()
	date, err := ledger.ParseDate(opts.Date)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "mirrors: invalid date %q (expected DD-MM-YYYY)\n", opts.Date)
		return 1
	}
	report, err := c.ledger.CheckTransferMirrors(ctx, date, opts.Apply)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "mirrors: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if code := encodeJSON(opts.OutputOptions, "mirrors", report); code != 0 {
			return code
		}
	} else {
		renderMirrors(opts.Stdout, report)
	}
	if len(report.Orphans) > 0 || len(report.Missing) > report.Repaired {
		return 10
	}
	return 0
}

func renderMirrors(out io.Writer, report ledger.MirrorReport) {
	_, _ = fmt.Fprintf(out, "Transfer mirrors on %s: %d checked\n", report.Date.Key(), report.Checked)
	if report.Consistent() {
		_, _ = fmt.Fprintln(out, "All transfers are mirrored.")
		return
	}
	for _, issue := range report.Missing {
		status := "missing"
		if issue.Repaired {
			status = "repaired"
		}
		_, _ = fmt.Fprintf(out, " - %s -> %s %s x%s (%s)\n", issue.Shop, issue.PeerShop, issue.ProductID, issue.Quantity.String(), status)
	}
	for _, issue := range report.Orphans {
		_, _ = fmt.Fprintf(out, " - %s <- %s %s x%s (orphan)\n", issue.Shop, issue.PeerShop, issue.ProductID, issue.Quantity.String())
	}
}

// NetValueOptions defines the flags of the net-value command.
type NetValueOptions struct {
	Date string
	OutputOptions
}

// NetValueCommand prints stock value, debtors, creditors and the net position.
func (c *LedgerCLI) NetValueCommand(ctx context.Context, opts NetValueOptions) int {
	opts.defaults()
	date, err := ledger.ParseDate(opts.Date)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "net-value: invalid date %q (expected DD-MM-YYYY)\n", opts.Date)
		return 1
	}
	nv, err := c.balances.NetValue(ctx, date)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "net-value: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		return encodeJSON(opts.OutputOptions, "net-value", nv)
	}
	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "Shop\tBags\tValue\t")
	for _, s := range nv.Shops {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t\n", s.Shop, c.qty(s.Bags), c.money(s.StockValue))
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(opts.Stdout, "Stock value: %s\n", c.money(nv.StockValue))
	_, _ = fmt.Fprintf(opts.Stdout, "Debtors: %s\n", c.money(nv.DebtorsValue))
	_, _ = fmt.Fprintf(opts.Stdout, "Creditors: %s\n", c.money(nv.CreditorsValue))
	_, _ = fmt.Fprintf(opts.Stdout, "Net value: %s\n", c.money(nv.NetValue))
	return 0
}

func (c *LedgerCLI) qty(d decimal.Decimal) string {
	if d.IsInteger() {
		return c.printer.Sprintf("%d", d.IntPart())
	}
	return c.printer.Sprintf("%.2f", d.InexactFloat64())
}

func (c *LedgerCLI) money(d decimal.Decimal) string {
	return c.printer.Sprintf("%d", d.Round(0).IntPart())
}

func encodeJSON(opts OutputOptions, cmd string, v any) int {
	enc := json.NewEncoder(opts.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "%s: encode json: %v\n", cmd, err)
		return 1
	}
	return 0
}
