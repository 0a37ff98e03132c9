package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/chazu/objcsend/trace"
)

func traceCommand(args []string) error {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	dbPath := fs.String("sqlite", "", "Also append the records to this SQLite database")
	summary := fs.Bool("summary", false, "Print per-selector counts from the -sqlite database instead of the records")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: objcsend trace [options] FILE\n\n")
		fmt.Fprintf(os.Stderr, "Prints the sends recorded with 'objcsend send -trace FILE'.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() != 1 || (*summary && *dbPath == "") {
		fs.Usage()
		os.Exit(2)
	}

	records, err := trace.ReadFile(fs.Arg(0))
	if err != nil && len(records) == 0 {
		return err
	}
	if err != nil {
		log.Warningf("%s; keeping %d complete records", err, len(records))
	}
	if *dbPath == "" {
		writeRecords(os.Stdout, records)
		return nil
	}

	store, err := trace.OpenStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Insert(records); err != nil {
		return err
	}
	if !*summary {
		writeRecords(os.Stdout, records)
		return nil
	}
	sums, err := store.Summarize()
	if err != nil {
		return err
	}
	writeSummary(os.Stdout, sums)
	return nil
}

func writeRecords(w io.Writer, records []trace.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRECEIVER\tSELECTOR\tENTRY\tCHECKED\tELAPSED\tRESULT")
	for _, r := range records {
		recv := fmt.Sprintf("%#x", r.Receiver)
		if r.SuperClass != 0 {
			recv += fmt.Sprintf(" (super %#x)", r.SuperClass)
		}
		result := "ok"
		switch {
		case r.Exception:
			result = "exception: " + r.Error
		case r.Error != "":
			result = "error: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			r.Time.Format(time.RFC3339Nano), recv, r.Selector, r.Symbol, r.Checked, r.Elapsed, result)
	}
	tw.Flush()
}

func writeSummary(w io.Writer, sums []trace.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SELECTOR\tSENDS\tEXCEPTIONS\tERRORS")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", s.Selector, s.Sends, s.Exceptions, s.Errors)
	}
	tw.Flush()
}
