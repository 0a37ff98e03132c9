package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chazu/objcsend/abi"
)

func abiCommand(args []string) error {
	fs := flag.NewFlagSet("abi", flag.ExitOnError)
	archName := fs.String("arch", abi.HostArch().String(), "Target architecture: 386, amd64, arm, arm64")
	familyName := fs.String("family", abi.HostFamily().String(), "Runtime family: apple, gnu")
	sizeList := fs.String("sizes", joinSizes(abi.DefaultSizes), "Comma-separated return sizes in bytes")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: objcsend abi [options]\n\n")
		fmt.Fprintf(os.Stderr, "Prints the entry point used for plain and super sends per return shape.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	arch := abi.ParseArch(*archName)
	family, err := abi.ParseFamily(*familyName)
	if err != nil {
		return err
	}
	sizes, err := parseSizes(*sizeList)
	if err != nil {
		return err
	}
	rows, err := abi.Table(family, arch, sizes)
	if err != nil {
		return fmt.Errorf("%s on %s: %w", family, *archName, err)
	}
	writeTable(os.Stdout, family, arch, rows)
	return nil
}

func writeTable(w io.Writer, family abi.Family, arch abi.Arch, rows []abi.Row) {
	fmt.Fprintf(w, "%s runtime on %s\n\n", family, arch)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RETURN\tSEND\tCONVENTION\tSUPER SEND\tCONVENTION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Shape, r.Plain.Symbol, r.Plain.Convention, r.Super.Symbol, r.Super.Convention)
	}
	tw.Flush()
}

func parseSizes(s string) ([]uintptr, error) {
	var sizes []uintptr
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad size %q", part)
		}
		sizes = append(sizes, uintptr(n))
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no sizes given")
	}
	return sizes, nil
}

func joinSizes(sizes []uintptr) string {
	parts := make([]string, len(sizes))
	for i, n := range sizes {
		parts[i] = strconv.FormatUint(uint64(n), 10)
	}
	return strings.Join(parts, ",")
}
