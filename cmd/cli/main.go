package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	storaged "github.com/i5heu/ouroboros-storaged"
	"github.com/i5heu/ouroboros-storaged/internal/config"
	"github.com/i5heu/ouroboros-storaged/pkg/table"
)

const lockTimeout = 5 * time.Second

func usage() {
	fmt.Println("Usage: storaged-cli [-config file] [-data dir] <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  stat <node>")
	fmt.Println("  cat <node>")
	fmt.Println("  put <node> [file]   (stdin when no file is given)")
	fmt.Println("  rm <node>")
}

func main() {
	configPath := flag.String("config", "config.yaml", "YAML config file")
	dataDir := flag.String("data", "", "data directory, overrides the config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 2 {
		usage()
		os.Exit(1)
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		conf.Path = *dataDir
	}

	node, err := strconv.ParseUint(flag.Arg(1), 0, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid node id %q: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}

	tbl, err := storaged.Open(conf.Storaged())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	switch flag.Arg(0) {
	case "stat":
		err = statNode(ctx, tbl, node)
	case "cat":
		err = catNode(ctx, tbl, node, os.Stdout)
	case "put":
		in := io.Reader(os.Stdin)
		if flag.NArg() > 2 {
			f, ferr := os.Open(flag.Arg(2))
			if ferr != nil {
				fmt.Fprintf(os.Stderr, "Error reading file: %v\n", ferr)
				os.Exit(1)
			}
			defer f.Close()
			in = f
		}
		err = putNode(ctx, tbl, node, in)
	case "rm":
		err = tbl.Delete(ctx, node, lockTimeout)
	default:
		fmt.Printf("Unknown command: %s\n", flag.Arg(0))
		usage()
		os.Exit(1)
	}

	if cerr := tbl.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func statNode(ctx context.Context, tbl *table.Table, node uint64) error {
	st, err := tbl.Stat(ctx, node)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("%w: node %d", table.ErrNotFound, node)
	}
	fmt.Printf("Node:         %d\n", node)
	fmt.Printf("Size:         %d\n", st.Size)
	fmt.Printf("Created:      %s\n", st.Creation.Format(time.RFC3339Nano))
	fmt.Printf("Modified:     %s\n", st.Modification.Format(time.RFC3339Nano))
	return nil
}

func catNode(ctx context.Context, tbl *table.Table, node uint64, w io.Writer) error {
	f, err := tbl.Open(ctx, node, false, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	_, err = io.Copy(w, io.NewSectionReader(f, 0, st.Size))
	return err
}

// putNode replaces the node's content through a single write handle, so
// readers see either the old or the new value and the creation stamp is
// kept.
func putNode(ctx context.Context, tbl *table.Table, node uint64, r io.Reader) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f, err := tbl.Open(ctx, node, true, lockTimeout)
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return err
	}
	if _, err := f.WriteAt(content, 0); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
