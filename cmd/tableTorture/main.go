package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	storaged "github.com/i5heu/ouroboros-storaged"
	"github.com/i5heu/ouroboros-storaged/internal/keyValStore"
	"github.com/i5heu/ouroboros-storaged/pkg/logging"
	"github.com/i5heu/ouroboros-storaged/pkg/table"
	workerpool "github.com/i5heu/ouroboros-storaged/pkg/workerPool"
)

var (
	useMem  = flag.Bool("mem", false, "use the in-memory store instead of badger")
	dataDir = flag.String("data", "./tmp", "badger data directory")
	workers = flag.Int("workers", 0, "worker goroutines, 0 picks 3 per CPU")
	jobs    = flag.Int("jobs", 100000, "operations to run")
	nodes   = flag.Int("nodes", 16, "distinct node ids to spread operations over")
	grace   = flag.Duration("grace", time.Millisecond, "eviction grace period")
)

func main() {
	flag.Parse()
	log := logging.Logger

	var tbl *table.Table
	var mem *keyValStore.MemStore
	if *useMem {
		mem = keyValStore.NewMemStore()
		tbl = table.New(mem, table.Config{GracePeriod: *grace, Logger: log})
	} else {
		var err error
		tbl, err = storaged.Open(storaged.Config{
			Paths:       []string{*dataDir},
			GracePeriod: *grace,
			Logger:      log,
		})
		if err != nil {
			log.Error("open store", "error", err)
			os.Exit(1)
		}
	}

	wp := workerpool.NewWorkerPool(workerpool.Config{WorkerCount: *workers})
	room := wp.CreateRoom(*jobs)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < *jobs; i++ {
		seed := int64(i)
		room.NewTaskWaitForFreeSlot(func() error {
			return churn(ctx, tbl, rand.New(rand.NewSource(seed)))
		})
	}
	errs := room.Collect()
	wp.Close()
	elapsed := time.Since(start)

	if err := tbl.Close(); err != nil {
		errs = append(errs, err)
	}

	log.Info("torture finished",
		"jobs", *jobs,
		"errors", len(errs),
		"elapsed", elapsed,
		"opsPerSecond", fmt.Sprintf("%.0f", float64(*jobs)/elapsed.Seconds()),
	)
	if mem != nil {
		c := mem.Counters()
		log.Info("backend", "reads", c.Reads, "writes", c.Writes, "deletes", c.Deletes)
	}
	for i, err := range errs {
		if i == 10 {
			log.Error("more errors omitted", "count", len(errs)-i)
			break
		}
		log.Error("job failed", "error", err)
	}
	if len(errs) > 0 {
		os.Exit(1)
	}
}

func churn(ctx context.Context, tbl *table.Table, r *rand.Rand) error {
	node := uint64(r.Intn(*nodes))
	switch n := r.Intn(10); {
	case n < 3:
		f, err := tbl.Open(ctx, node, true, time.Second)
		if err != nil {
			return err
		}
		buf := make([]byte, r.Intn(64)+1)
		r.Read(buf)
		if _, err := f.WriteAt(buf, int64(r.Intn(256))); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case n < 4:
		return tbl.Delete(ctx, node, time.Second)
	case n < 6:
		_, err := tbl.Stat(ctx, node)
		return err
	default:
		f, err := tbl.Open(ctx, node, false, 0)
		if errors.Is(err, table.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.ReadAt(make([]byte, 32), int64(r.Intn(256)))
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}
