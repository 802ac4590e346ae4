package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/kr/pretty"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/olapcore/memtable"
	"github.com/olapcore/memtable/memtablemetrics"
	"github.com/olapcore/memtable/schema"
	"github.com/olapcore/memtable/tracker"
)

var runConfig struct {
	rows          int
	batchSize     int
	keysType      string
	keyCardinality int64
	memLimit      int64
	seed          int64
	verbose       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "ingest a synthetic tuple stream through a sequence of MemTables and report flush throughput/latency",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runConfig.rows, "rows", 1_000_000, "total number of tuples to ingest")
	f.IntVar(&runConfig.batchSize, "batch-size", 50_000, "rows absorbed by one MemTable before it is flushed and replaced")
	f.StringVar(&runConfig.keysType, "keys-type", "agg", "dup, unique, or agg")
	f.Int64Var(&runConfig.keyCardinality, "key-cardinality", 10_000, "number of distinct keys to draw from (0 means every row gets a fresh key)")
	f.Int64Var(&runConfig.memLimit, "mem-limit", -1, "per-MemTable memory tracker limit in bytes (-1 means unlimited)")
	f.Int64Var(&runConfig.seed, "seed", 1, "PRNG seed for the synthetic key/value stream")
	f.BoolVarP(&runConfig.verbose, "verbose", "v", false, "dump final metrics with kr/pretty")
}

// benchTuple is a fixed two-column (k int64, v int64) Tuple, reused across
// every Insert call the way a real ingestion pipeline reuses a decode
// buffer.
type benchTuple struct {
	k, v int64
}

func (t *benchTuple) IsNull(schema.SlotDescriptor) bool { return false }

func (t *benchTuple) Slot(slot schema.SlotDescriptor) []byte {
	var buf [8]byte
	v := t.k
	if slot.TupleOffset == 1 {
		v = t.v
	}
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf[:]
}

// countingWriter discards rows after counting them — a stand-in for
// whatever rowset format a real pipeline would serialize to.
type countingWriter struct {
	rows int
}

func (w *countingWriter) AddRow(*schema.Row) error { w.rows++; return nil }
func (w *countingWriter) Flush() error             { return nil }

func runKeysType(s string) (schema.KeysType, schema.AggFunc, error) {
	switch s {
	case "dup":
		return schema.DupKeys, schema.AggNone, nil
	case "unique":
		return schema.UniqueKeys, schema.AggReplace, nil
	case "agg":
		return schema.AggKeys, schema.AggSum, nil
	default:
		return 0, 0, fmt.Errorf("unknown --keys-type %q (want dup, unique, or agg)", s)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	keysType, vAgg, err := runKeysType(runConfig.keysType)
	if err != nil {
		return err
	}

	s, err := schema.New([]schema.Column{
		{Name: "k", Index: 0, Type: schema.TypeInt64, IsKey: true},
		{Name: "v", Index: 1, Type: schema.TypeInt64, Agg: vAgg},
	}, 1)
	if err != nil {
		return err
	}
	slots := []schema.SlotDescriptor{{TupleOffset: 0}, {TupleOffset: 1}}

	reg := prometheus.NewRegistry()
	metrics := memtablemetrics.New(reg)
	root := tracker.NewRoot("memtable-bench", -1)

	rng := rand.New(rand.NewSource(runConfig.seed))
	writer := &countingWriter{}

	rows := runConfig.rows
	batch := runConfig.batchSize
	if batch <= 0 {
		batch = rows
	}

	start := time.Now()
	inserted := 0
	flushes := 0
	for inserted < rows {
		m, err := memtable.New(&memtable.Options{
			Schema:   s,
			KeysType: keysType,
			Slots:    slots,
			Writer:   writer,
			Parent:   root,
			MemLimit: runConfig.memLimit,
			Metrics:  metrics,
		})
		if err != nil {
			return err
		}

		n := batch
		if rows-inserted < n {
			n = rows - inserted
		}
		tup := &benchTuple{}
		for i := 0; i < n; i++ {
			if runConfig.keyCardinality > 0 {
				tup.k = rng.Int63n(runConfig.keyCardinality)
			} else {
				tup.k = int64(inserted + i)
			}
			tup.v = rng.Int63n(1000)
			if err := m.Insert(tup); err != nil {
				return fmt.Errorf("insert %d: %w", inserted+i, err)
			}
		}
		if err := m.Close(); err != nil {
			return fmt.Errorf("flush after %d rows: %w", inserted+n, err)
		}
		inserted += n
		flushes++
	}
	elapsed := time.Since(start)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"metric", "value"})
	table.Append([]string{"rows ingested", fmt.Sprintf("%d", inserted)})
	table.Append([]string{"rows written to sink", fmt.Sprintf("%d", writer.rows)})
	table.Append([]string{"memtables flushed", fmt.Sprintf("%d", flushes)})
	table.Append([]string{"elapsed", elapsed.String()})
	table.Append([]string{"throughput (rows/s)", fmt.Sprintf("%.0f", float64(inserted)/elapsed.Seconds())})
	table.Append([]string{"p50 flush latency (us)", fmt.Sprintf("%d", metrics.LatencyPercentile(50))})
	table.Append([]string{"p99 flush latency (us)", fmt.Sprintf("%d", metrics.LatencyPercentile(99))})
	table.Render()

	if samples := metrics.LatencySamples(); len(samples) > 1 {
		fmt.Println()
		fmt.Println("flush latency (us), recorded flushes from smallest to largest:")
		fmt.Println(asciigraph.Plot(samples, asciigraph.Height(10)))
	}

	if runConfig.verbose {
		fmt.Println()
		pretty.Println(metrics)
	}

	return nil
}
