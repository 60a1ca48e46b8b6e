// Command intkv is the textual front door for the embedded store: a
// line-oriented dispatcher (stdin REPL or a workload file) driving
// internal/lsmtree.Tree through its Put/Delete/Get/Range/Load/Stat API.
// The core deliberately has no query language or client protocol of its
// own, but a complete repo still needs a way to drive it, so this follows
// a thin main/dispatcher split: main wires flags and logging, and the
// dispatcher does the work.
package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"intkv/internal/config"
	"intkv/internal/lsmtree"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("intkv", flag.ContinueOnError)
	flags.SetOutput(stderr)

	configPath := flags.String("config", "", "path to a JSON config file (defaults baked in if absent)")
	treeName := flags.String("tree", "intkv", "tree name; also the disk-level file prefix")
	workload := flags.String("workload", "", "path to a workload file of DSL commands; defaults to stdin")
	verbose := flags.Bool("verbose", false, "enable debug logging")

	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	logger := newLogger(*verbose)
	defer logger.Sync() //nolint:errcheck

	cfg := config.Get(*configPath)
	if err := config.Validate(cfg); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 1
	}

	tree, err := lsmtree.Init(*treeName, cfg.LevelArray.TotalLevels, cfg.LevelArray.MainLevels, cfg.LevelArray.Capacities, lsmtree.Options{
		DiskDir:                cfg.LevelArray.DiskDir,
		BloomFilterEnabled:     cfg.BloomFilter.Enabled,
		BloomFalsePositiveRate: cfg.BloomFilter.FalsePositiveRate,
		BloomExpectedElements:  cfg.BloomFilter.ExpectedElements,
		OrderedIndexEnabled:    cfg.OrderedIndex.Enabled,
		OrderedIndexStep:       cfg.OrderedIndex.Step,
	})
	if err != nil {
		logger.Error("failed to initialize tree", zap.Error(err))
		return 1
	}

	var source io.Reader = stdin
	if *workload != "" {
		f, err := os.Open(*workload)
		if err != nil {
			logger.Error("failed to open workload file", zap.Error(err))
			return 1
		}
		defer f.Close()
		source = f
	}

	d := &dispatcher{tree: tree, log: logger, out: stdout, err: stderr}
	code := d.loop(source)

	if err := tree.Destroy(); err != nil {
		logger.Error("failed to tear down tree", zap.Error(err))
		if code == 0 {
			code = 1
		}
	}
	return code
}

func newLogger(verbose bool) *zap.Logger {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// dispatcher interprets one DSL command per line:
//
//	p K V   put
//	d K     delete
//	g K     get
//	r LO HI range, exclusive both ends
//	l FILE  bulk-load a binary key/value pair file
//	s       stat
//	q       quit
type dispatcher struct {
	tree *lsmtree.Tree
	log  *zap.Logger
	out  io.Writer
	err  io.Writer
}

func (d *dispatcher) loop(r io.Reader) int {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "q" {
			return 0
		}
		if err := d.dispatch(fields); err != nil {
			fmt.Fprintf(d.err, "error: %v\n", err)
			d.log.Warn("command failed", zap.String("line", line), zap.Error(err))
			return 1
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(d.err, "error: %v\n", err)
		return 1
	}
	return 0
}

func (d *dispatcher) dispatch(fields []string) error {
	switch fields[0] {
	case "p":
		if len(fields) != 3 {
			return fmt.Errorf("usage: p KEY VALUE")
		}
		key, val, err := parseTwo(fields[1], fields[2])
		if err != nil {
			return err
		}
		return d.tree.Put(key, val)

	case "d":
		if len(fields) != 2 {
			return fmt.Errorf("usage: d KEY")
		}
		key, err := parseOne(fields[1])
		if err != nil {
			return err
		}
		return d.tree.Delete(key)

	case "g":
		if len(fields) != 2 {
			return fmt.Errorf("usage: g KEY")
		}
		key, err := parseOne(fields[1])
		if err != nil {
			return err
		}
		val, ok, err := d.tree.Get(key)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(d.out)
			return nil
		}
		fmt.Fprintln(d.out, val)
		return nil

	case "r":
		if len(fields) != 3 {
			return fmt.Errorf("usage: r LO HI")
		}
		lo, hi, err := parseTwo(fields[1], fields[2])
		if err != nil {
			return err
		}
		recs, err := d.tree.Range(lo, hi)
		if err != nil {
			return err
		}
		pairs := make([]string, 0, len(recs))
		for _, rec := range sortRecords(recs) {
			pairs = append(pairs, fmt.Sprintf("%d:%d", rec.Key, rec.Value))
		}
		fmt.Fprintln(d.out, strings.Join(pairs, " "))
		return nil

	case "l":
		if len(fields) != 2 {
			return fmt.Errorf("usage: l FILE")
		}
		return d.load(fields[1])

	case "s":
		return d.stat()

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

// load bulk-inserts fixed-width (int64 key, int64 value) pairs from path,
// stopping cleanly at end of file via io.EOF, never inferring it from a
// short or zero-length read.
func (d *dispatcher) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	n, err := d.tree.Load(func() (int64, int64, error) {
		var buf [16]byte
		_, err := io.ReadFull(r, buf[:])
		if err == io.EOF {
			return 0, 0, lsmtree.LoadEOF()
		}
		if err != nil {
			return 0, 0, fmt.Errorf("load: truncated record: %w", err)
		}
		key := int64(binary.LittleEndian.Uint64(buf[0:8]))
		val := int64(binary.LittleEndian.Uint64(buf[8:16]))
		return key, val, nil
	})
	if err != nil {
		return err
	}
	d.log.Info("load complete", zap.String("file", path), zap.Int("count", n))
	return nil
}

func (d *dispatcher) stat() error {
	total, perLevel, dump, err := d.tree.Stat()
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "total %d\n", total)
	for _, ls := range perLevel {
		kind := "MAIN"
		if ls.Kind == 1 {
			kind = "DISK"
		}
		fmt.Fprintf(d.out, "level %d %s used %d\n", ls.Index, kind, ls.Used)
	}
	for _, entry := range dump {
		fmt.Fprintf(d.out, "  L%d %d=%d\n", entry.Level, entry.Record.Key, entry.Record.Value)
	}
	return nil
}

func parseOne(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad integer %q: %w", s, err)
	}
	return v, nil
}

func parseTwo(a, b string) (int64, int64, error) {
	x, err := parseOne(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseOne(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func sortRecords(recs []lsmtree.Record) []lsmtree.Record {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
	return recs
}
