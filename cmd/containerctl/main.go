package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/eigerco/kvcontainer/pkg/container"
	"github.com/eigerco/kvcontainer/pkg/db"
	"github.com/eigerco/kvcontainer/pkg/db/leveldb"
	"github.com/eigerco/kvcontainer/pkg/db/pebble"
	"github.com/eigerco/kvcontainer/pkg/log"
)

const usage = `usage: containerctl -path P [flags] <command> [args]

commands:
  get KEY               print the value stored under KEY
  set KEY VALUE         store VALUE under KEY
  delete KEY            remove KEY
  dump [PREFIX]         print every record under PREFIX
  segments              list top level tree segments
  status                report whether the container is finalized
  digest [PREFIX]       print the blake2b-256 digest of the records under PREFIX
  finalize INDEX_PATH   copy the container into INDEX_PATH and clear its marker
  diff OTHER_PATH       print a unified diff against another container

flags:
`

type config struct {
	path     string
	readOnly bool
	engine   db.Engine
	tuning   db.Options
	hex      bool
}

// main runs one command against a container.
// go run ./cmd/containerctl -path data/seqs/chunk dump meta.
func main() {
	path := flag.String("path", "", "container path")
	readOnly := flag.Bool("readonly", false, "open without taking the writer lock")
	engineName := flag.String("engine", "pebble", "storage engine: pebble or leveldb")
	configPath := flag.String("config", "", "TOML file with engine tuning")
	logLevel := flag.String("log-level", "info", "log level")
	hexKeys := flag.Bool("hex", false, "print keys and values as hex")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	level, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		fatal(err)
	}
	log.Init(log.Options{LogLevel: level, Type: log.ConsoleLogger})

	if *path == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config{path: *path, readOnly: *readOnly, hex: *hexKeys}
	if cfg.engine, err = engineByName(*engineName); err != nil {
		fatal(err)
	}
	cfg.tuning = db.DefaultOptions()
	if *configPath != "" {
		if cfg.tuning, err = db.LoadOptions(*configPath); err != nil {
			fatal(err)
		}
	}

	if err := run(cfg, flag.Args(), os.Stdout); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	log.CLI.Error().Err(err).Msg("containerctl failed")
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func engineByName(name string) (db.Engine, error) {
	switch name {
	case "pebble":
		return pebble.Engine{}, nil
	case "leveldb":
		return leveldb.Engine{}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}

var errUsage = errors.New("wrong number of arguments")

func (cfg config) open(path string, readOnly bool) (*container.DB, error) {
	tuning := cfg.tuning
	return container.Open(path, container.Options{
		ReadOnly: readOnly,
		Engine:   cfg.engine,
		Tuning:   &tuning,
	})
}

func run(cfg config, args []string, out io.Writer) (err error) {
	cmd, args := args[0], args[1:]
	readOnly := cfg.readOnly
	switch cmd {
	case "get", "dump", "segments", "status", "digest", "diff":
		readOnly = true
	case "finalize":
		// a read-only container has no marker to clear
		readOnly = false
	}

	c, err := cfg.open(cfg.path, readOnly)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.Close())
	}()

	arg := func(i int) []byte {
		if i < len(args) {
			return []byte(args[i])
		}
		return nil
	}
	want := func(lo, hi int) error {
		if len(args) < lo || len(args) > hi {
			return fmt.Errorf("%s: %w", cmd, errUsage)
		}
		return nil
	}

	log.CLI.Debug().Str("command", cmd).Str("path", cfg.path).Bool("readonly", readOnly).Msg("running")

	switch cmd {
	case "get":
		if err := want(1, 1); err != nil {
			return err
		}
		v, err := c.Get(arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cfg.format(v))
	case "set":
		if err := want(2, 2); err != nil {
			return err
		}
		return c.Set(arg(0), arg(1), nil)
	case "delete":
		if err := want(1, 1); err != nil {
			return err
		}
		return c.Delete(arg(0), nil)
	case "dump":
		if err := want(0, 1); err != nil {
			return err
		}
		text, err := cfg.dump(c, arg(0))
		if err != nil {
			return err
		}
		fmt.Fprint(out, text)
	case "segments":
		if err := want(0, 0); err != nil {
			return err
		}
		segments, err := c.Tree().Segments()
		if err != nil {
			return err
		}
		for _, s := range segments {
			fmt.Fprintln(out, cfg.format(s))
		}
	case "status":
		if err := want(0, 0); err != nil {
			return err
		}
		finalized, err := container.IsFinalized(cfg.path)
		if err != nil {
			return err
		}
		state := "in progress"
		if finalized {
			state = "finalized"
		}
		fmt.Fprintf(out, "%s: %s\n", cfg.path, state)
	case "digest":
		if err := want(0, 1); err != nil {
			return err
		}
		h, err := container.Digest(c, arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%x\n", h)
	case "finalize":
		if err := want(1, 1); err != nil {
			return err
		}
		index, err := cfg.open(args[0], false)
		if err != nil {
			return err
		}
		return errors.Join(c.Finalize(index), index.Close())
	case "diff":
		if err := want(1, 1); err != nil {
			return err
		}
		other, err := cfg.open(args[0], true)
		if err != nil {
			return err
		}
		defer other.Close() //nolint:errcheck
		return cfg.diff(c, other, out)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (cfg config) format(b []byte) string {
	if cfg.hex {
		return fmt.Sprintf("%x", b)
	}
	return fmt.Sprintf("%q", b)
}

func (cfg config) dump(c container.Container, prefix []byte) (string, error) {
	items, err := c.Items(prefix)
	if err != nil {
		return "", err
	}
	defer items.Close() //nolint:errcheck

	var sb strings.Builder
	for items.Next() {
		fmt.Fprintf(&sb, "%s = %s\n", cfg.format(items.Key()), cfg.format(items.Value()))
	}
	return sb.String(), items.Err()
}

func (cfg config) diff(a, b *container.DB, out io.Writer) error {
	left, err := cfg.dump(a, nil)
	if err != nil {
		return err
	}
	right, err := cfg.dump(b, nil)
	if err != nil {
		return err
	}
	if left == right {
		return nil
	}
	return difflib.WriteUnifiedDiff(out, difflib.UnifiedDiff{
		A:        difflib.SplitLines(left),
		B:        difflib.SplitLines(right),
		FromFile: a.Path(),
		ToFile:   b.Path(),
		Context:  3,
	})
}
