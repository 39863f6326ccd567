package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/stagecall/pkg/config"
	"github.com/angelmondragon/stagecall/pkg/logger"
	"github.com/angelmondragon/stagecall/pkg/migrate"
)

const usage = `usage: migrate [-dir DIR] <command> [args]

commands:
  up               apply pending migrations
  down             roll back the latest migration
  status           list applied and pending migrations
  to VERSION       move the schema to VERSION (YYYYMMDDHHMMSS)
  create NAME      write an empty migration file
  validate         check migration filenames and goose sections
`

func main() {
	_ = godotenv.Load()

	flags := flag.NewFlagSet("migrate", flag.ExitOnError)
	dir := flags.String("dir", migrate.DefaultDir, "goose migrations directory")
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}
	if err := run(context.Background(), *dir, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", args[0], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dir, cmd string, args []string) error {
	// file-only commands work without a database or full config
	switch cmd {
	case "create":
		if len(args) != 1 {
			return errors.New("expected exactly one NAME")
		}
		path, err := migrate.Create(dir, args[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.Validate(dir); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": cmd, "dir": dir})

	conn, err := migrate.Open(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer conn.Close()
	runner, err := migrate.NewRunner(conn, dir)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "status":
		err = runner.Status(ctx)
	case "to":
		if len(args) != 1 {
			return errors.New("expected exactly one VERSION")
		}
		version, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], perr)
		}
		err = runner.To(ctx, version)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration finished")
	return nil
}
