// Command migrate applies the tally database schema.
//
//	migrate [-dsn url] up | down | steps N | version | force V
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/pkg/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

var errUsage = errors.New("usage: migrate [-dsn url] up | down | steps N | version | force V")

func main() {
	dsn := flag.String("dsn", "", "database URL, defaults to the service configuration")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal(err)
	}

	if *dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal(err)
		}
		*dsn = migrationURL(&cfg.Database)
	}

	if err := run(*dsn, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(dsn string, args []string) error {
	cmd, arg, err := parseCommand(args)
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	defer m.Close()

	switch cmd {
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	case "force":
		if err := m.Force(arg); err != nil {
			return err
		}
		fmt.Printf("forced version %d\n", arg)
		return nil
	}

	var step error
	switch cmd {
	case "up":
		step = m.Up()
	case "down":
		step = m.Down()
	case "steps":
		step = m.Steps(arg)
	}
	if errors.Is(step, migrate.ErrNoChange) {
		fmt.Println("schema already current")
		return nil
	}
	if step != nil {
		return fmt.Errorf("%s: %w", cmd, step)
	}
	fmt.Printf("%s complete\n", cmd)
	return nil
}

// parseCommand validates the subcommand and its integer argument.
func parseCommand(args []string) (string, int, error) {
	if len(args) == 0 {
		return "", 0, errUsage
	}
	switch cmd := args[0]; cmd {
	case "up", "down", "version":
		if len(args) != 1 {
			return "", 0, errUsage
		}
		return cmd, 0, nil
	case "steps", "force":
		if len(args) != 2 {
			return "", 0, errUsage
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || (cmd == "steps" && n == 0) {
			return "", 0, fmt.Errorf("%s: invalid count %q", cmd, args[1])
		}
		return cmd, n, nil
	}
	return "", 0, errUsage
}

// migrationURL returns the configured DSN, or a postgres URL assembled
// from the individual fields. The migrate driver accepts only URL form.
func migrationURL(cfg *database.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}
