package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/joho/godotenv"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
	"github.com/tendant/simple-registry/pkg/simpleregistry/config"
)

const usage = `Simple Registry Admin CLI

USAGE:
  admin <command> [options]

COMMANDS:
  apikey        Issue a NuGet API key signed with NUGET_API_SECRET
  repositories  List configured repositories
  search        Search the package index of a repository
  count         Count packages in the index of a repository
  migrate       Create the package index schema (postgres)

ENVIRONMENT VARIABLES:
  Same as the server: STORAGES, REPOSITORIES, DATABASE_URL, REGISTRY_DB_SCHEMA,
  NUGET_API_SECRET. A .env file in the current directory is loaded first.

EXAMPLES:
  admin apikey --subject=ci --ttl=720h
  admin repositories --json
  admin search --repository=default/nuget --term=demo --latest
  admin count --repository=default/pypi
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage + "\n")
		os.Exit(0)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	args := os.Args[2:]

	switch command {
	case "apikey":
		err = runAPIKey(os.Stdout, cfg, args)
	case "repositories":
		err = runRepositories(os.Stdout, cfg, args)
	case "search":
		err = runSearch(ctx, os.Stdout, cfg, args, false)
	case "count":
		err = runSearch(ctx, os.Stdout, cfg, args, true)
	case "migrate":
		err = runMigrate(ctx, os.Stdout, cfg)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func runAPIKey(w io.Writer, cfg *config.ServerConfig, args []string) error {
	fs := flag.NewFlagSet("apikey", flag.ContinueOnError)
	subject := fs.String("subject", "", "Key owner recorded in the sub claim")
	ttl := fs.Duration("ttl", 0, "Key lifetime, zero for no expiry")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := issueAPIKey(cfg.NugetAPISecret, *subject, *ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(w, key)
	return nil
}

// issueAPIKey signs an HS256 token accepted in the X-NuGet-ApiKey header
func issueAPIKey(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("NUGET_API_SECRET is not set")
	}
	if subject == "" {
		return "", errors.New("--subject is required")
	}

	claims := map[string]interface{}{
		"sub": subject,
		"iat": now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}

	auth := jwtauth.New("HS256", []byte(secret), nil)
	_, token, err := auth.Encode(claims)
	return token, err
}

func runRepositories(w io.Writer, cfg *config.ServerConfig, args []string) error {
	fs := flag.NewFlagSet("repositories", flag.ContinueOnError)
	useJSON := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *useJSON {
		return json.NewEncoder(w).Encode(cfg.Repositories)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STORAGE\tREPOSITORY\tLAYOUT")
	for _, r := range cfg.Repositories {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.StorageID, r.RepositoryID, r.Layout)
	}
	return tw.Flush()
}

func runSearch(ctx context.Context, w io.Writer, cfg *config.ServerConfig, args []string, countOnly bool) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	repository := fs.String("repository", "", "Repository as storage/repository")
	term := fs.String("term", "", "Search term")
	latest := fs.Bool("latest", false, "Only the latest version of each package")
	prerelease := fs.Bool("prerelease", false, "Include prerelease versions")
	limit := fs.Int("limit", 100, "Maximum results")
	offset := fs.Int("offset", 0, "Pagination offset")
	useJSON := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	storageID, repositoryID, ok := strings.Cut(*repository, "/")
	if !ok {
		return errors.New("--repository must be storage/repository")
	}

	registry, err := cfg.Build(ctx, nil)
	if err != nil {
		return err
	}
	defer registry.Close()

	query := simpleregistry.SearchQuery{
		Locator:           simpleregistry.RepositoryLocator{StorageID: storageID, RepositoryID: repositoryID},
		Term:              *term,
		LatestOnly:        *latest,
		IncludePrerelease: *prerelease,
		Skip:              *offset,
		Top:               *limit,
	}

	if countOnly {
		query.Skip, query.Top = 0, 0
		n, err := registry.Index.Count(ctx, query)
		if err != nil {
			return err
		}
		if *useJSON {
			return json.NewEncoder(w).Encode(map[string]int{"count": n})
		}
		fmt.Fprintln(w, n)
		return nil
	}

	records, err := registry.Index.Search(ctx, query)
	if err != nil {
		return err
	}
	if *useJSON {
		return json.NewEncoder(w).Encode(records)
	}
	return printRecords(w, records)
}

func printRecords(w io.Writer, records []*simpleregistry.ArtifactRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tFILENAME\tSIZE\tCREATED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.Name, r.Version, r.Filename, r.Size, r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runMigrate(ctx context.Context, w io.Writer, cfg *config.ServerConfig) error {
	if cfg.DatabaseType != "postgres" {
		return errors.New("migrate requires a postgres DATABASE_URL")
	}
	// Build creates the schema when it connects.
	registry, err := cfg.Build(ctx, nil)
	if err != nil {
		return err
	}
	registry.Close()
	fmt.Fprintf(w, "package index schema ready in %q\n", cfg.DBSchema)
	return nil
}
