package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/alextreichler/coursehub/internal/config"
	"github.com/alextreichler/coursehub/internal/service"
	"github.com/alextreichler/coursehub/internal/store"
	"github.com/shopspring/decimal"
)

const usage = "expected 'migrate', 'seed' or 'summary' subcommand"

func main() {
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	migrateDB := migrateCmd.String("db", "", "Database path (defaults to DB_PATH)")

	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
	seedDB := seedCmd.String("db", "", "Database path (defaults to DB_PATH)")
	seedPublish := seedCmd.Bool("publish", true, "Publish the seeded courses")

	summaryCmd := flag.NewFlagSet("summary", flag.ExitOnError)
	summaryDB := summaryCmd.String("db", "", "Database path (defaults to DB_PATH)")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "migrate":
		migrateCmd.Parse(os.Args[2:])
		openStore(ctx, *migrateDB).Close()
		fmt.Println("Migrations applied.")
	case "seed":
		seedCmd.Parse(os.Args[2:])
		db := openStore(ctx, *seedDB)
		defer db.Close()
		seed(ctx, db, *seedPublish)
	case "summary":
		summaryCmd.Parse(os.Args[2:])
		db := openStore(ctx, *summaryDB)
		defer db.Close()
		printSummary(ctx, db)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

// openStore opens the database and brings the schema up to date, so every command
// can run before the server has ever started.
func openStore(ctx context.Context, dbPath string) *store.Store {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if dbPath == "" {
		dbPath = cfg.DBPath
	}

	db, err := store.NewStore(dbPath, cfg.StoreTimeout)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

type seedCourse struct {
	input   service.CourseInput
	lessons []service.LessonInput
}

func seedCourses() []seedCourse {
	price := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}
	return []seedCourse{
		{
			input: service.CourseInput{
				Title:       "Go Basics",
				Subtitle:    "Types, functions and packages",
				Price:       price("49"),
				Description: "A first course in Go for programmers coming from other languages.",
			},
			lessons: []service.LessonInput{
				{Title: "Installing Go", Order: 1, FreePreview: true},
				{Title: "Variables and types", Order: 2},
				{Title: "Functions and errors", Order: 3},
			},
		},
		{
			input: service.CourseInput{
				Title:       "Concurrency in Practice",
				Subtitle:    "Goroutines, channels and context",
				Price:       price("79.50"),
				Description: "Patterns for writing correct concurrent services.",
			},
			lessons: []service.LessonInput{
				{Title: "Goroutines", Order: 1, FreePreview: true},
				{Title: "Channels and select", Order: 2},
			},
		},
	}
}

// seed fills an empty catalog with sample courses. A catalog that already has
// courses is left alone.
func seed(ctx context.Context, db *store.Store, publish bool) {
	catalog := service.NewCatalogService(db)

	existing, err := catalog.ListCourses(ctx, service.CourseFilter{})
	if err != nil {
		log.Fatalf("Failed to list courses: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("Catalog already has %d courses, skipping seed.\n", len(existing))
		return
	}

	for _, sc := range seedCourses() {
		course, err := catalog.CreateCourse(ctx, sc.input)
		if err != nil {
			log.Fatalf("Failed to create course %q: %v", sc.input.Title, err)
		}
		for _, l := range sc.lessons {
			if _, err := catalog.AddLesson(ctx, course.ID, l); err != nil {
				log.Fatalf("Failed to add lesson %q: %v", l.Title, err)
			}
		}
		if publish {
			published := true
			if _, err := catalog.UpdateCourse(ctx, course.ID, service.CoursePatch{Published: &published}); err != nil {
				log.Fatalf("Failed to publish course %q: %v", course.Title, err)
			}
		}
		fmt.Printf("Seeded course '%s' (%s).\n", course.Title, course.ID)
	}
}

func printSummary(ctx context.Context, db *store.Store) {
	summary, err := service.NewSummaryService(db).GetSummary(ctx)
	if err != nil {
		log.Fatalf("Failed to compute summary: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("Failed to print summary: %v", err)
	}
}
