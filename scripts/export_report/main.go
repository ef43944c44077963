package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/mroshb/debate_hub/internal/config"
	"github.com/mroshb/debate_hub/internal/database"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/reports"
	"github.com/mroshb/debate_hub/internal/repositories"
	"github.com/xuri/excelize/v2"
)

func main() {
	out := flag.String("out", fmt.Sprintf("debate-report-%s.xlsx", time.Now().UTC().Format("20060102")), "output workbook")
	userID := flag.String("user", "", "only matches involving this user")
	limit := flag.Int("limit", 10000, "maximum rows per sheet")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	matches, err := repositories.NewMatchRepository(db).ListMatches(ctx, &models.MatchFilters{UserID: *userID, Limit: *limit})
	if err != nil {
		log.Fatalf("Failed to list matches: %v", err)
	}
	results, err := repositories.NewDebateRepository(db).ListEndedSessions(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to list results: %v", err)
	}

	wb := reports.NewWorkbook()
	defer wb.Close()
	if err := wb.AddMatches(matches); err != nil {
		log.Fatalf("Failed to write matches: %v", err)
	}
	if err := wb.AddResults(results); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}
	if err := wb.SaveAs(*out); err != nil {
		log.Fatalf("Failed to save %s: %v", *out, err)
	}

	// Read the file back as a sanity check
	f, err := excelize.OpenFile(*out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s: %d rows\n", sheet, len(rows)-1)
	}
	fmt.Printf("Report written to %s\n", *out)
}
