package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Zerr0-C00L/CineShelf/internal/config"
	"github.com/Zerr0-C00L/CineShelf/internal/models"
	"github.com/Zerr0-C00L/CineShelf/internal/services"
)

type probe struct {
	name string
	run  func(ctx context.Context) (*models.Page, error)
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.TMDBAPIKey == "" && cfg.TMDBAccessToken == "" {
		fmt.Println("TMDB_API_KEY or TMDB_ACCESS_TOKEN must be set")
		os.Exit(1)
	}

	client := services.NewTMDBClient(cfg.TMDBAPIKey,
		services.WithAccessToken(cfg.TMDBAccessToken),
		services.WithBaseURL(cfg.TMDBBaseURL),
		services.WithLanguage(cfg.Language),
		services.WithTimeout(10*time.Second),
	)

	var probes []probe
	for _, c := range []models.Category{
		models.CategoryPopular,
		models.CategoryNowPlaying,
		models.CategoryUpcoming,
		models.CategoryTopRated,
		models.CategoryDiscover,
	} {
		probes = append(probes, probe{string(c), func(ctx context.Context) (*models.Page, error) {
			return client.FetchByCategory(ctx, c, nil, 1)
		}})
	}
	for _, m := range models.Moods() {
		probes = append(probes, probe{"mood:" + m.Key, func(ctx context.Context) (*models.Page, error) {
			return client.Discover(ctx, m.Filter(), 1)
		}})
	}
	probes = append(probes, probe{"search:inception", func(ctx context.Context) (*models.Page, error) {
		return client.Search(ctx, "inception", 1)
	}})

	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("Testing TMDB catalog lists")
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println()

	failed := 0
	for _, p := range probes {
		fmt.Printf("Testing: %-20s ... ", p.name)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		page, err := p.run(ctx)
		cancel()
		if err != nil {
			failed++
			f := services.Classify(err)
			fmt.Printf("❌ %s (%s)\n", f.Kind, f.Message)
			continue
		}
		fmt.Printf("✅ %d results, %d pages\n", len(page.Results), page.TotalPages)
	}

	fmt.Println()
	fmt.Printf("%d/%d lists reachable\n", len(probes)-failed, len(probes))
	if failed > 0 {
		os.Exit(1)
	}
}
