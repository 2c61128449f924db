//go:build ignore

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/config"
	"github.com/fenilmodi00/fingerprint-kiosk/database"
	"github.com/fenilmodi00/fingerprint-kiosk/services"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
)

func main() {
	fmt.Printf("Kiosk Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Configuration: FAILED (%v)\n", err)
		return
	}
	unified := cfg.Unified()

	healthScore := 0
	totalTests := 3

	// Test 1: kiosk server answers lookups
	fmt.Print("Result lookup endpoint: ")
	client := shared.NewRestyClient(shared.HTTPClientConfig{
		BaseURL: unified.Lookup.BaseURL,
		Timeout: unified.Lookup.HTTPRequestTimeout,
	}, 5*time.Second)
	lookup := services.NewHTTPLookupClient(client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, found, err := lookup.Lookup(ctx, services.NewSessionToken()); err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else if found {
		fmt.Println("FAILED (fresh token reported results)")
	} else {
		fmt.Println("OK")
		healthScore++
	}

	// Test 2: facility directory
	fmt.Print("Facility directory: ")
	if directory, err := services.LoadFacilityDirectory(cfg.FacilityDataPath); err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else {
		fmt.Printf("OK (%d cities)\n", len(directory.Cities()))
		healthScore++
	}

	// Test 3: result store backend
	fmt.Print("Result store: ")
	if cfg.StoreBackend != config.StoreBackendPostgres {
		fmt.Println("OK (memory)")
		healthScore++
	} else if err := database.ConnectWithConfig(cfg.DatabaseURL, &unified.Database); err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else {
		purged, err := services.NewPostgresResultStore(database.DB).PurgeExpired(ctx)
		if err != nil {
			fmt.Printf("FAILED (%v)\n", err)
		} else {
			fmt.Printf("OK (postgres, %d expired rows purged)\n", purged)
			healthScore++
		}
		database.Close()
	}

	fmt.Println(strings.Repeat("-", 50))
	healthPercent := float64(healthScore) / float64(totalTests) * 100

	if healthScore == totalTests {
		fmt.Printf("SYSTEM HEALTHY: %d/%d checks passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	} else if healthScore >= totalTests/2 {
		fmt.Printf("SYSTEM DEGRADED: %d/%d checks passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	} else {
		fmt.Printf("SYSTEM UNHEALTHY: %d/%d checks passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	}

	fmt.Printf("Check completed at: %s\n", time.Now().Format("15:04:05"))
}
