package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/schoolroute/backend/internal/config"
	"github.com/schoolroute/backend/internal/domain"
	"github.com/schoolroute/backend/internal/logging"
	"github.com/schoolroute/backend/internal/polyline"
	"github.com/schoolroute/backend/internal/repository/file"
	"github.com/schoolroute/backend/internal/repository/postgres"
	"github.com/schoolroute/backend/internal/service"
	"github.com/schoolroute/backend/pkg/utils"
)

func runDecode(cmd *cobra.Command, args []string) error {
	coords, err := polyline.Decode(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, coords)
	}
	for _, c := range coords {
		fmt.Fprintln(out, c.String())
	}
	return nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	coords := make([]domain.GeoCoordinate, 0, len(args))
	for _, arg := range args {
		c, err := parseLatLng(arg)
		if err != nil {
			return err
		}
		coords = append(coords, c)
	}
	fmt.Fprintln(cmd.OutOrStdout(), polyline.Encode(coords))
	return nil
}

func runNormalize(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	resp, err := service.DecodeRouteResponse(raw)
	if err != nil {
		return err
	}
	segments, err := service.Normalize(resp)
	if err != nil {
		return err
	}
	return printSegments(cmd.OutOrStdout(), resp.Shape.String(), segments)
}

func runNearest(cmd *cobra.Command, _ []string) error {
	coord, err := domain.NewGeoCoordinate(nearestLat, nearestLng)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}

	nearby := catalog.Nearest(coord, nearestK)
	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, nearby)
	}
	for _, n := range nearby {
		fmt.Fprintf(out, "%-24s %s  %8.0f m\n", n.ID, n.Coordinate, n.DistanceMeters)
	}
	return nil
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if planProvider != "" {
		cfg.RoutingProvider = strings.ToLower(planProvider)
	}
	avoid, err := domain.ParseAvoidList(planAvoid)
	if err != nil {
		return err
	}
	in := service.CalculateInput{
		Home:     planHome,
		Stops:    planStops,
		Avoid:    avoid,
		Optimize: planOptimize,
	}
	if planHomeAt != "" {
		home, err := parseLatLng(planHomeAt)
		if err != nil {
			return fmt.Errorf("--home-at: %w", err)
		}
		in.HomeLocation = &home
	}

	log := logging.NewStructuredLogger(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := loadCatalog(ctx)
	if err != nil {
		return err
	}

	provider, err := service.NewRouteProvider(cfg.RoutingProvider, service.ProviderConfig{
		BaseURL: cfg.ProviderBaseURL(),
		APIKey:  cfg.ProviderAPIKey(),
		Timeout: cfg.ProviderTimeout,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	routes := service.NewRouteService(catalog, provider, service.WithLogger(log))
	calc, err := routes.Calculate(ctx, in)
	if err != nil {
		return err
	}
	routes.WaitBackground()

	return printSegments(cmd.OutOrStdout(), calc.Provider, calc.Playback.Segments)
}

// loadCatalog indexes the --schools dataset, or the demo schools when unset
func loadCatalog(ctx context.Context) (*service.SchoolCatalog, error) {
	var repo service.SchoolRepository = postgres.NewMockRepository()
	if schoolsFile != "" {
		fileRepo, err := file.Load(schoolsFile)
		if err != nil {
			return nil, err
		}
		repo = fileRepo
	}

	catalog := service.NewSchoolCatalog(repo)
	if err := catalog.Load(ctx); err != nil {
		return nil, err
	}
	return catalog, nil
}

func printSegments(out io.Writer, source string, segments []domain.Segment) error {
	if outputJSON {
		return writeJSON(out, segments)
	}
	fmt.Fprintf(out, "%d segments (%s), %.1f km\n", len(segments), source,
		utils.RoundTo(service.TotalDistanceMeters(segments)/1000, 1))
	for i, s := range segments {
		fmt.Fprintf(out, "%3d  %s  %5d points  %8.0f m\n", i+1, s.Color, len(s.Path), s.DistanceMeters)
	}
	return nil
}

// parseLatLng reads "lat,lng"
func parseLatLng(s string) (domain.GeoCoordinate, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return domain.GeoCoordinate{}, fmt.Errorf("expected lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.GeoCoordinate{}, fmt.Errorf("latitude %q: %w", latStr, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return domain.GeoCoordinate{}, fmt.Errorf("longitude %q: %w", lngStr, err)
	}
	return domain.NewGeoCoordinate(lat, lng)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
