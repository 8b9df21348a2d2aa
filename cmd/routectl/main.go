package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	schoolsFile string
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:          "routectl",
	Short:        "School route planning tools",
	Long:         `Operator tools for the school route service: polyline codec, offline normalization and route planning.`,
	SilenceUsage: true,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <polyline>",
	Short: "Decode an encoded polyline into coordinates",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

var encodeCmd = &cobra.Command{
	Use:   "encode <lat,lng>...",
	Short: "Encode coordinates into a polyline",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEncode,
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <response.json>",
	Short: "Normalize a saved provider response into colored segments",
	Args:  cobra.ExactArgs(1),
	RunE:  runNormalize,
}

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "List the schools closest to a point",
	RunE:  runNearest,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Calculate a route from home through the selected schools",
	Long:  `Resolve the home and stops from the school dataset, call the configured routing provider and print the segments.`,
	RunE:  runPlan,
}

var (
	nearestLat float64
	nearestLng float64
	nearestK   int

	planHome     string
	planHomeAt   string
	planStops    []string
	planAvoid    string
	planOptimize bool
	planProvider string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&schoolsFile, "schools", "s", "", "School dataset (JSON or YAML); built-in demo data when empty")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results as JSON")

	nearestCmd.Flags().Float64Var(&nearestLat, "lat", 0, "Latitude")
	nearestCmd.Flags().Float64Var(&nearestLng, "lng", 0, "Longitude")
	nearestCmd.Flags().IntVarP(&nearestK, "neighbors", "k", 5, "Number of schools to list")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lng")

	planCmd.Flags().StringVar(&planHome, "home", "", "Home stop id from the school dataset")
	planCmd.Flags().StringVar(&planHomeAt, "home-at", "", "Home coordinate as lat,lng; overrides --home")
	planCmd.Flags().StringSliceVar(&planStops, "stop", nil, "Stop id, repeat for each stop in visiting order")
	planCmd.Flags().StringVar(&planAvoid, "avoid", "", "Comma separated features to avoid: tolls,highways,ferries")
	planCmd.Flags().BoolVar(&planOptimize, "optimize", false, "Let the provider reorder the intermediate stops")
	planCmd.Flags().StringVarP(&planProvider, "provider", "p", "", "Routing provider (google or ors); ROUTING_PROVIDER when empty")

	rootCmd.AddCommand(decodeCmd, encodeCmd, normalizeCmd, nearestCmd, planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
