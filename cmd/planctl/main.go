package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mealplan-orchestrator/internal/di"
	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/infra"
	"mealplan-orchestrator/internal/infra/config"
	"mealplan-orchestrator/internal/usecase"
)

var (
	version = "dev"

	// Global flags
	verbose bool

	// Retrieve command flags
	cuisines    []string
	dietType    string
	allergens   []string
	symptoms    []string
	labMarkers  []string
	budgetMax   float64
	maxPrepTime int
	lowCarb     bool
	showBodies  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "planctl",
	Short:   "Operate the meal plan retrieval pipeline from the command line",
	Version: version,
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Run one retrieval pass and print the quota and budget reports",
	Long: `Run the full candidate retrieval pipeline against the knowledge base
and print what the generator would receive, without calling the generator.

Examples:
  # Two cuisines, gluten-free
  planctl retrieve --cuisine japanese --cuisine thai --allergen gluten

  # Low-carb with a budget ceiling
  planctl retrieve --cuisine mexican --low-carb --budget 12.50`,
	RunE: runRetrieve,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the vector index score contract and exit",
	RunE:  runVerify,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	retrieveCmd.Flags().StringArrayVar(&cuisines, "cuisine", nil, "cuisine to retrieve for (repeatable, max 5 used)")
	retrieveCmd.Flags().StringVar(&dietType, "diet", "", "diet type (vegetarian, vegan, pescatarian, omnivore)")
	retrieveCmd.Flags().StringArrayVar(&allergens, "allergen", nil, "allergen to tag (repeatable)")
	retrieveCmd.Flags().StringArrayVar(&symptoms, "symptom", nil, "reported symptom, feeds intent detection (repeatable)")
	retrieveCmd.Flags().StringArrayVar(&labMarkers, "lab-marker", nil, "lab marker, feeds intent detection (repeatable)")
	retrieveCmd.Flags().Float64Var(&budgetMax, "budget", 0, "per-meal budget ceiling")
	retrieveCmd.Flags().IntVar(&maxPrepTime, "prep-time", 0, "max prep time in minutes")
	retrieveCmd.Flags().BoolVar(&lowCarb, "low-carb", false, "enable low-carb mode")
	retrieveCmd.Flags().BoolVar(&showBodies, "show-bodies", false, "print candidate bodies, not just headers")

	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(verifyCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func buildComponents(ctx context.Context, log *slog.Logger) (*di.ApplicationComponents, func(), error) {
	cfg := config.Load()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	dbPool, err := infra.NewPostgresDB(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to db: %w", err)
	}

	components := di.NewApplicationComponents(cfg, dbPool, log)
	return components, dbPool.Close, nil
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	log := newLogger()

	ctx, cancel := signalContext()
	defer cancel()

	components, closeDB, err := buildComponents(ctx, log)
	if err != nil {
		return err
	}
	defer closeDB()

	started := time.Now()
	set, err := components.RetrieveUsecase.Execute(ctx, usecase.RetrieveCandidatesInput{
		Prefs: domain.PlanPreferences{
			Cuisines:      cuisines,
			DietType:      domain.DietType(dietType),
			Allergens:     allergens,
			Symptoms:      symptoms,
			LabMarkers:    labMarkers,
			BudgetCeiling: budgetMax,
			MaxPrepTime:   maxPrepTime,
			LowCarbMode:   lowCarb,
		},
	})
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	fmt.Printf("Request %s completed in %s\n\n", set.RequestID, time.Since(started).Round(time.Millisecond))

	fmt.Println("Quota Report:")
	for _, cuisine := range sortedKeys(set.QuotaReport.Target) {
		fmt.Printf("  %-20s target=%-3d achieved=%d\n",
			cuisine, set.QuotaReport.Target[cuisine], set.QuotaReport.Achieved[cuisine])
	}
	if len(set.QuotaReport.EmptyBuckets) > 0 {
		fmt.Printf("  empty buckets: %s\n", strings.Join(set.QuotaReport.EmptyBuckets, ", "))
	}

	fmt.Printf("\nToken Budget Report:\n")
	fmt.Printf("  original=%d final=%d bytes_saved=%d\n",
		set.TokenBudgetReport.OriginalCount,
		set.TokenBudgetReport.FinalCount,
		set.TokenBudgetReport.BytesSaved)

	fmt.Printf("\nTemplates (%d):\n", len(set.TemplateCandidates))
	printCandidates(set.TemplateCandidates)
	fmt.Printf("\nGuidance (%d):\n", len(set.GuidanceCandidates))
	printCandidates(set.GuidanceCandidates)
	fmt.Printf("\nSubstitutions (%d):\n", len(set.SubstitutionCandidates))
	printCandidates(set.SubstitutionCandidates)

	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	log := newLogger()

	ctx, cancel := signalContext()
	defer cancel()

	components, closeDB, err := buildComponents(ctx, log)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := components.Searcher.VerifyScoreContract(ctx); err != nil {
		return fmt.Errorf("score contract: %w", err)
	}

	fmt.Printf("score contract holds (encoder %s)\n", components.Encoder.Version())
	return nil
}

func printCandidates(candidates []domain.Candidate) {
	for _, c := range candidates {
		tags := ""
		if len(c.AllergenTags) > 0 {
			tags = " [" + strings.Join(c.AllergenTags, ",") + "]"
		}
		fmt.Printf("  %.3f  %-12s %-10s %s%s\n",
			c.RerankScore, c.Cuisine, c.MealType, c.Name, tags)
		if showBodies && c.Body != "" {
			fmt.Printf("         %s\n", c.Body)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
