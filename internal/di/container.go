package di

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mealplan-orchestrator/internal/adapter/embedder"
	"mealplan-orchestrator/internal/adapter/generator"
	"mealplan-orchestrator/internal/adapter/vectorindex"
	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/infra/config"
	"mealplan-orchestrator/internal/infra/httpclient"
	"mealplan-orchestrator/internal/usecase"
	"mealplan-orchestrator/internal/usecase/retrieval"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	Searcher domain.VectorSearcher
	Encoder  domain.VectorEncoder

	RetrieveUsecase usecase.RetrieveCandidatesUsecase
	GenerateUsecase usecase.GeneratePlanUsecase
}

// NewApplicationComponents wires all dependencies from config and database
// pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) *ApplicationComponents {
	// Shared HTTP clients with connection pooling.
	embedderHTTP := httpclient.NewPooledClient(time.Duration(cfg.EmbedderTimeout) * time.Second)
	generatorHTTP := httpclient.NewPooledClient(time.Duration(cfg.GeneratorTimeout) * time.Second)

	// External clients.
	enc := embedder.NewOllamaEmbedder(
		cfg.EmbedderURL, cfg.EmbeddingModel, embedderHTTP,
		cfg.EmbedCacheSize, time.Duration(cfg.EmbedCacheTTL)*time.Minute,
	)
	gen := generator.NewOllamaGenerator(
		cfg.GeneratorURL, cfg.GeneratorModel,
		time.Duration(cfg.GeneratorTimeout)*time.Second, log, generatorHTTP,
	)

	searcher := vectorindex.NewMealDocumentRepository(pool, enc)

	pipelineCfg := buildPipelineConfig(cfg)
	retrieveUsecase := usecase.NewRetrieveCandidatesUsecase(searcher, pipelineCfg, log)

	promptBuilder := usecase.NewXMLPromptBuilder()
	generateUsecase := usecase.NewGeneratePlanUsecase(
		retrieveUsecase, promptBuilder, gen, usecase.NewPlanValidator(),
		cfg.PlanMaxTokens, cfg.PromptVersion, log,
	)

	return &ApplicationComponents{
		Searcher:        searcher,
		Encoder:         enc,
		RetrieveUsecase: retrieveUsecase,
		GenerateUsecase: generateUsecase,
	}
}

func buildPipelineConfig(cfg *config.Config) usecase.PipelineConfig {
	pc := usecase.DefaultPipelineConfig()
	if cfg.TotalBudget > 0 {
		pc.TotalBudget = cfg.TotalBudget
	}
	if cfg.MaxTemplates > 0 {
		pc.Budget.MaxTemplates = cfg.MaxTemplates
	}
	if cfg.ReferenceBodyMax > 0 {
		pc.Budget.ReferenceBodyMax = cfg.ReferenceBodyMax
	}

	pc.Fanout = retrieval.FanoutConfig{
		PerQueryTimeout: time.Duration(cfg.FanoutTimeoutMS) * time.Millisecond,
		MaxAttempts:     cfg.FanoutMaxAttempts,
		InitialBackoff:  time.Duration(cfg.FanoutBackoffMS) * time.Millisecond,
		QueriesPerSec:   cfg.FanoutQueriesPS,
	}

	// Weight overrides replace the shipped vector for that intent only;
	// SelectWeights re-normalizes.
	for intent, weights := range cfg.WeightOverrides {
		pc.Rerank.IntentWeights[retrieval.QueryIntent(intent)] = retrieval.Weights(weights).Normalized()
	}

	return pc
}
