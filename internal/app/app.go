// Package app wires the question-answering service from configuration. Both
// the Lambda entry point and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"sql-question-agent/handler"
	"sql-question-agent/internal/agent"
	"sql-question-agent/internal/config"
	"sql-question-agent/internal/database"
	"sql-question-agent/internal/integrations/openai"
	"sql-question-agent/internal/integrations/paramstore"
	"sql-question-agent/internal/repository"
	"sql-question-agent/internal/sqltool"
	"sql-question-agent/internal/usecase"
)

type App struct {
	DB      *database.DB
	Service *usecase.AskService
	Handler *handler.Handler
}

// Options tune how much of the stack Build requires.
type Options struct {
	// RequireState fails the build when no state table is configured.
	RequireState bool
}

// Build connects to the database and assembles the ask service. Callers
// must Close the returned App.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequireState && cfg.StateTable == "" {
		return nil, errors.New("app: STATE_TABLE must be set")
	}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	params, err := newParams(cfg, loadAWS)
	if err != nil {
		return nil, err
	}

	var state usecase.StateReadWriter = usecase.Stateless{}
	if cfg.StateTable != "" {
		ac, err := loadAWS()
		if err != nil {
			return nil, err
		}
		dynamo := awsdynamodb.NewFromConfig(ac, func(o *awsdynamodb.Options) {
			if cfg.DynamoDBEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
			}
		})
		store, err := repository.New(dynamo, cfg.StateTable)
		if err != nil {
			return nil, fmt.Errorf("app: create state store: %w", err)
		}
		state = store
	} else {
		logger.Info("no state table configured, conversations are not kept")
	}

	llm, err := openai.NewClient(params, cfg.ParamPrefix,
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithTemperature(0),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create OpenAI client: %w", err)
	}

	db, err := database.Open(ctx, cfg.DB.Dialect, cfg.DB.ConnString(), database.DefaultPoolConfig(cfg.DB.MaxOpenConns))
	if err != nil {
		return nil, err
	}

	svc, h, err := assemble(cfg, logger, params, llm, db, state)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("service ready",
		"dialect", cfg.DB.Dialect,
		"schema", cfg.DB.Schema,
		"tables", cfg.DB.Tables(),
		"stateful", cfg.StateTable != "",
	)
	return &App{DB: db, Service: svc, Handler: h}, nil
}

func assemble(cfg config.Config, logger *slog.Logger, params usecase.ParamGetter, llm *openai.Client, db *database.DB, state usecase.StateReadWriter) (*usecase.AskService, *handler.Handler, error) {
	kit, err := sqltool.New(db, llm, sqltool.Options{
		Schema:        cfg.DB.Schema,
		IncludeTables: cfg.DB.Tables(),
		SampleRows:    cfg.DB.SampleRows,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("app: create SQL toolkit: %w", err)
	}

	runner, err := agent.NewRunner(llm, cfg.MaxAgentIterations, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("app: create agent: %w", err)
	}

	svc, err := usecase.NewAskService(params, llm, runner, kit, state, usecase.Settings{
		ParamPrefix:     cfg.ParamPrefix,
		MaxContextItems: cfg.MaxContextItems,
		MaxQuestionLen:  cfg.MaxQuestionLength,
		TopK:            cfg.TopK,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("app: create ask service: %w", err)
	}

	h, err := handler.NewHandler(svc)
	if err != nil {
		return nil, nil, fmt.Errorf("app: create handler: %w", err)
	}
	return svc, h, nil
}

func newParams(cfg config.Config, loadAWS func() (aws.Config, error)) (usecase.ParamGetter, error) {
	if cfg.ParamFile != "" {
		fc, err := paramstore.NewFile(cfg.ParamFile)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return fc, nil
	}
	ac, err := loadAWS()
	if err != nil {
		return nil, err
	}
	c, err := paramstore.New(awsssm.NewFromConfig(ac), paramstore.WithCacheTTL(cfg.ParamCacheTTL))
	if err != nil {
		return nil, fmt.Errorf("app: create SSM client: %w", err)
	}
	return c, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
