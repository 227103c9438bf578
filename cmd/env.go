package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/donation-cli/internal/match"
	"github.com/sells-group/donation-cli/internal/pipeline"
	"github.com/sells-group/donation-cli/internal/store"
	"github.com/sells-group/donation-cli/pkg/directory"
	"github.com/sells-group/donation-cli/pkg/judge"
)

// pipelineEnv holds the initialized store, clients, and pipeline needed by
// the process/serve/submit commands.
type pipelineEnv struct {
	Store     store.Store
	Directory *directory.Directory
	Pipeline  *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "donations.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initDirectory() (*directory.Directory, error) {
	if cfg.Directory.ClientID == "" {
		return nil, eris.New("directory client ID is required (DONATION_DIRECTORY_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Directory.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read directory JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Directory.LoginURL,
		Username:       cfg.Directory.Username,
		ConsumerKey:    cfg.Directory.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init directory")
	}

	client := directory.NewClient(sf, directory.WithRateLimit(cfg.Directory.RateLimit))
	return directory.New(client), nil
}

// initPipeline sets up the store, directory, judge, and matcher, and builds
// the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	dir, err := initDirectory()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	if cfg.Judge.Key == "" {
		_ = st.Close()
		return nil, eris.New("judge API key is required (DONATION_JUDGE_KEY)")
	}
	j := judge.New(judge.NewClient(cfg.Judge.Key), judge.WithModel(cfg.Judge.Model))

	stopwords, err := cfg.Match.LoadStopwords()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	cache := match.NewDirectoryCache(dir, time.Duration(cfg.Match.CacheTTLSecs)*time.Second)
	matcher := match.NewMatcher(cache, j, match.Config{
		Stopwords:         stopwords,
		LookupConcurrency: cfg.Match.LookupConcurrency,
		RecordConcurrency: cfg.Match.RecordConcurrency,
	})

	return &pipelineEnv{
		Store:     st,
		Directory: dir,
		Pipeline:  pipeline.New(st, matcher),
	}, nil
}
