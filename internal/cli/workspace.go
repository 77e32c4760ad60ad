package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/aggregate"
	"github.com/getodk/briefcase-sub006/internal/infra/central"
	"github.com/getodk/briefcase-sub006/internal/infra/credstore"
	"github.com/getodk/briefcase-sub006/internal/infra/fsworkspace"
	"github.com/getodk/briefcase-sub006/internal/infra/httpclient"
	"github.com/getodk/briefcase-sub006/internal/infra/localsource"
	"github.com/getodk/briefcase-sub006/internal/infra/logger"
	"github.com/getodk/briefcase-sub006/internal/infra/metastore"
	"github.com/getodk/briefcase-sub006/internal/infra/workspacefinder"
	"github.com/getodk/briefcase-sub006/internal/ports"
	"github.com/getodk/briefcase-sub006/internal/usecase"
)

const (
	envUsername  = "BRIEFCASE_USERNAME"
	envPassword  = "BRIEFCASE_PASSWORD"
	envEndpoints = "BRIEFCASE_ENDPOINTS_FILE"
)

type workspaceCtx struct {
	root       string
	storageDir string
	cfg        domain.Config

	storage *fsworkspace.Storage
	meta    *metastore.YAMLStore
	log     *slog.Logger
}

func loadWorkspace(workspaceFlag string) (*workspaceCtx, error) {
	root, err := resolveWorkspaceRoot(workspaceFlag)
	if err != nil {
		return nil, err
	}

	cfg, err := workspacefinder.LoadConfig(root)
	if err != nil {
		return nil, err
	}

	dir := cfg.StorageDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}

	return &workspaceCtx{
		root:       root,
		storageDir: dir,
		cfg:        cfg,
		storage:    fsworkspace.OpenStorage(dir),
		meta:       metastore.NewYAMLStore(dir),
		log:        logger.L(),
	}, nil
}

// transfer wires the engines to real protocol clients sharing one HTTP
// executor.
func (ws *workspaceCtx) transfer(opts ...usecase.Option) *usecase.Transfer {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = ws.cfg.HTTP.Timeout
	httpCfg.MaxIdleConnsPerHost = ws.cfg.HTTP.MaxIdleConnsPerHost
	exec := httpclient.NewExecutor(
		httpclient.WithClient(httpclient.New(httpCfg)),
		httpclient.WithTimeout(ws.cfg.HTTP.Timeout),
	)

	clients := usecase.Clients{
		Aggregate: func(s domain.AggregateServer) ports.AggregateAPI {
			return aggregate.New(s, exec, aggregate.WithLogger(ws.log))
		},
		Central: func(s domain.CentralServer) ports.CentralAPI {
			return central.New(s, exec, central.WithLogger(ws.log))
		},
		Local: func(e domain.Endpoint) (ports.LocalSource, error) {
			src, err := localsource.Open(e)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
	}
	return usecase.NewTransfer(clients, ws.storage, ws.meta, append([]usecase.Option{usecase.WithLogger(ws.log)}, opts...)...)
}

func endpointStore() *credstore.Store {
	if p := strings.TrimSpace(os.Getenv(envEndpoints)); p != "" {
		return credstore.New(p)
	}
	return credstore.New(credstore.DefaultPath())
}

// rememberedEndpoint loads the endpoint saved for role, with credentials
// from the environment taking precedence over stored ones.
func rememberedEndpoint(store ports.EndpointStore, role ports.EndpointRole) (domain.Endpoint, error) {
	e, ok, err := store.Load(role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no %s configured (tip: run `briefcase source set %s ...`)", roleLabel(role), roleArg(role))
	}
	return withEnvCredentials(e), nil
}

func withEnvCredentials(e domain.Endpoint) domain.Endpoint {
	user, pass := os.Getenv(envUsername), os.Getenv(envPassword)
	if user == "" && pass == "" {
		return e
	}

	switch v := e.(type) {
	case domain.AggregateServer:
		c := domain.Credentials{}
		if v.Credentials != nil {
			c = *v.Credentials
		}
		if user != "" {
			c.Username = user
		}
		if pass != "" {
			c.Password = pass
		}
		v.Credentials = &c
		return v
	case domain.CentralServer:
		if user != "" {
			v.Credentials.Username = user
		}
		if pass != "" {
			v.Credentials.Password = pass
		}
		return v
	default:
		return e
	}
}

func resolveWorkspaceRoot(workspaceFlag string) (string, error) {
	w := strings.TrimSpace(workspaceFlag)
	if w != "" {
		abs, err := filepath.Abs(w)
		if err != nil {
			return "", fmt.Errorf("invalid workspace path: %w", err)
		}
		return abs, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	locator := workspacefinder.NewFinder()
	root, err := locator.FindRoot(wd)
	if err != nil {
		return "", fmt.Errorf("workspace not found from %q (tip: run `briefcase init`): %w", wd, err)
	}
	return root, nil
}
