package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/madorolabs/madoro/agent"
	"github.com/madorolabs/madoro/config"
	"github.com/madorolabs/madoro/contextpack"
	"github.com/madorolabs/madoro/llm"
	"github.com/madorolabs/madoro/memory"
	"github.com/madorolabs/madoro/project"
	"github.com/madorolabs/madoro/tools"
)

// session wires one project's worth of components: config, store, executor
// with the approval broker, context builder, model client, and the agent.
type session struct {
	cfg     *config.Config
	manager *project.Manager
	proj    project.Project
	hasProj bool
	store   *memory.Store
	broker  *tools.ApprovalBroker
	agent   *agent.Agent
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	manager, err := project.NewManager(basePath, project.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open project registry: %w", err)
	}

	s := &session{cfg: cfg, manager: manager}

	if projectID != "" {
		s.proj, err = manager.Switch(projectID)
		if err != nil {
			return nil, err
		}
		s.hasProj = true
	} else {
		s.proj, s.hasProj = manager.Active()
	}

	root := s.proj.Path
	id := s.proj.ID
	if !s.hasProj {
		root, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	settings := manager.ProjectSettings(id)
	dbPath, err := manager.DBPath(id)
	if err != nil {
		return nil, err
	}
	s.store, err = memory.Open(dbPath,
		memory.WithMaxTurns(settings.MaxTurns),
		memory.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	s.broker = tools.NewApprovalBroker(0)
	executor, err := tools.NewExecutor(root, s.store,
		tools.WithApproval(s.broker.Func()),
		tools.WithExecutorLogger(logger))
	if err != nil {
		s.store.Close()
		return nil, err
	}

	var builderOpts []contextpack.BuilderOption
	if cfg.Context.MaxRecentTurns > 0 {
		builderOpts = append(builderOpts, contextpack.WithMaxRecentTurns(cfg.Context.MaxRecentTurns))
	}
	builderOpts = append(builderOpts, contextpack.WithLogger(logger))
	builder := contextpack.NewBuilder(root, s.store, builderOpts...)

	// A broken model config still leaves doctor and project commands usable.
	var client llm.Client
	if c, err := llm.NewGollmClient(cfg, "", llm.WithLogger(logger)); err != nil {
		logger.Warn("model client unavailable", zap.Error(err))
	} else {
		client = c
	}

	s.agent = agent.New(root, s.store, client, executor, builder, agent.WithLogger(logger))
	return s, nil
}

// SwitchModel replaces the agent's transport with the named model.
func (s *session) SwitchModel(key string) error {
	client, err := llm.NewGollmClient(s.cfg, key, llm.WithLogger(logger))
	if err != nil {
		return err
	}
	s.agent.SetClient(client)
	return nil
}

func (s *session) Close() {
	s.agent.Close()
	_ = s.store.Close()
}
