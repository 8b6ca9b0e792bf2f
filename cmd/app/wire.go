//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/ragviet/ragviet-service/internal/bootstrap"
	"github.com/ragviet/ragviet-service/internal/domain/auth"
	"github.com/ragviet/ragviet-service/internal/domain/rag"
	"github.com/ragviet/ragviet-service/internal/infra/config"
	httpiface "github.com/ragviet/ragviet-service/internal/interface/http"
	"github.com/ragviet/ragviet-service/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideAuthConfig,
		provideModelPolicy,
		provideChatGPTClient,
		provideLLM,
		provideEmbedder,
		provideVectorStore,
		provideReranker,
		provideNaturalLanguageFilter,
		providePDFProcessor,
		provideChatStore,
		provideBlobStore,
		provideIngestionConcurrency,
		provideAdminKey,
		rag.NewAnswerer,
		rag.NewIngestionCoordinator,
		auth.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
