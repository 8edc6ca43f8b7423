package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"a11y/internal/document"
	"a11y/internal/storage"
	"a11y/internal/transform"
)

const defaultTimeout = 120 * time.Second

// Service holds what the pipelines share. Artifact-producing transforms
// write to fixed basenames, so they run one at a time.
type Service struct {
	executor  transform.Executor
	extractor *document.Extractor
	store     storage.Store
	artifacts *semaphore.Weighted
	timeout   time.Duration
}

type ServiceOptions struct {
	Executor  transform.Executor
	Extractor *document.Extractor
	Store     storage.Store
	Timeout   time.Duration
}

func NewService(opts ServiceOptions) *Service {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Service{
		executor:  opts.Executor,
		extractor: opts.Extractor,
		store:     opts.Store,
		artifacts: semaphore.NewWeighted(1),
		timeout:   timeout,
	}
}

func (s *Service) Store() storage.Store {
	return s.store
}

// Execute runs req under the service timeout, holding the artifact lock for
// transforms that write files.
func (s *Service) Execute(ctx context.Context, req transform.Request) (*transform.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if writesArtifact(req.Kind) {
		if err := s.artifacts.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("wait for %s: %w", req.Kind, err)
		}
		defer s.artifacts.Release(1)
	}

	return s.executor.Execute(ctx, req)
}

func writesArtifact(kind transform.Kind) bool {
	return kind == transform.KindTextToSpeech || kind == transform.KindDiagramImage
}
