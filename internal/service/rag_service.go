package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ragbot/internal/domain"
	"ragbot/internal/prompt"
	"ragbot/internal/textmatch"
)

// State is the lifecycle stage of the orchestrator.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ErrNotReady is returned by Reload before initialization has succeeded.
var ErrNotReady = errors.New("service is not ready")

// Store is the document store as seen by the orchestrator.
type Store interface {
	Load() (int, error)
	All() []domain.Record
	Len() int
	Dimension() int
	Path() string
}

// Status describes the orchestrator for status output.
type Status struct {
	State     string `json:"state"`
	Records   int    `json:"records"`
	Dimension int    `json:"dimension"`
	Embedder  string `json:"embedder"`
	Generator string `json:"generator"`
	Model     string `json:"model,omitempty"`
	Retriever string `json:"retriever"`
	TopK      int    `json:"top_k"`
	StorePath string `json:"store_path"`
	Error     string `json:"error,omitempty"`
}

// RAGService answers questions from the document store.
// Ask runs under a shared lock so many questions can be answered at once;
// Reload takes it exclusively.
type RAGService struct {
	store     Store
	embedder  domain.Embedder
	retriever domain.Retriever
	generator domain.Generator
	assembler *prompt.Assembler
	topK      int
	backend   string
	logger    *zap.Logger

	initMu  sync.Mutex
	state   atomic.Int32
	initErr error

	mu sync.RWMutex
}

// Option configures a RAGService.
type Option func(*RAGService)

func WithTopK(k int) Option { return func(s *RAGService) { s.topK = k } }

func WithAssembler(a *prompt.Assembler) Option { return func(s *RAGService) { s.assembler = a } }

func WithLogger(l *zap.Logger) Option { return func(s *RAGService) { s.logger = l } }

// WithRetrieverName labels the retriever in Status.
func WithRetrieverName(name string) Option { return func(s *RAGService) { s.backend = name } }

func NewRAGService(store Store, embedder domain.Embedder, retriever domain.Retriever, generator domain.Generator, opts ...Option) *RAGService {
	s := &RAGService{
		store:     store,
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		assembler: prompt.NewAssembler(prompt.DefaultMaxContextChars),
		topK:      3,
		backend:   "memory",
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RAGService) State() State { return State(s.state.Load()) }

// Initialize loads the store, mirrors it into an indexing retriever and warms
// the gateways. It runs once; a failure is returned again on every later call.
func (s *RAGService) Initialize(ctx context.Context) (int, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	switch s.State() {
	case StateReady:
		return s.store.Len(), nil
	case StateFailed:
		return 0, s.initErr
	}

	s.state.Store(int32(StateInitializing))
	n, err := s.initialize(ctx)
	if err != nil {
		s.initErr = err
		s.state.Store(int32(StateFailed))
		s.logger.Error("initialization failed", zap.Error(err))
		return 0, err
	}
	s.state.Store(int32(StateReady))
	s.logger.Info("knowledge base ready",
		zap.Int("records", n),
		zap.Int("dimension", s.store.Dimension()),
		zap.String("embedder", s.embedder.Name()),
		zap.String("generator", s.generator.Name()))
	return n, nil
}

func (s *RAGService) initialize(ctx context.Context) (int, error) {
	n, err := s.store.Load()
	if err != nil {
		return 0, err
	}
	if err := s.index(ctx); err != nil {
		return 0, err
	}
	if w, ok := s.embedder.(domain.Warmer); ok {
		if err := w.WarmUp(ctx); err != nil {
			return 0, fmt.Errorf("warm up embedder: %w", err)
		}
	}
	if w, ok := s.generator.(domain.Warmer); ok {
		if err := w.WarmUp(ctx); err != nil {
			return 0, fmt.Errorf("warm up generator: %w", err)
		}
	}
	return n, nil
}

func (s *RAGService) index(ctx context.Context) error {
	ix, ok := s.retriever.(domain.Indexer)
	if !ok {
		return nil
	}
	if err := ix.Index(ctx, s.store.All()); err != nil {
		return fmt.Errorf("index records: %w", err)
	}
	return nil
}

// Ask answers one question. A service that was never initialized is
// initialized first.
func (s *RAGService) Ask(ctx context.Context, question string) (*domain.QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.NewValidationError("", "question is empty")
	}
	if s.State() != StateReady {
		if _, err := s.Initialize(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Now()
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	records, err := s.retriever.Retrieve(ctx, vec, s.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	p, err := s.assembler.Assemble(question, records)
	if err != nil {
		return nil, err
	}
	answer, err := s.generator.Generate(ctx, p.Messages)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	res := &domain.QueryResult{
		Question:    question,
		Answer:      answer,
		Records:     records,
		NumRecords:  len(records),
		ContextUsed: p.ContextUsed,
		Grounding:   grounding(answer, records[:p.ContextUsed]),
		Elapsed:     time.Since(start),
	}
	s.logger.Debug("question answered",
		zap.Int("records", res.NumRecords),
		zap.Float64("grounding", res.Grounding),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func grounding(answer string, used []domain.ScoredRecord) float64 {
	if len(used) == 0 {
		return 0
	}
	parts := make([]string, len(used))
	for i, r := range used {
		parts[i] = r.Record.Content
	}
	return textmatch.Ochiai(answer, strings.Join(parts, "\n"))
}

// Reload re-reads the persisted store and re-indexes it, waiting for
// in-flight questions to finish. If the store cannot be read the previous
// records stay in use.
func (s *RAGService) Reload(ctx context.Context) (int, error) {
	if s.State() != StateReady {
		return 0, ErrNotReady
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.Load()
	if err != nil {
		return 0, fmt.Errorf("reload document store: %w", err)
	}
	if err := s.index(ctx); err != nil {
		return 0, err
	}
	s.logger.Info("knowledge base reloaded", zap.Int("records", n))
	return n, nil
}

// Status reports the current state and configuration.
func (s *RAGService) Status() Status {
	st := Status{
		State:     s.State().String(),
		Records:   s.store.Len(),
		Dimension: s.store.Dimension(),
		Embedder:  s.embedder.Name(),
		Generator: s.generator.Name(),
		Retriever: s.backend,
		TopK:      s.topK,
		StorePath: s.store.Path(),
	}
	if m, ok := s.generator.(interface{ Model() string }); ok {
		st.Model = m.Model()
	}
	if s.State() == StateFailed {
		s.initMu.Lock()
		if s.initErr != nil {
			st.Error = s.initErr.Error()
		}
		s.initMu.Unlock()
	}
	return st
}
