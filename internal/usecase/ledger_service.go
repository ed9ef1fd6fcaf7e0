package usecase

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"ironbank/internal/domain"
	"ironbank/internal/infra/tracer"
)

// LedgerService is the application boundary for ledger directory operations.
// It holds no ledger state of its own; each call goes to the repository.
type LedgerService struct {
	repo      domain.LedgerRepository
	resources domain.ResourceLocator
	opener    domain.FileManager
	bus       domain.EventBus // optional
	logger    *slog.Logger
}

// NewLedgerService wires the ledger operations. bus may be nil.
func NewLedgerService(
	repo domain.LedgerRepository,
	resources domain.ResourceLocator,
	opener domain.FileManager,
	bus domain.EventBus,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		repo:      repo,
		resources: resources,
		opener:    opener,
		bus:       bus,
		logger:    logger,
	}
}

// ResolveDirectory returns the absolute ledgers directory, creating it if needed.
func (s *LedgerService) ResolveDirectory(ctx context.Context) (dir string, err error) {
	_, span := tracer.StartSpan(ctx, "ledger.directory")
	defer func() { s.finish(span, "directory", err) }()

	dir, err = s.repo.Dir()
	if err != nil {
		return "", err
	}
	span.SetAttributes(tracer.StringAttr("ledger.dir", dir))
	return dir, nil
}

// List returns the ledgers directly inside the ledgers directory, newest first.
func (s *LedgerService) List(ctx context.Context) (items []domain.LedgerSummary, err error) {
	_, span := tracer.StartSpan(ctx, "ledger.list")
	defer func() { s.finish(span, "list", err) }()

	items, err = s.repo.List()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.IntAttr("ledger.count", len(items)))
	s.logger.Debug("ledgers listed", "count", len(items))
	return items, nil
}

// Read returns the raw text of the ledger at path.
func (s *LedgerService) Read(ctx context.Context, path string) (content string, err error) {
	_, span := tracer.StartSpan(ctx, "ledger.read",
		trace.WithAttributes(tracer.StringAttr("ledger.path", path)))
	defer func() { s.finish(span, "read", err) }()

	content, err = s.repo.Read(path)
	if err != nil {
		return "", err
	}
	span.SetAttributes(tracer.IntAttr("ledger.size", len(content)))
	return content, nil
}

// Save writes content verbatim to <ledgersDir>/<filename> and returns the path.
func (s *LedgerService) Save(ctx context.Context, filename, content string) (path string, err error) {
	ctx, span := tracer.StartSpan(ctx, "ledger.save",
		trace.WithAttributes(tracer.StringAttr("ledger.filename", filename)))
	defer func() { s.finish(span, "save", err) }()

	path, err = s.repo.Save(filename, content)
	if err != nil {
		return "", err
	}
	s.logger.Info("ledger saved", "path", path, "size", len(content))
	s.publish(ctx, domain.EventLedgerSaved, path, filename)
	return path, nil
}

// Delete removes the ledger file at path. A missing file is ErrNotFound.
func (s *LedgerService) Delete(ctx context.Context, path string) (err error) {
	ctx, span := tracer.StartSpan(ctx, "ledger.delete",
		trace.WithAttributes(tracer.StringAttr("ledger.path", path)))
	defer func() { s.finish(span, "delete", err) }()

	if err = s.repo.Delete(path); err != nil {
		return err
	}
	s.logger.Info("ledger deleted", "path", path)
	s.publish(ctx, domain.EventLedgerDeleted, path, "")
	return nil
}

// ResetTutorial overwrites the tutorial ledger with the bundled template.
// When the template cannot be found the existing tutorial is left untouched.
func (s *LedgerService) ResetTutorial(ctx context.Context) (path string, err error) {
	ctx, span := tracer.StartSpan(ctx, "ledger.tutorial.reset")
	defer func() { s.finish(span, "tutorial.reset", err) }()

	data, err := s.resources.ReadFile(domain.TutorialFilename)
	if err != nil {
		return "", err
	}
	path, err = s.repo.WriteName(domain.TutorialFilename, data)
	if err != nil {
		return "", err
	}
	s.logger.Info("tutorial ledger reset", "path", path)
	s.publish(ctx, domain.EventTutorialReset, path, domain.TutorialFilename)
	return path, nil
}

// TutorialTemplate returns the bundled tutorial text. It never writes.
func (s *LedgerService) TutorialTemplate(ctx context.Context) (content string, err error) {
	_, span := tracer.StartSpan(ctx, "ledger.tutorial.get")
	defer func() { s.finish(span, "tutorial.get", err) }()

	data, err := s.resources.ReadFile(domain.TutorialFilename)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// OpenDirectory launches the host file browser on the ledgers directory.
// It returns once the browser process has been spawned.
func (s *LedgerService) OpenDirectory(ctx context.Context) (err error) {
	ctx, span := tracer.StartSpan(ctx, "ledger.directory.open",
		trace.WithAttributes(tracer.StringAttr("opener", s.opener.Name())))
	defer func() { s.finish(span, "directory.open", err) }()

	dir, err := s.repo.Dir()
	if err != nil {
		return err
	}
	return s.opener.Open(ctx, dir)
}

// SeedTutorial copies the bundled tutorial into the ledgers directory when it
// is not there yet. Failures are logged and reported as false; they never
// propagate.
func (s *LedgerService) SeedTutorial(ctx context.Context) bool {
	ctx, span := tracer.StartSpan(ctx, "ledger.tutorial.seed")
	defer span.End()

	exists, err := s.repo.Exists(domain.TutorialFilename)
	if err != nil {
		s.logger.Warn("tutorial seed skipped", "error", err)
		return false
	}
	if exists {
		return false
	}

	data, err := s.resources.ReadFile(domain.TutorialFilename)
	if err != nil {
		s.logger.Warn("tutorial seed skipped", "error", err)
		return false
	}
	path, err := s.repo.WriteName(domain.TutorialFilename, data)
	if err != nil {
		s.logger.Warn("tutorial seed failed", "error", err)
		return false
	}

	tracer.SetOK(span)
	s.logger.Info("tutorial ledger seeded", "path", path)
	s.publish(ctx, domain.EventTutorialSeeded, path, domain.TutorialFilename)
	return true
}

func (s *LedgerService) finish(span trace.Span, op string, err error) {
	if err != nil {
		s.logger.Warn("ledger operation failed",
			"op", op,
			"code", domain.ErrorCodeOf(err),
			"error", err,
		)
	}
	tracer.End(span, err)
}

func (s *LedgerService) publish(ctx context.Context, typ domain.EventType, path, filename string) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.LedgerEventPayload{Path: path, Filename: filename})
	if err != nil {
		s.logger.Error("marshal event payload", "event", string(typ), "error", err)
		return
	}
	s.bus.Publish(ctx, domain.Event{Type: typ, Payload: payload})
}
