package statements

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/officekit/mailroom/internal/pdf"
	"github.com/officekit/mailroom/pkg/metrics"
	"github.com/officekit/mailroom/pkg/storage"
)

var (
	// ErrNotReady is returned when results are requested before the
	// session reaches the completed phase.
	ErrNotReady = errors.New("results not ready")

	// ErrNoQuestions is returned when answers are submitted to a session
	// that is not awaiting any.
	ErrNoQuestions = errors.New("session has no pending questions")
)

// Extractor pulls per-page text out of a PDF. Satisfied by
// pdf.TextExtractor.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]pdf.Page, error)
}

// ReferenceLoader parses a do-not-mail list from a spreadsheet file.
type ReferenceLoader interface {
	Load(path string) ([]ReferenceEntry, error)
}

// PageCounter checks a PDF is readable before a session is committed.
// Satisfied by pdf.PageSplitter.
type PageCounter interface {
	PageCount(ctx context.Context, path string) (int, error)
}

// StatusResponse is the externally visible state of a session.
type StatusResponse struct {
	SessionID        string `json:"session_id"`
	Phase            Phase  `json:"phase"`
	TotalStatements  int    `json:"total_statements"`
	PendingQuestions int    `json:"pending_questions"`
	Error            string `json:"error,omitempty"`
}

// Service drives a session through extraction, classification, operator
// review, and materialization.
type Service struct {
	store        *SessionStore
	files        storage.Storage
	extractor    Extractor
	loader       ReferenceLoader
	checker      PageCounter
	materializer *Materializer
	thresholds   Thresholds
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewService wires the processing pipeline together.
func NewService(store *SessionStore, files storage.Storage, extractor Extractor, loader ReferenceLoader, checker PageCounter, materializer *Materializer, thresholds Thresholds, logger *slog.Logger) *Service {
	return &Service{
		store:        store,
		files:        files,
		extractor:    extractor,
		loader:       loader,
		checker:      checker,
		materializer: materializer,
		thresholds:   thresholds,
		logger:       logger,
		tracer:       otel.Tracer("statements"),
	}
}

// Submit stores the uploaded pair, validates both inputs, creates a
// session, and starts processing in the background. Input errors surface
// here and leave no session behind; later failures surface via Status.
func (s *Service) Submit(ctx context.Context, pdfName string, pdfR io.Reader, excelName string, excelR io.Reader) (string, error) {
	sess := s.store.Create()

	abort := func(err error) (string, error) {
		s.store.Delete(sess.ID)
		if derr := s.files.DeleteScope(ctx, sess.ID); derr != nil {
			s.logger.Warn("discard rejected upload", slog.String("session", sess.ID), slog.Any("error", derr))
		}
		return "", err
	}

	pdfInfo, err := s.files.Upload(ctx, sess.ID, pdfName, "application/pdf", pdfR)
	if err != nil {
		return abort(fmt.Errorf("store pdf upload: %w", err))
	}
	excelInfo, err := s.files.Upload(ctx, sess.ID, excelName, "application/octet-stream", excelR)
	if err != nil {
		return abort(fmt.Errorf("store reference upload: %w", err))
	}

	pdfPath, err := s.files.FilePath(ctx, sess.ID, pdfInfo.ID)
	if err != nil {
		return abort(err)
	}
	excelPath, err := s.files.FilePath(ctx, sess.ID, excelInfo.ID)
	if err != nil {
		return abort(err)
	}

	if _, err := s.checker.PageCount(ctx, pdfPath); err != nil {
		return abort(fmt.Errorf("unreadable pdf: %w", err))
	}
	refs, err := s.loader.Load(excelPath)
	if err != nil {
		return abort(fmt.Errorf("load reference list: %w", err))
	}

	sess.WithLock(func(ps *ProcessingSession) {
		ps.PDFPath = pdfPath
		ps.ExcelPath = excelPath
		ps.PDFFileID = pdfInfo.ID
		ps.ExcelFileID = excelInfo.ID
		ps.References = refs
		ps.Touch(time.Now())
	})

	metrics.SessionsStarted.Inc()
	metrics.SessionsLive.Set(float64(s.store.Len()))

	// The request context dies with the response; processing outlives it.
	go s.process(context.Background(), sess.ID)

	return sess.ID, nil
}

func (s *Service) process(ctx context.Context, id string) {
	ctx, span := s.tracer.Start(ctx, "statements.process",
		trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	started := time.Now()

	sess, err := s.store.Get(id)
	if err != nil {
		return
	}

	s.setPhase(sess, PhaseExtracting)
	pages, err := s.extractor.Extract(ctx, sess.PDFPath)
	if err != nil {
		s.fail(sess, fmt.Errorf("extract text: %w", err))
		return
	}

	s.setPhase(sess, PhaseClassifying)
	var refs []ReferenceEntry
	sess.WithLock(func(ps *ProcessingSession) {
		refs = ps.References
	})

	units := Segment(pages)
	classifier := NewClassifier(refs, s.thresholds, s.logger)
	classifier.Classify(units)
	for _, u := range units {
		metrics.StatementsClassified.WithLabelValues(string(u.MatchKind)).Inc()
	}

	queue := NewReviewQueue(units)
	sess.WithLock(func(ps *ProcessingSession) {
		ps.Units = units
		ps.Queue = queue
		ps.Touch(time.Now())
	})

	s.logger.Info("classification finished",
		slog.String("session", id),
		slog.Int("statements", len(units)),
		slog.Int("questions", queue.Len()),
	)
	metrics.ProcessingDuration.Observe(time.Since(started).Seconds())

	if queue.Len() == 0 {
		s.materialize(ctx, sess)
		return
	}
	s.setPhase(sess, PhaseAwaitingAnswers)
}

// Status reports the current phase and question backlog of a session.
func (s *Service) Status(id string) (*StatusResponse, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	resp := &StatusResponse{SessionID: id}
	sess.WithLock(func(ps *ProcessingSession) {
		resp.Phase = ps.Phase
		resp.Error = ps.Err
		resp.TotalStatements = len(ps.Units)
		if ps.Queue != nil && !ps.Queue.Completed() {
			resp.PendingQuestions = ps.Queue.Len() - ps.Queue.Current().Position + 1
		}
	})
	return resp, nil
}

// Question returns the current disambiguation question. Once the queue is
// exhausted the state reports completion instead.
func (s *Service) Question(id string) (QuestionState, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return QuestionState{}, err
	}

	var (
		state QuestionState
		qErr  error
	)
	sess.WithLock(func(ps *ProcessingSession) {
		switch ps.Phase {
		case PhaseAwaitingAnswers:
			state = ps.Queue.Current()
		case PhaseMaterializing, PhaseCompleted:
			state = QuestionState{Completed: true, Total: queueLen(ps.Queue)}
		case PhaseFailed:
			qErr = fmt.Errorf("processing failed: %s", ps.Err)
		default:
			qErr = ErrNoQuestions
		}
	})
	return state, qErr
}

// AnswerQuestion applies one operator command. When the queue finishes,
// materialization starts in the background and the returned state reports
// completion.
func (s *Service) AnswerQuestion(ctx context.Context, id, raw string) (QuestionState, error) {
	cmd, err := ParseCommand(raw)
	if err != nil {
		return QuestionState{}, err
	}

	sess, err := s.store.Get(id)
	if err != nil {
		return QuestionState{}, err
	}

	var (
		state    QuestionState
		ansErr   error
		finished bool
	)
	sess.WithLock(func(ps *ProcessingSession) {
		if ps.Phase != PhaseAwaitingAnswers {
			ansErr = ErrNoQuestions
			return
		}
		state, ansErr = ps.Queue.Answer(cmd)
		if ansErr != nil {
			return
		}
		ps.Touch(time.Now())
		if ps.Queue.Completed() {
			ps.Phase = PhaseMaterializing
			finished = true
		}
	})
	if ansErr != nil {
		return state, ansErr
	}

	metrics.QuestionsAnswered.WithLabelValues(string(cmd)).Inc()

	if finished {
		go s.runMaterialization(context.Background(), sess)
	}
	return state, nil
}

// Results returns the materialized artifacts of a completed session.
func (s *Service) Results(id string) (*Results, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	var (
		res    *Results
		resErr error
	)
	sess.WithLock(func(ps *ProcessingSession) {
		switch ps.Phase {
		case PhaseCompleted:
			res = ps.Results
		case PhaseFailed:
			resErr = fmt.Errorf("processing failed: %s", ps.Err)
		default:
			resErr = ErrNotReady
		}
	})
	return res, resErr
}

// WriteResultsZip streams every result artifact of a completed session as
// a zip archive. Artifacts are served from session-scoped storage, which
// holds only results once materialization has run.
func (s *Service) WriteResultsZip(ctx context.Context, id string, w io.Writer) error {
	if _, err := s.Results(id); err != nil {
		return err
	}

	files, err := s.files.List(ctx, id)
	if err != nil {
		return err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	zw := zip.NewWriter(w)
	for _, info := range files {
		if err := s.addZipEntry(ctx, zw, id, info); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

// EvictExpired drops idle sessions and their uploaded files. Run from the
// retention cron.
func (s *Service) EvictExpired(ctx context.Context) int {
	ids := s.store.CleanupExpired()
	for _, id := range ids {
		if err := s.files.DeleteScope(ctx, id); err != nil {
			s.logger.Warn("evict session files", slog.String("session", id), slog.Any("error", err))
		}
	}
	if len(ids) > 0 {
		s.logger.Info("evicted expired sessions", slog.Int("count", len(ids)))
	}
	metrics.SessionsLive.Set(float64(s.store.Len()))
	return len(ids)
}

// materialize runs the final phase for a session that produced no
// questions.
func (s *Service) materialize(ctx context.Context, sess *ProcessingSession) {
	s.setPhase(sess, PhaseMaterializing)
	s.runMaterialization(ctx, sess)
}

// runMaterialization assumes the phase has already been set to
// materializing.
func (s *Service) runMaterialization(ctx context.Context, sess *ProcessingSession) {
	ctx, span := s.tracer.Start(ctx, "statements.materialize",
		trace.WithAttributes(attribute.String("session.id", sess.ID)))
	defer span.End()

	var (
		pdfPath string
		refs    []ReferenceEntry
		units   []*StatementUnit
	)
	sess.WithLock(func(ps *ProcessingSession) {
		pdfPath = ps.PDFPath
		refs = ps.References
		units = ps.Units
	})

	res, err := s.materializer.Materialize(ctx, sess.ID, pdfPath, refs, units)
	if err != nil {
		s.fail(sess, fmt.Errorf("materialize results: %w", err))
		return
	}
	if err := s.archiveResults(ctx, sess, res); err != nil {
		s.fail(sess, fmt.Errorf("archive results: %w", err))
		return
	}

	sess.WithLock(func(ps *ProcessingSession) {
		ps.Results = res
		ps.Phase = PhaseCompleted
		ps.Touch(time.Now())
	})
	metrics.SessionsCompleted.WithLabelValues("completed").Inc()
}

func (s *Service) setPhase(sess *ProcessingSession, phase Phase) {
	sess.WithLock(func(ps *ProcessingSession) {
		ps.Phase = phase
		ps.Touch(time.Now())
	})
}

func (s *Service) fail(sess *ProcessingSession, err error) {
	s.logger.Error("session failed", slog.String("session", sess.ID), slog.Any("error", err))
	sess.WithLock(func(ps *ProcessingSession) {
		ps.Phase = PhaseFailed
		ps.Err = err.Error()
		ps.Touch(time.Now())
	})
	metrics.SessionsCompleted.WithLabelValues("failed").Inc()
}

func queueLen(q *ReviewQueue) int {
	if q == nil {
		return 0
	}
	return q.Len()
}

// archiveResults copies the materialized artifacts into session-scoped
// storage and drops the consumed uploads, so the scope holds exactly the
// files a download should serve until the session is evicted. The copies
// under the result directory stay behind for the retention sweep.
func (s *Service) archiveResults(ctx context.Context, sess *ProcessingSession, res *Results) error {
	var pdfID, excelID uuid.UUID
	sess.WithLock(func(ps *ProcessingSession) {
		pdfID = ps.PDFFileID
		excelID = ps.ExcelFileID
	})

	paths := []string{res.AuditFile}
	for _, rf := range res.PDFFiles {
		paths = append(paths, rf.File)
	}
	for _, p := range paths {
		if err := s.archiveFile(ctx, sess.ID, p); err != nil {
			return err
		}
	}

	for _, id := range []uuid.UUID{pdfID, excelID} {
		if err := s.files.Delete(ctx, sess.ID, id); err != nil {
			s.logger.Warn("drop consumed upload", slog.String("session", sess.ID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) archiveFile(ctx context.Context, scope, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open result file: %w", err)
	}
	defer f.Close()

	contentType := "application/pdf"
	if filepath.Ext(path) == ".json" {
		contentType = "application/json"
	}
	_, err = s.files.Upload(ctx, scope, filepath.Base(path), contentType, f)
	return err
}

func (s *Service) addZipEntry(ctx context.Context, zw *zip.Writer, scope string, info *storage.FileInfo) error {
	rc, _, err := s.files.Download(ctx, scope, info.ID)
	if err != nil {
		return err
	}
	defer rc.Close()

	entry, err := zw.Create(info.Name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, rc)
	return err
}
