package redaction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultScale balances detector legibility against memory and output size
	DefaultScale = 1.5

	// DefaultOutputSuffix is appended to the source file stem on export
	DefaultOutputSuffix = "_anonimizowany"

	// DefaultStatusClearDelay is how long a completion message stays visible
	DefaultStatusClearDelay = 3 * time.Second

	// MaxConcurrency caps parallel detection calls
	MaxConcurrency = 3

	defaultOutputStem = "dokument"
)

// ProgressFunc is called once per page as rendering starts
type ProgressFunc func(page, total int)

// LoadedDocument is the rasterized form of a source document
type LoadedDocument struct {
	Pages     []PageRaster
	TextLayer bool
}

// Rasterizer renders every page of a source document in order
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, progress ProgressFunc) (*LoadedDocument, error)
}

// Detector finds PII on one page image. Errors of KindDetectionConfig and
// KindRateLimit stop a run; KindMalformedResponse counts as zero detections.
type Detector interface {
	Detect(ctx context.Context, page PageRaster, settings Settings) ([]Detection, error)
}

// Options configures a Session
type Options struct {
	Concurrency      int
	StatusClearDelay time.Duration
	OutputSuffix     string
	Logger           *logrus.Logger
}

// RunResult summarizes a completed anonymization run
type RunResult struct {
	Pages          int              `json:"pages"`
	Marks          int              `json:"marks"`
	MalformedPages []int            `json:"malformed_pages,omitempty"`
	ByCategory     map[Category]int `json:"by_category"`
}

// ExportResult is a fully serialized output document
type ExportResult struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
	Stamps   int    `json:"stamps"`
	Data     []byte `json:"-"`
}

// Session owns one loaded document, its marks and its settings.
// Load, Run and Export are mutually exclusive; a second call while one is in
// flight fails with ErrBusy.
type Session struct {
	rasterizer Rasterizer
	detector   Detector
	writer     DocumentWriter
	opts       Options
	logger     *logrus.Entry

	settings *SettingsStore

	mu         sync.Mutex
	store      *Store
	pages      []PageRaster
	textLayer  bool
	source     string
	state      State
	statusText string
	lastErr    string
	cancelRun  context.CancelFunc
	clearTimer *time.Timer
	lastRun    *RunResult
	lastKind   ErrorKind
}

// NewSession wires the collaborators into an idle session
func NewSession(r Rasterizer, d Detector, w DocumentWriter, opts Options) *Session {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Concurrency > MaxConcurrency {
		opts.Concurrency = MaxConcurrency
	}
	if opts.OutputSuffix == "" {
		opts.OutputSuffix = DefaultOutputSuffix
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Session{
		rasterizer: r,
		detector:   d,
		writer:     w,
		opts:       opts,
		logger:     opts.Logger.WithField("component", "session"),
		settings:   NewSettingsStore(),
		store:      NewStore(),
		state:      idleState(),
	}
}

// Settings exposes the mutable detection settings
func (s *Session) Settings() *SettingsStore {
	return s.settings
}

// Load rasterizes a new document. Pages and marks of the previous document are
// discarded up front, so a failed load leaves the session empty.
func (s *Session) Load(ctx context.Context, name string, data []byte) (n int, err error) {
	s.mu.Lock()
	if s.state.Busy() {
		s.mu.Unlock()
		return 0, ErrBusy
	}
	s.pages = nil
	s.textLayer = false
	s.source = ""
	s.store = NewStore()
	s.lastRun = nil
	s.setState(loadingState(0, 0), "Loading document...")
	s.mu.Unlock()
	defer s.recoverPanic(KindLoad, "load", &err)

	log := s.logger.WithField("source", name)
	log.Info("Loading document")

	doc, err := s.rasterizer.Rasterize(ctx, data, func(page, total int) {
		s.mu.Lock()
		s.setState(loadingState(page, total), fmt.Sprintf("Rendering page %d of %d...", page, total))
		s.mu.Unlock()
	})
	if err == nil && (doc == nil || len(doc.Pages) == 0) {
		err = errors.New("document has no pages")
	}
	if err != nil {
		lerr := err
		if KindOf(err) == KindUnknown {
			lerr = NewError(KindLoad, "load", err)
		}
		log.WithError(lerr).Error("Document load failed")
		s.mu.Lock()
		s.fail(lerr)
		s.mu.Unlock()
		return 0, lerr
	}

	s.mu.Lock()
	s.pages = doc.Pages
	s.textLayer = doc.TextLayer
	s.source = name
	s.lastErr = ""
	s.setState(idleState(), "")
	s.mu.Unlock()

	log.WithFields(logrus.Fields{"pages": len(doc.Pages), "text_layer": doc.TextLayer}).Info("Document loaded")
	return len(doc.Pages), nil
}

// runJob is one run between its start and its commit
type runJob struct {
	ctx    context.Context
	cancel context.CancelFunc
	pages  []PageRaster
	store  *Store
}

// Run detects PII on every page and replaces the mark set on full success.
// Any fatal page error discards everything found during the run and leaves the
// previous marks untouched. With no pages loaded Run does nothing.
func (s *Session) Run(ctx context.Context) (*RunResult, error) {
	job, err := s.beginRun(ctx)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return &RunResult{ByCategory: map[Category]int{}}, nil
	}
	return s.execute(job)
}

// Start launches a run in the background and returns once the session is in
// the detecting state. The run is not tied to ctx's cancellation: it stops on
// Abort, and its progress and outcome are reported by Status.
func (s *Session) Start(ctx context.Context) error {
	job, err := s.beginRun(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNoDocument
	}
	go func() {
		_, _ = s.execute(job)
	}()
	return nil
}

// beginRun claims the session for a run. It returns a nil job when no pages are loaded.
func (s *Session) beginRun(ctx context.Context) (*runJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pages) == 0 {
		return nil, nil
	}
	if s.state.Busy() {
		return nil, ErrBusy
	}
	job := &runJob{pages: make([]PageRaster, len(s.pages)), store: s.store}
	copy(job.pages, s.pages)
	job.ctx, job.cancel = context.WithCancel(ctx)

	s.cancelRun = job.cancel
	s.lastErr = ""
	s.lastRun = nil
	s.setState(detectingState(0, len(job.pages)), "Starting analysis...")
	return job, nil
}

func (s *Session) execute(job *runJob) (result *RunResult, err error) {
	defer job.cancel()
	defer s.recoverPanic(KindUnknown, "run", &err)

	pages := job.pages
	settings := s.settings.Snapshot()
	total := len(pages)
	s.logger.WithFields(logrus.Fields{
		"pages":       total,
		"categories":  settings.Categories,
		"keywords":    len(settings.CustomKeywords),
		"concurrency": s.opts.Concurrency,
	}).Info("Starting anonymization run")

	// One slot per page keeps the merged result in page order whatever the completion order.
	slots := make([][]Mark, total)
	malformed := make([]bool, total)

	g, gctx := errgroup.WithContext(job.ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range pages {
		if gctx.Err() != nil {
			break
		}
		i, page := i, pages[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			s.mu.Lock()
			s.setState(detectingState(page.PageNumber, total),
				fmt.Sprintf("Analyzing page %d of %d...", page.PageNumber, total))
			s.mu.Unlock()

			detections, err := s.detect(gctx, page, settings)
			if err != nil {
				if !KindOf(err).IsFatalToRun() {
					s.logger.WithError(err).WithField("page", page.PageNumber).
						Warn("Malformed detector response, treating page as empty")
					malformed[i] = true
					return nil
				}
				return pageError(err, page.PageNumber)
			}
			slots[i] = job.store.NewMarks(page.PageNumber, detections)
			s.logger.WithFields(logrus.Fields{"page": page.PageNumber, "detections": len(detections)}).
				Debug("Page analyzed")
			return nil
		})
	}
	err = g.Wait()
	if err == nil && job.ctx.Err() != nil {
		err = job.ctx.Err()
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = ErrRunAborted
		}
		s.logger.WithError(err).Error("Anonymization run failed, discarding partial results")
		s.mu.Lock()
		s.cancelRun = nil
		s.fail(err)
		s.mu.Unlock()
		return nil, err
	}

	var marks []Mark
	result = &RunResult{Pages: total}
	for i, slot := range slots {
		marks = append(marks, slot...)
		if malformed[i] {
			result.MalformedPages = append(result.MalformedPages, pages[i].PageNumber)
		}
	}
	result.Marks = len(marks)
	result.ByCategory = CategoryCounts(marks)

	s.mu.Lock()
	job.store.Replace(marks)
	s.cancelRun = nil
	s.lastErr = ""
	s.lastRun = result
	s.setState(idleState(), "Done!")
	s.scheduleStatusClear()
	s.mu.Unlock()

	s.logger.WithField("marks", len(marks)).Info("Anonymization run complete")
	return result, nil
}

// detect turns a detector panic into a run-fatal error
func (s *Session) detect(ctx context.Context, page PageRaster, settings Settings) (detections []Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(KindUnknown, "detect", fmt.Errorf("detector panic: %v", r))
		}
	}()
	return s.detector.Detect(ctx, page, settings)
}

// Abort stops an in-flight run. It reports whether a run was cancelled.
func (s *Session) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelRun == nil {
		return false
	}
	s.cancelRun()
	return true
}

// ExportFunc delivers a serialized document, for example by writing it to disk
type ExportFunc func(res *ExportResult) error

// Export stamps every mark into its page and serializes the whole document.
// Nothing is returned unless the full document was written.
func (s *Session) Export(ctx context.Context) (*ExportResult, error) {
	return s.ExportWith(ctx, nil)
}

// ExportWith is Export followed by deliver. The export only counts as done once
// deliver succeeds; a delivery error is recorded like any other export failure
// and leaves the marks untouched.
func (s *Session) ExportWith(ctx context.Context, deliver ExportFunc) (res *ExportResult, err error) {
	s.mu.Lock()
	if len(s.pages) == 0 {
		s.mu.Unlock()
		return nil, ErrNoDocument
	}
	if s.state.Busy() {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	pages := s.pages
	marks := s.store.All()
	source := s.source
	s.setState(State{Phase: PhaseExporting}, "Generating PDF...")
	s.mu.Unlock()
	defer s.recoverPanic(KindExport, "export", &err)

	if len(marks) == 0 {
		s.logger.Warn("Exporting without any redaction marks")
	}

	res, err = s.export(ctx, pages, marks, source)
	if err == nil && deliver != nil {
		if derr := deliver(res); derr != nil {
			err = derr
			if KindOf(derr) == KindUnknown {
				err = NewError(KindExport, "write", derr)
			}
		}
	}
	if err != nil {
		s.logger.WithError(err).Error("Export failed")
		s.mu.Lock()
		s.fail(err)
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.lastErr = ""
	s.setState(idleState(), "Downloaded!")
	s.scheduleStatusClear()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"file": res.Filename, "pages": res.Pages, "stamps": res.Stamps}).
		Info("Export complete")
	return res, nil
}

func (s *Session) export(ctx context.Context, pages []PageRaster, marks []Mark, source string) (*ExportResult, error) {
	layouts, err := Reconstruct(pages, marks)
	if err != nil {
		return nil, NewError(KindExport, "export", err)
	}

	var buf bytes.Buffer
	if err := s.writer.Write(ctx, &buf, layouts); err != nil {
		if KindOf(err) == KindUnknown {
			return nil, NewError(KindExport, "export", err)
		}
		return nil, err
	}

	stamps := 0
	for _, l := range layouts {
		stamps += len(l.Stamps)
	}
	return &ExportResult{
		Filename: OutputFilename(source, s.opts.OutputSuffix),
		Pages:    len(layouts),
		Stamps:   stamps,
		Data:     buf.Bytes(),
	}, nil
}

// RemoveMark deletes one mark; unknown ids are a no-op
func (s *Session) RemoveMark(id string) bool {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	return store.Remove(id)
}

// ClearMarks deletes every mark
func (s *Session) ClearMarks() int {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	return store.RemoveAll()
}

// Marks lists marks, optionally restricted to one page (page > 0) and a category filter
func (s *Session) Marks(page int, categories map[Category]bool) []Mark {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()

	var out []Mark
	for _, m := range store.Visible(categories) {
		if page > 0 && m.PageNumber != page {
			continue
		}
		out = append(out, m)
	}
	return out
}

// MarkViews lists marks like Marks, resolved against their pages for display
func (s *Session) MarkViews(page int, categories map[Category]bool, reveal bool) []MarkView {
	marks := s.Marks(page, categories)
	pages := s.Pages()

	byNumber := make(map[int]PageRaster, len(pages))
	for _, p := range pages {
		byNumber[p.PageNumber] = p
	}

	views := make([]MarkView, 0, len(marks))
	for _, m := range marks {
		views = append(views, m.View(byNumber[m.PageNumber], reveal))
	}
	return views
}

// Pages returns the loaded page rasters in order
func (s *Session) Pages() []PageRaster {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PageRaster, len(s.pages))
	copy(out, s.pages)
	return out
}

// Page returns one page raster by number
func (s *Session) Page(number int) (PageRaster, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pages {
		if p.PageNumber == number {
			return p, true
		}
	}
	return PageRaster{}, false
}

// Status returns the current state and user-facing messages
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:     s.state,
		Text:      s.statusText,
		Error:     s.lastErr,
		Source:    s.source,
		Pages:     len(s.pages),
		Marks:     s.store.Len(),
		TextLayer: s.textLayer,
		LastRun:   s.lastRun,
	}
	if s.lastErr != "" {
		st.ErrorKind = s.lastKind
	}
	return st
}

// setState must be called with s.mu held
func (s *Session) setState(st State, text string) {
	if s.clearTimer != nil {
		s.clearTimer.Stop()
		s.clearTimer = nil
	}
	s.state = st
	s.statusText = text
}

// recoverPanic must be deferred by an operation that set a busy state. A
// panicking collaborator then fails the operation instead of leaving the
// session busy for good.
func (s *Session) recoverPanic(kind ErrorKind, op string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	err := NewError(kind, op, fmt.Errorf("panic: %v", r))
	s.logger.WithError(err).Error("Recovered from panic")

	s.mu.Lock()
	s.cancelRun = nil
	s.fail(err)
	s.mu.Unlock()
	*errp = err
}

// fail must be called with s.mu held
func (s *Session) fail(err error) {
	s.lastErr = err.Error()
	s.lastKind = KindOf(err)
	s.setState(failedState(err), "")
}

// scheduleStatusClear must be called with s.mu held
func (s *Session) scheduleStatusClear() {
	delay := s.opts.StatusClearDelay
	if delay <= 0 {
		s.statusText = ""
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.clearTimer == t {
			s.statusText = ""
			s.clearTimer = nil
		}
	})
	s.clearTimer = t
}

func pageError(err error, page int) error {
	var re *Error
	if errors.As(err, &re) {
		cp := *re
		if cp.Page == 0 {
			cp.Page = page
		}
		return &cp
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: KindUnknown, Op: "detect", Page: page, Err: err}
}

// OutputFilename derives the export name from the source file name
func OutputFilename(source, suffix string) string {
	if suffix == "" {
		suffix = DefaultOutputSuffix
	}
	base := filepath.Base(source)
	if source == "" || base == "." || base == string(filepath.Separator) {
		return defaultOutputStem + suffix + ".pdf"
	}
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	return base + suffix + ".pdf"
}
