package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/agroscan/internal/application"
	"github.com/bryanwahyu/agroscan/internal/domain/ai"
	"github.com/bryanwahyu/agroscan/internal/domain/audit"
	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
	domain "github.com/bryanwahyu/agroscan/internal/domain/session"
)

const (
	defaultNotificationCap = 20
	thumbnailSide          = 160
	auditTimeout           = 5 * time.Second
)

// Deps are the collaborators shared by every controller.
type Deps struct {
	Analyzer  ai.Analyzer
	Store     diagnosis.ImageStore
	Inspector diagnosis.Inspector // optional
	Audit     audit.Repository    // optional
	Clock     application.Clock
	IDs       application.IDGenerator
	Logger    *zap.Logger

	NotificationCap int
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = application.SystemClock{}
	}
	if d.IDs == nil {
		d.IDs = application.UUIDv7{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.NotificationCap <= 0 {
		d.NotificationCap = defaultNotificationCap
	}
	return d
}

// Controller owns the state of one session and sequences
// upload → analyze → display → history-append.
// Safe for concurrent use; every exported method locks.
type Controller struct {
	id   string
	deps Deps
	log  *zap.Logger

	// ctx lives as long as the session; the analysis goroutine runs under it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	refs       *refCounter
	pending    []domain.StagedImage
	analyzing  bool
	stage      domain.Stage
	view       domain.View
	active     []diagnosis.Diagnosis
	activeRef  diagnosis.ImageRef
	history    []*diagnosis.Record // newest first
	notes      []domain.Notification
	createdAt  time.Time
	lastActive time.Time
	closed     bool
}

// NewController builds an idle controller.
func NewController(id string, deps Deps) *Controller {
	deps = deps.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	now := deps.Clock.Now()
	return &Controller{
		id:         id,
		deps:       deps,
		log:        deps.Logger.With(zap.String("session", id)),
		ctx:        ctx,
		cancel:     cancel,
		refs:       newRefCounter(),
		stage:      domain.StageIdle,
		view:       domain.ViewUpload,
		createdAt:  now,
		lastActive: now,
	}
}

func (c *Controller) ID() string { return c.id }

// SelectImages stages every image-typed file, in order, after the ones
// already pending. Each accepted file is copied into the image store so it can
// be previewed. Non-image files are dropped silently.
func (c *Controller) SelectImages(ctx context.Context, files []diagnosis.Image) (int, error) {
	accepted := SelectImages(nil, files)
	if len(accepted) == 0 {
		c.touch()
		return 0, nil
	}

	staged := make([]domain.StagedImage, 0, len(accepted))
	for _, f := range accepted {
		key := fmt.Sprintf("%s/staged/%s%s", c.id, c.deps.IDs.NewID(), filepath.Ext(f.Name))
		ref, err := c.deps.Store.Put(ctx, key, f.Data, f.ContentType)
		if err != nil {
			c.releaseStaged(ctx, staged)
			return 0, fmt.Errorf("stage %s: %w", f.Name, err)
		}
		img := domain.StagedImage{Ref: ref, Name: f.Name, ContentType: f.ContentType, Size: f.Size()}
		if c.deps.Inspector != nil {
			if w, h, err := c.deps.Inspector.Dimensions(f.Data); err == nil {
				img.Width, img.Height = w, h
			}
		}
		staged = append(staged, img)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.releaseStaged(ctx, staged)
		return 0, domain.ErrSessionClosed
	}
	c.pending = SelectImages(c.pending, staged)
	for _, img := range staged {
		c.refs.retain(img.Ref)
	}
	c.syncStageLocked()
	c.lastActive = c.deps.Clock.Now()
	total := len(c.pending)
	c.mu.Unlock()

	c.log.Debug("images staged", zap.Int("accepted", len(staged)), zap.Int("dropped", len(files)-len(staged)), zap.Int("pending", total))
	return len(staged), nil
}

// RemoveImage unstages the image at index. Out of range is a no-op.
func (c *Controller) RemoveImage(ctx context.Context, index int) bool {
	c.mu.Lock()
	if c.closed || index < 0 || index >= len(c.pending) {
		c.lastActive = c.deps.Clock.Now()
		c.mu.Unlock()
		return false
	}
	ref := c.pending[index].Ref
	c.pending = RemoveImage(c.pending, index)
	var drop []diagnosis.ImageRef
	if c.refs.release(ref) {
		drop = append(drop, ref)
	}
	c.syncStageLocked()
	c.lastActive = c.deps.Clock.Now()
	c.mu.Unlock()

	c.releaseBlobs(ctx, drop)
	return true
}

// Preview returns a staged image and its bytes.
func (c *Controller) Preview(ctx context.Context, index int) (domain.StagedImage, diagnosis.Blob, error) {
	c.mu.Lock()
	if index < 0 || index >= len(c.pending) {
		c.mu.Unlock()
		return domain.StagedImage{}, diagnosis.Blob{}, fmt.Errorf("%w: index %d", domain.ErrImageNotFound, index)
	}
	img := c.pending[index]
	c.mu.Unlock()

	blob, err := c.deps.Store.Get(ctx, img.Ref)
	if err != nil {
		return domain.StagedImage{}, diagnosis.Blob{}, err
	}
	return img, blob, nil
}

// Blob returns the bytes behind a reference this session still holds.
func (c *Controller) Blob(ctx context.Context, ref diagnosis.ImageRef) (diagnosis.Blob, error) {
	c.mu.Lock()
	held := c.refs.held(ref)
	c.mu.Unlock()
	if !held {
		return diagnosis.Blob{}, fmt.Errorf("%w: %s", domain.ErrImageNotFound, ref)
	}
	return c.deps.Store.Get(ctx, ref)
}

// Submit starts an analysis of the pending images. The in-flight check and
// the flag flip happen under one lock, so two racing submits cannot both win.
// The analysis itself runs in the background and always runs to completion
// unless the session is closed.
func (c *Controller) Submit() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	c.lastActive = c.deps.Clock.Now()
	if len(c.pending) == 0 {
		c.notifyLocked(domain.VariantDestructive, "No images selected", "Please select at least one image to analyze.")
		c.mu.Unlock()
		return domain.ErrNoInputSelected
	}
	if c.analyzing {
		c.mu.Unlock()
		return domain.ErrAnalysisInFlight
	}

	batch := append([]domain.StagedImage(nil), c.pending...)
	rep := batch[0]
	// hold the representative so a concurrent RemoveImage cannot free it mid-analysis
	c.refs.retain(rep.Ref)
	c.analyzing = true
	c.syncStageLocked()
	c.view = domain.ViewResults
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.Info("analysis submitted", zap.String("file", rep.Name), zap.Int("images", len(batch)))
	go c.run(batch)
	return nil
}

func (c *Controller) run(batch []domain.StagedImage) {
	defer c.wg.Done()
	rep := batch[0]

	diags, err := c.analyze(rep)
	if err != nil {
		c.fail(rep, err)
		return
	}

	thumb := c.thumbnail(rep)
	rec, err := diagnosis.NewRecord(diagnosis.RecordID(c.deps.IDs.NewID()), rep.Ref, thumb, diags, c.deps.Clock.Now(), rep.Name)
	if err != nil {
		c.releaseBlobs(c.ctx, []diagnosis.ImageRef{thumb})
		c.fail(rep, err)
		return
	}
	c.complete(batch, rec)
}

func (c *Controller) analyze(rep domain.StagedImage) ([]diagnosis.Diagnosis, error) {
	blob, err := c.deps.Store.Get(c.ctx, rep.Ref)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rep.Name, err)
	}
	return c.deps.Analyzer.Analyze(c.ctx, diagnosis.Image{Name: rep.Name, ContentType: rep.ContentType, Data: blob.Data})
}

// thumbnail is best effort; an undecodable image falls back to the full image.
func (c *Controller) thumbnail(rep domain.StagedImage) diagnosis.ImageRef {
	if c.deps.Inspector == nil {
		return ""
	}
	blob, err := c.deps.Store.Get(c.ctx, rep.Ref)
	if err != nil {
		return ""
	}
	data, ct, err := c.deps.Inspector.Thumbnail(blob.Data, thumbnailSide)
	if err != nil {
		c.log.Debug("thumbnail skipped", zap.String("file", rep.Name), zap.Error(err))
		return ""
	}
	ref, err := c.deps.Store.Put(c.ctx, fmt.Sprintf("%s/thumbs/%s.jpg", c.id, c.deps.IDs.NewID()), data, ct)
	if err != nil {
		c.log.Warn("thumbnail upload failed", zap.Error(err))
		return ""
	}
	return ref
}

func (c *Controller) complete(batch []domain.StagedImage, rec *diagnosis.Record) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.releaseBlobs(context.Background(), []diagnosis.ImageRef{rec.ThumbnailRef})
		return
	}

	var drop []diagnosis.ImageRef
	release := func(ref diagnosis.ImageRef) {
		if c.refs.release(ref) {
			drop = append(drop, ref)
		}
	}

	c.history = append([]*diagnosis.Record{rec}, c.history...)
	c.refs.retain(rec.ImageRef)
	c.refs.retain(rec.ThumbnailRef)

	c.setActiveLocked(rec.Diagnoses, rec.ImageRef, release)

	// submitted images leave the pending list; ones staged meanwhile stay
	for _, img := range batch {
		for i, p := range c.pending {
			if p.Ref == img.Ref {
				c.pending = RemoveImage(c.pending, i)
				release(p.Ref)
				break
			}
		}
	}
	release(batch[0].Ref) // analysis hold

	c.analyzing = false
	c.syncStageLocked()
	c.view = domain.ViewResults
	c.notifyLocked(domain.VariantDefault, "Analysis Complete", fmt.Sprintf("Analyzed %d image(s) successfully.", len(batch)))
	c.mu.Unlock()

	c.releaseBlobs(context.Background(), drop)
	c.log.Info("analysis recorded", zap.String("record", string(rec.ID)), zap.String("label", rec.Primary().Label), zap.Int("confidence", rec.Primary().Confidence))
	c.recordAudit(rec.FileName, rec.Diagnoses, nil)
}

func (c *Controller) fail(rep domain.StagedImage, cause error) {
	c.mu.Lock()
	var drop []diagnosis.ImageRef
	if c.refs.release(rep.Ref) {
		drop = append(drop, rep.Ref)
	}
	closed := c.closed
	if !closed {
		c.analyzing = false
		c.syncStageLocked()
		c.notifyLocked(domain.VariantDestructive, "Analysis failed", failureText(cause))
	}
	c.mu.Unlock()

	c.releaseBlobs(context.Background(), drop)
	if closed {
		return
	}
	c.log.Warn("analysis failed", zap.String("file", rep.Name), zap.Error(cause))
	c.recordAudit(rep.Name, nil, cause)
}

// SelectHistory shows a stored record again without re-running analysis.
func (c *Controller) SelectHistory(ctx context.Context, id diagnosis.RecordID) error {
	c.mu.Lock()
	rec := c.findLocked(id)
	if rec == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
	}
	var drop []diagnosis.ImageRef
	c.setActiveLocked(rec.Diagnoses, rec.ImageRef, func(ref diagnosis.ImageRef) {
		if c.refs.release(ref) {
			drop = append(drop, ref)
		}
	})
	c.view = domain.ViewResults
	c.syncStageLocked()
	c.lastActive = c.deps.Clock.Now()
	c.mu.Unlock()

	c.releaseBlobs(ctx, drop)
	return nil
}

// DeleteHistory removes a record. An unknown id is a no-op and reports false.
func (c *Controller) DeleteHistory(ctx context.Context, id diagnosis.RecordID) bool {
	c.mu.Lock()
	c.lastActive = c.deps.Clock.Now()
	idx := -1
	for i, r := range c.history {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	rec := c.history[idx]
	c.history = append(append([]*diagnosis.Record(nil), c.history[:idx]...), c.history[idx+1:]...)
	var drop []diagnosis.ImageRef
	for _, ref := range []diagnosis.ImageRef{rec.ImageRef, rec.ThumbnailRef} {
		if c.refs.release(ref) {
			drop = append(drop, ref)
		}
	}
	c.notifyLocked(domain.VariantDefault, "Item deleted", "Analysis history item has been removed.")
	c.mu.Unlock()

	c.releaseBlobs(ctx, drop)
	return true
}

// SetView switches the visible view. It never touches the pipeline.
func (c *Controller) SetView(v domain.View) error {
	parsed, err := domain.ParseView(string(v))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.view = parsed
	c.lastActive = c.deps.Clock.Now()
	c.mu.Unlock()
	return nil
}

// Results renders the active diagnoses.
func (c *Controller) Results() ResultView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PresentResults(c.active, c.activeRef, c.analyzing)
}

// History renders the ledger.
func (c *Controller) History(actions LedgerActions) HistoryView {
	c.mu.Lock()
	records := append([]*diagnosis.Record(nil), c.history...)
	c.mu.Unlock()
	return PresentHistory(records, actions)
}

// Records returns the ledger, newest first.
func (c *Controller) Records() []*diagnosis.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*diagnosis.Record(nil), c.history...)
}

// Snapshot copies the session state.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Snapshot{
		ID:             c.id,
		Stage:          c.stage,
		View:           c.view,
		Analyzing:      c.analyzing,
		Pending:        append([]domain.StagedImage{}, c.pending...),
		ActiveImageRef: c.activeRef,
		ActiveCount:    len(c.active),
		HistoryCount:   len(c.history),
		CreatedAt:      c.createdAt,
		LastActiveAt:   c.lastActive,
	}
}

// Stats computes the dashboard counters from the ledger.
func (c *Controller) Stats() domain.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := domain.Stats{TotalAnalyses: len(c.history), ImagesProcessed: len(c.history)}
	if len(c.history) > 0 {
		sum := 0
		for _, r := range c.history {
			sum += r.Primary().Confidence
		}
		st.AverageConfidence = int(math.Round(float64(sum) / float64(len(c.history))))
	}
	return st
}

// Notifications drains pending notifications, oldest first.
func (c *Controller) Notifications() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notes
	c.notes = nil
	if out == nil {
		out = []domain.Notification{}
	}
	return out
}

// LastActive reports when the session was last used.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Wait blocks until no analysis is in flight.
func (c *Controller) Wait() { c.wg.Wait() }

// Close ends the session: the in-flight analysis (if any) is cancelled and
// every displayable reference is released.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	drop := c.refs.drain()
	c.pending = nil
	c.history = nil
	c.active = nil
	c.activeRef = ""
	c.analyzing = false
	c.syncStageLocked()
	c.mu.Unlock()

	c.releaseBlobs(ctx, drop)
	c.log.Debug("session closed", zap.Int("released", len(drop)))
}

func (c *Controller) touch() {
	c.mu.Lock()
	c.lastActive = c.deps.Clock.Now()
	c.mu.Unlock()
}

// syncStageLocked derives the stage from the pipeline state. A running
// analysis wins, then images waiting to be submitted, then a displayed result.
func (c *Controller) syncStageLocked() {
	switch {
	case c.analyzing:
		c.stage = domain.StageAnalyzing
	case len(c.pending) > 0:
		c.stage = domain.StageStaged
	case len(c.active) > 0:
		c.stage = domain.StageDisplaying
	default:
		c.stage = domain.StageIdle
	}
}

// failureText is the notification body for a failed analysis.
func failureText(cause error) string {
	if errors.Is(cause, ai.ErrQuotaExceeded) {
		return "The analysis service quota is exhausted. Please try again later."
	}
	return cause.Error()
}

func (c *Controller) findLocked(id diagnosis.RecordID) *diagnosis.Record {
	for _, r := range c.history {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// setActiveLocked swaps the active slot, moving the active hold to the new image.
func (c *Controller) setActiveLocked(diags []diagnosis.Diagnosis, ref diagnosis.ImageRef, release func(diagnosis.ImageRef)) {
	old := c.activeRef
	c.refs.retain(ref)
	c.active = diagnosis.CloneAll(diags)
	c.activeRef = ref
	if old != "" {
		release(old)
	}
}

func (c *Controller) notifyLocked(variant domain.Variant, title, desc string) {
	c.notes = append(c.notes, domain.Notification{
		Title:       title,
		Description: desc,
		Variant:     variant,
		CreatedAt:   c.deps.Clock.Now(),
	})
	if over := len(c.notes) - c.deps.NotificationCap; over > 0 {
		c.notes = append([]domain.Notification(nil), c.notes[over:]...)
	}
}

func (c *Controller) releaseStaged(ctx context.Context, staged []domain.StagedImage) {
	refs := make([]diagnosis.ImageRef, 0, len(staged))
	for _, s := range staged {
		refs = append(refs, s.Ref)
	}
	c.releaseBlobs(ctx, refs)
}

func (c *Controller) releaseBlobs(ctx context.Context, refs []diagnosis.ImageRef) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := c.deps.Store.Release(ctx, ref); err != nil {
			c.log.Warn("release image failed", zap.String("ref", string(ref)), zap.Error(err))
		}
	}
}

func (c *Controller) recordAudit(fileName string, diags []diagnosis.Diagnosis, cause error) {
	if c.deps.Audit == nil {
		return
	}
	e := &audit.Entry{
		ID:        audit.EntryID(c.deps.IDs.NewID()),
		SessionID: c.id,
		Analyzer:  c.deps.Analyzer.Name(),
		FileName:  fileName,
		Status:    audit.StatusSuccess,
		CreatedAt: c.deps.Clock.Now(),
	}
	if cause != nil {
		e.Status = audit.StatusFailed
		e.Error = cause.Error()
	}
	if len(diags) > 0 {
		top := diags[0]
		e.PrimaryLabel = top.Label
		e.Confidence = top.Confidence
		e.Severity = string(top.Severity)
		if b, err := json.Marshal(diags); err == nil {
			e.ResultJSON = string(b)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := c.deps.Audit.Save(ctx, e); err != nil {
		c.log.Warn("audit save failed", zap.Error(err))
	}
}
