package worker

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/fetch"
	"github.com/slidecast/slidecast/internal/logger"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/queue"
	"github.com/slidecast/slidecast/internal/storage"
	"github.com/slidecast/slidecast/internal/store"
)

// Collaborator contracts. The orchestrator owns all state transitions and
// decides materiality of failures; collaborators report typed outcomes.

type Fetcher interface {
	FetchAll(ctx context.Context, reqs []fetch.Request) []fetch.Result
}

type Resolver interface {
	Resolve(ctx context.Context, narrationPath string) float64
}

type Composer interface {
	Compose(index int, slide models.SlideSpec, imagePath, narrationPath string, duration float64) models.ResolvedClip
}

type Mixer interface {
	BuildMaster(ctx context.Context, clips []models.ResolvedClip, musicPath, workDir string) (string, error)
}

type Renderer interface {
	Render(ctx context.Context, spec models.RenderSpec) error
}

type Notifier interface {
	Notify(ctx context.Context, url string, payload models.WebhookPayload) error
}

// Options carries the orchestrator's policy knobs.
type Options struct {
	WorkDir            string
	Width              int
	Height             int
	FPS                int
	TransitionSeconds  float64
	CleanupGrace       time.Duration // workdir removal delay after success
	CleanupFailGrace   time.Duration // workdir removal delay after failure
	InlineWebhookVideo bool          // embed base64 video in the success webhook
}

// Orchestrator owns the job lifecycle: registered -> downloading ->
// processing -> uploading -> completed/failed. Stages within one job are
// strictly sequential; different jobs run independently.
type Orchestrator struct {
	store    store.JobStore
	fetcher  Fetcher
	resolver Resolver
	composer Composer
	mixer    Mixer
	renderer Renderer
	blob     storage.BlobStore
	notifier Notifier
	queue    *queue.Queue // nil = in-process goroutine dispatch
	opts     Options
	log      *logger.Logger
}

func New(
	jobStore store.JobStore,
	fetcher Fetcher,
	resolver Resolver,
	composer Composer,
	mixer Mixer,
	renderer Renderer,
	blob storage.BlobStore,
	notifier Notifier,
	q *queue.Queue,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		store:    jobStore,
		fetcher:  fetcher,
		resolver: resolver,
		composer: composer,
		mixer:    mixer,
		renderer: renderer,
		blob:     blob,
		notifier: notifier,
		queue:    q,
		opts:     opts,
		log:      logger.New("worker"),
	}
}

// Register creates the job record and dispatches the pipeline. It returns
// immediately; all further work is asynchronous.
func (o *Orchestrator) Register(ctx context.Context, req models.CreateJobRequest) (*models.Job, error) {
	job := models.NewJob(req)
	if err := o.store.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if o.queue != nil {
		if err := o.queue.Enqueue(ctx, job.ID); err != nil {
			o.store.Evict(job.ID)
			return nil, fmt.Errorf("failed to enqueue job: %w", err)
		}
	} else {
		go o.RunJob(context.Background(), job.ID)
	}

	o.log.Infof("registered job %s (request_id=%s, slides=%d)", job.ID, job.RequestID, len(job.Slides))
	return job, nil
}

// Start runs the redis worker loops. Only used in queue mode, where
// concurrency bounds how many jobs render at once.
func (o *Orchestrator) Start(ctx context.Context, concurrency int) {
	if o.queue == nil {
		return
	}
	o.log.Infof("worker started with concurrency %d", concurrency)
	for i := 0; i < concurrency; i++ {
		go o.drainQueue(ctx)
	}
	<-ctx.Done()
	o.log.Infof("worker shutting down")
}

func (o *Orchestrator) drainQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			jobID, err := o.queue.Dequeue(ctx, 5*time.Second)
			if err != nil {
				if ctx.Err() == nil {
					o.log.Errorf("dequeue failed: %v", err)
				}
				continue
			}
			if jobID == nil {
				continue
			}
			o.RunJob(ctx, *jobID)
		}
	}
}

// RunJob executes the whole pipeline for one job. A background task's
// failure must never vanish unobserved, so panics are captured into the job
// record like any other fatal error.
func (o *Orchestrator) RunJob(ctx context.Context, jobID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorf("job %s panicked: %v", jobID, r)
			o.fail(ctx, jobID, "", fmt.Sprintf("internal error: %v", r))
		}
	}()

	job, err := o.store.Get(jobID)
	if err != nil {
		o.log.Errorf("job %s disappeared before processing: %v", jobID, err)
		return
	}

	workDir := filepath.Join(o.opts.WorkDir, fmt.Sprintf("%s_%s", job.RequestID, shortID(job.ID)))
	if err := os.MkdirAll(workDir, 0755); err != nil {
		o.fail(ctx, jobID, "", fmt.Sprintf("could not create working storage: %v", err))
		return
	}

	// ── Downloading ────────────────────────────────────────────────────
	o.setState(jobID, models.JobStateDownloading)

	reqs, slots := buildFetchPlan(job, workDir)
	results := o.fetcher.FetchAll(ctx, reqs)

	// ── Processing ─────────────────────────────────────────────────────
	o.setState(jobID, models.JobStateProcessing)

	clips := o.buildClips(ctx, job, slots, results)
	if len(clips) == 0 {
		o.fail(ctx, jobID, workDir, fmt.Sprintf(
			"no usable slides: all %d slide images failed to download", len(job.Slides)))
		return
	}
	if dropped := len(job.Slides) - len(clips); dropped > 0 {
		o.log.Warnf("job %s: dropped %d slide(s) with missing images", jobID, dropped)
	}

	musicPath := slots.musicPath(results)
	masterPath, err := o.mixer.BuildMaster(ctx, clips, musicPath, workDir)
	if err != nil {
		// Mixing is a best-effort enhancement; render silent instead.
		o.log.Warnf("job %s: master track build failed, rendering silent: %v", jobID, err)
		masterPath = ""
	}

	spec := models.RenderSpec{
		OutputPath:         filepath.Join(workDir, "final.mp4"),
		Width:              o.opts.Width,
		Height:             o.opts.Height,
		FPS:                o.opts.FPS,
		Clips:              clips,
		AudioPath:          masterPath,
		TransitionDuration: o.opts.TransitionSeconds,
	}

	o.log.Infof("job %s: rendering %d clips, total %.2fs", jobID, len(clips), spec.TotalDuration())
	if err := o.renderer.Render(ctx, spec); err != nil {
		o.fail(ctx, jobID, workDir, fmt.Sprintf("render failed: %v", err))
		return
	}
	if masterPath != "" {
		defer os.Remove(masterPath) // master track is ephemeral
	}

	// ── Uploading ──────────────────────────────────────────────────────
	o.setState(jobID, models.JobStateUploading)

	videoData, err := os.ReadFile(spec.OutputPath)
	if err != nil {
		o.fail(ctx, jobID, workDir, fmt.Sprintf("could not read rendered video: %v", err))
		return
	}

	resultURL, err := o.blob.Put(ctx, path.Join(job.RequestID, shortID(job.ID)+".mp4"), videoData, "video/mp4")
	if err != nil {
		o.fail(ctx, jobID, workDir, fmt.Sprintf("upload failed: %v", err))
		return
	}

	final, err := o.store.Update(jobID, func(j *models.Job) {
		j.State = models.JobStateCompleted
		j.ResultURL = resultURL
	})
	if err != nil {
		o.log.Errorf("job %s evicted before completion could be recorded", jobID)
		o.scheduleCleanup(workDir, o.opts.CleanupFailGrace)
		return
	}

	payload := models.WebhookPayload{
		JobID:     final.ID,
		RequestID: final.RequestID,
		Success:   true,
		VideoURL:  resultURL,
	}
	if o.opts.InlineWebhookVideo {
		payload.VideoBase64 = base64.StdEncoding.EncodeToString(videoData)
	}
	// Delivery failure does not revert a completed job; it is logged only.
	_ = o.notifier.Notify(ctx, final.WebhookURL, payload)

	o.log.Infof("job %s completed: %s", jobID, resultURL)
	o.scheduleCleanup(workDir, o.opts.CleanupGrace)
}

// fetchPlan tracks which fetch result belongs to which slide asset.
type fetchPlan struct {
	imageSlot     map[int]int // slide index -> result index
	narrationSlot map[int]int
	musicSlot     int // -1 = no music requested
}

func (p fetchPlan) musicPath(results []fetch.Result) string {
	if p.musicSlot < 0 {
		return ""
	}
	if r := results[p.musicSlot]; r.OK() {
		return r.Dest
	}
	return "" // missing music bed is a degradation, not a failure
}

func buildFetchPlan(job *models.Job, workDir string) ([]fetch.Request, fetchPlan) {
	var reqs []fetch.Request
	plan := fetchPlan{
		imageSlot:     make(map[int]int),
		narrationSlot: make(map[int]int),
		musicSlot:     -1,
	}

	for i, slide := range job.Slides {
		plan.imageSlot[i] = len(reqs)
		reqs = append(reqs, fetch.Request{
			Ref:  slide.ImageRef,
			Dest: filepath.Join(workDir, fmt.Sprintf("image_%03d%s", i, extOf(slide.ImageRef, ".png"))),
		})
		if slide.NarrationRef != "" {
			plan.narrationSlot[i] = len(reqs)
			reqs = append(reqs, fetch.Request{
				Ref:  slide.NarrationRef,
				Dest: filepath.Join(workDir, fmt.Sprintf("narration_%03d%s", i, extOf(slide.NarrationRef, ".mp3"))),
			})
		}
	}

	if job.MusicRef != "" {
		plan.musicSlot = len(reqs)
		reqs = append(reqs, fetch.Request{
			Ref:  job.MusicRef,
			Dest: filepath.Join(workDir, "music"+extOf(job.MusicRef, ".mp3")),
		})
	}

	return reqs, plan
}

// buildClips applies the materiality rules to the fetch results: a slide
// without its image is dropped (order of the rest preserved); a slide
// without narration degrades to the default duration and a silent span.
func (o *Orchestrator) buildClips(ctx context.Context, job *models.Job, plan fetchPlan, results []fetch.Result) []models.ResolvedClip {
	clips := make([]models.ResolvedClip, 0, len(job.Slides))
	for i, slide := range job.Slides {
		img := results[plan.imageSlot[i]]
		if !img.OK() {
			o.log.Warnf("job %s: slide %d dropped, image unavailable: %v", job.ID, i, img.Err)
			continue
		}

		narrationPath := ""
		if slot, ok := plan.narrationSlot[i]; ok {
			if r := results[slot]; r.OK() {
				narrationPath = r.Dest
			} else {
				o.log.Warnf("job %s: slide %d narration unavailable, using default duration: %v", job.ID, i, r.Err)
			}
		}

		duration := o.resolver.Resolve(ctx, narrationPath)
		clips = append(clips, o.composer.Compose(i, slide, img.Dest, narrationPath, duration))
	}
	return clips
}

// fail records the terminal failure, sends the best-effort failure webhook,
// and schedules cleanup with the shorter grace delay.
func (o *Orchestrator) fail(ctx context.Context, jobID uuid.UUID, workDir, message string) {
	job, err := o.store.Update(jobID, func(j *models.Job) {
		j.State = models.JobStateFailed
		j.Error = message
	})
	if err != nil {
		o.log.Errorf("job %s failed but was already evicted: %s", jobID, message)
		return
	}

	o.log.Errorf("job %s failed: %s", jobID, message)

	_ = o.notifier.Notify(ctx, job.WebhookURL, models.WebhookPayload{
		JobID:     job.ID,
		RequestID: job.RequestID,
		Success:   false,
		Error:     message,
	})

	if workDir != "" {
		o.scheduleCleanup(workDir, o.opts.CleanupFailGrace)
	}
}

func (o *Orchestrator) setState(jobID uuid.UUID, state models.JobState) {
	if _, err := o.store.Update(jobID, func(j *models.Job) { j.State = state }); err != nil {
		o.log.Warnf("job %s: could not record state %s: %v", jobID, state, err)
	}
}

// scheduleCleanup removes job-scoped working storage after a grace delay,
// without blocking the pipeline. The delay lets a caller's immediate
// follow-up read of local artifacts succeed.
func (o *Orchestrator) scheduleCleanup(workDir string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if err := os.RemoveAll(workDir); err != nil {
			o.log.Warnf("cleanup of %s failed: %v", workDir, err)
		}
	})
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

// extOf extracts a file extension from a URL or path, falling back when the
// reference has none. Query strings are stripped first.
func extOf(ref, fallback string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if ext := path.Ext(ref); ext != "" && len(ext) <= 5 {
		return ext
	}
	return fallback
}
