package mailer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"consultancy-cms/models"
)

// Job is one rendered message waiting for delivery.
type Job struct {
	Template string `json:"template"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
	Attempts int    `json:"attempts"`
}

type DispatcherConfig struct {
	Workers         int
	QueueSize       int
	MaxAttempts     int
	SendTimeout     time.Duration
	SpillTimeout    time.Duration
	AlertRecipients []string
	SiteURL         string
}

var errDispatcherClosed = errors.New("mail dispatcher is closed")

// Dispatcher renders notifications and delivers them from a bounded queue
// on background workers. Notify calls never block and never fail; delivery
// errors are logged and parked on the retry queue when one is configured.
type Dispatcher struct {
	transport Transport
	renderer  *Renderer
	retry     RetryQueue
	cfg       DispatcherConfig
	log       *slog.Logger

	jobs   chan Job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(transport Transport, retry RetryQueue, cfg DispatcherConfig, log *slog.Logger) (*Dispatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 20 * time.Second
	}
	if cfg.SpillTimeout <= 0 {
		cfg.SpillTimeout = 2 * time.Second
	}
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		transport: transport,
		renderer:  renderer,
		retry:     retry,
		cfg:       cfg,
		log:       log.With(slog.String("component", "mailer"), slog.String("transport", transport.Name())),
		jobs:      make(chan Job, cfg.QueueSize),
	}, nil
}

// Start launches the delivery workers. They exit when ctx is done or Close
// drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
}

// Close stops accepting jobs and waits for queued ones to be attempted.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-d.jobs:
			if !ok {
				return
			}
			d.attempt(ctx, job)
		}
	}
}

// attempt sends job once and parks it for retry on failure.
func (d *Dispatcher) attempt(ctx context.Context, job Job) bool {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SendTimeout)
	defer cancel()

	job.Attempts++
	err := d.transport.Send(sendCtx, job.To, job.Subject, job.HTML, job.Text)
	if err == nil {
		d.log.Debug("mail sent", slog.String("template", job.Template), slog.String("to", job.To), slog.Int("attempt", job.Attempts))
		return true
	}

	d.log.Warn("mail delivery failed",
		slog.String("template", job.Template),
		slog.String("to", job.To),
		slog.Int("attempt", job.Attempts),
		slog.Any("error", err),
	)
	d.park(context.WithoutCancel(ctx), job)
	return false
}

func (d *Dispatcher) park(ctx context.Context, job Job) {
	if d.retry == nil {
		return
	}
	if job.Attempts >= d.cfg.MaxAttempts {
		d.log.Error("mail dropped after max attempts",
			slog.String("template", job.Template),
			slog.String("to", job.To),
			slog.Int("attempts", job.Attempts),
		)
		return
	}
	if err := d.retry.Push(ctx, job); err != nil {
		d.log.Error("mail retry enqueue failed", slog.String("template", job.Template), slog.String("to", job.To), slog.Any("error", err))
	}
}

// RetryPending makes one pass over the retry queue and returns how many jobs
// were delivered.
func (d *Dispatcher) RetryPending(ctx context.Context) (int, error) {
	if d.retry == nil {
		return 0, nil
	}
	// Bound the pass so jobs parked again during it wait for the next one.
	pending, err := d.retry.Len(ctx)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for i := int64(0); i < pending; i++ {
		job, err := d.retry.Pop(ctx)
		if err != nil {
			return delivered, err
		}
		if job == nil {
			break
		}
		if d.attempt(ctx, *job) {
			delivered++
		}
	}
	return delivered, nil
}

// RunRetries calls RetryPending every interval until ctx is done.
func (d *Dispatcher) RunRetries(ctx context.Context, every time.Duration) {
	if d.retry == nil || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := d.RetryPending(ctx); err != nil {
				d.log.Error("mail retry pass failed", slog.Any("error", err))
			} else if n > 0 {
				d.log.Info("mail retries delivered", slog.Int("count", n))
			}
		}
	}
}

// enqueue renders name and queues it for to. A full queue spills to the
// retry queue.
func (d *Dispatcher) enqueue(name, to string, data any) {
	to = strings.TrimSpace(to)
	if to == "" {
		return
	}
	subject, html, text, err := d.renderer.Render(name, data)
	if err != nil {
		d.log.Error("mail render failed", slog.String("template", name), slog.Any("error", err))
		return
	}
	job := Job{Template: name, To: to, Subject: subject, HTML: html, Text: text}

	if err := d.offer(job); err != nil {
		d.log.Warn("mail queue unavailable", slog.String("template", name), slog.String("to", to), slog.Any("error", err))
		// Runs on the caller's goroutine, so the push must not outlast SpillTimeout.
		spillCtx, cancel := context.WithTimeout(context.Background(), d.cfg.SpillTimeout)
		defer cancel()
		d.park(spillCtx, job)
	}
}

func (d *Dispatcher) offer(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errDispatcherClosed
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return errors.New("mail queue is full")
	}
}

func (d *Dispatcher) siteLink(path string) string {
	return strings.TrimRight(d.cfg.SiteURL, "/") + path
}

func excerpt(content string) string {
	const limit = 280
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "..."
}

func (d *Dispatcher) NotifyNewComment(_ context.Context, comment *models.Comment, post *models.Post) {
	title := comment.PostID
	if post != nil && post.Title != "" {
		title = post.Title
	}
	data := map[string]any{
		"AuthorName":    comment.DisplayName(),
		"PostTitle":     title,
		"Excerpt":       excerpt(comment.Content),
		"Status":        string(comment.Status),
		"IsReply":       comment.ParentID != nil,
		"ModerationURL": d.siteLink("/admin/comments?status=" + string(models.CommentPending)),
	}
	for _, to := range d.cfg.AlertRecipients {
		d.enqueue(TemplateNewCommentAlert, to, data)
	}
}

func (d *Dispatcher) NotifyReply(_ context.Context, parent, reply *models.Comment) {
	d.enqueue(TemplateReply, parent.ContactEmail(), map[string]any{
		"Name":        parent.DisplayName(),
		"ReplierName": reply.DisplayName(),
		"Excerpt":     excerpt(reply.Content),
		"PostURL":     d.siteLink("/posts/" + reply.PostID + "#comment-" + reply.ID),
	})
}

func (d *Dispatcher) NotifyApproval(_ context.Context, comment *models.Comment) {
	d.enqueue(TemplateApproval, comment.ContactEmail(), map[string]any{
		"Name":    comment.DisplayName(),
		"Excerpt": excerpt(comment.Content),
		"PostURL": d.siteLink("/posts/" + comment.PostID + "#comment-" + comment.ID),
	})
}

func (d *Dispatcher) NotifyRejection(_ context.Context, comment *models.Comment, reason *string) {
	r := ""
	if reason != nil {
		r = *reason
	}
	d.enqueue(TemplateRejection, comment.ContactEmail(), map[string]any{
		"Name":    comment.DisplayName(),
		"Excerpt": excerpt(comment.Content),
		"Reason":  r,
	})
}

func (d *Dispatcher) SendSignInLink(_ context.Context, email, link string) {
	d.enqueue(TemplateSignInLink, email, map[string]any{"Link": link})
}
