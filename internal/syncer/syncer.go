// Package syncer coordinates fetch-normalize-merge passes across all
// conversation sources and persists results into the unified store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mainstreethq/inboxd/internal/merge"
	"github.com/mainstreethq/inboxd/internal/models"
	"github.com/mainstreethq/inboxd/internal/source"
	"github.com/mainstreethq/inboxd/internal/source/vapi"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Orchestrator runs sync passes: scheduled, manual, and webhook-incremental.
type Orchestrator struct {
	db            *gorm.DB
	engine        *merge.Engine
	adapters      []source.Adapter
	sourceTimeout time.Duration
	lockTimeout   time.Duration
	out           io.Writer
}

// Opts holds parameters for creating an Orchestrator.
type Opts struct {
	DB            *gorm.DB         // primary store (required)
	Engine        *merge.Engine    // merge engine (required)
	Adapters      []source.Adapter // at least one
	SourceTimeout time.Duration    // per-source fetch budget (default 30s)
	LockTimeout   time.Duration    // stale run cutoff (default DefaultLockTimeout)
	Out           io.Writer        // defaults to os.Stdout
}

// New creates an Orchestrator.
func New(opts Opts) (*Orchestrator, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("syncer: db is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("syncer: engine is required")
	}
	if len(opts.Adapters) == 0 {
		return nil, fmt.Errorf("syncer: at least one adapter is required")
	}
	sourceTimeout := opts.SourceTimeout
	if sourceTimeout == 0 {
		sourceTimeout = 30 * time.Second
	}
	lockTimeout := opts.LockTimeout
	if lockTimeout == 0 {
		lockTimeout = DefaultLockTimeout
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Orchestrator{
		db:            opts.DB,
		engine:        opts.Engine,
		adapters:      opts.Adapters,
		sourceTimeout: sourceTimeout,
		lockTimeout:   lockTimeout,
		out:           out,
	}, nil
}

// SourceResult reports one source's share of a pass.
type SourceResult struct {
	Source   models.Source `json:"source"`
	Created  int           `json:"created"`
	Updated  int           `json:"updated"`
	Messages int           `json:"messages"`
	Errors   int           `json:"errors"`
	Skipped  bool          `json:"skipped,omitempty"` // another run held the source
	Failures []string      `json:"failures,omitempty"`
}

// Result aggregates a full sync pass.
type Result struct {
	RunID    string         `json:"run_id"`
	Created  int            `json:"created"`
	Updated  int            `json:"updated"`
	Messages int            `json:"messages"`
	Errors   int            `json:"errors"`
	Sources  []SourceResult `json:"sources"`
	ErrList  []string       `json:"error_list,omitempty"`
}

// RunPass executes one fetch-normalize-merge cycle across all sources.
// Sources are fetched concurrently and joined before results aggregate. A
// single failing source contributes zero records and an error count; it
// never aborts the others. Only a primary-store failure while acquiring the
// run lock is fatal to the pass.
func (o *Orchestrator) RunPass(ctx context.Context, trigger string) (*Result, error) {
	runID := uuid.NewString()
	results := make([]SourceResult, len(o.adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range o.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			sr, err := o.syncSource(gctx, adapter, runID, trigger)
			if err != nil {
				return err
			}
			results[i] = sr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("syncer: pass %s: %w", runID, err)
	}

	agg := &Result{RunID: runID, Sources: results}
	for _, sr := range results {
		agg.Created += sr.Created
		agg.Updated += sr.Updated
		agg.Messages += sr.Messages
		agg.Errors += sr.Errors
		agg.ErrList = append(agg.ErrList, sr.Failures...)
	}
	fmt.Fprintf(o.out, "sync pass %s (%s): created=%d updated=%d messages=%d errors=%d\n",
		runID, trigger, agg.Created, agg.Updated, agg.Messages, agg.Errors)
	return agg, nil
}

// syncSource runs one source under its run lock. Lock contention is a skip,
// not a failure; a lock acquired against an unreachable primary store is the
// one fatal path.
func (o *Orchestrator) syncSource(ctx context.Context, adapter source.Adapter, runID, trigger string) (SourceResult, error) {
	src := adapter.Name()
	sr := SourceResult{Source: src}

	run, err := AcquireRun(o.db, src, runID, trigger, o.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			log.Printf("syncer: %s: skipped, %v", src, err)
			sr.Skipped = true
			return sr, nil
		}
		return sr, err
	}

	var errList []string
	fetchCtx, cancel := context.WithTimeout(ctx, o.sourceTimeout)
	convos, err := adapter.FetchConversations(fetchCtx)
	cancel()
	if err != nil {
		// Source unavailable: zero records this pass, carry on.
		log.Printf("syncer: %s: fetch failed: %v", src, err)
		sr.Errors = 1
		sr.Failures = []string{fmt.Sprintf("%s: fetch: %v", src, err)}
		releaseErr := ReleaseRun(o.db, run.ID, models.SyncRunFailed, 0, 0, 1, err.Error())
		if releaseErr != nil {
			log.Printf("syncer: %s: %v", src, releaseErr)
		}
		return sr, nil
	}

	for _, conv := range convos {
		if len(conv.Messages) == 0 {
			msgCtx, cancel := context.WithTimeout(ctx, o.sourceTimeout)
			msgs, err := adapter.FetchMessages(msgCtx, conv.NaturalKey, 0)
			cancel()
			if err != nil {
				// Timeline fetch failed; merge the conversation row alone.
				errList = append(errList, fmt.Sprintf("%s: messages for %s: %v", src, conv.ConversationID, err))
			} else {
				conv.Messages = msgs
			}
		}

		out, err := o.engine.MergeConversation(ctx, src, conv)
		if err != nil {
			// Row failure: skip this conversation, continue the pass.
			errList = append(errList, fmt.Sprintf("%s: %v", src, err))
			continue
		}
		if out.CreatedConversation {
			sr.Created++
		}
		if out.UpdatedConversation {
			sr.Updated++
		}
		sr.Messages += out.CreatedMessages
	}

	sr.Errors = len(errList)
	sr.Failures = errList
	status := models.SyncRunCompleted
	lastErr := ""
	if len(errList) > 0 {
		lastErr = strings.Join(errList, "; ")
	}
	if err := ReleaseRun(o.db, run.ID, status, sr.Created, sr.Updated, sr.Errors, lastErr); err != nil {
		log.Printf("syncer: %s: %v", src, err)
	}
	return sr, nil
}

// IngestCall is the webhook-incremental path: it persists one completed
// call and merges exactly that conversation, bypassing the full-source
// scan. The merge policy is identical to the bulk path, so a webhook replay
// is idempotent.
func (o *Orchestrator) IngestCall(ctx context.Context, call models.Call) (*Result, error) {
	if call.CallID == "" {
		return nil, fmt.Errorf("syncer: call id is required")
	}

	err := o.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "call_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_phone", "customer_name", "transcript", "summary",
			"call_started_at", "call_ended_at", "recording_url",
		}),
	}).Create(&call).Error
	if err != nil {
		return nil, fmt.Errorf("syncer: store call %s: %w", call.CallID, err)
	}

	conv := vapi.NormalizeCall(call)
	out, err := o.engine.MergeConversation(ctx, models.SourceVAPI, conv)
	if err != nil {
		return nil, fmt.Errorf("syncer: ingest call %s: %w", call.CallID, err)
	}

	if err := o.db.WithContext(ctx).Model(&models.Call{}).
		Where("call_id = ?", call.CallID).
		Update("synced", true).Error; err != nil {
		log.Printf("syncer: mark call %s synced: %v", call.CallID, err)
	}

	res := &Result{
		RunID:    uuid.NewString(),
		Messages: out.CreatedMessages,
		Sources: []SourceResult{{
			Source:   models.SourceVAPI,
			Messages: out.CreatedMessages,
		}},
	}
	if out.CreatedConversation {
		res.Created, res.Sources[0].Created = 1, 1
	}
	if out.UpdatedConversation {
		res.Updated, res.Sources[0].Updated = 1, 1
	}

	// Audit trail for the incremental path.
	now := time.Now()
	rec := models.SyncRun{
		RunID:         res.RunID,
		Source:        string(models.SourceVAPI),
		Trigger:       models.TriggerWebhook,
		Status:        models.SyncRunCompleted,
		Created:       res.Created,
		Updated:       res.Updated,
		LastHeartbeat: now,
		StartedAt:     now,
		CompletedAt:   &now,
	}
	if err := o.db.WithContext(ctx).Create(&rec).Error; err != nil {
		log.Printf("syncer: record webhook run: %v", err)
	}
	return res, nil
}
