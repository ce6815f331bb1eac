package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/AlverezYari/camroll/internal/media"
	"github.com/AlverezYari/camroll/internal/permission"
	"github.com/AlverezYari/camroll/pkg/medialib"
)

// Persister saves captures to the media library in the background with
// bounded concurrency. Failures are logged and never reach the UI.
type Persister struct {
	lib     medialib.Library
	perms   Permissions
	timeout time.Duration

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPersister(lib medialib.Library, perms Permissions, workers int64, timeout time.Duration) *Persister {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Persister{
		lib:     lib,
		perms:   perms,
		timeout: timeout,
		sem:     semaphore.NewWeighted(workers),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit queues item for saving and returns immediately.
func (p *Persister) Submit(item media.Item) {
	if p.perms.State(permission.MediaLibrary) != permission.Granted {
		log.Warn().Str("id", string(item.ID)).Err(ErrPermissionDenied).Msg("Skipping save, media library not granted")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.save(item); err != nil {
			log.Error().Err(err).Str("id", string(item.ID)).Str("uri", item.URI).Msg("Failed to persist capture")
		}
	}()
}

func (p *Persister) save(item media.Item) error {
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	defer p.sem.Release(1)

	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.lib.Persist(ctx, item.URI, medialib.Kind(item.Kind)); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	log.Debug().Str("id", string(item.ID)).Str("uri", item.URI).Msg("Capture saved to library")
	return nil
}

// Wait blocks until every submitted save has finished.
func (p *Persister) Wait() {
	p.wg.Wait()
}

// Close cancels outstanding saves and waits for them to return.
func (p *Persister) Close() {
	p.cancel()
	p.wg.Wait()
}
