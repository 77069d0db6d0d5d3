package mgmt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openmast/openmast/pkg/model"
)

// StopFunc stops one top-level object. The default transitions the object
// through stopping to stopped; tests and callers with real effectors inject
// their own.
type StopFunc func(ctx context.Context, obj model.ManagedObject) error

// Shutdowner is implemented by executors that support graceful shutdown.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Destroy tears down the whole management plane. Stopping the top-level
// objects is a fan-out: one goroutine per object, wait for all, and collect
// every error rather than failing fast. Shared resources (the executor) are
// torn down only after every object has been given the chance to stop.
func (m *LocalManagementContext) Destroy(ctx context.Context, stop StopFunc) error {
	if stop == nil {
		stop = defaultStop
	}

	tops := m.registry.TopLevelEntities()
	m.logger.Info().Int("top_level", len(tops)).Msg("destroying management plane")

	var wg sync.WaitGroup
	errCh := make(chan error, len(tops))

	for _, obj := range tops {
		wg.Add(1)
		go func(obj *model.Entity) {
			defer wg.Done()
			obj.SetState(model.StateStopping)
			if err := stop(ctx, obj); err != nil {
				errCh <- fmt.Errorf("stopping %s: %w", obj.ID(), err)
				return
			}
			obj.SetState(model.StateStopped)
		}(obj)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	if s, ok := m.executor.(Shutdowner); ok {
		if err := s.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("executor shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		m.logger.Error().Int("failures", len(errs)).Msg("management plane destroyed with errors")
		return errors.Join(errs...)
	}
	m.logger.Info().Msg("management plane destroyed")
	return nil
}

// defaultStop recursively marks an entity's children stopped. Effector
// invocation belongs to the caller-supplied StopFunc.
func defaultStop(ctx context.Context, obj model.ManagedObject) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e, ok := obj.(*model.Entity); ok {
		for _, child := range e.Children {
			child.SetState(model.StateStopping)
			if err := defaultStop(ctx, child); err != nil {
				return err
			}
			child.SetState(model.StateStopped)
		}
	}
	return nil
}
