// Package async provides helpers for fire-and-forget background work.
package async

import (
	"context"
	"log"
	"runtime/debug"
	"time"
)

// SafeGo executes fn in a goroutine with a timeout, panic recovery, and
// error logging. Use it instead of a bare `go func()` for side work that
// must never take a request down with it, like view counting or blob
// cleanup.
//
//	async.SafeGo(r.Context(), 5*time.Second, "view count", func(ctx context.Context) error {
//	    return store.IncrementViewCount(ctx, pageID)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.Printf("[SafeGo] PANIC in %s: %v\nStack trace:\n%s",
					taskName, r, string(debug.Stack()))
			}
		}()

		if err := fn(ctx); err != nil {
			log.Printf("[SafeGo] Error in %s: %v", taskName, err)
		}
	}()
}
