// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// =============================================================================
// CANCEL FUNCTION MANAGEMENT (THREAD-SAFE)
// =============================================================================

// cancelManager holds a session's cancel function. Commands running on other
// goroutines may observe the session context while the event loop cancels it,
// so access is mutex-guarded. Always use it through a pointer.
type cancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

// newCancelManager derives a cancellable context from parent.
func newCancelManager(parent context.Context) (context.Context, *cancelManager) {
	ctx, cancel := context.WithCancel(parent)
	return ctx, &cancelManager{cancelFunc: cancel}
}

// cancel invokes the cancel function once. It reports whether this call did
// the cancelling; later calls are no-ops.
func (cm *cancelManager) cancel() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc == nil {
		return false
	}
	cm.cancelFunc()
	cm.cancelFunc = nil
	return true
}

// release frees the context after a normal finish.
func (cm *cancelManager) release() {
	cm.cancel()
}
