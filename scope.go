package fabricator

import (
	"context"
	"testing"
)

// Scope starts a session bound to tb: it is stopped, and everything it
// tracked restored, when the test and its subtests finish.
func (f *Fabricator) Scope(tb testing.TB) string {
	tb.Helper()

	id := f.StartSession()
	tb.Cleanup(func() {
		if !f.sessions.has(id) {
			return
		}
		if current := f.sessions.Current(); current != id {
			tb.Errorf("fabricator: session %s is still nested under %s", id, current)
			return
		}
		if err := f.StopSession(context.Background()); err != nil {
			tb.Errorf("fabricator: stop session %s: %v", id, err)
		}
	})
	return id
}
