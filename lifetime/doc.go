// Package lifetime decides when module memory handed out for a call is
// released.
//
// Every argument buffer carries a Policy:
//
//	FreeAfterCall  freed as soon as the call returns (default)
//	Borrowed       owned elsewhere, never freed here
//	Leak           ownership passes to the module
//	GCTied         freed once its owner wrapper is unreachable
//
// GC-tied buffers and owned handles are tracked by a Tracker through
// Registrations. The owner stores its Registration; when the owner becomes
// unreachable the Finalizer queues the release, and the next Drain runs it
// on the caller's goroutine. Close on a wrapper calls Registration.Release,
// which runs the release immediately and cancels the watch. A release runs
// at most once whichever path reaches it first.
//
// RuntimeFinalizer is backed by runtime.AddCleanup and is only a safety
// net: the collector may run cleanups late or never. ManualFinalizer makes
// collection explicit for tests, computing reachability through the Edges
// of the roots passed to Collect.
package lifetime
