// Package bridge runs calls into a module.
//
// A Bridge ties together the pieces every call needs: an Encoder and
// Decoder over the instance's live memory, a lifetime Tracker, and the
// operation manifest that says which export an operation calls, what
// policy each argument follows and which enum its errors use.
//
// A call is a Scope:
//
//	s := b.Begin("Locale.from_string")
//	defer s.End()
//
//	name, err := s.Text("name", tag, transcoder.UTF8)
//	rb, err := s.Receive(localeResult)
//	_, err = s.Invoke(ctx, uint64(rb), uint64(name.Ptr), uint64(name.Len))
//	h, err := bridge.Result(s, rb, localeResult, transcoder.HandlePayload)
//
// End frees FreeAfterCall arguments and receive buffers on every path,
// including failed calls. GC-tied arguments are handed to an owner with
// Tie; if the call never produced an owner they are freed at End.
//
// Begin first runs releases the garbage collector queued since the last
// call, so module destructors only ever run on the calling goroutine.
package bridge
