// Package debug drives a GDB process over the Machine Interface.
//
// The mi subpackage turns output lines into records; this package correlates
// them with the requests that caused them and keeps derived state.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                          Session                                 │
//	│  - Issues requests: "<token><command>"                           │
//	│  - Consumes output lines in arrival order                        │
//	│  - Owns the caches presenters query                              │
//	└─────────────────────────────────────────────────────────────────┘
//	          │ Registry                         │ Dispatcher
//	          ▼                                  ▼
//	┌──────────────────────────┐   ┌──────────────────────────────────┐
//	│ token → RequestContext   │   │ ordered handlers, first claimant │
//	│ bounded pool, lowest     │   │ wins; unclaimed errors surface   │
//	│ free token first         │   │ as *ProtocolError                │
//	└──────────────────────────┘   └──────────────────────────────────┘
//
// # Tokens
//
// Every request is written with a fresh token whose context describes what
// the reply means (KindVarCreate, KindBreakList, ...). The handler for that
// kind takes the context when the reply arrives, which frees the token.
// Replies that no handler claims still have their context drained.
//
// # Sequence points
//
// The debugger answers requests in the order they were written. A
// SequencePoint sends a no-op command whose reply therefore arrives after
// the replies to every earlier request, and runs a continuation at that
// moment. Batches such as the per-file line tables use this as a join.
//
// # Caches
//
// BreakpointCache, DisasmCache, SourceLinesCache and StackCache are rebuilt
// from complete replies and published with a single pointer swap, so
// readers on other goroutines never see partial state.
//
// # Usage
//
//	s, err := debug.NewStdioSession(debug.DefaultSessionConfig(), dialect, "gdb", "./prog")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	s.SetHandlers(debug.SessionHandlers{
//	    OnBreakpoints: func(*debug.Snapshot) { redraw(s.Highlight()) },
//	})
//	go s.Run(ctx)
//
//	s.InsertBreakpoint("main.c:12")
//	s.Command("-exec-run")
package debug
