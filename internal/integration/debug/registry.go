package debug

import (
	"strconv"
	"sync"
)

// Token correlates a request with its reply. Zero is reserved and means
// "no token".
type Token int

// NoToken is the reserved token carried by uncorrelated records.
const NoToken Token = 0

// DefaultPoolSize is the number of tokens available when no size is given.
const DefaultPoolSize = 1024

func (t Token) String() string {
	return strconv.Itoa(int(t))
}

// Registry hands out tokens from a bounded pool and owns the context of each
// outstanding request. Contexts live in an arena indexed by token.
type Registry struct {
	mu        sync.Mutex
	allocated []bool
	contexts  []*RequestContext
	inFlight  int
	peak      int
}

// NewRegistry creates a registry with size usable tokens (1..size).
func NewRegistry(size int) *Registry {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Registry{
		allocated: make([]bool, size+1),
		contexts:  make([]*RequestContext, size+1),
	}
}

// Size returns the number of tokens in the pool.
func (r *Registry) Size() int {
	return len(r.allocated) - 1
}

// Allocate returns the lowest free token. It panics with ErrPoolExhausted
// when every token is outstanding.
func (r *Registry) Allocate() Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocateLocked()
}

func (r *Registry) allocateLocked() Token {
	for i := 1; i < len(r.allocated); i++ {
		if !r.allocated[i] {
			r.allocated[i] = true
			r.inFlight++
			if r.inFlight > r.peak {
				r.peak = r.inFlight
			}
			return Token(i)
		}
	}
	invariant("allocate", NoToken, ErrPoolExhausted)
	return NoToken
}

// Register associates ctx with an allocated token.
func (r *Registry) Register(t Token, ctx *RequestContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(t, ctx)
}

func (r *Registry) registerLocked(t Token, ctx *RequestContext) {
	if !r.validLocked(t) {
		invariant("register", t, ErrTokenNotAllocated)
	}
	if r.contexts[t] != nil {
		invariant("register", t, ErrDuplicateContext)
	}
	r.contexts[t] = ctx
}

// Issue allocates a token and registers ctx with it in one step.
func (r *Registry) Issue(ctx *RequestContext) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.allocateLocked()
	r.registerLocked(t, ctx)
	return t
}

// Lookup returns the context registered for t without consuming it.
func (r *Registry) Lookup(t Token) (*RequestContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.validLocked(t) || r.contexts[t] == nil {
		return nil, false
	}
	return r.contexts[t], true
}

// Take removes and returns the context registered for t and frees the
// token. It panics if t has no context.
func (r *Registry) Take(t Token) *RequestContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.validLocked(t) || r.contexts[t] == nil {
		invariant("take", t, ErrUnregisteredToken)
	}
	ctx := r.contexts[t]
	r.freeLocked(t)
	return ctx
}

// Release frees an allocated token and drops any context registered with
// it. It is used when the request carrying t could not be written.
func (r *Registry) Release(t Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.validLocked(t) {
		r.freeLocked(t)
	}
}

// InFlight returns the number of allocated tokens.
func (r *Registry) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// Peak returns the highest number of tokens ever allocated at once.
func (r *Registry) Peak() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

func (r *Registry) validLocked(t Token) bool {
	return t > NoToken && int(t) < len(r.allocated) && r.allocated[t]
}

func (r *Registry) freeLocked(t Token) {
	r.contexts[t] = nil
	r.allocated[t] = false
	r.inFlight--
}
