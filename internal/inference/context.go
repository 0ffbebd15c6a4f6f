package inference

import (
	"github.com/cespare/xxhash/v2"

	"github.com/jward/pyrite/internal/nodes"
)

// CallContext is the frame of a function call being inferred: the
// argument expressions (evaluated in Caller), or precomputed argument
// values for calls the engine makes itself (operator dunders).
type CallContext struct {
	Args      []*nodes.Node
	Keywords  []*nodes.Node
	ArgValues [][]Value
	Caller    *Context
	Callee    *nodes.Node
	// Receiver binds to the first parameter of a bound method.
	Receiver Value
}

// Context carries the state of one inference query: the per-query session
// and the call frame the node is evaluated in. Contexts are immutable;
// entering a call derives a new one.
type Context struct {
	sess *session
	call *CallContext

	sig     uint64
	shallow uint64
}

// NewContext starts a fresh query.
func NewContext() *Context {
	return &Context{sess: newSession()}
}

// Diagnostics returns the operation failures recorded during the query.
func (c *Context) Diagnostics() []error {
	return append([]error(nil), c.sess.diags...)
}

// Call returns the innermost call frame, or nil at top level.
func (c *Context) Call() *CallContext { return c.call }

// withCall derives the context of a call into callee.
func (c *Context) withCall(cc *CallContext) *Context {
	if cc.Caller == nil {
		cc.Caller = c
	}
	out := &Context{sess: c.sess, call: cc}
	out.sig, out.shallow = signatures(cc)
	return out
}

// detached returns a context in the same session without a call frame.
func (c *Context) detached() *Context {
	if c.call == nil {
		return c
	}
	return &Context{sess: c.sess}
}

// frameFor finds the innermost frame calling fn.
func (c *Context) frameFor(fn *nodes.Node) *CallContext {
	for cur := c; cur != nil && cur.call != nil; cur = cur.call.Caller {
		if cur.call.Callee == fn {
			return cur.call
		}
	}
	return nil
}

func (c *Context) depth() int {
	d := 0
	for cur := c; cur != nil && cur.call != nil; cur = cur.call.Caller {
		d++
	}
	return d
}

// signatures hashes a call frame. The full signature includes the caller's
// signature and keys the result cache; the shallow one covers only the
// frame itself and keys cycle detection, so recursion through the same call
// site is cut after one level.
func signatures(cc *CallContext) (full, shallow uint64) {
	d := xxhash.New()
	writeUint(d, 'f', cc.Callee.Key())
	for _, a := range cc.Args {
		writeUint(d, 'a', a.Key())
	}
	for _, k := range cc.Keywords {
		_, _ = d.WriteString(k.Name)
		writeUint(d, 'k', k.Key())
	}
	for _, vals := range cc.ArgValues {
		for _, v := range vals {
			writeUint(d, 'v', valueKey(v))
		}
	}
	if cc.Receiver != nil {
		writeUint(d, 'r', valueKey(cc.Receiver))
	}
	shallow = d.Sum64()
	if cc.Caller != nil {
		writeUint(d, 'c', cc.Caller.sig)
	}
	return d.Sum64(), shallow
}

// progressKey identifies an in-progress inference: the node under the
// shallow signature of its frame.
type progressKey struct {
	node uint64
	sig  uint64
}

// frame is one in-progress inference on the session stack.
type frame struct {
	key        progressKey
	tainted    bool
	diagsStart int
}

// session is the mutable state of one query. It is never shared between
// goroutines.
type session struct {
	stack      []*frame
	inProgress map[progressKey]int
	diags      []error
}

func newSession() *session {
	return &session{inProgress: make(map[progressKey]int)}
}

// enter pushes key. It reports false when key is already in progress; every
// frame above the earlier entry is then tainted, because its result misses
// the contribution of the cut cycle.
func (s *session) enter(key progressKey) (*frame, bool) {
	if idx, ok := s.inProgress[key]; ok {
		for _, f := range s.stack[idx+1:] {
			f.tainted = true
		}
		return nil, false
	}
	f := &frame{key: key, diagsStart: len(s.diags)}
	s.inProgress[key] = len(s.stack)
	s.stack = append(s.stack, f)
	return f, true
}

// leave pops f and returns the diagnostics recorded while it was on the
// stack.
func (s *session) leave(f *frame) []error {
	delete(s.inProgress, f.key)
	s.stack = s.stack[:len(s.stack)-1]
	if len(s.diags) == f.diagsStart {
		return nil
	}
	return append([]error(nil), s.diags[f.diagsStart:]...)
}

func (s *session) record(err error) {
	s.diags = append(s.diags, err)
}

func (s *session) replay(diags []error) {
	s.diags = append(s.diags, diags...)
}
