package lifetime

import (
	"fmt"
	"sort"
)

// Policy decides who frees an argument buffer and when.
type Policy uint8

const (
	// FreeAfterCall frees the buffer as soon as the call returns.
	FreeAfterCall Policy = iota
	// Borrowed buffers belong to someone else and are never freed here.
	Borrowed
	// Leak hands the buffer to the module, which keeps it forever.
	Leak
	// GCTied keeps the buffer until its owner becomes unreachable.
	GCTied
)

var policyNames = map[Policy]string{
	FreeAfterCall: "free_after_call",
	Borrowed:      "borrowed",
	Leak:          "leak",
	GCTied:        "gc_tied",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

// ParsePolicy parses the names printed by String. The empty string parses
// as FreeAfterCall.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return FreeAfterCall, nil
	}
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return FreeAfterCall, fmt.Errorf("unknown lifetime policy %q", s)
}

// PolicyNames returns the accepted policy names, sorted.
func PolicyNames() []string {
	out := make([]string, 0, len(policyNames))
	for _, n := range policyNames {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// PolicyTable holds declared policies per operation and argument.
type PolicyTable struct {
	ops map[string]map[string]Policy
}

func NewPolicyTable() *PolicyTable {
	return &PolicyTable{ops: make(map[string]map[string]Policy)}
}

// Set declares the policy of one argument.
func (t *PolicyTable) Set(op, arg string, p Policy) {
	args, ok := t.ops[op]
	if !ok {
		args = make(map[string]Policy)
		t.ops[op] = args
	}
	args[arg] = p
}

// Lookup returns the declared policy, or FreeAfterCall if none was declared.
// A nil table declares nothing.
func (t *PolicyTable) Lookup(op, arg string) Policy {
	if t == nil {
		return FreeAfterCall
	}
	return t.ops[op][arg]
}

// Ops returns the operations with at least one declaration, sorted.
func (t *PolicyTable) Ops() []string {
	out := make([]string, 0, len(t.ops))
	for op := range t.ops {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}
