package staging

import (
	"fmt"
	"reflect"

	"github.com/roach88/bake/literal"
)

// Kind of a registered member.
type Kind int

const (
	KindFunc Kind = iota
	KindVar
	KindMethod
)

func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindVar:
		return "var"
	case KindMethod:
		return "method"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Member is a loaded, invocable member of the package under evaluation.
type Member struct {
	Key     string
	Kind    Kind
	Static  bool
	Generic bool

	fn     reflect.Value // func value or method expression
	ptr    reflect.Value // pointer to a package-level var
	params int           // declared parameters, for members that can't be referenced
}

// Type returns the type the member's value is declared with: the first
// result of a function, the variable's type for a var, nil otherwise.
func (m *Member) Type() reflect.Type {
	switch {
	case m.ptr.IsValid():
		return m.ptr.Type().Elem()
	case m.fn.IsValid() && m.fn.Type().NumOut() > 0:
		return m.fn.Type().Out(0)
	}
	return nil
}

// BindStatus is the outcome of a lookup by key.
type BindStatus int

const (
	BindOK BindStatus = iota
	BindNotFound
	BindAmbiguous
)

// Registry holds the members of every package in the artifact, keyed by
// canonical key.
type Registry struct {
	members map[string][]*Member
	enums   []literal.Const
	seen    map[[2]string]bool // enum path and name
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string][]*Member),
		seen:    make(map[[2]string]bool),
	}
}

// Func registers a package-level function.
func (r *Registry) Func(key string, fn any) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("staging: Func(%q) needs a function, got %T", key, fn))
	}
	r.add(&Member{Key: key, Kind: KindFunc, Static: true, fn: v})
}

// Var registers a package-level variable by address.
func (r *Registry) Var(key string, ptr any) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		panic(fmt.Sprintf("staging: Var(%q) needs a non-nil pointer, got %T", key, ptr))
	}
	r.add(&Member{Key: key, Kind: KindVar, Static: true, ptr: v})
}

// Method registers a method through its method expression, T.Name or
// (*T).Name. Methods are never static.
func (r *Registry) Method(key string, expr any) {
	v := reflect.ValueOf(expr)
	if v.Kind() != reflect.Func || v.Type().NumIn() == 0 {
		panic(fmt.Sprintf("staging: Method(%q) needs a method expression, got %T", key, expr))
	}
	r.add(&Member{Key: key, Kind: KindMethod, fn: v, params: v.Type().NumIn() - 1})
}

// Generic registers a member that has type parameters, or whose receiver
// has them. Such members can't be referenced uninstantiated, so only their
// shape is recorded.
func (r *Registry) Generic(key string, kind Kind, params int) {
	r.add(&Member{Key: key, Kind: kind, Static: kind != KindMethod, Generic: true, params: params})
}

// Enum registers the declared constants of named basic types so values are
// encoded by name. Packages sharing a type register its constants once.
func (r *Registry) Enum(consts ...literal.Const) {
	for _, c := range consts {
		id := [2]string{c.Path, c.Name}
		if r.seen[id] {
			continue
		}
		r.seen[id] = true
		r.enums = append(r.enums, c)
	}
}

func (r *Registry) add(m *Member) {
	r.members[m.Key] = append(r.members[m.Key], m)
}

// Bind looks up the member registered under key. Two registrations of the
// same key make it ambiguous.
func (r *Registry) Bind(key string) (*Member, BindStatus) {
	ms := r.members[key]
	switch len(ms) {
	case 0:
		return nil, BindNotFound
	case 1:
		return ms[0], BindOK
	default:
		return nil, BindAmbiguous
	}
}

// Keys returns every registered key.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.members))
	for k := range r.members {
		keys = append(keys, k)
	}
	return keys
}
