package processors

import (
	"context"
	"fmt"

	"github.com/shv-protocol/shv-go/pkg/model"
	"github.com/shv-protocol/shv-go/pkg/shvnode"
)

// Handler executes one method of a MethodSet.
type Handler func(ctx context.Context, call *shvnode.Call) (any, error)

// Method binds a descriptor to its handler. Introspection methods answered
// by the router carry a nil handler.
type Method struct {
	Meta    *model.MetaMethod
	Handler Handler
}

// MethodSet is a leaf processor with a fixed list of methods served at the
// node it is attached to.
type MethodSet struct {
	methods []Method
}

// NewMethodSet creates a method set in declared order.
func NewMethodSet(methods ...Method) *MethodSet {
	return &MethodSet{methods: methods}
}

// Add appends methods.
func (s *MethodSet) Add(methods ...Method) {
	s.methods = append(s.methods, methods...)
}

// Methods implements shvnode.Processor.
func (s *MethodSet) Methods(path []string) []*model.MetaMethod {
	if len(path) > 0 {
		return nil
	}
	out := make([]*model.MetaMethod, len(s.methods))
	for i, m := range s.methods {
		out[i] = m.Meta
	}
	return out
}

// Children implements shvnode.Processor.
func (s *MethodSet) Children([]string) []shvnode.Child {
	return nil
}

// IsLeaf implements shvnode.Processor.
func (s *MethodSet) IsLeaf() bool {
	return true
}

// Call implements shvnode.Processor.
func (s *MethodSet) Call(ctx context.Context, call *shvnode.Call) (any, error) {
	if len(call.Path) == 0 {
		for _, m := range s.methods {
			if m.Meta.Name != call.Method {
				continue
			}
			if m.Handler == nil {
				return nil, fmt.Errorf("method %s has no handler", call.Method)
			}
			return m.Handler(ctx, call)
		}
	}
	return nil, &shvnode.RoutingError{Method: call.Method, LocalPath: call.Path}
}

// StandardMethods returns dir and ls without handlers.
func StandardMethods() []Method {
	std := model.StandardMethods()
	out := make([]Method, len(std))
	for i, mm := range std {
		out[i] = Method{Meta: mm}
	}
	return out
}

// Getter returns a read-only property method returning value.
func Getter(name, accessGrant string, value any) Method {
	return Method{
		Meta: &model.MetaMethod{
			Name:        name,
			Signature:   model.SignatureRetParam,
			Flags:       model.FlagIsGetter,
			AccessGrant: accessGrant,
		},
		Handler: func(context.Context, *shvnode.Call) (any, error) {
			return value, nil
		},
	}
}

var _ shvnode.Processor = (*MethodSet)(nil)
