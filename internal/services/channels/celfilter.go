package channelsvc

import (
	"encoding/json"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/taskboard/internal/channel"
)

// celFilter wraps a compiled CEL program evaluated against every envelope a
// subscription would deliver. When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("event", cel.StringType),
		cel.Variable("sender", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("sent_at", cel.IntType),
		// parsed payload (map/list/scalar) for field filtering
		cel.Variable("data", cel.DynType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return celFilter{}, &FilterError{Expr: expr, Reason: "expression must evaluate to bool"}
	}
	prog, err := env.Program(ast)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval reports whether msg passes the filter. Evaluation errors count as a
// mismatch.
func (f celFilter) Eval(msg channel.Message) bool {
	if !f.enabled {
		return true
	}
	var data any
	_ = json.Unmarshal(msg.Data, &data)
	out, _, err := f.prog.Eval(map[string]any{
		"event":   msg.Event,
		"sender":  msg.Sender,
		"channel": msg.Channel,
		"sent_at": msg.SentAt,
		"data":    data,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
