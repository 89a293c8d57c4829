package ignore

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/logwindow/internal/message"
)

// compileFields type-checks a boolean CEL expression over the message
// variables: message, severity, level, progname, backtrace, count, env.
func compileFields(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	env, err := cel.NewEnv(
		cel.Variable("message", cel.StringType),
		cel.Variable("severity", cel.IntType),
		// severity name, e.g. "ERROR"
		cel.Variable("level", cel.StringType),
		cel.Variable("progname", cel.StringType),
		cel.Variable("backtrace", cel.StringType),
		cel.Variable("count", cel.IntType),
		cel.Variable("env", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %v", ast.OutputType())
	}
	return env.Program(ast)
}

func evalFields(prog cel.Program, m *message.Message) bool {
	env := m.Env
	if env == nil {
		env = map[string]any{}
	}
	out, _, err := prog.Eval(map[string]any{
		"message":   m.Message,
		"severity":  int64(m.Severity),
		"level":     m.Severity.String(),
		"progname":  m.Progname,
		"backtrace": m.Backtrace,
		"count":     m.Count,
		"env":       env,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
