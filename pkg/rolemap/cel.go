package rolemap

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// claimsEnv is a package-level CEL environment exposing a single `claims`
// variable typed as map[string]dyn, matching the shape of a decoded JWT
// payload.
var claimsEnv = mustNewClaimsEnv()

func mustNewClaimsEnv() *cel.Env {
	env, err := cel.NewEnv(cel.Variable("claims", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		panic(fmt.Sprintf("rolemap: failed to build CEL environment: %v", err))
	}
	return env
}

type compiledIndicator struct {
	program cel.Program
}

func compileIndicator(expr string) (compiledIndicator, error) {
	ast, issues := claimsEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return compiledIndicator{}, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	program, err := claimsEnv.Program(ast)
	if err != nil {
		return compiledIndicator{}, fmt.Errorf("program %q: %w", expr, err)
	}
	return compiledIndicator{program: program}, nil
}

func (c compiledIndicator) evaluate(claims map[string]any) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cel evaluation panicked: %v", r)
		}
	}()

	out, _, evalErr := c.program.Eval(map[string]any{"claims": claims})
	if evalErr != nil {
		return false, evalErr
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to a boolean")
	}
	return b, nil
}
