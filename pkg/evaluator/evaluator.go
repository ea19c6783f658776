package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tevino/abool/v2"

	"github.com/thomasrohde/brush/pkg/ast"
	"github.com/thomasrohde/brush/pkg/diagnostics"
)

// TraceEventType identifies the type of a trace event.
type TraceEventType string

const (
	TraceRunStart       TraceEventType = "run_start"
	TraceRunEnd         TraceEventType = "run_end"
	TraceFormStart      TraceEventType = "form_start"
	TraceFormEnd        TraceEventType = "form_end"
	TraceCallStart      TraceEventType = "call_start"
	TraceCallEnd        TraceEventType = "call_end"
	TraceLoopStart      TraceEventType = "loop_start"
	TraceLoopEnd        TraceEventType = "loop_end"
	TracePaint          TraceEventType = "paint"
	TraceBudgetExceeded TraceEventType = "budget_exceeded"
)

// TraceEvent represents a single trace event emitted during execution.
type TraceEvent struct {
	Timestamp string         `json:"ts"`
	RunID     string         `json:"runId"`
	Event     TraceEventType `json:"event"`
	Span      *ast.Span      `json:"span,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Options configures an Interpreter.
type Options struct {
	Limits Limits
	Trace  func(event TraceEvent)
	RunID  string
}

// ExecResult holds the result of one Execute call. On failure it still
// carries everything produced before the failing form.
type ExecResult struct {
	// Value is the value of the last top-level form that completed.
	Value Value
	// Commands is the paint log in the order paint was evaluated.
	Commands []Command
	// Emitted holds Command results of top-level forms, and the Command
	// elements of top-level Vector results.
	Emitted []Command
	// Steps is the number of loop iterations plus user calls.
	Steps int64
}

// RuntimeError represents an error raised while evaluating a program.
type RuntimeError struct {
	Code    string
	Message string
	Span    *ast.Span
}

func (e *RuntimeError) Error() string {
	return e.Message
}

func newError(code string, span ast.Span, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Span:    &span,
	}
}

// Interpreter evaluates a parsed program against its own scope stack and
// command log. It is not safe for concurrent use, except for Cancel.
type Interpreter struct {
	program   *ast.Program
	opts      Options
	env       *Env
	commands  []Command
	cancelled *abool.AtomicBool
	ctx       context.Context
	tracker   BudgetTracker
}

// New creates an interpreter for program.
func New(program *ast.Program, opts Options) *Interpreter {
	maxDepth := opts.Limits.MaxCallDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCallDepth
	}
	return &Interpreter{
		program:   program,
		opts:      opts,
		env:       NewEnv(),
		cancelled: abool.NewBool(false),
		ctx:       context.Background(),
		tracker:   BudgetTracker{MaxDepth: maxDepth},
	}
}

// Load replaces the program run by the next Execute. Global bindings are kept.
func (in *Interpreter) Load(program *ast.Program) {
	in.program = program
}

// Env exposes the interpreter's scope stack.
func (in *Interpreter) Env() *Env {
	return in.env
}

// Cancel stops a running Execute at its next loop iteration or call. It may
// be called from any goroutine. A Cancel issued before Execute starts
// cancels that run; the flag is cleared when Execute returns.
func (in *Interpreter) Cancel() {
	in.cancelled.Set()
}

func (in *Interpreter) emit(event TraceEventType, span *ast.Span, data map[string]any) {
	if in.opts.Trace != nil {
		in.opts.Trace(TraceEvent{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			RunID:     in.opts.RunID,
			Event:     event,
			Span:      span,
			Data:      data,
		})
	}
}

func (in *Interpreter) budgetError(code string, span ast.Span, format string, args ...any) *RuntimeError {
	err := newError(code, span, format, args...)
	in.emit(TraceBudgetExceeded, &span, map[string]any{"code": code, "message": err.Message})
	return err
}

// checkInterrupt reports cancellation and wall-clock exhaustion.
func (in *Interpreter) checkInterrupt(span ast.Span) error {
	if in.cancelled.IsSet() {
		return newError(diagnostics.ECancelled, span, "execution cancelled")
	}
	timeout := in.opts.Limits.Timeout
	if err := in.ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			if timeout > 0 {
				return in.budgetError(diagnostics.EBudget, span, "time budget exceeded (%s)", timeout)
			}
			return in.budgetError(diagnostics.EBudget, span, "deadline exceeded")
		}
		return newError(diagnostics.ECancelled, span, "execution cancelled")
	}
	if timeout > 0 && hiresSince(in.tracker.StartNano) >= timeout {
		return in.budgetError(diagnostics.EBudget, span, "time budget exceeded (%s)", timeout)
	}
	return nil
}

// step accounts for one loop iteration or user call.
func (in *Interpreter) step(span ast.Span) error {
	if err := in.checkInterrupt(span); err != nil {
		return err
	}
	in.tracker.Steps++
	if limit := in.opts.Limits.MaxSteps; limit > 0 && in.tracker.Steps > limit {
		return in.budgetError(diagnostics.EBudget, span, "step budget exceeded (max %d)", limit)
	}
	return nil
}

// Execute evaluates every top-level form in source order. Each call starts
// a fresh command log; bindings from earlier calls remain visible.
func (in *Interpreter) Execute(ctx context.Context) (*ExecResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	defer in.cancelled.UnSet()

	if in.opts.Limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.opts.Limits.Timeout)
		defer cancel()
	}
	in.ctx = ctx
	in.commands = nil
	in.tracker = BudgetTracker{MaxDepth: in.tracker.MaxDepth, StartNano: hiresNow()}

	res := &ExecResult{Value: NewNum(0)}
	var forms []ast.Node
	var span ast.Span
	if in.program != nil {
		forms = in.program.Forms
		span = in.program.Span
	}
	in.emit(TraceRunStart, &span, nil)

	var runErr error
	for _, form := range forms {
		formSpan := form.NodeSpan()
		if err := in.checkInterrupt(formSpan); err != nil {
			runErr = err
			break
		}
		in.emit(TraceFormStart, &formSpan, nil)
		val, err := in.eval(form)
		in.emit(TraceFormEnd, &formSpan, nil)
		if err != nil {
			runErr = err
			break
		}
		res.Value = val
		res.Emitted = appendEmitted(res.Emitted, val)
	}

	res.Commands = in.commands
	res.Steps = in.tracker.Steps
	in.emit(TraceRunEnd, &span, map[string]any{
		"ok":       runErr == nil,
		"commands": len(in.commands),
		"steps":    in.tracker.Steps,
	})
	return res, runErr
}

func appendEmitted(out []Command, v Value) []Command {
	switch val := v.(type) {
	case Command:
		return append(out, val)
	case Vector:
		for _, item := range val.Items {
			if cmd, ok := item.(Command); ok {
				out = append(out, cmd)
			}
		}
	}
	return out
}

func (in *Interpreter) eval(node ast.Node) (Value, error) {
	in.tracker.Depth++
	defer func() { in.tracker.Depth-- }()
	if in.tracker.Depth > in.tracker.MaxDepth {
		return nil, in.budgetError(diagnostics.EDepth, node.NodeSpan(),
			"maximum evaluation depth of %d exceeded", in.tracker.MaxDepth)
	}

	switch n := node.(type) {
	case *ast.Number:
		return Num{Value: n.Value}, nil

	case *ast.Str:
		return Str{Value: n.Value}, nil

	case *ast.Ident:
		val, ok := in.env.Get(n.Name)
		if !ok {
			return nil, newError(diagnostics.EUnbound, n.Span, "unbound variable '%s'", n.Name)
		}
		return val, nil

	case *ast.Block:
		return in.evalSeq(n.Children)

	case *ast.Operator:
		return in.evalOperator(n)

	case *ast.IdList:
		return nil, newError(diagnostics.EAst, n.Span, "parameter list %s is only valid as the first argument of 'func'", ast.Print(n))

	default:
		return nil, newError(diagnostics.EAst, node.NodeSpan(), "cannot evaluate %s node", node.Kind())
	}
}

// evalSeq evaluates nodes in order and returns the last value, or 0 when empty.
func (in *Interpreter) evalSeq(nodes []ast.Node) (Value, error) {
	var last Value = NewNum(0)
	for _, node := range nodes {
		val, err := in.eval(node)
		if err != nil {
			return nil, err
		}
		last = val
	}
	return last, nil
}

func checkArity(op *ast.Operator, want int) error {
	if len(op.Children) != want {
		return newError(diagnostics.EArity, op.Span, "'%s' expects %d arguments, got %d", op.Name, want, len(op.Children))
	}
	return nil
}

func (in *Interpreter) number(op *ast.Operator, i int, v Value) (float64, error) {
	n, ok := v.(Num)
	if !ok {
		return 0, newError(diagnostics.EType, op.Children[i].NodeSpan(),
			"'%s' expects a number, got %s", op.Name, TypeName(v))
	}
	return n.Value, nil
}

// evalArgs evaluates every child of op in order.
func (in *Interpreter) evalArgs(op *ast.Operator) ([]Value, error) {
	vals := make([]Value, len(op.Children))
	for i, child := range op.Children {
		v, err := in.eval(child)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// numbers evaluates every child of op, all of which must be numbers.
func (in *Interpreter) numbers(op *ast.Operator) ([]float64, error) {
	vals, err := in.evalArgs(op)
	if err != nil {
		return nil, err
	}
	nums := make([]float64, len(vals))
	for i, v := range vals {
		if nums[i], err = in.number(op, i, v); err != nil {
			return nil, err
		}
	}
	return nums, nil
}

func (in *Interpreter) evalOperator(op *ast.Operator) (Value, error) {
	switch op.Name {
	case "+":
		return in.evalAdd(op)
	case "-", "*", "/", "%", "<", ">", "<=", ">=":
		return in.evalArith(op)
	case "==", "!=":
		return in.evalEquality(op)
	case "set", "const":
		return in.evalBind(op)
	case "func":
		return in.evalFunc(op)
	case "if":
		return in.evalIf(op)
	case "loop":
		return in.evalLoop(op)
	case "vec":
		items, err := in.evalArgs(op)
		if err != nil {
			return nil, err
		}
		return NewVector(items), nil
	case "at":
		return in.evalAt(op)
	case "paint":
		return in.evalPaint(op)
	default:
		return in.evalCall(op)
	}
}

func (in *Interpreter) evalAdd(op *ast.Operator) (Value, error) {
	if err := checkArity(op, 2); err != nil {
		return nil, err
	}
	vals, err := in.evalArgs(op)
	if err != nil {
		return nil, err
	}
	left, right := vals[0], vals[1]

	// Numeric addition first; otherwise both operands must be strings.
	if l, ok := left.(Num); ok {
		if r, ok := right.(Num); ok {
			return NewNum(l.Value + r.Value), nil
		}
	}
	if l, ok := left.(Str); ok {
		if r, ok := right.(Str); ok {
			return NewStr(l.Value + r.Value), nil
		}
	}
	return nil, newError(diagnostics.EType, op.Span,
		"'+' requires two numbers or two strings, got %s and %s", TypeName(left), TypeName(right))
}

func (in *Interpreter) evalArith(op *ast.Operator) (Value, error) {
	if err := checkArity(op, 2); err != nil {
		return nil, err
	}
	nums, err := in.numbers(op)
	if err != nil {
		return nil, err
	}
	l, r := nums[0], nums[1]

	switch op.Name {
	case "-":
		return NewNum(l - r), nil
	case "*":
		return NewNum(l * r), nil
	case "/":
		return NewNum(l / r), nil
	case "%":
		return NewNum(math.Mod(l, r)), nil
	case "<":
		return Bool(l < r), nil
	case ">":
		return Bool(l > r), nil
	case "<=":
		return Bool(l <= r), nil
	default:
		return Bool(l >= r), nil
	}
}

func (in *Interpreter) evalEquality(op *ast.Operator) (Value, error) {
	if err := checkArity(op, 2); err != nil {
		return nil, err
	}
	vals, err := in.evalArgs(op)
	if err != nil {
		return nil, err
	}

	// The first operand decides between numeric and string comparison.
	var equal bool
	switch l := vals[0].(type) {
	case Num:
		r, ok := vals[1].(Num)
		if !ok {
			return nil, in.compareError(op, vals)
		}
		equal = l.Value == r.Value
	case Str:
		r, ok := vals[1].(Str)
		if !ok {
			return nil, in.compareError(op, vals)
		}
		equal = l.Value == r.Value
	default:
		return nil, in.compareError(op, vals)
	}

	if op.Name == "!=" {
		return Bool(!equal), nil
	}
	return Bool(equal), nil
}

func (in *Interpreter) compareError(op *ast.Operator, vals []Value) error {
	return newError(diagnostics.EType, op.Span,
		"'%s' cannot compare %s with %s", op.Name, TypeName(vals[0]), TypeName(vals[1]))
}

func (in *Interpreter) evalBind(op *ast.Operator) (Value, error) {
	if err := checkArity(op, 2); err != nil {
		return nil, err
	}
	target, ok := op.Children[0].(*ast.Ident)
	if !ok {
		return nil, newError(diagnostics.EAst, op.Children[0].NodeSpan(),
			"'%s' target must be an identifier, got %s", op.Name, ast.Print(op.Children[0]))
	}
	val, err := in.eval(op.Children[1])
	if err != nil {
		return nil, err
	}

	var bound bool
	if op.Name == "const" {
		bound = in.env.SetConst(target.Name, val)
	} else {
		bound = in.env.Set(target.Name, val)
	}
	if !bound {
		return nil, newError(diagnostics.EConst, op.Span, "cannot rebind constant '%s'", target.Name)
	}
	return val, nil
}

func (in *Interpreter) evalFunc(op *ast.Operator) (Value, error) {
	if len(op.Children) < 2 {
		return nil, newError(diagnostics.EArity, op.Span,
			"'func' expects a parameter list and at least one body form, got %d arguments", len(op.Children))
	}
	params, ok := op.Children[0].(*ast.IdList)
	if !ok {
		return nil, newError(diagnostics.EAst, op.Children[0].NodeSpan(),
			"'func' requires a parameter list like {a b}, got %s", ast.Print(op.Children[0]))
	}
	return Func{
		Params: append([]string(nil), params.Names...),
		Body:   op.Children[1:],
	}, nil
}

func (in *Interpreter) condition(op *ast.Operator, node ast.Node) (bool, error) {
	val, err := in.eval(node)
	if err != nil {
		return false, err
	}
	truthy, ok := Truthy(val)
	if !ok {
		return false, newError(diagnostics.EType, node.NodeSpan(),
			"'%s' condition must be a number, got %s", op.Name, TypeName(val))
	}
	return truthy, nil
}

func (in *Interpreter) evalIf(op *ast.Operator) (Value, error) {
	if err := checkArity(op, 3); err != nil {
		return nil, err
	}
	cond, err := in.condition(op, op.Children[0])
	if err != nil {
		return nil, err
	}
	if cond {
		return in.eval(op.Children[1])
	}
	return in.eval(op.Children[2])
}

func (in *Interpreter) evalLoop(op *ast.Operator) (Value, error) {
	if err := checkArity(op, 2); err != nil {
		return nil, err
	}

	span := op.Span
	in.emit(TraceLoopStart, &span, nil)

	var result Value = NewNum(0)
	var iterations int64
	for {
		cond, err := in.condition(op, op.Children[0])
		if err != nil {
			return nil, err
		}
		if !cond {
			break
		}
		if err := in.step(span); err != nil {
			return nil, err
		}
		iterations++
		result, err = in.eval(op.Children[1])
		if err != nil {
			return nil, err
		}
	}

	in.emit(TraceLoopEnd, &span, map[string]any{"iterations": iterations})
	return result, nil
}

func (in *Interpreter) evalAt(op *ast.Operator) (Value, error) {
	if err := checkArity(op, 2); err != nil {
		return nil, err
	}
	vals, err := in.evalArgs(op)
	if err != nil {
		return nil, err
	}
	vec, ok := vals[0].(Vector)
	if !ok {
		return nil, newError(diagnostics.EType, op.Children[0].NodeSpan(),
			"'at' expects a vector, got %s", TypeName(vals[0]))
	}
	raw, err := in.number(op, 1, vals[1])
	if err != nil {
		return nil, err
	}

	idx := math.Trunc(raw)
	if math.IsNaN(idx) || idx < 0 || idx >= float64(len(vec.Items)) {
		return nil, newError(diagnostics.EIndex, op.Children[1].NodeSpan(),
			"index %s out of range for vector of length %d", FormatValue(vals[1]), len(vec.Items))
	}
	return vec.Items[int(idx)], nil
}

func (in *Interpreter) evalPaint(op *ast.Operator) (Value, error) {
	if err := checkArity(op, 5); err != nil {
		return nil, err
	}
	nums, err := in.numbers(op)
	if err != nil {
		return nil, err
	}

	cmd := Command{
		X:     coord(nums[0]),
		Y:     coord(nums[1]),
		Color: RGB{R: channel(nums[2]), G: channel(nums[3]), B: channel(nums[4])},
	}
	in.commands = append(in.commands, cmd)

	span := op.Span
	in.emit(TracePaint, &span, map[string]any{"x": cmd.X, "y": cmd.Y, "color": cmd.Color.Hex()})
	return cmd, nil
}

// evalCall invokes a user function. Arguments are evaluated in the caller's
// scope before the callee's scope is pushed onto the same stack.
func (in *Interpreter) evalCall(op *ast.Operator) (Value, error) {
	val, ok := in.env.Get(op.Name)
	if !ok {
		return nil, newError(diagnostics.EUnknownFn, op.Span, "unknown function '%s'", op.Name)
	}
	fn, ok := val.(Func)
	if !ok {
		return nil, newError(diagnostics.ENotFn, op.Span, "'%s' is a %s, not a function", op.Name, TypeName(val))
	}
	if len(op.Children) != len(fn.Params) {
		return nil, newError(diagnostics.EArity, op.Span,
			"'%s' expects %d arguments, got %d", op.Name, len(fn.Params), len(op.Children))
	}

	span := op.Span
	if err := in.step(span); err != nil {
		return nil, err
	}
	args, err := in.evalArgs(op)
	if err != nil {
		return nil, err
	}

	in.emit(TraceCallStart, &span, map[string]any{"name": op.Name})
	in.tracker.Calls++
	in.env.Push()
	for i, param := range fn.Params {
		in.env.Set(param, args[i])
	}
	result, err := in.evalSeq(fn.Body)
	in.env.Pop()
	in.emit(TraceCallEnd, &span, map[string]any{"name": op.Name, "ok": err == nil})

	if err != nil {
		return nil, err
	}
	return result, nil
}
