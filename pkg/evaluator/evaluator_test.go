package evaluator_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/thomasrohde/brush/pkg/ast"
	"github.com/thomasrohde/brush/pkg/diagnostics"
	"github.com/thomasrohde/brush/pkg/evaluator"
	"github.com/thomasrohde/brush/pkg/parser"
)

// --- helpers ---

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, diags := parser.Parse(src, "test.brush")
	if len(diags) > 0 {
		t.Fatalf("parse errors: %s", diagnostics.FormatDiagnostics(diags, true))
	}
	return prog
}

// run parses and executes brush source with default options.
func run(t *testing.T, src string) (*evaluator.ExecResult, error) {
	t.Helper()
	return runWith(t, src, evaluator.Options{})
}

// runWith parses and executes brush source with custom Options.
func runWith(t *testing.T, src string, opts evaluator.Options) (*evaluator.ExecResult, error) {
	t.Helper()
	return evaluator.New(parse(t, src), opts).Execute(context.Background())
}

// mustRun is like run but also fails on runtime errors.
func mustRun(t *testing.T, src string) *evaluator.ExecResult {
	t.Helper()
	res, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	return res
}

// expectNumber asserts the value is a Num with the expected value.
func expectNumber(t *testing.T, val evaluator.Value, expected float64) {
	t.Helper()
	num, ok := val.(evaluator.Num)
	if !ok {
		t.Fatalf("expected Num, got %T (%v)", val, val)
	}
	if num.Value != expected {
		t.Errorf("got %v, want %v", num.Value, expected)
	}
}

// expectString asserts the value is a Str with the expected value.
func expectString(t *testing.T, val evaluator.Value, expected string) {
	t.Helper()
	s, ok := val.(evaluator.Str)
	if !ok {
		t.Fatalf("expected Str, got %T (%v)", val, val)
	}
	if s.Value != expected {
		t.Errorf("got %q, want %q", s.Value, expected)
	}
}

// expectCode asserts err is a *RuntimeError with the given code.
func expectCode(t *testing.T, err error, code string) *evaluator.RuntimeError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var rtErr *evaluator.RuntimeError
	if !errors.As(err, &rtErr) {
		t.Fatalf("expected *RuntimeError, got %T: %v", err, err)
	}
	if rtErr.Code != code {
		t.Fatalf("got code %s (%s), want %s", rtErr.Code, rtErr.Message, code)
	}
	if rtErr.Span == nil {
		t.Errorf("expected span on %s error", code)
	}
	return rtErr
}

// runErr runs src and asserts it fails with code.
func runErr(t *testing.T, src, code string) *evaluator.RuntimeError {
	t.Helper()
	_, err := run(t, src)
	return expectCode(t, err, code)
}

// ---- Literals and blocks ----

func TestLiterals(t *testing.T) {
	expectNumber(t, mustRun(t, "42").Value, 42)
	expectNumber(t, mustRun(t, "2.5").Value, 2.5)
	expectString(t, mustRun(t, `"hi"`).Value, "hi")
}

func TestEmptyProgramValue(t *testing.T) {
	res := mustRun(t, "")
	expectNumber(t, res.Value, 0)
	if len(res.Commands) != 0 || len(res.Emitted) != 0 {
		t.Errorf("expected no commands, got %v / %v", res.Commands, res.Emitted)
	}
}

func TestBlock(t *testing.T) {
	expectNumber(t, mustRun(t, "[]").Value, 0)
	expectNumber(t, mustRun(t, "[1 2 3]").Value, 3)
	expectNumber(t, mustRun(t, "[(set x 4) (* x x)]").Value, 16)
}

func TestUnboundVariable(t *testing.T) {
	e := runErr(t, "(set x 1) y", diagnostics.EUnbound)
	if e.Message != "unbound variable 'y'" {
		t.Errorf("got %q", e.Message)
	}
}

// ---- Arithmetic ----

func TestAddNumbers(t *testing.T) {
	expectNumber(t, mustRun(t, "(+ 2 3)").Value, 5)
	expectNumber(t, mustRun(t, "(+ 0.5 (+ 1 1))").Value, 2.5)
}

func TestAddStrings(t *testing.T) {
	expectString(t, mustRun(t, `(+ "foo" "bar")`).Value, "foobar")
	expectString(t, mustRun(t, `(+ "" "x")`).Value, "x")
}

func TestAddMixedIsTypeError(t *testing.T) {
	for _, src := range []string{`(+ 1 "a")`, `(+ "a" 1)`, `(+ (vec) (vec))`} {
		t.Run(src, func(t *testing.T) {
			runErr(t, src, diagnostics.EType)
		})
	}
}

func TestNumericOperators(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"(- 10 4)", 6},
		{"(* 3 4)", 12},
		{"(/ 7 2)", 3.5},
		{"(% 7 3)", 1},
		{"(% (- 0 7) 3)", -1},
		{"(% 5.5 2)", 1.5},
		{"(< 1 2)", 1},
		{"(< 2 1)", 0},
		{"(> 2 1)", 1},
		{"(<= 2 2)", 1},
		{"(>= 1 2)", 0},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expectNumber(t, mustRun(t, tt.src).Value, tt.want)
		})
	}
}

func TestDivisionByZeroFollowsIEEE(t *testing.T) {
	v := mustRun(t, "(/ 1 0)").Value.(evaluator.Num)
	if !math.IsInf(v.Value, 1) {
		t.Errorf("(/ 1 0) = %v, want +Inf", v.Value)
	}
	v = mustRun(t, "(% 1 0)").Value.(evaluator.Num)
	if !math.IsNaN(v.Value) {
		t.Errorf("(%% 1 0) = %v, want NaN", v.Value)
	}
}

func TestNumericOperatorsRejectStrings(t *testing.T) {
	for _, src := range []string{`(- "a" 1)`, `(* 2 "b")`, `(< "a" "b")`, `(>= 1 "1")`} {
		t.Run(src, func(t *testing.T) {
			runErr(t, src, diagnostics.EType)
		})
	}
}

func TestTypeErrorPointsAtOperand(t *testing.T) {
	e := runErr(t, `(- 1 "two")`, diagnostics.EType)
	if e.Span.StartCol != 6 {
		t.Errorf("span starts at col %d, want 6", e.Span.StartCol)
	}
}

// ---- Equality ----

func TestEquality(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"(== 1 1)", 1},
		{"(== 1 2)", 0},
		{"(!= 1 2)", 1},
		{"(!= 3 3)", 0},
		{`(== "a" "a")`, 1},
		{`(== "a" "b")`, 0},
		{`(!= "a" "b")`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expectNumber(t, mustRun(t, tt.src).Value, tt.want)
		})
	}
}

func TestEqualityMixedTypes(t *testing.T) {
	for _, src := range []string{`(== 1 "1")`, `(!= "a" 1)`, `(== (vec) (vec))`} {
		t.Run(src, func(t *testing.T) {
			runErr(t, src, diagnostics.EType)
		})
	}
}

// ---- Bindings ----

func TestSetReturnsValue(t *testing.T) {
	expectNumber(t, mustRun(t, "(set x 5)").Value, 5)
}

func TestRebindMutable(t *testing.T) {
	expectNumber(t, mustRun(t, "(set x 5) (const y 5) (set x 6) x").Value, 6)
}

func TestConstReassignment(t *testing.T) {
	e := runErr(t, "(set x 5) (const y 5) (set y 6)", diagnostics.EConst)
	if e.Message != "cannot rebind constant 'y'" {
		t.Errorf("got %q", e.Message)
	}
	runErr(t, "(const y 5) (const y 6)", diagnostics.EConst)
}

func TestConstShadowedInCallScope(t *testing.T) {
	res := mustRun(t, "(const c 1) (set g (func {} (set c 2))) (vec (g) c)")
	vec := res.Value.(evaluator.Vector)
	expectNumber(t, vec.Items[0], 2)
	expectNumber(t, vec.Items[1], 1)
}

func TestBindTargetMustBeIdentifier(t *testing.T) {
	runErr(t, "(set 1 2)", diagnostics.EAst)
	runErr(t, `(const "x" 2)`, diagnostics.EAst)
	runErr(t, "(set (x) 2)", diagnostics.EAst)
}

// ---- Control flow ----

func TestIf(t *testing.T) {
	expectNumber(t, mustRun(t, "(if (< 1 2) 10 20)").Value, 10)
	expectNumber(t, mustRun(t, "(if (< 2 1) 10 20)").Value, 20)
	expectNumber(t, mustRun(t, "(if 0.1 1 2)").Value, 1)
}

func TestIfEvaluatesOneBranch(t *testing.T) {
	expectNumber(t, mustRun(t, "(if 1 10 (missing))").Value, 10)
	res := mustRun(t, "(if 0 (paint 0 0 0 0 0) (paint 1 1 1 1 1))")
	if len(res.Commands) != 1 || res.Commands[0].X != 1 {
		t.Errorf("got commands %v", res.Commands)
	}
}

func TestIfConditionMustBeNumber(t *testing.T) {
	runErr(t, `(if "yes" 1 2)`, diagnostics.EType)
}

func TestLoop(t *testing.T) {
	res := mustRun(t, `
		(set i 0)
		(set n 0)
		(loop (< i 3) [(set i (+ i 1)) (set n (+ n 1))])
		n`)
	expectNumber(t, res.Value, 3)
	if res.Steps != 3 {
		t.Errorf("Steps = %d, want 3", res.Steps)
	}
}

func TestLoopValue(t *testing.T) {
	expectNumber(t, mustRun(t, "(set i 0) (loop (< i 3) (set i (+ i 1)))").Value, 3)
	expectNumber(t, mustRun(t, "(loop 0 99)").Value, 0)
}

func TestLoopConditionMustBeNumber(t *testing.T) {
	runErr(t, `(loop "x" 1)`, diagnostics.EType)
}

// ---- Vectors ----

func TestVecAt(t *testing.T) {
	expectNumber(t, mustRun(t, "(set v (vec 1 2 3)) (at v 1)").Value, 2)
	expectNumber(t, mustRun(t, "(set v (vec 1 2 3)) (at v 1.9)").Value, 2)
	expectNumber(t, mustRun(t, "(set v (vec 1 2 3)) (at v (- 0 0.5))").Value, 1)
	expectString(t, mustRun(t, `(at (vec "a" (vec 1)) 0)`).Value, "a")
}

func TestEmptyVec(t *testing.T) {
	vec, ok := mustRun(t, "(vec)").Value.(evaluator.Vector)
	if !ok || len(vec.Items) != 0 {
		t.Fatalf("expected empty vector, got %v", vec)
	}
}

func TestAtOutOfRange(t *testing.T) {
	tests := []string{
		"(set v (vec 1 2 3)) (at v 5)",
		"(set v (vec 1 2 3)) (at v 3)",
		"(set v (vec 1 2 3)) (at v (- 0 1))",
		"(at (vec) 0)",
		"(at (vec 1) (% 1 0))",
		"(at (vec 1) 1e300)",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			runErr(t, src, diagnostics.EIndex)
		})
	}
}

func TestAtTypeErrors(t *testing.T) {
	runErr(t, "(at 5 0)", diagnostics.EType)
	runErr(t, `(at (vec 1) "0")`, diagnostics.EType)
}

// ---- Paint ----

func TestPaint(t *testing.T) {
	res := mustRun(t, "(paint 1 2 255 0 0)")
	if len(res.Commands) != 1 {
		t.Fatalf("got %d commands, want 1", len(res.Commands))
	}
	want := evaluator.Command{X: 1, Y: 2, Color: evaluator.RGB{R: 255}}
	if res.Commands[0] != want {
		t.Errorf("got %+v, want %+v", res.Commands[0], want)
	}
	if cmd, ok := res.Value.(evaluator.Command); !ok || cmd != want {
		t.Errorf("paint value = %v, want %+v", res.Value, want)
	}
}

func TestPaintValueUsableInVec(t *testing.T) {
	res := mustRun(t, "(set v (vec (paint 1 2 255 0 0) 7)) (at v 0)")
	if _, ok := res.Value.(evaluator.Command); !ok {
		t.Fatalf("expected Command, got %T", res.Value)
	}
	if len(res.Commands) != 1 {
		t.Errorf("got %d commands, want 1", len(res.Commands))
	}
}

func TestPaintTruncatesAndSaturates(t *testing.T) {
	res := mustRun(t, "(paint 1.9 (- 0 2.5) 300 (- 0 5) 127.9)")
	want := evaluator.Command{X: 1, Y: -2, Color: evaluator.RGB{R: 255, G: 0, B: 127}}
	if res.Commands[0] != want {
		t.Errorf("got %+v, want %+v", res.Commands[0], want)
	}

	res = mustRun(t, "(paint 0 0 (% 1 0) 256 0.5)")
	want = evaluator.Command{Color: evaluator.RGB{R: 0, G: 255, B: 0}}
	if res.Commands[0] != want {
		t.Errorf("got %+v, want %+v", res.Commands[0], want)
	}
}

func TestPaintRequiresNumbers(t *testing.T) {
	runErr(t, `(paint 1 2 "r" 0 0)`, diagnostics.EType)
	runErr(t, "(paint 1 2 3 4)", diagnostics.EArity)
}

func TestPaintLogOrder(t *testing.T) {
	res := mustRun(t, `
		(set i 0)
		(loop (< i 3) [(paint i 0 0 0 0) (set i (+ i 1))])`)
	if len(res.Commands) != 3 {
		t.Fatalf("got %d commands", len(res.Commands))
	}
	for i, cmd := range res.Commands {
		if cmd.X != int64(i) {
			t.Errorf("command %d has x=%d", i, cmd.X)
		}
	}
}

// ---- Emitted ----

func TestEmittedCollectsTopLevelCommands(t *testing.T) {
	res := mustRun(t, `
		(paint 0 0 1 1 1)
		(vec (paint 1 1 2 2 2) 5 "s" (vec (paint 9 9 9 9 9)))
		[(paint 2 2 3 3 3) 0]`)
	if len(res.Commands) != 4 {
		t.Errorf("got %d commands, want 4", len(res.Commands))
	}
	if len(res.Emitted) != 2 {
		t.Fatalf("got %d emitted, want 2: %v", len(res.Emitted), res.Emitted)
	}
	if res.Emitted[0].X != 0 || res.Emitted[1].X != 1 {
		t.Errorf("got emitted %v", res.Emitted)
	}
}

// ---- Functions ----

func TestFuncCall(t *testing.T) {
	expectNumber(t, mustRun(t, "(set f (func {a b} (* a b))) (f 3 4)").Value, 12)
}

func TestFuncValue(t *testing.T) {
	fn, ok := mustRun(t, "(func {a b} a)").Value.(evaluator.Func)
	if !ok {
		t.Fatal("expected Func")
	}
	if len(fn.Params) != 2 || len(fn.Body) != 1 {
		t.Errorf("got %d params, %d body forms", len(fn.Params), len(fn.Body))
	}
}

func TestFuncMultipleBodyForms(t *testing.T) {
	expectNumber(t, mustRun(t, "(set g (func {a} (set t (* a 2)) (+ t 1))) (g 5)").Value, 11)
}

func TestFuncArity(t *testing.T) {
	for _, src := range []string{
		"(set f (func {a b} (* a b))) (f 1)",
		"(set f (func {a b} (* a b))) (f 1 2 3)",
	} {
		t.Run(src, func(t *testing.T) {
			runErr(t, src, diagnostics.EArity)
		})
	}
}

func TestArityCheckedBeforeArguments(t *testing.T) {
	res, err := run(t, "(set f (func {a} a)) (f (paint 0 0 0 0 0) 2)")
	expectCode(t, err, diagnostics.EArity)
	if len(res.Commands) != 0 {
		t.Errorf("arguments were evaluated: %v", res.Commands)
	}

	res, err = run(t, "(+ (paint 0 0 0 0 0))")
	expectCode(t, err, diagnostics.EArity)
	if len(res.Commands) != 0 {
		t.Errorf("arguments were evaluated: %v", res.Commands)
	}
}

func TestFuncShapeErrors(t *testing.T) {
	runErr(t, "(func {a})", diagnostics.EArity)
	runErr(t, "(func a b)", diagnostics.EAst)
	runErr(t, "{a b}", diagnostics.EAst)
}

func TestCallErrors(t *testing.T) {
	e := runErr(t, "(nope 1)", diagnostics.EUnknownFn)
	if e.Message != "unknown function 'nope'" {
		t.Errorf("got %q", e.Message)
	}
	e = runErr(t, "(set x 1) (x)", diagnostics.ENotFn)
	if e.Message != "'x' is a number, not a function" {
		t.Errorf("got %q", e.Message)
	}
}

func TestRecursion(t *testing.T) {
	res := mustRun(t, `
		(set fact (func {n} (if (<= n 1) 1 (* n (fact (- n 1))))))
		(fact 10)`)
	expectNumber(t, res.Value, 3628800)
}

// ---- Scoping ----

func TestDynamicScoping(t *testing.T) {
	res := mustRun(t, `
		(set show (func {} x))
		(set caller (func {x} (show)))
		(caller 42)`)
	expectNumber(t, res.Value, 42)
}

func TestArgumentsEvaluatedInCallerScope(t *testing.T) {
	expectNumber(t, mustRun(t, "(set a 1) (set f (func {a b} b)) (f 10 a)").Value, 1)
}

func TestCallScopePopped(t *testing.T) {
	runErr(t, "(set f (func {a} a)) (f 1) a", diagnostics.EUnbound)
	expectNumber(t, mustRun(t, "(set f (func {} (set local 1))) (f) (set local 2) local").Value, 2)
}

func TestCallScopePoppedOnError(t *testing.T) {
	in := evaluator.New(parse(t, `(set f (func {a} (+ a "s"))) (f 1)`), evaluator.Options{})
	_, err := in.Execute(context.Background())
	expectCode(t, err, diagnostics.EType)
	if d := in.Env().Depth(); d != 1 {
		t.Errorf("scope depth after error = %d, want 1", d)
	}
	if in.Env().Has("a") {
		t.Error("parameter leaked into global scope")
	}
}

// ---- Partial execution ----

func TestPartialExecutionKeepsEarlierCommands(t *testing.T) {
	res, err := run(t, `
		(paint 0 0 1 1 1)
		(paint 1 1 2 2 2)
		(+ 1 "x")
		(paint 2 2 3 3 3)`)
	expectCode(t, err, diagnostics.EType)
	if res == nil {
		t.Fatal("expected partial result alongside error")
	}
	if len(res.Commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(res.Commands))
	}
	if len(res.Emitted) != 2 {
		t.Errorf("got %d emitted, want 2", len(res.Emitted))
	}
}

func TestPartialExecutionWithinForm(t *testing.T) {
	res, err := run(t, "[(paint 0 0 0 0 0) (at (vec) 0)]")
	expectCode(t, err, diagnostics.EIndex)
	if len(res.Commands) != 1 {
		t.Errorf("got %d commands, want 1", len(res.Commands))
	}
}

// ---- Limits and cancellation ----

func TestStepBudget(t *testing.T) {
	res, err := runWith(t, "(loop 1 0)", evaluator.Options{Limits: evaluator.Limits{MaxSteps: 10}})
	e := expectCode(t, err, diagnostics.EBudget)
	if e.Message != "step budget exceeded (max 10)" {
		t.Errorf("got %q", e.Message)
	}
	if res.Steps != 11 {
		t.Errorf("Steps = %d, want 11", res.Steps)
	}
}

func TestStepBudgetCountsCalls(t *testing.T) {
	src := "(set f (func {} 1)) (f) (f) (f)"
	if _, err := runWith(t, src, evaluator.Options{Limits: evaluator.Limits{MaxSteps: 3}}); err != nil {
		t.Fatalf("3 calls within budget of 3: %v", err)
	}
	_, err := runWith(t, src, evaluator.Options{Limits: evaluator.Limits{MaxSteps: 2}})
	expectCode(t, err, diagnostics.EBudget)
}

func TestTimeout(t *testing.T) {
	start := time.Now()
	_, err := runWith(t, "(loop 1 0)", evaluator.Options{Limits: evaluator.Limits{Timeout: 20 * time.Millisecond}})
	expectCode(t, err, diagnostics.EBudget)
	if time.Since(start) > 5*time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}
}

func TestCallDepthLimit(t *testing.T) {
	_, err := runWith(t, "(set r (func {n} (r n))) (r 1)", evaluator.Options{Limits: evaluator.Limits{MaxCallDepth: 50}})
	expectCode(t, err, diagnostics.EDepth)
}

func TestDefaultCallDepthLimit(t *testing.T) {
	_, err := run(t, "(set r (func {n} (r (+ n 1)))) (r 0)")
	expectCode(t, err, diagnostics.EDepth)
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := evaluator.New(parse(t, "(loop 1 0)"), evaluator.Options{}).Execute(ctx)
	expectCode(t, err, diagnostics.ECancelled)
}

func TestContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := evaluator.New(parse(t, "(loop 1 0)"), evaluator.Options{}).Execute(ctx)
	expectCode(t, err, diagnostics.EBudget)
}

func TestCancelFromAnotherGoroutine(t *testing.T) {
	in := evaluator.New(parse(t, "(loop 1 0)"), evaluator.Options{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		in.Cancel()
	}()
	_, err := in.Execute(context.Background())
	expectCode(t, err, diagnostics.ECancelled)

	// The flag is cleared once Execute returns.
	in.Load(parse(t, "7"))
	res, err := in.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error after cancel: %v", err)
	}
	expectNumber(t, res.Value, 7)
}

func TestCancelBeforeExecute(t *testing.T) {
	in := evaluator.New(parse(t, "(paint 0 0 0 0 0)"), evaluator.Options{})
	in.Cancel()
	res, err := in.Execute(context.Background())
	expectCode(t, err, diagnostics.ECancelled)
	if len(res.Commands) != 0 {
		t.Errorf("got %d commands", len(res.Commands))
	}
}

// ---- Interpreter reuse ----

func TestLoadKeepsBindings(t *testing.T) {
	in := evaluator.New(parse(t, "(set x 2) (paint 0 0 0 0 0)"), evaluator.Options{})
	if _, err := in.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in.Load(parse(t, "(* x 21)"))
	res, err := in.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectNumber(t, res.Value, 42)
	if len(res.Commands) != 0 {
		t.Errorf("command log not reset: %v", res.Commands)
	}
}

func TestInterpretersAreIndependent(t *testing.T) {
	a := evaluator.New(parse(t, "(set x 1) (paint 0 0 0 0 0)"), evaluator.Options{})
	b := evaluator.New(parse(t, "x"), evaluator.Options{})
	if _, err := a.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := b.Execute(context.Background())
	expectCode(t, err, diagnostics.EUnbound)
}

// ---- Trace ----

func TestTraceEvents(t *testing.T) {
	var events []evaluator.TraceEvent
	opts := evaluator.Options{
		RunID: "run-1",
		Trace: func(ev evaluator.TraceEvent) { events = append(events, ev) },
	}
	_, err := runWith(t, `
		(set f (func {a} a))
		(f 1)
		(set i 0)
		(loop (< i 1) (set i (+ i 1)))
		(paint 0 0 0 0 0)`, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) == 0 {
		t.Fatal("no trace events")
	}
	if events[0].Event != evaluator.TraceRunStart {
		t.Errorf("first event = %s", events[0].Event)
	}
	last := events[len(events)-1]
	if last.Event != evaluator.TraceRunEnd {
		t.Errorf("last event = %s", last.Event)
	}
	if last.Data["commands"] != 1 {
		t.Errorf("run_end commands = %v", last.Data["commands"])
	}

	seen := map[evaluator.TraceEventType]int{}
	for _, ev := range events {
		seen[ev.Event]++
		if ev.RunID != "run-1" {
			t.Errorf("event %s has runId %q", ev.Event, ev.RunID)
		}
		if ev.Timestamp == "" {
			t.Errorf("event %s has no timestamp", ev.Event)
		}
	}
	for _, want := range []evaluator.TraceEventType{
		evaluator.TraceCallStart, evaluator.TraceCallEnd,
		evaluator.TraceLoopStart, evaluator.TraceLoopEnd,
		evaluator.TracePaint,
	} {
		if seen[want] != 1 {
			t.Errorf("saw %d %s events, want 1", seen[want], want)
		}
	}
	if seen[evaluator.TraceFormStart] != 5 || seen[evaluator.TraceFormEnd] != 5 {
		t.Errorf("form events: %d start, %d end", seen[evaluator.TraceFormStart], seen[evaluator.TraceFormEnd])
	}
}

func TestTraceBudgetExceeded(t *testing.T) {
	var budgetEvents int
	opts := evaluator.Options{
		Limits: evaluator.Limits{MaxSteps: 1},
		Trace: func(ev evaluator.TraceEvent) {
			if ev.Event == evaluator.TraceBudgetExceeded {
				budgetEvents++
			}
		},
	}
	_, err := runWith(t, "(loop 1 0)", opts)
	expectCode(t, err, diagnostics.EBudget)
	if budgetEvents != 1 {
		t.Errorf("got %d budget_exceeded events, want 1", budgetEvents)
	}
}
