package engine

import (
	"fmt"
	"io"
	"math"
)

// HostFunc is a function implemented by the engine rather than in IR.
// Programs reach one by declaring it with extern.
type HostFunc struct {
	Arity int
	Fn    func(out io.Writer, args []float64) float64
}

func math1(fn func(float64) float64) HostFunc {
	return HostFunc{Arity: 1, Fn: func(_ io.Writer, a []float64) float64 { return fn(a[0]) }}
}

func math2(fn func(float64, float64) float64) HostFunc {
	return HostFunc{Arity: 2, Fn: func(_ io.Writer, a []float64) float64 { return fn(a[0], a[1]) }}
}

var builtinHost = map[string]HostFunc{
	// putchard writes its argument as a byte and returns 0.
	"putchard": {Arity: 1, Fn: func(out io.Writer, a []float64) float64 {
		out.Write([]byte{byte(a[0])})
		return 0
	}},
	// printd writes its argument in %f form on its own line and returns 0.
	"printd": {Arity: 1, Fn: func(out io.Writer, a []float64) float64 {
		fmt.Fprintf(out, "%f\n", a[0])
		return 0
	}},
	"sin":   math1(math.Sin),
	"cos":   math1(math.Cos),
	"tan":   math1(math.Tan),
	"atan2": math2(math.Atan2),
	"sqrt":  math1(math.Sqrt),
	"exp":   math1(math.Exp),
	"log":   math1(math.Log),
	"pow":   math2(math.Pow),
	"fabs":  math1(math.Abs),
	"floor": math1(math.Floor),
}
