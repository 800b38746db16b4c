package job

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/xraph/taskq"
)

// Operation is the closed set of arithmetic operations a job can request.
type Operation string

const (
	OpAdd       Operation = "add"
	OpSubtract  Operation = "subtract"
	OpMultiply  Operation = "multiply"
	OpDivide    Operation = "divide"
	OpIncrement Operation = "increment"
)

// Operations lists every supported operation in display order.
func Operations() []Operation {
	return []Operation{OpAdd, OpSubtract, OpMultiply, OpDivide, OpIncrement}
}

// ParseOperation resolves an operation name. An empty name means add.
func ParseOperation(name string) (Operation, error) {
	op := Operation(strings.TrimSpace(name))
	if op == "" {
		return OpAdd, nil
	}
	if op.Arity() == 0 {
		return "", fmt.Errorf("%w: %q", taskq.ErrInvalidOperation, name)
	}
	return op, nil
}

// Arity returns the number of operands the operation takes, or zero for an
// unknown operation.
func (o Operation) Arity() int {
	switch o {
	case OpAdd, OpSubtract, OpMultiply, OpDivide:
		return 2
	case OpIncrement:
		return 1
	default:
		return 0
	}
}

// Normalize validates args against the operation's arity. The second
// operand is required for binary operations and dropped for unary ones.
func (o Operation) Normalize(args Args) (Args, error) {
	switch o.Arity() {
	case 2:
		if args.B == nil {
			return args, fmt.Errorf("%w: %s requires b", taskq.ErrMissingOperand, o)
		}
		return args, nil
	case 1:
		return Args{A: args.A}, nil
	default:
		return args, fmt.Errorf("%w: %q", taskq.ErrInvalidOperation, string(o))
	}
}

// Apply evaluates the operation. Integer operations return int64, or a
// *big.Int when the exact result does not fit; divide is true division and
// returns float64.
func (o Operation) Apply(args Args) (any, error) {
	if o.Arity() == 0 {
		return nil, fmt.Errorf("%w: %q", taskq.ErrInvalidOperation, string(o))
	}
	if o.Arity() == 2 && args.B == nil {
		return nil, fmt.Errorf("%w: %s requires b", taskq.ErrMissingOperand, o)
	}

	a := big.NewInt(args.A)
	var b *big.Int
	if args.B != nil {
		b = big.NewInt(*args.B)
	}

	var r big.Int
	switch o {
	case OpAdd:
		r.Add(a, b)
	case OpSubtract:
		r.Sub(a, b)
	case OpMultiply:
		r.Mul(a, b)
	case OpDivide:
		if b.Sign() == 0 {
			return nil, taskq.ErrDivisionByZero
		}
		return float64(args.A) / float64(*args.B), nil
	case OpIncrement:
		r.Add(a, big.NewInt(1))
	}
	return exact(&r), nil
}

// exact narrows r to int64 when it fits.
func exact(r *big.Int) any {
	if r.IsInt64() {
		return r.Int64()
	}
	return r
}
