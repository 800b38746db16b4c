package job_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/job"
)

func ptr(v int64) *int64 { return &v }

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    job.Operation
		wantErr error
	}{
		{"add", job.OpAdd, nil},
		{"subtract", job.OpSubtract, nil},
		{"multiply", job.OpMultiply, nil},
		{"divide", job.OpDivide, nil},
		{"increment", job.OpIncrement, nil},
		{"", job.OpAdd, nil},
		{"modulo", "", taskq.ErrInvalidOperation},
		{"ADD", "", taskq.ErrInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := job.ParseOperation(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		op      job.Operation
		args    job.Args
		wantB   *int64
		wantErr error
	}{
		{"binary with b", job.OpAdd, job.Args{A: 1, B: ptr(2)}, ptr(2), nil},
		{"binary without b", job.OpDivide, job.Args{A: 1}, nil, taskq.ErrMissingOperand},
		{"unary drops b", job.OpIncrement, job.Args{A: 1, B: ptr(9)}, nil, nil},
		{"unary without b", job.OpIncrement, job.Args{A: 1}, nil, nil},
		{"unknown", job.Operation("pow"), job.Args{A: 1, B: ptr(2)}, ptr(2), taskq.ErrInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.op.Normalize(tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if (got.B == nil) != (tt.wantB == nil) {
				t.Fatalf("B = %v, want %v", got.B, tt.wantB)
			}
			if got.B != nil && *got.B != *tt.wantB {
				t.Errorf("B = %d, want %d", *got.B, *tt.wantB)
			}
		})
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		op      job.Operation
		args    job.Args
		want    any
		wantErr error
	}{
		{"add", job.OpAdd, job.Args{A: 2, B: ptr(3)}, int64(5), nil},
		{"subtract", job.OpSubtract, job.Args{A: 10, B: ptr(4)}, int64(6), nil},
		{"multiply", job.OpMultiply, job.Args{A: 6, B: ptr(7)}, int64(42), nil},
		{"divide", job.OpDivide, job.Args{A: 8, B: ptr(2)}, float64(4), nil},
		{"divide fractional", job.OpDivide, job.Args{A: 7, B: ptr(2)}, 3.5, nil},
		{"divide by zero", job.OpDivide, job.Args{A: 8, B: ptr(0)}, nil, taskq.ErrDivisionByZero},
		{"increment", job.OpIncrement, job.Args{A: 5}, int64(6), nil},
		{"add missing b", job.OpAdd, job.Args{A: 1}, nil, taskq.ErrMissingOperand},
		{"unknown", job.Operation("pow"), job.Args{A: 1}, nil, taskq.ErrInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.op.Apply(tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestApplyBeyondInt64(t *testing.T) {
	tests := []struct {
		name string
		op   job.Operation
		args job.Args
		want string
	}{
		{"add past max", job.OpAdd, job.Args{A: math.MaxInt64, B: ptr(1)}, "9223372036854775808"},
		{"subtract past min", job.OpSubtract, job.Args{A: math.MinInt64, B: ptr(1)}, "-9223372036854775809"},
		{"multiply past max", job.OpMultiply, job.Args{A: 1 << 62, B: ptr(4)}, "18446744073709551616"},
		{"increment max", job.OpIncrement, job.Args{A: math.MaxInt64}, "9223372036854775808"},
		{"multiply back in range", job.OpMultiply, job.Args{A: math.MinInt64, B: ptr(1)}, "-9223372036854775808"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.op.Apply(tt.args)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			a, err := job.Succeeded(time.Now(), got)
			if err != nil {
				t.Fatalf("Succeeded: %v", err)
			}
			if string(a.ReturnValue) != tt.want {
				t.Errorf("return value = %s, want %s", a.ReturnValue, tt.want)
			}
			var n json.Number
			if err := json.Unmarshal(a.ReturnValue, &n); err != nil {
				t.Errorf("return value is not a JSON number: %v", err)
			}
		})
	}
}

func TestOperationsArity(t *testing.T) {
	for _, op := range job.Operations() {
		if op.Arity() == 0 {
			t.Errorf("%s has no arity", op)
		}
	}
	if job.OpIncrement.Arity() != 1 {
		t.Error("increment should be unary")
	}
}
