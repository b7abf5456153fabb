// Package contract implements the deterministic, gas-metered
// stack-based interpreter spec.md §4.4 calls for. It knows nothing
// about transactions or blocks — the state package feeds it a
// Context and a storage map and applies the result.
package contract

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/acem702/powchain/internal/blockchain/database"
)

// ErrExecution is the sentinel every interpreter failure wraps: gas
// exhaustion, stack underflow, an undefined opcode, or a malformed
// program. Per spec.md §4.3, an interpreter failure only discards
// storage changes — the transfer and gas consumption still stand — so
// callers must not treat this as fatal to the enclosing transaction.
var ErrExecution = errors.New("contract execution failed")

func fail(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrExecution)...)
}

// gasCost is the fixed gas charged per opcode. SLOAD/SSTORE cost more
// than arithmetic because they touch the account's persistent storage.
var gasCost = map[string]int64{
	"PUSH":   1,
	"POP":    1,
	"ADD":    1,
	"SUB":    1,
	"MUL":    1,
	"DIV":    1,
	"MOD":    1,
	"EQ":     1,
	"LT":     1,
	"GT":     1,
	"JUMPI":  2,
	"SLOAD":  5,
	"SSTORE": 5,
	"CALLER": 1,
	"VALUE":  1,
	"HALT":   0,
	"LABEL":  0,
}

// Context carries the per-call inputs the interpreter can observe:
// who sent the transaction, how much value it carries, and the
// recipient's persistent storage. Run mutates Storage in place as it
// executes, including on a run that later fails; the caller should
// pass a scratch copy and only merge it back on success.
type Context struct {
	Sender  database.Address
	Value   *database.BigInt
	Storage map[string]string
}

// Result reports the outcome of a successful run.
type Result struct {
	GasUsed *database.BigInt
	Halted  bool
}

// instruction is one parsed line of source: an opcode and its
// argument, if any. PUSH takes a decimal integer, SLOAD/SSTORE take a
// storage key, JUMPI takes a label name, and a bare label line (ending
// in ':') becomes a no-op LABEL instruction so JUMPI has a PC to land
// on.
type instruction struct {
	op  string
	arg string
}

func parse(code string) ([]instruction, map[string]int, error) {
	var program []instruction
	labels := make(map[string]int)

	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") {
			name := strings.TrimSuffix(line, ":")
			if name == "" {
				return nil, nil, fail("empty label")
			}
			labels[name] = len(program)
			program = append(program, instruction{op: "LABEL"})
			continue
		}

		fields := strings.Fields(line)
		ins := instruction{op: strings.ToUpper(fields[0])}
		if len(fields) > 1 {
			ins.arg = fields[1]
		}
		if _, known := gasCost[ins.op]; !known {
			return nil, nil, fail("undefined opcode %q", ins.op)
		}
		program = append(program, ins)
	}

	return program, labels, nil
}

// Run executes code against ctx, stopping at HALT, at the end of the
// program, on gas exhaustion, on stack underflow, or on an undefined
// opcode. Storage reads and writes act on ctx.Storage directly; the
// caller decides whether to keep or discard it based on the returned
// error.
func Run(code string, ctx Context, gasLimit *database.BigInt) (Result, error) {
	program, labels, err := parse(code)
	if err != nil {
		return Result{}, err
	}

	limit := gasLimit.Int64()
	if gasLimit.IsNegative() || !gasLimit.IsInt64() {
		limit = 0
	}

	var stack []*big.Int
	push := func(v *big.Int) { stack = append(stack, v) }
	pop := func() (*big.Int, error) {
		if len(stack) == 0 {
			return nil, fail("stack underflow")
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	var gasUsed int64
	halted := false

	pc := 0
	for pc < len(program) {
		ins := program[pc]

		gasUsed += gasCost[ins.op]
		if gasUsed > limit {
			return Result{}, fail("out of gas")
		}

		switch ins.op {
		case "LABEL":
			// no-op, only a jump target.

		case "PUSH":
			n, ok := new(big.Int).SetString(ins.arg, 10)
			if !ok {
				return Result{}, fail("PUSH argument %q is not an integer", ins.arg)
			}
			push(n)

		case "POP":
			if _, err := pop(); err != nil {
				return Result{}, err
			}

		case "ADD", "SUB", "MUL", "DIV", "MOD", "EQ", "LT", "GT":
			b, err := pop()
			if err != nil {
				return Result{}, err
			}
			a, err := pop()
			if err != nil {
				return Result{}, err
			}
			result, err := binaryOp(ins.op, a, b)
			if err != nil {
				return Result{}, err
			}
			push(result)

		case "JUMPI":
			target, ok := labels[ins.arg]
			if !ok {
				return Result{}, fail("JUMPI target %q is undefined", ins.arg)
			}
			cond, err := pop()
			if err != nil {
				return Result{}, err
			}
			if cond.Sign() != 0 {
				pc = target
				continue
			}

		case "SLOAD":
			if ins.arg == "" {
				return Result{}, fail("SLOAD requires a key")
			}
			v, ok := ctx.Storage[ins.arg]
			if !ok {
				push(big.NewInt(0))
				break
			}
			n, ok := new(big.Int).SetString(v, 10)
			if !ok {
				return Result{}, fail("storage value at %q is not an integer", ins.arg)
			}
			push(n)

		case "SSTORE":
			if ins.arg == "" {
				return Result{}, fail("SSTORE requires a key")
			}
			v, err := pop()
			if err != nil {
				return Result{}, err
			}
			ctx.Storage[ins.arg] = v.String()

		case "CALLER":
			n, ok := new(big.Int).SetString(string(ctx.Sender), 16)
			if !ok {
				n = big.NewInt(0)
			}
			push(n)

		case "VALUE":
			push(new(big.Int).Set(&ctx.Value.Int))

		case "HALT":
			halted = true
			pc = len(program)
			continue

		default:
			return Result{}, fail("undefined opcode %q", ins.op)
		}

		pc++
	}

	used := database.NewBigInt(gasUsed)
	return Result{GasUsed: used, Halted: halted}, nil
}

func binaryOp(op string, a, b *big.Int) (*big.Int, error) {
	switch op {
	case "ADD":
		return new(big.Int).Add(a, b), nil
	case "SUB":
		return new(big.Int).Sub(a, b), nil
	case "MUL":
		return new(big.Int).Mul(a, b), nil
	case "DIV":
		if b.Sign() == 0 {
			return nil, fail("division by zero")
		}
		return new(big.Int).Div(a, b), nil
	case "MOD":
		if b.Sign() == 0 {
			return nil, fail("modulo by zero")
		}
		return new(big.Int).Mod(a, b), nil
	case "EQ":
		return boolInt(a.Cmp(b) == 0), nil
	case "LT":
		return boolInt(a.Cmp(b) < 0), nil
	case "GT":
		return boolInt(a.Cmp(b) > 0), nil
	default:
		return nil, fail("unknown binary opcode %q", op)
	}
}

func boolInt(v bool) *big.Int {
	if v {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}
