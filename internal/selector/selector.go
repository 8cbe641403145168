// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package selector provides CEL expressions for selecting animation
// frames.
//
// Expressions are evaluated once per served frame and must return a bool.
// The following variables are available:
//
//	index   int  // position of the frame in the animation
//	tick    int  // number of the tick that served the frame
//	delay   int  // display time of the frame in milliseconds
//	width   int  // width of the frame
//	height  int  // height of the frame
//	x, y    int  // offset of the frame on the canvas
//	frames  int  // number of frames decoded so far
//
// For example, every other frame shown for at least 100ms:
//
//	index % 2 == 0 && delay >= 100
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/types/known/structpb"
)

// Vars holds the frame properties exposed to an expression.
type Vars struct {
	Index  int
	Tick   int
	Delay  int
	Width  int
	Height int
	X, Y   int
	Frames int
}

func (v Vars) activation() map[string]any {
	return map[string]any{
		"index":  v.Index,
		"tick":   v.Tick,
		"delay":  v.Delay,
		"width":  v.Width,
		"height": v.Height,
		"x":      v.X,
		"y":      v.Y,
		"frames": v.Frames,
	}
}

// Program is a compiled frame selection expression.
type Program struct {
	src string
	prg cel.Program
}

// All is the expression that selects every frame.
const All = "true"

// Compile returns a Program for the expression in src. If log is not nil,
// the debug function logs to it.
func Compile(src string, log *slog.Logger) (*Program, error) {
	if src == "" {
		src = All
	}
	env, err := cel.NewEnv(
		Lib(log),
		cel.Variable("index", cel.IntType),
		cel.Variable("tick", cel.IntType),
		cel.Variable("delay", cel.IntType),
		cel.Variable("width", cel.IntType),
		cel.Variable("height", cel.IntType),
		cel.Variable("x", cel.IntType),
		cel.Variable("y", cel.IntType),
		cel.Variable("frames", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create env: %v", err)
	}

	ast, iss := env.Compile(src)
	if iss.Err() != nil {
		return nil, fmt.Errorf("failed compilation: %v", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must return bool, not %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed program instantiation: %v", err)
	}
	return &Program{src: src, prg: prg}, nil
}

// String returns the source of the expression.
func (p *Program) String() string { return p.src }

// Match returns whether the frame described by v is selected.
func (p *Program) Match(v Vars) (bool, error) {
	out, _, err := p.prg.Eval(v.activation())
	if err != nil {
		return false, fmt.Errorf("failed eval: %v", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("expression did not return bool")
	}
	return b, nil
}

// Lib returns a cel.EnvOption to configure the debug function.
//
// # Debug
//
// The second parameter is returned unaltered and the value is logged to the
// lib's logger:
//
//	debug(<string>, <dyn>) -> <dyn>
//
// Examples:
//
//	debug("tag", expr) // return expr even if it is an error and logs with "tag".
func Lib(log *slog.Logger) cel.EnvOption {
	return cel.Lib(lib{log: log})
}

type lib struct {
	log *slog.Logger
}

func (l lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("debug",
			cel.Overload(
				"debug_string_dyn",
				[]*cel.Type{cel.StringType, cel.DynType},
				cel.DynType,
				cel.BinaryBinding(l.logDebug),
				cel.OverloadIsNonStrict(),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption { return nil }

func (l lib) logDebug(arg0, arg1 ref.Val) ref.Val {
	tag, ok := arg0.(types.String)
	if !ok {
		return types.ValOrErr(tag, "no such overload")
	}
	if l.log == nil {
		return arg1
	}
	val, err := arg1.ConvertToNative(reflect.TypeOf((*structpb.Value)(nil)))
	if err != nil {
		l.log.LogAttrs(context.Background(), slog.LevelError, "cel debug log error", slog.String("tag", string(tag)), slog.Any("error", err))
	} else {
		l.log.LogAttrs(context.Background(), slog.LevelDebug, "cel debug log", slog.String("tag", string(tag)), slog.Any("value", val))
	}
	return arg1
}
