// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/encoding/gocode/gocodec"
	"golang.org/x/exp/constraints"
)

// schemas holds compiled schemas keyed by their source. Compiled values
// share the context that compiled them.
var schemas = struct {
	sync.Mutex
	ctx *cue.Context
	m   map[string]cue.Value
}{m: make(map[string]cue.Value)}

// compile returns the compiled schema and its context.
func compile(schema string) (*cue.Context, cue.Value, error) {
	schemas.Lock()
	defer schemas.Unlock()
	if schemas.ctx == nil {
		schemas.ctx = cuecontext.New()
	}
	v, ok := schemas.m[schema]
	if ok {
		return schemas.ctx, v, nil
	}
	v = schemas.ctx.CompileString(schema)
	if err := v.Err(); err != nil {
		return nil, cue.Value{}, fmt.Errorf("invalid schema: %w", err)
	}
	schemas.m[schema] = v
	return schemas.ctx, v, nil
}

// Validate checks cfg against the CUE schema, returning the sorted list of
// invalid paths and a CUE errors.Error describing the issues if cfg does
// not conform.
func Validate(schema string, cfg any) (paths [][]string, err error) {
	ctx, v, err := compile(schema)
	if err != nil {
		return nil, err
	}
	schemas.Lock()
	defer schemas.Unlock()
	w, err := gocodec.New(ctx, nil).Decode(cfg)
	if err != nil {
		return nil, err
	}

	u := v.Unify(w)
	err = u.Validate(cue.Concrete(true), cue.Final())
	errs := cerrors.Errors(err)
	if len(errs) == 0 {
		return nil, nil
	}
	for _, e := range errs {
		if p := cerrors.Path(e); p != nil {
			paths = append(paths, p)
		}
	}
	err = cerrors.Append(
		cerrors.Promote(err, ""),
		cerrors.Promote(fmt.Errorf("%s", u), "not concrete"),
	)
	return unique(paths), err
}

// unique returns paths sorted lexically with repeated and nil paths
// removed. The backing array of paths is reused.
func unique(paths [][]string) [][]string {
	paths = slices.DeleteFunc(paths, func(p []string) bool { return p == nil })
	slices.SortFunc(paths, compare[string])
	return slices.CompactFunc(paths, func(a, b []string) bool {
		return compare(a, b) == 0
	})
}

// compare returns the lexical ordering of a and b, shorter first when one
// is a prefix of the other.
func compare[T constraints.Ordered](a, b []T) int {
	for i := range min(len(a), len(b)) {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
