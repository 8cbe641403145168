// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// ChangeValue implements slog.LogValuer for [Change].
type ChangeValue struct {
	Change
}

func (v ChangeValue) LogValue() slog.Value {
	events := make([]slog.Value, len(v.Event))
	for i, e := range v.Event {
		events[i] = eventValue{e}.LogValue()
	}
	attrs := []slog.Attr{
		slog.Any("event", events),
		slog.Int("bytes", len(v.Data)),
	}
	if v.Data != nil {
		attrs = append(attrs, slog.String("sum", v.Sum.String()))
	}
	if v.Err != nil {
		attrs = append(attrs, slog.Any("error", v.Err))
	}
	return slog.GroupValue(attrs...)
}

type eventValue struct {
	fsnotify.Event
}

func (v eventValue) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", v.Name),
		slog.String("op", v.Op.String()),
		slog.Int("op_code", int(v.Op)),
	)
}
