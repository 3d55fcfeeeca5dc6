package runtime

import "github.com/rs/zerolog"

// ZerologAdapter wires this package's Logger contract to
// github.com/rs/zerolog, the ambient logging library used everywhere else
// in this repository. Generated code
// never imports zerolog directly; it only ever calls through Context, so
// callers who don't want the dependency in their runtime binary can pass a
// different Logger implementation instead.
type ZerologAdapter struct {
	Logger zerolog.Logger
}

func (z ZerologAdapter) Debug(msg string, fields map[string]any) {
	ev := z.Logger.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (z ZerologAdapter) Error(msg string, err error, fields map[string]any) {
	ev := z.Logger.Error().Err(err)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
