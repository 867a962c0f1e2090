//go:build debug
// +build debug

package debug

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Assert panics with msg if cond is false.
//
// msg must be a string, func() string or fmt.Stringer.
func Assert(cond bool, msg interface{}) {
	if !cond {
		s := stringValue(msg)
		log.Error().Str("assert", s).Msg("[debug] assertion failed")
		panic(s)
	}
}

// Debugf logs only in debug builds.
func Debugf(format string, a ...interface{}) {
	log.Debug().Msgf(format, a...)
}

func stringValue(msg interface{}) string {
	switch m := msg.(type) {
	case string:
		return m
	case func() string:
		return m()
	case fmt.Stringer:
		return m.String()
	default:
		return fmt.Sprintf("%v", m)
	}
}
