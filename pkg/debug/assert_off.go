//go:build !debug
// +build !debug

package debug

// Assert panics with msg if cond is false. Compiled out without the debug tag.
//
// msg must be a string, func() string or fmt.Stringer.
func Assert(cond bool, msg interface{}) {
}

func Debugf(format string, a ...interface{}) {
}
