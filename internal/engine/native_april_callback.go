//go:build april

package engine

/*
#include "april_shim.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

// goAprilResult is the handler every native session is configured with.
// userdata carries the cgo.Handle of the session's ResultHandler.
//
//export goAprilResult
func goAprilResult(userdata C.uintptr_t, result C.int, count C.size_t, tokens *C.AprilToken) {
	handler := cgo.Handle(userdata).Value().(ResultHandler)

	var out []Token
	if count > 0 && tokens != nil {
		raw := unsafe.Slice(tokens, int(count))
		out = make([]Token, len(raw))
		for i, t := range raw {
			out[i] = Token{
				Text:    C.GoString(t.token),
				LogProb: float32(t.logprob),
				Flags:   uint32(t.flags),
				TimeMs:  uint64(t.time_ms),
			}
		}
	}
	handler(ResultType(result), out)
}
