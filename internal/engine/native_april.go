//go:build april

package engine

/*
#cgo linux LDFLAGS: -ldl
#include <stdlib.h>
#include "april_shim.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime/cgo"
	"sync"
	"unsafe"

	ort "github.com/yalue/onnxruntime_go"
)

// nativeLoadOnce loads ONNX Runtime and libaprilasr exactly once per process.
// nativeLoadErr is kept so later NewNativeEngine calls report the failure.
var (
	nativeLoadOnce sync.Once
	nativeLoadErr  error
	ortVersion     string

	apiInitOnce sync.Once
)

// NativeAvailable reports that the april engine is compiled in.
func NativeAvailable() bool { return true }

// NewNativeEngine loads the native libraries and returns an AprilEngine.
func NewNativeEngine() (Engine, error) {
	nativeLoadOnce.Do(func() {
		ortPath, err := ortLib.resolve()
		if err != nil {
			nativeLoadErr = fmt.Errorf("resolve ORT lib: %w", err)
			return
		}
		aprilPath, err := aprilLib.resolve()
		if err != nil {
			nativeLoadErr = fmt.Errorf("resolve april lib: %w", err)
			return
		}

		ort.SetSharedLibraryPath(ortPath)
		if err := ort.InitializeEnvironment(); err != nil {
			nativeLoadErr = fmt.Errorf("initialize ORT: %w", err)
			return
		}
		ortVersion = ort.GetVersion()

		cOrt := C.CString(ortPath)
		defer C.free(unsafe.Pointer(cOrt))
		cApril := C.CString(aprilPath)
		defer C.free(unsafe.Pointer(cApril))
		if msg := C.april_shim_open(cOrt, cApril); msg != nil {
			nativeLoadErr = errors.New(C.GoString(msg))
		}
	})
	if nativeLoadErr != nil {
		return nil, fmt.Errorf("april: %w", nativeLoadErr)
	}
	return &AprilEngine{
		models:   make(map[ModelHandle]unsafe.Pointer),
		sessions: make(map[SessionHandle]aprilSession),
	}, nil
}

// ORTVersion returns the loaded ONNX Runtime version, or "" before loading.
func ORTVersion() string { return ortVersion }

// AprilEngine calls libaprilasr through the C shim. Native pointers stay in
// the handle tables and never leave this file.
type AprilEngine struct {
	mu       sync.RWMutex
	next     uint64
	models   map[ModelHandle]unsafe.Pointer
	sessions map[SessionHandle]aprilSession
}

type aprilSession struct {
	ptr     unsafe.Pointer
	handler cgo.Handle
}

// Init calls aam_api_init once per process; later calls are ignored.
func (e *AprilEngine) Init(version int) {
	apiInitOnce.Do(func() {
		C.april_shim_api_init(C.int(version))
	})
}

func (e *AprilEngine) CreateModel(path string) ModelHandle {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	ptr := C.april_shim_create_model(cPath)
	if ptr == nil {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	h := ModelHandle(e.next)
	e.models[h] = ptr
	return h
}

func (e *AprilEngine) model(m ModelHandle) unsafe.Pointer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ptr, ok := e.models[m]
	if !ok {
		panic("engine: unknown model handle")
	}
	return ptr
}

func (e *AprilEngine) ModelName(m ModelHandle) string {
	return C.GoString(C.april_shim_model_name(e.model(m)))
}

func (e *AprilEngine) ModelDescription(m ModelHandle) string {
	return C.GoString(C.april_shim_model_description(e.model(m)))
}

func (e *AprilEngine) ModelLanguage(m ModelHandle) string {
	return C.GoString(C.april_shim_model_language(e.model(m)))
}

func (e *AprilEngine) ModelSampleRate(m ModelHandle) int {
	return int(C.april_shim_model_sample_rate(e.model(m)))
}

func (e *AprilEngine) FreeModel(m ModelHandle) {
	e.mu.Lock()
	ptr, ok := e.models[m]
	delete(e.models, m)
	e.mu.Unlock()
	if !ok {
		panic("engine: unknown model handle")
	}
	C.april_shim_free_model(ptr)
}

func (e *AprilEngine) CreateSession(m ModelHandle, cfg SessionConfig) SessionHandle {
	if cfg.Handler == nil {
		return 0
	}
	model := e.model(m)
	handler := cgo.NewHandle(cfg.Handler)
	ptr := C.april_shim_create_session(
		model,
		(*C.uint8_t)(unsafe.Pointer(&cfg.Speaker[0])),
		C.uint32_t(cfg.Flags),
		C.uintptr_t(handler),
	)
	if ptr == nil {
		handler.Delete()
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	h := SessionHandle(e.next)
	e.sessions[h] = aprilSession{ptr: ptr, handler: handler}
	return h
}

func (e *AprilEngine) session(s SessionHandle) unsafe.Pointer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sess, ok := e.sessions[s]
	if !ok {
		panic("engine: unknown session handle")
	}
	return sess.ptr
}

func (e *AprilEngine) FeedPCM16(s SessionHandle, samples []int16) {
	if len(samples) == 0 {
		return
	}
	C.april_shim_feed_pcm16(e.session(s), (*C.short)(unsafe.Pointer(&samples[0])), C.size_t(len(samples)))
}

func (e *AprilEngine) Flush(s SessionHandle) {
	C.april_shim_flush(e.session(s))
}

func (e *AprilEngine) RealtimeSpeedup(s SessionHandle) float32 {
	return float32(C.april_shim_realtime_speedup(e.session(s)))
}

// FreeSession frees the native session, then releases the handler. The
// engine joins its own threads inside aas_free, so no callback can observe
// a deleted handle.
func (e *AprilEngine) FreeSession(s SessionHandle) {
	e.mu.Lock()
	sess, ok := e.sessions[s]
	delete(e.sessions, s)
	e.mu.Unlock()
	if !ok {
		panic("engine: unknown session handle")
	}
	C.april_shim_free_session(sess.ptr)
	sess.handler.Delete()
}
