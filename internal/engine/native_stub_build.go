//go:build !april

package engine

// NativeAvailable reports that no native engine is compiled in.
func NativeAvailable() bool { return false }

// NewNativeEngine returns an error when built without the april tag.
func NewNativeEngine() (Engine, error) {
	return nil, ErrNativeUnavailable
}
