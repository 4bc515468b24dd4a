//go:build !windows

package source

type systemPointer struct{}

// NewSystemPointer returns the OS cursor provider. Platforms without a
// cursor API report an invalid pointer, which hides the highlight.
func NewSystemPointer() PointerProvider {
	return systemPointer{}
}

func (systemPointer) Pointer() PointerState { return PointerState{} }
