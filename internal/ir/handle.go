package ir

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sync"

	"github.com/roach88/pixbridge/internal/native"
)

// Handle is the caller-visible reference to a refcounted native object.
//
// Minting a handle takes exactly one native reference. Close gives it back;
// if the caller never calls Close, the reference is given back when the
// handle is garbage collected. Either way it is dropped exactly once.
type Handle struct {
	mu      sync.Mutex
	obj     native.Object
	typ     string
	once    sync.Once
	cleanup runtime.Cleanup
}

func (*Handle) irValue() {}

// NewHandle wraps obj, taking a new reference. The caller keeps its own
// reference, if any.
func NewHandle(obj native.Object) *Handle {
	obj.Ref()
	h := &Handle{obj: obj, typ: obj.TypeName()}
	h.cleanup = runtime.AddCleanup(h, func(o native.Object) { o.Unref() }, obj)
	return h
}

// Close drops the handle's reference. It is safe to call more than once.
func (h *Handle) Close() error {
	h.once.Do(func() {
		h.mu.Lock()
		obj := h.obj
		h.obj = nil
		h.mu.Unlock()

		h.cleanup.Stop()
		obj.Unref()
	})
	return nil
}

// Closed reports whether Close has run.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.obj == nil
}

// TypeName returns the native type name, also after Close.
func (h *Handle) TypeName() string { return h.typ }

// Object borrows the wrapped object. The result is only valid while the
// handle is open and must not be unreferenced by the caller.
func (h *Handle) Object() native.Object {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.obj
}

// Image borrows the wrapped image, or returns nil if the handle is closed or
// wraps something else.
func (h *Handle) Image() *native.Image {
	im, _ := h.Object().(*native.Image)
	return im
}

// SameObject reports whether two handles wrap the same native object.
func (h *Handle) SameObject(other *Handle) bool {
	a, b := h.Object(), other.Object()
	return a != nil && a == b
}

func (h *Handle) String() string {
	obj := h.Object()
	if obj == nil {
		return fmt.Sprintf("handle(%s, closed)", h.typ)
	}
	if s, ok := obj.(fmt.Stringer); ok {
		return s.String()
	}
	return "handle(" + h.typ + ")"
}

// Describe returns a deterministic summary of the wrapped object. Images are
// summarized by header and pixel digest so that traces of equal images
// compare equal.
func (h *Handle) Describe() IRObject {
	desc := IRObject{"type": IRString(h.typ)}
	switch obj := h.Object().(type) {
	case nil:
		desc["closed"] = IRBool(true)
	case *native.Image:
		desc["width"] = IRInt(obj.Width)
		desc["height"] = IRInt(obj.Height)
		desc["bands"] = IRInt(obj.Bands)
		desc["format"] = IRString(obj.Format.String())
		desc["interpretation"] = IRString(obj.Interpretation.String())
		desc["digest"] = IRString(ImageDigest(obj))
	}
	return desc
}

// MarshalJSON renders the handle as {"$handle": <description>}.
func (h *Handle) MarshalJSON() ([]byte, error) {
	desc, err := h.Describe().MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"$handle": desc})
}
