package native

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Object is a refcounted native object. Handles minted by the bridge hold
// exactly one reference each.
type Object interface {
	Ref()
	Unref()
	RefCount() int32
	TypeName() string
}

// refcount is embedded by every native object. The dispose hook runs once,
// when the count drops to zero.
type refcount struct {
	refs    atomic.Int32
	dispose func()
	once    sync.Once
}

func (r *refcount) init(dispose func()) {
	r.refs.Store(1)
	r.dispose = dispose
}

// Ref takes a new reference.
func (r *refcount) Ref() {
	if r.refs.Add(1) <= 1 {
		panic("native: Ref on a disposed object")
	}
}

// Unref drops a reference.
func (r *refcount) Unref() {
	n := r.refs.Add(-1)
	switch {
	case n == 0:
		if r.dispose != nil {
			r.once.Do(r.dispose)
		}
	case n < 0:
		panic("native: Unref on a disposed object")
	}
}

// RefCount returns the current number of references.
func (r *refcount) RefCount() int32 {
	return r.refs.Load()
}

// RefString is an immutable refcounted string.
type RefString struct {
	refcount
	s string
}

// NewRefString creates a RefString holding one reference.
func NewRefString(s string) *RefString {
	r := &RefString{s: s}
	r.init(nil)
	return r
}

// TypeName implements Object.
func (r *RefString) TypeName() string { return "VipsRefString" }

// String returns the text.
func (r *RefString) String() string { return r.s }

// Blob is a refcounted byte area. The free callback runs once, when the last
// reference is dropped.
type Blob struct {
	refcount
	data []byte
	free func([]byte)
}

// NewBlob creates a Blob holding one reference. The blob owns data from now on.
func NewBlob(data []byte, free func([]byte)) *Blob {
	b := &Blob{data: data, free: free}
	b.init(func() {
		if b.free != nil {
			b.free(b.data)
		}
		b.data = nil
	})
	return b
}

// TypeName implements Object.
func (b *Blob) TypeName() string { return "VipsBlob" }

// Bytes returns the blob contents. The slice is only valid while a reference
// is held.
func (b *Blob) Bytes() []byte { return b.data }

// Len returns the size in bytes.
func (b *Blob) Len() int { return len(b.data) }

func (b *Blob) String() string { return fmt.Sprintf("blob(%d bytes)", len(b.data)) }
