package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
	"github.com/roach88/pixbridge/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestBridge returns a bridge over the standard operations. The test
// fails if any image outlives it.
func newTestBridge(t *testing.T, opts ...Option) (*Bridge, *native.Registry) {
	t.Helper()
	reg := native.NewStandardRegistry()
	testutil.NoLeaks(t, reg)
	return New(reg, append([]Option{WithLogger(quietLogger())}, opts...)...), reg
}

// call runs a call that must succeed and closes its result at cleanup.
func call(t *testing.T, b *Bridge, name string, instance ir.IRValue, args ...ir.IRValue) *Result {
	t.Helper()
	res, err := b.Call(context.Background(), name, instance, args, nil)
	require.NoError(t, err)
	t.Cleanup(func() { res.Close() })
	return res
}

func outImage(t *testing.T, res *Result) *native.Image {
	t.Helper()
	h, err := res.Image("out")
	require.NoError(t, err)
	return h.Image()
}

// memRecorder keeps journaled calls in memory.
type memRecorder struct {
	mu      sync.Mutex
	records []ir.CallRecord
	err     error
}

func (m *memRecorder) WriteCall(_ context.Context, rec ir.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

// echoClass declares an operation that copies "in" to "out".
func echoClass(name string, t native.Type) *native.OperationClass {
	return &native.OperationClass{
		Name: name,
		Params: []native.ParamSpec{
			{Name: "in", Type: t, Flags: native.ArgRequired | native.ArgConstruct | native.ArgInput},
			{Name: "out", Type: t, Flags: native.ArgRequired | native.ArgConstruct | native.ArgOutput},
		},
		Build: func(op *native.Operation) error {
			v, err := op.Get("in")
			if err != nil {
				return err
			}
			defer v.Unset()
			return op.SetOutput("out", v)
		},
	}
}
