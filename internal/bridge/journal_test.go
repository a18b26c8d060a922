package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
	"github.com/roach88/pixbridge/internal/testutil"
)

func TestJournal_RecordsTopLevelCallsOnly(t *testing.T) {
	rec := &memRecorder{}
	b, _ := newTestBridge(t,
		WithRecorder(rec),
		WithIDGenerator(NewFixedGenerator("call-1", "call-2")),
	)
	in := testutil.Handle(t, 2, 2, 1, native.FormatUchar)

	// add with a constant runs five nested calls to build the constant.
	call(t, b, "add", in, ir.IRInt(3))
	_, err := b.Call(context.Background(), "invert", in, nil, ir.IRObject{"nope": ir.IRInt(1)})
	require.Error(t, err)

	require.Len(t, rec.records, 2)
	ok, failed := rec.records[0], rec.records[1]

	assert.Equal(t, "call-1", ok.ID)
	assert.Equal(t, int64(1), ok.Seq)
	assert.Equal(t, "add", ok.Operation)
	assert.True(t, ok.Succeeded())
	assert.Contains(t, ok.Result, "out")
	assert.Equal(t, ir.IRArray{ir.IRInt(3)}, ok.Args["positional"])
	assert.Equal(t, ir.BridgeVersion, ok.BridgeVersion)
	assert.Len(t, ok.CallHash, 64)

	assert.Equal(t, "call-2", failed.ID)
	assert.Equal(t, int64(2), failed.Seq)
	assert.Equal(t, string(ErrCodeUnknownParameter), failed.ErrorCode)
	assert.Contains(t, failed.ErrorMessage, "nope")
	assert.Nil(t, failed.Result)
}

func TestJournal_SourceAndOptionString(t *testing.T) {
	rec := &memRecorder{}
	clock := testutil.NewDeterministicClock()
	clock.ResetTo(40)
	b, _ := newTestBridge(t, WithRecorder(rec), WithClock(clock))
	in := testutil.Handle(t, 1, 1, 1, native.FormatUchar)

	res, err := b.CallWith(context.Background(), "cast", in, nil, CallOptions{
		OptionString: "format=ushort",
		Source:       "widen",
	})
	require.NoError(t, err)
	defer res.Close()

	require.Len(t, rec.records, 1)
	r := rec.records[0]
	assert.Equal(t, int64(41), r.Seq)
	assert.Equal(t, "widen", r.Source)
	assert.Equal(t, ir.IRString("format=ushort"), r.Args["option_string"])
}

func TestJournal_SameArgumentsSameHash(t *testing.T) {
	rec := &memRecorder{}
	b, _ := newTestBridge(t, WithRecorder(rec))
	in := testutil.Handle(t, 1, 1, 1, native.FormatUchar)

	call(t, b, "linear", in, ir.IRInt(1), ir.IRInt(2))
	call(t, b, "linear", in, ir.IRInt(1), ir.IRInt(2))
	call(t, b, "linear", in, ir.IRInt(1), ir.IRInt(3))

	require.Len(t, rec.records, 3)
	assert.Equal(t, rec.records[0].CallHash, rec.records[1].CallHash)
	assert.NotEqual(t, rec.records[0].CallHash, rec.records[2].CallHash)
}

func TestJournal_WriteFailureDoesNotFailTheCall(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	b, _ := newTestBridge(t, WithRecorder(rec))
	in := testutil.Handle(t, 1, 1, 1, native.FormatUchar)

	res, err := b.Call(context.Background(), "invert", in, nil, nil)
	require.NoError(t, err)
	res.Close()
	assert.Len(t, rec.records, 1)
}
