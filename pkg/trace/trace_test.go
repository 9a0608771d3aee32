package trace

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
)

func TestWriterForwardsAndRecords(t *testing.T) {
	var buf bytes.Buffer
	rec := mcu.NewRecorder()
	w := NewWriter(&buf, rec)
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	w.now = func() time.Time { return ts }

	msgs := []mcu.Message{
		{Kind: mcu.KindConfig, Line: "config_shift_register oid=1 data_pin=0 clock_pin=1 latch_pin=2 num_registers=1"},
		{Kind: mcu.KindConfig, Line: "finalize_config crc=42"},
		{Kind: mcu.KindCommand, Line: "queue_digital_out oid=2 clock=100 on_ticks=1", MinClock: 0, ReqClock: 100, Queue: 1},
	}
	for _, m := range msgs {
		require.NoError(t, w.Send(m))
	}
	assert.Equal(t, msgs, rec.Messages())

	events, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, events, len(msgs))

	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, w.Session().String(), ev.Session)
		assert.True(t, ts.Equal(ev.Time))
		assert.Equal(t, msgs[i], ev.Message())
	}
	_, err = uuid.Parse(events[0].Session)
	assert.NoError(t, err)
}

func TestWriterRecordsRejectedMessages(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	w := NewWriter(&buf, mcu.SenderFunc(func(mcu.Message) error { return boom }))

	err := w.Send(mcu.Message{Kind: mcu.KindCommand, Line: "update_digital_out oid=1 value=1"})
	assert.ErrorIs(t, err, boom)

	events, err := ReadAll(&buf)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCreateAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")

	w, err := Create(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Send(mcu.Message{Kind: mcu.KindConfig, Line: "finalize_config crc=1"}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Send(mcu.Message{}), ErrClosed)

	// A second session appends to the same file.
	w2, err := Create(path, nil)
	require.NoError(t, err)
	require.NoError(t, w2.Send(mcu.Message{Kind: mcu.KindCommand, Line: "update_digital_out oid=1 value=0"}))
	require.NoError(t, w2.Close())

	events, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.NotEqual(t, events[0].Session, events[1].Session)
	assert.Equal(t, "config", events[0].Kind)
	assert.Equal(t, "command", events[1].Kind)
}

func TestReadAllTruncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	require.NoError(t, w.Send(mcu.Message{Kind: mcu.KindConfig, Line: "finalize_config crc=1"}))
	require.NoError(t, w.Send(mcu.Message{Kind: mcu.KindConfig, Line: "finalize_config crc=2"}))

	data := buf.Bytes()
	events, err := ReadAll(bytes.NewReader(data[:len(data)-3]))
	assert.Error(t, err)
	assert.Len(t, events, 1)
}
