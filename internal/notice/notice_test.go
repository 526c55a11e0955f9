package notice_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/lanes/internal/notice"
)

func TestBuffer_DropsWhenFull(t *testing.T) {
	t.Parallel()

	b := notice.NewBuffer(1)
	b.Notify(notice.New(notice.LevelInfo, "first"))
	b.Notify(notice.New(notice.LevelInfo, "second"))

	got := <-b.C()
	assert.Equal(t, "first", got.Message)

	select {
	case n := <-b.C():
		t.Fatalf("unexpected notice %q", n.Message)
	default:
	}
}

func TestRecorder_KeepsOrder(t *testing.T) {
	t.Parallel()

	var r notice.Recorder
	r.Notify(notice.New(notice.LevelError, "a"))
	r.Notify(notice.New(notice.LevelSuccess, "b"))

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Message)
	assert.Equal(t, notice.LevelSuccess, all[1].Level)
}

func TestFanout(t *testing.T) {
	t.Parallel()

	var a, b notice.Recorder
	notice.Fanout{&a, nil, &b}.Notify(notice.New(notice.LevelWarning, "x"))

	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := notice.NewLogSink(zerolog.New(&buf))
	sink.Notify(notice.New(notice.LevelError, "write failed"))

	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "write failed")
}
