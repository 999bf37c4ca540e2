package notify

import (
	"bytes"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	Info(w, "Logged in as %s", "ana")
	Warn(w, "only %d left", 2)
	Error(w, errors.New("boom"))
	_, _ = w.Write([]byte("raw\n"))

	assert.Equal(t, "Logged in as ana\n[warning] only 2 left\n[error] boom\nraw\n", buf.String())
}

func TestWriter_LinesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Warn(w, "warn")
		}()
		go func() {
			defer wg.Done()
			_, _ = w.Write([]byte("table\n"))
		}()
	}
	wg.Wait()

	for _, line := range bytes.Split(bytes.TrimSuffix(buf.Bytes(), []byte("\n")), []byte("\n")) {
		assert.Contains(t, []string{"[warning] warn", "table"}, string(line))
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	Warn(&r, "a")
	Warn(&r, "b")
	Info(&r, "c")

	assert.Equal(t, 2, r.Count(LevelWarn))
	assert.Len(t, r.All(), 3)
	assert.Equal(t, "warning", LevelWarn.String())

	r.Reset()
	assert.Empty(t, r.All())
}
