package framework

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageLogConcurrentWritesDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	log, err := NewStageLog(path, nil)
	require.NoError(t, err)

	line := strings.Repeat("x", 512)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(prefix string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				log.Log(prefix + line)
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 100)
	for _, l := range lines {
		assert.Len(t, l, 513)
	}
	assert.NoError(t, log.Err())
}

func TestStageLogReportsFirstWriteFailureOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	require.NoError(t, os.Mkdir(dir, 0o755))
	var buf bytes.Buffer
	log, err := NewStageLog(filepath.Join(dir, "log.txt"), slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)

	log.Log("kept")
	assert.NoError(t, log.Err())
	require.NoError(t, os.RemoveAll(dir))

	log.Log("lost")
	log.Log("also lost")
	require.Error(t, log.Err())
	assert.Equal(t, 1, strings.Count(buf.String(), "stage log write failed"))
	assert.Contains(t, buf.String(), "log.txt")
}

func TestStageLogNilIsNoop(t *testing.T) {
	var nilLog *StageLog
	nilLog.Log("ignored")
	assert.NoError(t, nilLog.Err())
	assert.Empty(t, nilLog.Path())
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":1}`), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":2}`), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not leak")
}

func TestLocalCommandRunner(t *testing.T) {
	runner := NewLocalCommandRunner()
	ctx := context.Background()

	t.Run("captures output and exit code", func(t *testing.T) {
		res, err := runner.Run(ctx, CommandRequest{
			Args: []string{"sh", "-c", "echo out; echo err 1>&2; exit 3"},
		})
		require.NoError(t, err)
		assert.Equal(t, "out\n", res.Stdout)
		assert.Equal(t, "err\n", res.Stderr)
		assert.Equal(t, 3, res.ExitCode)
		assert.False(t, res.TimedOut)
		assert.Equal(t, "out\nerr\n", res.Combined())
	})

	t.Run("timeout kills and keeps partial output", func(t *testing.T) {
		res, err := runner.Run(ctx, CommandRequest{
			Args:    []string{"sh", "-c", "echo started; sleep 5"},
			Timeout: 200 * time.Millisecond,
		})
		require.NoError(t, err)
		assert.True(t, res.TimedOut)
		assert.Equal(t, "started\n", res.Stdout)
		assert.Less(t, res.Duration, 4*time.Second)
	})

	t.Run("launch error", func(t *testing.T) {
		_, err := runner.Run(ctx, CommandRequest{Args: []string{"definitely-not-a-binary-xyz"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLaunch)
	})

	t.Run("workdir", func(t *testing.T) {
		dir := t.TempDir()
		res, err := runner.Run(ctx, CommandRequest{Workdir: dir, Args: []string{"pwd"}})
		require.NoError(t, err)
		resolved, _ := filepath.EvalSymlinks(dir)
		assert.Contains(t, []string{dir, resolved}, strings.TrimSpace(res.Stdout))
	})
}

func TestRecordingTelemetryAndMultiplex(t *testing.T) {
	rec := &RecordingTelemetry{}
	mux := MultiplexTelemetry{Sinks: []Telemetry{rec, nil, NopTelemetry{}}}
	mux.Emit(Event{Type: EventStageStart, Stage: "objective"})
	mux.Emit(Event{Type: EventStageFinish, Stage: "objective"})
	assert.Len(t, rec.Events(), 2)
	assert.Len(t, rec.OfType(EventStageFinish), 1)
}

func TestJSONFileTelemetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewJSONFileTelemetry(path)
	require.NoError(t, err)
	sink.Emit(Event{Type: EventVerdict, Message: "winner optimus"})
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"verdict"`)
}

func TestRunIDContext(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	assert.Equal(t, "run-1", RunIDFrom(ctx))
	assert.Equal(t, "", RunIDFrom(context.Background()))
}

func TestProgressLines(t *testing.T) {
	var buf strings.Builder
	p := NewProgress(&buf)
	p.Step(4, 6, "Solve")
	p.OK("objective %s", "280")
	p.Fail("no code block")
	p.Field("Desc", "raw_input/raw_desc.txt")
	p.Text("plain")

	out := buf.String()
	assert.Contains(t, out, "[4/6]")
	assert.Contains(t, out, "objective 280")
	assert.Contains(t, out, "no code block")
	assert.Contains(t, out, "raw_input/raw_desc.txt")
	assert.True(t, strings.HasSuffix(out, "plain\n"))

	var nilProgress *Progress
	assert.NotPanics(t, func() { nilProgress.OK("ignored") })
}
