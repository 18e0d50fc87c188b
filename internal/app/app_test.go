package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vk/qsubgo/internal/invoker"
	"github.com/vk/qsubgo/internal/tracker"
)

const emptyQueue = `<?xml version='1.0'?><job_info><queue_info></queue_info><job_info></job_info></job_info>`

const testWorkflow = `
target "index" {
  outputs = ["ref.idx"]
  spec    = "index ref.fa > ref.idx"
}

target "align" {
  inputs  = ["ref.idx"]
  outputs = ["aligned.bam"]

  options {
    cores  = 2
    memory = "4g"
  }

  spec = "align ref.idx > aligned.bam"
}

target "report" {
  depends_on = ["align"]
  spec       = "report aligned.bam"
}
`

func workflowDir(a *App) string {
	return filepath.Dir(a.config.WorkflowPath)
}

func TestSubmitInDependencyOrder(t *testing.T) {
	fake := invoker.NewFake().
		On("qstat", invoker.Result{Stdout: emptyQueue}).
		On("qsub", invoker.Result{Stdout: "1\n"}, invoker.Result{Stdout: "2\n"}, invoker.Result{Stdout: "3\n"})
	a, out, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandSubmit}, fake, "")

	require.NoError(t, a.Submit(context.Background(), []string{"report"}))

	assert.Equal(t, "Submitting target index.\nSubmitting target align.\nSubmitting target report.\n", out.String())
	calls := fake.CallsTo("qsub")
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"-terse"}, calls[0].Args)
	assert.Equal(t, []string{"-terse", "-hold_jid", "1"}, calls[1].Args)
	assert.Equal(t, []string{"-terse", "-hold_jid", "2"}, calls[2].Args)
	assert.Contains(t, calls[1].Stdin, "#$ -pe smp 2\n#$ -l h_vmem=2g\n")
	assert.Contains(t, calls[1].Stdin, "cd "+workflowDir(a)+"\n")
}

func TestSubmitSkipsLiveTargets(t *testing.T) {
	fake := invoker.NewFake().
		On("qstat", invoker.Result{Stdout: emptyQueue}).
		On("qsub", invoker.Result{Stdout: "1\n"}, invoker.Result{Stdout: "2\n"}, invoker.Result{Stdout: "3\n"})
	a, _, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandSubmit}, fake, "")
	ctx := context.Background()

	require.NoError(t, a.Submit(ctx, nil))
	require.NoError(t, a.Submit(ctx, nil))
	assert.Len(t, fake.CallsTo("qsub"), 3)
}

func TestSubmitSkipsUpToDateTargets(t *testing.T) {
	fake := invoker.NewFake().
		On("qstat", invoker.Result{Stdout: emptyQueue}).
		On("qsub", invoker.Result{Stdout: "9\n"})
	a, out, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandSubmit}, fake, "")
	require.NoError(t, os.WriteFile(filepath.Join(workflowDir(a), "ref.idx"), []byte("idx"), 0o600))

	require.NoError(t, a.Submit(context.Background(), []string{"align"}))

	assert.Equal(t, "Submitting target align.\n", out.String())
	calls := fake.CallsTo("qsub")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-terse"}, calls[0].Args, "an up-to-date dependency is not held on")
}

func TestSubmitMissingInput(t *testing.T) {
	workflow := `
target "align" {
  inputs = ["reads.fq"]
  spec   = "align reads.fq"
}
`
	fake := invoker.NewFake().On("qstat", invoker.Result{Stdout: emptyQueue}).On("qsub", invoker.Result{Stdout: "1\n"})
	a, _, _ := SetupAppTest(t, workflow, Config{Command: CommandSubmit}, fake, "")

	err := a.Submit(context.Background(), nil)
	assert.ErrorContains(t, err, "does not exist and no target produces it")
	assert.Empty(t, fake.CallsTo("qsub"))
}

func TestSubmitUnknownTarget(t *testing.T) {
	fake := invoker.NewFake().On("qstat", invoker.Result{Stdout: emptyQueue})
	a, _, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandSubmit}, fake, "")

	err := a.Submit(context.Background(), []string{"nope"})
	assert.ErrorContains(t, err, `target "nope" is not defined`)
}

func TestStatusFormats(t *testing.T) {
	for _, format := range []string{formatJSON, formatYAML, formatTable} {
		t.Run(format, func(t *testing.T) {
			fake := invoker.NewFake().
				On("qstat", invoker.Result{Stdout: emptyQueue}).
				On("qsub", invoker.Result{Stdout: "1\n"})
			a, out, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandStatus, OutputFormat: format}, fake, "")
			ctx := context.Background()
			require.NoError(t, a.Submit(ctx, []string{"index"}))

			printed := len(out.String())
			require.NoError(t, a.Status(ctx, nil))
			report := out.String()[printed:]

			want := []Row{
				{Target: "index", JobID: "1", Status: "SUBMITTED"},
				{Target: "align", Status: "UNKNOWN"},
				{Target: "report", Status: "UNKNOWN"},
			}
			var got []Row
			switch format {
			case formatJSON:
				require.NoError(t, json.Unmarshal([]byte(report), &got))
				assert.Equal(t, want, got)
			case formatYAML:
				require.NoError(t, yaml.Unmarshal([]byte(report), &got))
				assert.Equal(t, want, got)
			default:
				assert.Contains(t, report, "TARGET")
				assert.Contains(t, report, "SUBMITTED")
				assert.Contains(t, report, "report")
			}
		})
	}
}

func TestStatusCompleted(t *testing.T) {
	fake := invoker.NewFake().On("qstat", invoker.Result{Stdout: emptyQueue})
	a, _, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandStatus}, fake, "")
	require.NoError(t, os.WriteFile(filepath.Join(workflowDir(a), "ref.idx"), []byte("idx"), 0o600))

	rows, err := a.rows([]string{"index"})
	require.NoError(t, err)
	assert.Equal(t, []Row{{Target: "index", Status: StatusCompleted}}, rows)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("declined confirmation", func(t *testing.T) {
		fake := invoker.NewFake().On("qstat", invoker.Result{Stdout: emptyQueue}).On("qsub", invoker.Result{Stdout: "1\n"}).On("qdel", invoker.Result{})
		a, out, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandCancel}, fake, "N\n")
		require.NoError(t, a.Submit(ctx, []string{"index"}))

		err := a.Cancel(ctx, nil)
		assert.True(t, errors.Is(err, ErrAborted))
		assert.Contains(t, out.String(), "Do you want to continue? [y/N]: ")
		assert.Empty(t, fake.CallsTo("qdel"))
	})

	t.Run("confirmed cancels tracked targets", func(t *testing.T) {
		fake := invoker.NewFake().On("qstat", invoker.Result{Stdout: emptyQueue}).On("qsub", invoker.Result{Stdout: "1\n"}).On("qdel", invoker.Result{})
		a, out, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandCancel}, fake, "y\n")
		require.NoError(t, a.Submit(ctx, []string{"index"}))

		require.NoError(t, a.Cancel(ctx, nil))
		assert.Contains(t, out.String(), "Cancelling target index.\n")
		assert.NotContains(t, out.String(), "Cancelling target align.")
		require.Len(t, fake.CallsTo("qdel"), 1)
		assert.Empty(t, a.Backend().Tracked())
	})

	t.Run("assume yes skips the prompt", func(t *testing.T) {
		fake := invoker.NewFake().On("qstat", invoker.Result{Stdout: emptyQueue}).On("qsub", invoker.Result{Stdout: "1\n"}).On("qdel", invoker.Result{})
		a, out, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandCancel, AssumeYes: true}, fake, "")
		require.NoError(t, a.Submit(ctx, []string{"index"}))

		require.NoError(t, a.Cancel(ctx, nil))
		assert.NotContains(t, out.String(), "[y/N]")
		assert.Len(t, fake.CallsTo("qdel"), 1)
	})

	t.Run("live dependents are reported", func(t *testing.T) {
		fake := invoker.NewFake().
			On("qstat", invoker.Result{Stdout: emptyQueue}).
			On("qsub", invoker.Result{Stdout: "1\n"}, invoker.Result{Stdout: "2\n"}, invoker.Result{Stdout: "3\n"}).
			On("qdel", invoker.Result{})
		a, _, logs := SetupAppTest(t, testWorkflow, Config{Command: CommandCancel}, fake, "")
		require.NoError(t, a.Submit(ctx, []string{"report"}))

		require.NoError(t, a.Cancel(ctx, []string{"align"}))
		assert.Contains(t, logs.String(), "Dependent target is still live after its dependency was cancelled.")
		assert.Contains(t, logs.String(), "target=report cancelled=align")
		assert.NotContains(t, logs.String(), "target=index cancelled=align")
	})

	t.Run("named untracked target warns", func(t *testing.T) {
		fake := invoker.NewFake().On("qstat", invoker.Result{Stdout: emptyQueue}).On("qdel", invoker.Result{})
		a, out, logs := SetupAppTest(t, testWorkflow, Config{Command: CommandCancel}, fake, "")

		require.NoError(t, a.Cancel(ctx, []string{"align"}))
		assert.Equal(t, "Cancelling target align.\n", out.String())
		assert.Contains(t, logs.String(), "Target could not be cancelled.")
		assert.Empty(t, fake.CallsTo("qdel"))
	})
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	fake := invoker.NewFake().On("qstat", invoker.Result{Stdout: emptyQueue}).On("qsub", invoker.Result{Stdout: "4\n"})
	a, out, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandForget, Targets: []string{"index"}}, fake, "")
	require.NoError(t, a.Submit(ctx, []string{"index"}))

	require.NoError(t, a.Forget(ctx, []string{"index"}))
	assert.Contains(t, out.String(), "Forgot target index.\n")
	assert.Empty(t, a.Backend().Tracked())

	err := a.Forget(ctx, []string{"index"})
	assert.True(t, errors.Is(err, tracker.ErrUntrackedTarget))
}

func TestRunClosesBackend(t *testing.T) {
	fake := invoker.NewFake().On("qstat", invoker.Result{Stdout: emptyQueue}).On("qsub", invoker.Result{Stdout: "1\n"})
	a, _, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandSubmit, Targets: []string{"index"}}, fake, "")

	require.NoError(t, a.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(workflowDir(a), ".qsubgo", tracker.FileName))
	require.NoError(t, err)
	assert.JSONEq(t, `{"index": "1"}`, string(data))
}

func TestStatusServer(t *testing.T) {
	table := `<?xml version='1.0'?><job_info><queue_info><job_list><JB_job_number>1</JB_job_number><state>r</state></job_list></queue_info></job_info>`
	fake := invoker.NewFake().
		On("qstat", invoker.Result{Stdout: emptyQueue}, invoker.Result{Stdout: table}).
		On("qsub", invoker.Result{Stdout: "1\n"})
	a, _, _ := SetupAppTest(t, testWorkflow, Config{Command: CommandServe, Port: 8080}, fake, "")
	require.NoError(t, a.Submit(context.Background(), []string{"index"}))

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	get := func(t *testing.T, method, path string) (int, string) {
		t.Helper()
		req, err := http.NewRequest(method, srv.URL+path, nil)
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)

	code, body = get(t, http.MethodGet, "/targets/index")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"target":"index","job_id":"1","status":"SUBMITTED"}`, body)

	code, _ = get(t, http.MethodGet, "/targets/nope")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = get(t, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusOK, code)
	var rows []Row
	require.NoError(t, json.Unmarshal([]byte(body), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, Row{Target: "index", JobID: "1", Status: "RUNNING"}, rows[0])

	code, _ = get(t, http.MethodGet, "/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}
