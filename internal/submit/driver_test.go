package submit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aimat-lab/AutoSlurm/internal/plan"
	"github.com/aimat-lab/AutoSlurm/internal/scheduler"
	"github.com/aimat-lab/AutoSlurm/internal/script"
)

func intPtr(v int) *int { return &v }

func newTestDriver(t *testing.T, dryRun bool, sbatchBody string) (*Driver, string) {
	t.Helper()
	base := t.TempDir()

	d := &Driver{DryRun: dryRun, BaseDir: filepath.Join(base, ".aslurm")}
	if !dryRun {
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0755); err != nil {
			t.Fatal(err)
		}
		bin := filepath.Join(binDir, "sbatch")
		if err := os.WriteFile(bin, []byte("#!/bin/sh\n"+sbatchBody+"\n"), 0755); err != nil {
			t.Fatal(err)
		}
		s, err := scheduler.NewSlurm(bin, "")
		if err != nil {
			t.Fatalf("NewSlurm returned error: %v", err)
		}
		d.Sched = s
	}

	runDir, err := d.NewRunDir()
	if err != nil {
		t.Fatalf("NewRunDir returned error: %v", err)
	}
	return d, runDir
}

func TestNewRunDirUnique(t *testing.T) {
	d := &Driver{DryRun: true, BaseDir: filepath.Join(t.TempDir(), ".aslurm")}
	first, err := d.NewRunDir()
	if err != nil {
		t.Fatalf("NewRunDir returned error: %v", err)
	}
	second, err := d.NewRunDir()
	if err != nil {
		t.Fatalf("NewRunDir returned error: %v", err)
	}
	if first == second {
		t.Errorf("consecutive run dirs collided: %s", first)
	}
}

func TestRunDryRun(t *testing.T) {
	d, runDir := newTestDriver(t, true, "")

	tasks := plan.NewTasks([]string{"echo a", "echo b", "echo c", "echo d"})
	jobs, err := plan.Plan(tasks, plan.Constraint{MaxTasks: intPtr(2)})
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}

	outcomes, err := d.Run(runDir, "#!/bin/bash\n", jobs, script.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes; want 2", len(outcomes))
	}

	for _, o := range outcomes {
		for _, p := range []string{o.MainPath, o.ResumePath} {
			if _, err := os.Stat(p); err != nil {
				t.Errorf("expected script on disk at %s: %v", p, err)
			}
		}
		if o.JobID != "" {
			t.Errorf("dry run must not submit, got job ID %q", o.JobID)
		}
	}
}

func TestRunSubmitsInOrder(t *testing.T) {
	d, runDir := newTestDriver(t, false, `echo "$1" >> `+filepath.Join(t.TempDir(), "order")+`
echo "Submitted batch job 7"`)

	tasks := plan.NewTasks([]string{"echo a", "echo b"})
	jobs, err := plan.Plan(tasks, plan.Constraint{MaxTasks: intPtr(1)})
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}

	outcomes, err := d.Run(runDir, "#!/bin/bash\n", jobs, script.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for i, o := range outcomes {
		if o.JobID != "7" {
			t.Errorf("outcome %d job ID = %q; want 7", i, o.JobID)
		}
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	// The stub fails on the first call and succeeds afterwards; independent
	// jobs keep being submitted after a failure.
	base := t.TempDir()
	marker := filepath.Join(base, "first-done")
	d, runDir := newTestDriver(t, false,
		`if [ ! -f `+marker+` ]; then
touch `+marker+`
echo "rejected" >&2
exit 1
fi
echo "Submitted batch job 8"`)

	tasks := plan.NewTasks([]string{"echo a", "echo b"})
	jobs, _ := plan.Plan(tasks, plan.Constraint{MaxTasks: intPtr(1)})

	outcomes, err := d.Run(runDir, "", jobs, script.Options{})
	if err == nil {
		t.Fatal("expected aggregated error for failed job")
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes; want 2 (processing must continue)", len(outcomes))
	}
	if outcomes[0].Err == nil {
		t.Error("first outcome should carry the submission error")
	}
	if outcomes[1].Err != nil || outcomes[1].JobID != "8" {
		t.Errorf("second job should have succeeded: %+v", outcomes[1])
	}
}

func TestRunScriptContents(t *testing.T) {
	d, runDir := newTestDriver(t, true, "")

	tasks := plan.NewTasks([]string{"echo test0", "echo test1"})
	jobs, _ := plan.Plan(tasks, plan.Constraint{NumGPUs: intPtr(4), GPUsPerTask: intPtr(2)})

	outcomes, err := d.Run(runDir, "#!/bin/bash\n#SBATCH --time=<time>\n", jobs, script.Options{
		Fillers:     map[string]string{"time": "24:00:00"},
		GPUsPerTask: intPtr(2),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	mainContent, err := os.ReadFile(outcomes[0].MainPath)
	if err != nil {
		t.Fatal(err)
	}
	resumeContent, err := os.ReadFile(outcomes[0].ResumePath)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(mainContent), "#SBATCH --time=24:00:00") {
		t.Errorf("main script missing substituted preamble:\n%s", mainContent)
	}
	if !strings.Contains(string(mainContent), "CUDA_VISIBLE_DEVICES=2,3") {
		t.Errorf("main script missing second GPU block:\n%s", mainContent)
	}
	if !strings.Contains(string(resumeContent), "eval `cat ./.aslurm/${PREVIOUS_SLURM_ID}_1.resume`") {
		t.Errorf("resume script missing eval line:\n%s", resumeContent)
	}
	// The trigger block references the sibling resume script by path.
	if !strings.Contains(string(mainContent), outcomes[0].ResumePath) {
		t.Errorf("main script trigger should reference %s:\n%s", outcomes[0].ResumePath, mainContent)
	}
}

func TestChainThreadsDependency(t *testing.T) {
	base := t.TempDir()
	callsFile := filepath.Join(base, "calls")
	countFile := filepath.Join(base, "count")
	d, runDir := newTestDriver(t, false,
		`echo "$@" >> `+callsFile+`
n=$(cat `+countFile+` 2>/dev/null || echo 0)
n=$((n+1))
echo $n > `+countFile+`
echo "Submitted batch job $((100+n))"`)

	tasks := plan.NewTasks([]string{"python train.py"})
	outcomes, err := d.Chain(runDir, "#!/bin/bash\n", tasks, script.Options{}, 2)
	if err != nil {
		t.Fatalf("Chain returned error: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d chain steps; want 3", len(outcomes))
	}

	calls, err := os.ReadFile(callsFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(calls)), "\n")
	if len(lines) != 3 {
		t.Fatalf("sbatch called %d times; want 3", len(lines))
	}
	if strings.Contains(lines[0], "--dependency") {
		t.Errorf("first submission must not carry a dependency: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "--dependency=aftercorr:101 ") {
		t.Errorf("second submission should depend on job 101: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "--dependency=aftercorr:102 ") {
		t.Errorf("third submission should depend on job 102: %s", lines[2])
	}
}

func TestChainStopsOnFailure(t *testing.T) {
	base := t.TempDir()
	countFile := filepath.Join(base, "count")
	d, runDir := newTestDriver(t, false,
		`n=$(cat `+countFile+` 2>/dev/null || echo 0)
n=$((n+1))
echo $n > `+countFile+`
if [ $n -gt 1 ]; then
echo "down for maintenance" >&2
exit 1
fi
echo "Submitted batch job 55"`)

	tasks := plan.NewTasks([]string{"python train.py"})
	outcomes, err := d.Chain(runDir, "", tasks, script.Options{}, 3)
	if err == nil {
		t.Fatal("expected chain error")
	}
	// Step 0 succeeded, step 1 failed, steps 2 and 3 were never issued.
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes; want 2 (remaining chain steps aborted)", len(outcomes))
	}
	if outcomes[0].JobID != "55" {
		t.Errorf("step 0 job ID = %q; want 55", outcomes[0].JobID)
	}
}

func TestChainDryRunScripts(t *testing.T) {
	d, runDir := newTestDriver(t, true, "")

	tasks := plan.NewTasks([]string{"python train.py"})
	outcomes, err := d.Chain(runDir, "#!/bin/bash\n", tasks, script.Options{}, 1)
	if err != nil {
		t.Fatalf("Chain returned error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes; want 2", len(outcomes))
	}

	step0, err := os.ReadFile(outcomes[0].MainPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(step0), "python train.py") {
		t.Errorf("step 0 should run the command directly:\n%s", step0)
	}

	step1, err := os.ReadFile(outcomes[1].MainPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(step1), "eval `cat 0_0.resume`") {
		t.Errorf("step 1 should eval the resume file of the previous step:\n%s", step1)
	}
}
