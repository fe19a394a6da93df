package script

import (
	"strings"
	"testing"

	"github.com/aimat-lab/AutoSlurm/internal/plan"
)

func intPtr(v int) *int { return &v }

func testJob(commands ...string) plan.Job {
	return plan.Job{Tasks: plan.NewTasks(commands), StartIndex: 0}
}

func TestSubstituteTwoPass(t *testing.T) {
	template := "#SBATCH --job-name=<job_name>\nsomecommand > <output_file>"
	fillers := map[string]string{"job_name": "<inner_filler>", "output_file": "test.out"}
	globalFillers := map[string]string{"inner_filler": "test_job"}

	got := Substitute(template, fillers, globalFillers)
	if !strings.Contains(got, "#SBATCH --job-name=test_job") {
		t.Errorf("job filler indirection through global filler not resolved:\n%s", got)
	}
	if !strings.Contains(got, "somecommand > test.out") {
		t.Errorf("plain filler not substituted:\n%s", got)
	}
}

func TestSubstituteLeavesUnresolvedPlaceholders(t *testing.T) {
	// Substitution is not recursive beyond the job->global indirection;
	// anything still unresolved stays in the output verbatim.
	got := Substitute("run <missing>", map[string]string{}, map[string]string{})
	if got != "run <missing>" {
		t.Errorf("Substitute = %q; want unresolved placeholder kept", got)
	}
}

func TestAssembleGPUAssignment(t *testing.T) {
	job := testJob("echo test0", "echo test1")
	mainScript, resumeScript := Assemble("#preamble\n", job, Options{
		GPUsPerTask:      intPtr(2),
		ResumeScriptPath: "resume_0.sh",
	})

	for _, want := range []string{
		"SLURM_SUBMIT_TASK_INDEX=0 CUDA_VISIBLE_DEVICES=0,1 echo test0",
		"SLURM_SUBMIT_TASK_INDEX=1 CUDA_VISIBLE_DEVICES=2,3 echo test1",
	} {
		if !strings.Contains(mainScript, want) {
			t.Errorf("main script missing %q:\n%s", want, mainScript)
		}
	}
	for _, want := range []string{"CUDA_VISIBLE_DEVICES=0,1", "CUDA_VISIBLE_DEVICES=2,3"} {
		if !strings.Contains(resumeScript, want) {
			t.Errorf("resume script missing %q:\n%s", want, resumeScript)
		}
	}
}

func TestAssembleNoGPUs(t *testing.T) {
	job := testJob("echo test0", "echo test1")
	mainScript, resumeScript := Assemble("#preamble\n", job, Options{
		ResumeScriptPath: "resume_0.sh",
	})
	if strings.Contains(mainScript, "CUDA_VISIBLE_DEVICES") {
		t.Errorf("main script contains GPU assignment without gpus_per_task:\n%s", mainScript)
	}
	if strings.Contains(resumeScript, "CUDA_VISIBLE_DEVICES") {
		t.Errorf("resume script contains GPU assignment without gpus_per_task:\n%s", resumeScript)
	}
}

func TestAssembleGPUNumberingRestartsPerJob(t *testing.T) {
	// Second job of a plan: global task indices continue, GPU ordinals restart at 0.
	job := plan.Job{
		Tasks:      []plan.Task{{Command: "echo a", Index: 4}, {Command: "echo b", Index: 5}},
		StartIndex: 4,
	}
	mainScript, _ := Assemble("", job, Options{
		GPUsPerTask:      intPtr(1),
		ResumeScriptPath: "resume_1.sh",
	})
	if !strings.Contains(mainScript, "SLURM_SUBMIT_TASK_INDEX=4 CUDA_VISIBLE_DEVICES=0 ") {
		t.Errorf("first task of second job should use GPU 0:\n%s", mainScript)
	}
	if !strings.Contains(mainScript, "SLURM_SUBMIT_TASK_INDEX=5 CUDA_VISIBLE_DEVICES=1 ") {
		t.Errorf("second task of second job should use GPU 1:\n%s", mainScript)
	}
}

func TestAssembleResumeEval(t *testing.T) {
	job := plan.Job{
		Tasks:      []plan.Task{{Command: "echo a", Index: 2}, {Command: "echo b", Index: 3}},
		StartIndex: 2,
	}
	_, resumeScript := Assemble("", job, Options{ResumeScriptPath: "resume_1.sh"})

	for _, want := range []string{
		"eval `cat ./.aslurm/${PREVIOUS_SLURM_ID}_2.resume`",
		"eval `cat ./.aslurm/${PREVIOUS_SLURM_ID}_3.resume`",
	} {
		if !strings.Contains(resumeScript, want) {
			t.Errorf("resume script missing %q:\n%s", want, resumeScript)
		}
	}
}

func TestAssembleOutputRedirection(t *testing.T) {
	// Multi-task jobs suffix the output file with the global task index.
	multi := testJob("echo a", "echo b")
	mainScript, _ := Assemble("", multi, Options{ResumeScriptPath: "r.sh"})
	if !strings.Contains(mainScript, "&> slurm-${SLURM_JOB_ID}_0.out &") {
		t.Errorf("multi-task job missing indexed output redirect:\n%s", mainScript)
	}

	// Single-task jobs do not.
	single := testJob("echo a")
	mainScript, _ = Assemble("", single, Options{ResumeScriptPath: "r.sh"})
	if !strings.Contains(mainScript, "&> slurm-${SLURM_JOB_ID}.out &") {
		t.Errorf("single-task job should use unindexed output redirect:\n%s", mainScript)
	}
	if strings.Contains(mainScript, "${SLURM_JOB_ID}_0.out") {
		t.Errorf("single-task job should not index the output file:\n%s", mainScript)
	}
}

func TestAssembleTriggerBlock(t *testing.T) {
	job := testJob("echo a")
	mainScript, resumeScript := Assemble("", job, Options{
		ResumeScriptPath: ".aslurm/run/resume_0.sh",
		SubmitCommand:    "/usr/bin/sbatch",
	})

	for _, s := range []string{mainScript, resumeScript} {
		if !strings.Contains(s, `if compgen -G "./.aslurm/${SLURM_JOB_ID}_*.resume" > /dev/null; then`) {
			t.Errorf("script missing resubmission trigger condition:\n%s", s)
		}
		if !strings.Contains(s, "export PREVIOUS_SLURM_ID=${SLURM_JOB_ID}") {
			t.Errorf("script missing PREVIOUS_SLURM_ID export:\n%s", s)
		}
		if !strings.Contains(s, "/usr/bin/sbatch .aslurm/run/resume_0.sh") {
			t.Errorf("script missing resume script resubmission:\n%s", s)
		}
	}
}

func TestAssembleWaitAndSettle(t *testing.T) {
	job := testJob("echo a", "echo b")
	mainScript, _ := Assemble("", job, Options{ResumeScriptPath: "r.sh"})
	waitIdx := strings.Index(mainScript, "\n\nwait")
	sleepIdx := strings.Index(mainScript, "\nsleep 10")
	if waitIdx < 0 || sleepIdx < 0 || sleepIdx < waitIdx {
		t.Errorf("expected wait followed by settle delay:\n%s", mainScript)
	}
}
