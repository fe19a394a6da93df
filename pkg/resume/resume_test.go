package resume

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileName(t *testing.T) {
	if got := FileName("123456", "3"); got != "123456_3.resume" {
		t.Errorf("FileName = %q; want %q", got, "123456_3.resume")
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SLURM_JOB_ID", "777")
	t.Setenv("SLURM_SUBMIT_TASK_INDEX", "2")

	if err := Write(dir, "python train.py --resume ckpt.pt"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "777_2.resume"))
	if err != nil {
		t.Fatalf("resume file not written: %v", err)
	}
	if string(content) != "python train.py --resume ckpt.pt" {
		t.Errorf("resume file content = %q", content)
	}
}

func TestWriteDefaultsTaskIndex(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SLURM_JOB_ID", "777")
	t.Setenv("SLURM_SUBMIT_TASK_INDEX", "")
	os.Unsetenv("SLURM_SUBMIT_TASK_INDEX")

	if err := Write(dir, "echo resume"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "777_0.resume")); err != nil {
		t.Errorf("expected resume file with task index 0: %v", err)
	}
}

func TestWriteOutsideJob(t *testing.T) {
	t.Setenv("SLURM_JOB_ID", "")
	os.Unsetenv("SLURM_JOB_ID")
	err := Write(t.TempDir(), "echo resume")
	if !errors.Is(err, ErrNotInJob) {
		t.Errorf("expected ErrNotInJob, got %v", err)
	}
}

func TestTimer(t *testing.T) {
	timer := Start(time.Hour)
	if timer.BudgetReached() {
		t.Error("fresh timer should not have reached its budget")
	}

	tight := Start(time.Nanosecond)
	time.Sleep(time.Millisecond)
	if !tight.BudgetReached() {
		t.Error("expired timer should report its budget as reached")
	}

	tight.Reset()
	if tight.Elapsed() > time.Second {
		t.Error("Reset should restart the timer")
	}
}
