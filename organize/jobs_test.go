package organize

import (
	"errors"
	"sync"
	"testing"
)

func TestJobStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	s := NewJobStore()
	if err := s.Create("j1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create("j1"); err == nil {
		t.Fatalf("expected duplicate-id error")
	}

	job, ok := s.Get("j1")
	if !ok {
		t.Fatalf("Get: missing")
	}
	if job.Status != JobProcessing || job.Progress != 0 || job.Total != 1 || job.Message != "Queued" {
		t.Fatalf("job=%+v", job)
	}

	if _, ok := s.Get("nope"); ok {
		t.Fatalf("unknown id should not resolve")
	}
}

func TestJobStore_UpdateProgress(t *testing.T) {
	t.Parallel()

	s := NewJobStore()
	if err := s.Create("j1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	s.UpdateProgress("j1", 3, 10, "Categorizing…")
	job, _ := s.Get("j1")
	if job.Processed != 3 || job.Total != 10 || job.Progress != 30 || job.Message != "Categorizing…" {
		t.Fatalf("job=%+v", job)
	}

	// Processed never regresses.
	s.UpdateProgress("j1", 1, 10, "late report")
	job, _ = s.Get("j1")
	if job.Processed != 3 {
		t.Fatalf("Processed=%d, want 3", job.Processed)
	}

	// Zero total clamps to one; percentage clamps to 100.
	s.UpdateProgress("j1", 5, 0, "weird")
	job, _ = s.Get("j1")
	if job.Total != 1 || job.Progress != 100 {
		t.Fatalf("job=%+v", job)
	}

	// Unknown ids are silent no-ops.
	s.UpdateProgress("ghost", 1, 1, "x")
}

func TestJobStore_FinishAndFail(t *testing.T) {
	t.Parallel()

	s := NewJobStore()
	if err := s.Create("done"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create("broken"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	result := &JobResult{Summary: ResultSummary{TotalConversations: 2}}
	s.Finish("done", result)
	job, _ := s.Get("done")
	if job.Status != JobDone || job.Progress != 100 || job.Message != "Completed" {
		t.Fatalf("job=%+v", job)
	}
	if job.Result == nil || job.Error != "" {
		t.Fatalf("done invariant violated: %+v", job)
	}

	s.Fail("broken", errors.New("export unreadable"))
	job, _ = s.Get("broken")
	if job.Status != JobError || job.Message != "Failed" || job.Error == "" {
		t.Fatalf("job=%+v", job)
	}

	s.Finish("ghost", result)
	s.Fail("ghost", errors.New("x"))
}

func TestJobStore_ConcurrentPollers(t *testing.T) {
	t.Parallel()

	s := NewJobStore()
	if err := s.Create("j1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 100; i++ {
			s.UpdateProgress("j1", i, 100, "Categorizing…")
		}
		s.Finish("j1", &JobResult{})
		close(done)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := -1
			for {
				job, ok := s.Get("j1")
				if !ok {
					t.Errorf("record vanished")
					return
				}
				if job.Processed < prev {
					t.Errorf("processed regressed: %d -> %d", prev, job.Processed)
					return
				}
				prev = job.Processed
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}
	wg.Wait()
}
