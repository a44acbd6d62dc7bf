package execengine

import (
	"context"
	"sync"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

type pipelineNode struct {
	id   int64
	task *PipelineTask
}

func (n *pipelineNode) ID() int64 { return n.id }

// Pipeline is a dependency graph of PipelineTasks: a task is launched once
// every task it requires has completed successfully. A task whose
// prerequisite failed is never launched; it is marked blocked instead (not
// failed), the same way a failed build step poisons everything downstream
// of it.
type Pipeline struct {
	g      *simple.DirectedGraph
	nodes  map[*PipelineTask]*pipelineNode
	order  []*PipelineTask
	nextID int64
}

// NewPipeline constructs an empty Pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		g:     simple.NewDirectedGraph(),
		nodes: make(map[*PipelineTask]*pipelineNode),
	}
}

func (p *Pipeline) register(t *PipelineTask) *pipelineNode {
	if n, ok := p.nodes[t]; ok {
		return n
	}
	p.nextID++
	n := &pipelineNode{id: p.nextID, task: t}
	p.nodes[t] = n
	p.g.AddNode(n)
	p.order = append(p.order, t)
	return n
}

// AddTask registers t and records that it depends on every task in
// requires: t is not launched until all of them have completed. AddTask
// may be called in any order; requires need not already be registered.
func (p *Pipeline) AddTask(t *PipelineTask, requires ...*PipelineTask) {
	n := p.register(t)
	for _, r := range requires {
		rn := p.register(r)
		if p.g.HasEdgeFromTo(rn.ID(), n.ID()) {
			continue
		}
		p.g.SetEdge(p.g.NewEdge(rn, n))
	}
}

// Run executes every registered task, launching each as soon as all of its
// prerequisites have completed, up to gonum's natural concurrency implied
// by the graph shape (tasks with no unmet dependency between them run
// concurrently). It returns the number of tasks whose own run actually
// failed. The returned error is non-nil for a structural problem (a
// dependency cycle), a context cancellation, a missing scheduler and
// runner, a scheduler that fails to start, or a task whose run returns an
// error (Setup or Finish returning an error, or a command that cannot be
// built or submitted); a non-zero exit code or a Fail is reported through
// the task's own PipelineTask.ExitCode/FailureReason, not through the
// returned error. A task that never launches because a prerequisite failed
// is not itself counted: it inherits blocked status, not failure.
//
// If sched is nil, Run constructs a Scheduler of its own for the duration
// of the call (using runner as its Config.Runner) and stops it before
// returning.
func (p *Pipeline) Run(ctx context.Context, workingDir string, sched *Scheduler, runner Runner) (failures int, err error) {
	if _, err := topo.Sort(p.g); err != nil {
		if unordered, ok := err.(topo.Unorderable); ok {
			var names []string
			for _, cycle := range unordered {
				for _, n := range cycle {
					names = append(names, n.(*pipelineNode).task.Name())
				}
			}
			return 0, &CycleError{Tasks: names}
		}
		return 0, xerrors.Errorf("pipeline: %w", err)
	}

	if sched == nil {
		if runner == nil {
			return 0, xerrors.Errorf("pipeline: run: %w", xerrors.New("no scheduler or runner configured"))
		}
		sched = NewScheduler(Config{Runner: runner})
		if err := sched.Start(ctx); err != nil {
			return 0, xerrors.Errorf("pipeline: start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	type result struct {
		task *PipelineTask
		err  error
	}

	var mu sync.Mutex
	launched := make(map[*PipelineTask]bool)
	done := make(map[*PipelineTask]bool)
	blocked := make(map[*PipelineTask]bool)
	results := make(chan result, len(p.order))
	remaining := len(p.order)

	predecessorsOf := func(t *PipelineTask) []*PipelineTask {
		n := p.nodes[t]
		var preds []*PipelineTask
		it := p.g.To(n.ID())
		for it.Next() {
			preds = append(preds, it.Node().(*pipelineNode).task)
		}
		return preds
	}

	ready := func(t *PipelineTask) bool {
		for _, pred := range predecessorsOf(t) {
			if !done[pred] {
				return false
			}
		}
		return true
	}

	launch := func(t *PipelineTask) {
		launched[t] = true
		go func() {
			err := t.run(ctx, sched, sched.ScriptsDir(), workingDir)
			results <- result{task: t, err: err}
		}()
	}

	// advance scans every not-yet-launched task and launches whichever are
	// now ready, looping to a fixpoint within this single call: launching
	// task B might make task C (which depends on B) ready within the same
	// pass, and a single linear scan in iteration order could miss that if
	// C happened to be visited before B.
	advance := func() {
		mu.Lock()
		defer mu.Unlock()
		for {
			changed := false
			for _, t := range p.order {
				if launched[t] {
					continue
				}
				pred := predecessorsOf(t)
				blockedByFailedPrereq := false
				for _, pr := range pred {
					if done[pr] && !pr.succeeded() {
						blockedByFailedPrereq = true
						break
					}
				}
				if blockedByFailedPrereq {
					// A failed (or explicitly failed) prerequisite poisons
					// this task: it is marked done-without-running so its
					// own dependents can, in turn, be marked blocked on the
					// next pass, and never launched. It does not count
					// itself as a failure; only the task whose own run
					// actually failed does.
					launched[t] = true
					done[t] = true
					blocked[t] = true
					mu.Unlock()
					results <- result{task: t, err: nil}
					mu.Lock()
					changed = true
					continue
				}
				if ready(t) {
					launch(t)
					changed = true
				}
			}
			if !changed {
				return
			}
		}
	}

	advance()

	for remaining > 0 {
		select {
		case <-ctx.Done():
			return failures, ctx.Err()
		case r := <-results:
			mu.Lock()
			done[r.task] = true
			wasBlocked := blocked[r.task]
			mu.Unlock()
			remaining--
			if r.err != nil {
				return failures, xerrors.Errorf("pipeline: task %q: %w", r.task.Name(), r.err)
			}
			if !wasBlocked && !r.task.succeeded() {
				failures++
			}
			advance()
		}
	}

	return failures, nil
}

var _ graph.Node = (*pipelineNode)(nil)
