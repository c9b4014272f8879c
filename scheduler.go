package main

// Scheduler is called by the preemption entry with the interrupted
// context and returns the context to resume. It is responsible for
// acknowledging the local timer.
type Scheduler interface {
	SaveContext(ctx *Context) *Context
}

type task struct {
	id  int
	ctx Context
}

// roundRobin resumes tasks in turn. Task 0 is whatever was running at
// boot. The kernel spawns nothing else, so outside of tests each switch
// resumes task 0.
type roundRobin struct {
	lapic    *LocalAPIC
	tasks    []*task
	current  int
	switches int
}

func newRoundRobin(lapic *LocalAPIC) *roundRobin {
	return &roundRobin{lapic: lapic, tasks: []*task{{id: 0}}}
}

// spawn adds a task that will first run with ctx.
func (s *roundRobin) spawn(ctx Context) int {
	t := &task{id: len(s.tasks), ctx: ctx}
	s.tasks = append(s.tasks, t)
	return t.id
}

func (s *roundRobin) SaveContext(ctx *Context) *Context {
	s.tasks[s.current].ctx = *ctx
	s.current = (s.current + 1) % len(s.tasks)
	s.switches++
	s.lapic.EndOfInterrupt()
	return &s.tasks[s.current].ctx
}
