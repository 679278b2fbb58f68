package review

import "sync"

// Poller is the stop handle for one execution's poll loop. Callers leaving
// a conversation view must Stop to avoid leaking the loop; the loop also
// stops itself on terminal states.
type Poller struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newPoller() *Poller {
	return &Poller{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Stop asks the loop to exit. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Done is closed when the loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the loop has exited.
func (p *Poller) Wait() {
	<-p.done
}
