package diskio

import (
	"github.com/deploymenttheory/go-fvde/internal/interfaces"
)

// Pool is the concrete interfaces.IOPool: an indexed set of IOHandles shared between
// every logical volume unlocked from the same physical-volume group. Index 0 is always
// the physical volume the container opened.
type Pool struct {
	handles []interfaces.IOHandle
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

var _ interfaces.IOPool = (*Pool)(nil)

// Handle implements interfaces.IOPool.Handle.
func (p *Pool) Handle(i int) (interfaces.IOHandle, bool) {
	if i < 0 || i >= len(p.handles) || p.handles[i] == nil {
		return nil, false
	}
	return p.handles[i], true
}

// SetHandle implements interfaces.IOPool.SetHandle.
func (p *Pool) SetHandle(i int, handle interfaces.IOHandle) {
	if i >= len(p.handles) {
		grown := make([]interfaces.IOHandle, i+1)
		copy(grown, p.handles)
		p.handles = grown
	}
	p.handles[i] = handle
}

// Len implements interfaces.IOPool.Len.
func (p *Pool) Len() int {
	return len(p.handles)
}

// CloseAll implements interfaces.IOPool.CloseAll.
func (p *Pool) CloseAll() error {
	var first error
	for _, h := range p.handles {
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
