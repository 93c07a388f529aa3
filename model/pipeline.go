package model

import "github.com/sarchlab/sdrbench/dut"

// pipeline delays outputs by a fixed number of clock edges.
type pipeline struct {
	stages []*dut.Output
}

func newPipeline(latency int) *pipeline {
	return &pipeline{stages: make([]*dut.Output, latency)}
}

// shift pushes in and returns the output leaving the last stage.
func (p *pipeline) shift(in *dut.Output) *dut.Output {
	if len(p.stages) == 0 {
		return in
	}

	out := p.stages[len(p.stages)-1]
	copy(p.stages[1:], p.stages[:len(p.stages)-1])
	p.stages[0] = in

	return out
}

func (p *pipeline) reset() {
	for i := range p.stages {
		p.stages[i] = nil
	}
}
