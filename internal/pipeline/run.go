package pipeline

import (
	"context"
	"fmt"
)

// RunResult collects the outcome of each stage of one Run.
type RunResult struct {
	Extract   string
	Keys      []string
	Transform string
	Published []PublishResult
	Load      string
	Report    LoadReport
}

// Run chains the three stages. The transform event is built from the keys
// the extract wrote. A handled extract failure stops the chain, since the
// raw store holds nothing new for the later stages.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	var res RunResult
	var err error

	res.Extract, res.Keys, err = p.Extract(ctx)
	if err != nil {
		return res, fmt.Errorf("extract: %w", err)
	}
	if res.Extract != StatusOK {
		return res, nil
	}

	if len(res.Keys) > 0 {
		ev := EventFor(p.deps.Raw.Bucket(), res.Keys)
		res.Transform, res.Published, err = p.Transform(ctx, ev)
		if err != nil {
			return res, fmt.Errorf("transform: %w", err)
		}
	}

	res.Load, res.Report, err = p.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load: %w", err)
	}
	return res, nil
}
