package codegen

import (
	"swc/internal/diag"
	"swc/internal/job"
)

// CompileAll lowers every function as its own job: one job per function,
// all reading the shared managers, each writing only its own MicroBuilder.
// Artifacts come back in input order; a function whose
// pipeline failed leaves a nil slot and an error diagnostic on
// env.Reporter.
func CompileAll(fns []*Function, cfg Config, env *Env) []*Artifact {
	mgr := job.NewManager(job.Config{
		NumWorkers: cfg.NumCores,
		Randomize:  cfg.Randomize,
		Seed:       cfg.Seed,
		Logger:     env.Logger,
	})

	const client job.ClientID = 1
	artifacts := make([]*Artifact, len(fns))
	for i := range fns {
		i, fn := i, fns[i]
		mgr.Enqueue(&job.Job{
			Client:   client,
			Priority: job.Normal,
			Run: func() job.Result {
				art, err := CompileFunction(fn, cfg, env)
				if err != nil {
					env.Reporter.Report(diag.Errorf(diag.SourceSpan{}, "E-codegen",
						"code generation for %s failed: %v", env.Idents.Name(fn.Name), err))
					return job.Result{Kind: job.ResultDone}
				}
				artifacts[i] = art
				return job.Result{Kind: job.ResultDone}
			},
		})
	}
	mgr.WaitAll(client)
	mgr.Shutdown()
	return artifacts
}
