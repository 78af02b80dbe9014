package netsuke

import (
	"bytes"
	"path/filepath"
)

// Result is everything a successful pipeline run produces: the resolved
// graph, the synthesised Ninja file text, and the invocation the caller
// would hand to Ninja (spec.md §4.1).
type Result struct {
	Graph      *BuildGraph
	Ninja      string
	Invocation NinjaInvocation
	Impure     bool
}

// Options configures one pipeline run.
type Options struct {
	ManifestPath string
	NinjaFile    string // default "build.ninja" if empty
	Targets      []string
	Jobs         int    // forwarded as -j <jobs> to the Ninja invocation; 0 omits it
	Tool         string // forwarded as -t <tool>; mutually exclusive with Targets
	Policy       NetworkPolicy
	Budgets      Budgets
	Reporter     Reporter // defaults to SilentReporter if nil
}

// Run sequences the six pipeline stages end to end: ingest the manifest
// source, parse its YAML into an untyped tree, expand foreach/when/macros,
// decode and render the typed manifest, generate the IR, and synthesise
// Ninja build file text. It reports StageRunning/StageDone/StageFailed to
// opts.Reporter around each stage so a caller gets live progress without
// needing to know the pipeline's internal structure (spec.md §4.1, §4.8).
func Run(opts Options) (*Result, error) {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = SilentReporter{}
	}
	if c, ok := reporter.(interface{ Close() }); ok {
		defer c.Close()
	}
	ninjaFile := opts.NinjaFile
	if ninjaFile == "" {
		ninjaFile = "build.ninja"
	}

	src, logicalName, err := stage(reporter, StageIngest, func() ([]byte, string, error) {
		return LoadManifestSource(opts.ManifestPath)
	})
	if err != nil {
		return nil, &StageError{Stage: StageIngest, Err: err}
	}

	tree, err := stage1(reporter, StageYAML, func() (map[string]any, error) {
		return ParseYAML(src, logicalName)
	})
	if err != nil {
		return nil, &StageError{Stage: StageYAML, Err: err}
	}

	workspaceRoot := filepath.Dir(opts.ManifestPath)
	env, err := NewEnv(workspaceRoot, opts.Policy, opts.Budgets)
	if err != nil {
		return nil, &StageError{Stage: StageExpand, Err: err}
	}

	expanded, err := stage1(reporter, StageExpand, func() (map[string]any, error) {
		return env.ExpandManifest(tree)
	})
	if err != nil {
		return nil, &StageError{Stage: StageExpand, Err: err}
	}

	manifest, err := stage1(reporter, StageRender, func() (*Manifest, error) {
		m, err := DecodeManifest(expanded)
		if err != nil {
			return nil, err
		}
		if err := env.RenderManifest(m); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}

	graph, err := stage1(reporter, StageIR, func() (*BuildGraph, error) {
		return GenerateIR(manifest)
	})
	if err != nil {
		return nil, &StageError{Stage: StageIR, Err: err}
	}

	var ninjaText bytes.Buffer
	_, err = stage1(reporter, StageSynthesis, func() (struct{}, error) {
		return struct{}{}, EmitNinja(&ninjaText, graph)
	})
	if err != nil {
		return nil, &StageError{Stage: StageSynthesis, Err: err}
	}

	invocation := BuildNinjaInvocationWithOptions(workspaceRoot, ninjaFile, opts.Targets,
		InvocationOptions{Jobs: opts.Jobs, Tool: opts.Tool, Dir: workspaceRoot})
	return &Result{Graph: graph, Ninja: ninjaText.String(), Invocation: invocation, Impure: env.Impure()}, nil
}

// stage runs fn, reporting its stage transitions to reporter. Generic over
// two return values since LoadManifestSource returns (bytes, name, error).
func stage[A, B any](reporter Reporter, s Stage, fn func() (A, B, error)) (A, B, error) {
	reporter.Report(s, StageRunning, "")
	a, b, err := fn()
	if err != nil {
		reporter.Report(s, StageFailed, err.Error())
		var zeroA A
		var zeroB B
		return zeroA, zeroB, err
	}
	reporter.Report(s, StageDone, "")
	return a, b, err
}

// stage1 is stage's single-return-value counterpart.
func stage1[A any](reporter Reporter, s Stage, fn func() (A, error)) (A, error) {
	reporter.Report(s, StageRunning, "")
	a, err := fn()
	if err != nil {
		reporter.Report(s, StageFailed, err.Error())
		var zero A
		return zero, err
	}
	reporter.Report(s, StageDone, "")
	return a, nil
}
