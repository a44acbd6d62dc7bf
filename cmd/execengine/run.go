package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/distr1/execengine"
	"github.com/distr1/execengine/internal/httpstatus"
	"github.com/distr1/execengine/internal/joblog"
	"github.com/distr1/execengine/internal/pipelinefile"
	"github.com/distr1/execengine/internal/processrunner"
	"github.com/distr1/execengine/internal/statusline"
)

const runHelp = `execengine run [-flags] <pipeline.yaml>

Run every task in a pipeline file to completion.

Example:
  % execengine run -http :8080 -log_dir ./logs ./pipeline.yaml
`

func usage(fset *flag.FlagSet, help string) func() {
	return func() {
		fmt.Fprintln(os.Stderr, help)
		fset.PrintDefaults()
	}
}

func run(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		scriptsDir = fset.String("scripts_dir", "", "directory to write wrapper scripts into (default: $EXECENGINE_ROOT/scripts)")
		logDir     = fset.String("log_dir", "", "directory to archive job output into; disabled if empty")
		workingDir = fset.String("cwd", ".", "working directory for pipeline commands")
		jobs       = fset.Int("jobs", 0, "maximum number of concurrently running jobs (0 = unlimited)")
		httpAddr   = fset.String("http", "", "address to serve the job log directory over read-only HTTP on for the run's duration; disabled if empty")
	)
	fset.Usage = usage(fset, runHelp)
	fset.Parse(args)

	if fset.NArg() != 1 {
		fset.Usage()
		os.Exit(2)
	}
	path := fset.Arg(0)

	pf, err := pipelinefile.Load(path)
	if err != nil {
		return err
	}

	cfg := execengine.Config{
		Runner:        processrunner.New(),
		MaxConcurrent: *jobs,
		ScriptsDir:    *scriptsDir,
		Status:        statusline.New(os.Stdout),
	}
	if *logDir != "" {
		archiver, err := joblog.New(*logDir)
		if err != nil {
			return err
		}
		cfg.Archiver = archiver
	}

	sched := execengine.NewScheduler(cfg)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	if *httpAddr != "" {
		serveDir := *logDir
		if serveDir == "" {
			serveDir = sched.ScriptsDir()
		}
		httpCtx, stopHTTP := context.WithCancel(ctx)
		httpDone := make(chan error, 1)
		go func() { httpDone <- httpstatus.New(*httpAddr, serveDir).ListenAndServe(httpCtx) }()
		defer func() {
			stopHTTP()
			if err := <-httpDone; err != nil {
				log.Printf("execengine: http server on %s: %v", *httpAddr, err)
			}
		}()
		log.Printf("serving %s on http://%s", serveDir, *httpAddr)
	}

	pipeline := execengine.NewPipeline()
	tasks := make(map[string]*execengine.PipelineTask, len(pf.Tasks))
	for name, def := range pf.Tasks {
		def := def
		t, err := execengine.NewTask(execengine.TaskSpec{
			Name: name,
			Setup: func(t *execengine.PipelineTask) error {
				for i, argv := range def.Commands {
					if len(argv) == 0 {
						continue
					}
					label := fmt.Sprintf("%s[%d]", t.Name(), i)
					t.AddCmd(execengine.NewCommand(label, argv...))
				}
				return nil
			},
		})
		if err != nil {
			return err
		}
		tasks[name] = t
	}
	for name, def := range pf.Tasks {
		var requires []*execengine.PipelineTask
		for _, req := range def.Requires {
			requires = append(requires, tasks[req])
		}
		pipeline.AddTask(tasks[name], requires...)
	}

	failures, err := pipeline.Run(ctx, *workingDir, sched, nil)
	if err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d tasks failed", failures, len(tasks))
	}
	log.Printf("%d tasks succeeded", len(tasks))
	return nil
}
