package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"

	"github.com/netsweep/pacesim"
	"go.uber.org/zap"
)

func main() {
	scenarioFile := flag.String("scenario", "", "scenario description (.yaml, .yml or .json); the wired dumbbell if empty")
	outFile := flag.String("out", "", "file to write the sweep results to (.yaml, .yml or .json)")
	traceFile := flag.String("trace", "", "file to write sender traces to; requires -size")
	size := flag.Int("size", 0, "run only this payload size instead of the sweep")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger, err := pacesim.NewLogger(*verbose)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	sd := pacesim.DefaultScenarioDesc()
	if *scenarioFile != "" {
		ext := path.Ext(*scenarioFile)
		useYAML := ext == ".yaml" || ext == ".yml" || ext == ".YAML"
		sd, err = pacesim.ReadScenarioDesc(*scenarioFile, useYAML, nil)
		if err != nil {
			logger.Fatal("failed to load scenario", zap.Error(err))
		}
	}
	if *traceFile != "" && *size <= 0 {
		logger.Fatal("-trace requires -size")
	}

	opts := pacesim.RunOptions{Logger: logger}

	if *size > 0 {
		tm := pacesim.CreateTraceManager(sd.Name, *traceFile != "")
		opts.Trace = tm
		out, err := pacesim.RunScenario(sd, *size, opts)
		if err != nil {
			logger.Fatal("run failed", zap.Error(err))
		}
		printRun(out)
		if err := tm.WriteToFile(*traceFile); err != nil {
			logger.Fatal("failed to write traces", zap.Error(err))
		}
		return
	}

	sr, err := pacesim.Sweep(sd, opts)
	if err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}
	for _, out := range sr.Runs {
		printRun(out)
	}
	fmt.Printf("mean average throughput: %.3f Kbps (stddev %.3f)\n", sr.Summary.MeanThroughput, sr.Summary.StdThroughput)
	fmt.Printf("mean fairness index: %.6f (stddev %.6f)\n", sr.Summary.MeanFairness, sr.Summary.StdFairness)
	fmt.Printf("highest average throughput at payload size %d\n", sr.Summary.BestPayload)

	if *outFile != "" {
		if err := sr.WriteToFile(*outFile); err != nil {
			logger.Fatal("failed to write results", zap.Error(err))
		}
	}
}

func printRun(out *pacesim.RunOutput) {
	fmt.Printf("Packet-Size : %d\n\n", out.PayloadSize)
	out.Result.Report(os.Stdout)
	fmt.Println("---------------------------------------------------------")
}
