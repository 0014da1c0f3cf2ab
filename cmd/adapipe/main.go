// cmd/adapipe/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/adapipe/engine/internal/adapipe"
	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/config"
	"github.com/adapipe/engine/internal/executor"
	"github.com/adapipe/engine/internal/keysource"
	"github.com/adapipe/engine/internal/obsmetrics"
	"github.com/adapipe/engine/internal/orchestrator"
	"github.com/adapipe/engine/internal/stages"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "input file to process")
		outputPath = flag.String("output", "", "output .adapipe container path")
		preset     = flag.String("preset", "balanced", "pipeline preset: balanced, archive, throughput, passthrough, compliance")
		configPath = flag.String("config", "", "optional YAML config file (overrides preset lookup for named pipelines)")
		pipeline   = flag.String("pipeline", "", "named pipeline to load from -config's pipelines map, instead of -preset")
		passphrase = flag.String("passphrase", "", "passphrase for key derivation (ADAPIPE_PASSPHRASE env var also accepted)")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if *inputPath == "" || *outputPath == "" {
		logger.Fatal("-input and -output are required")
	}

	pipelineCfg, err := resolvePipelineConfig(*configPath, *pipeline, *preset)
	if err != nil {
		logger.Fatal("resolve pipeline configuration", zap.Error(err))
	}

	pass := *passphrase
	if pass == "" {
		pass = os.Getenv("ADAPIPE_PASSPHRASE")
	}
	if pass == "" {
		pass = "adapipe-dev-passphrase"
		logger.Warn("no passphrase supplied, using an insecure development default")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down...")
		cancel()
	}()
	defer cancel()

	if err := run(ctx, logger, *inputPath, *outputPath, pipelineCfg, pass); err != nil {
		logger.Fatal("processing failed", zap.Error(err))
	}

	logger.Info("processing complete", zap.String("output", *outputPath))
}

func resolvePipelineConfig(configPath, pipelineName, preset string) (config.PipelineConfig, error) {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.PipelineConfig{}, err
		}
		if pipelineName != "" {
			p, ok := cfg.Pipelines[pipelineName]
			if !ok {
				return config.PipelineConfig{}, fmt.Errorf("pipeline %q not defined in %s", pipelineName, configPath)
			}
			return p, nil
		}
	}
	return config.GetPreset(preset)
}

func run(ctx context.Context, logger *zap.Logger, inputPath, outputPath string, pipelineCfg config.PipelineConfig, passphrase string) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("stat input file: %w", err)
	}

	src, err := openSource(inputPath, pipelineCfg)
	if err != nil {
		return fmt.Errorf("open input source: %w", err)
	}
	defer src.Close()

	writer, err := adapipe.CreateWriter(outputPath)
	if err != nil {
		return fmt.Errorf("create output container: %w", err)
	}

	pctx := chunk.NewContext(inputPath, outputPath, info.Size(), 0, runtimeWorkerCount(), nil)
	sink := adapipe.NewContainerSink(writer, pctx)

	keys := keysource.NewPassphrase(passphrase)
	obs := obsmetrics.NewCollector()
	registry := stages.NewRegistry(keys, obs)
	exec := executor.New(registry)
	orch := orchestrator.New(registry, exec, logger)

	runCfg := orchestrator.Config{
		PipelineName: pipelineCfg.Name,
		Stages:       pipelineCfg.Stages,
	}

	runErr := orch.Run(ctx, runCfg, src, sink, pctx, obs)

	steps := processingSteps(pipelineCfg)
	header := adapipe.FileHeader{
		OriginalFilename: inputPath,
		OriginalSize:     info.Size(),
		PipelineID:       pipelineCfg.Name,
		ProcessedAt:      time.Now().UTC(),
		ProcessingSteps:  steps,
	}
	if _, finalizeErr := writer.Finalize(header); finalizeErr != nil && runErr == nil {
		runErr = finalizeErr
	}

	return runErr
}

func openSource(inputPath string, pipelineCfg config.PipelineConfig) (*chunk.FileSource, error) {
	switch pipelineCfg.Chunking.Algorithm {
	case chunk.ChunkingFastCDC:
		return chunk.NewFastCDCFileSource(inputPath, pipelineCfg.Chunking.Boundaries())
	default:
		size := pipelineCfg.Chunking.FixedSize
		if size <= 0 {
			size = 4 * 1024 * 1024
		}
		return chunk.NewFixedFileSource(inputPath, size)
	}
}

func processingSteps(p config.PipelineConfig) []adapipe.ProcessingStep {
	steps := make([]adapipe.ProcessingStep, 0, len(p.Stages))
	for i, s := range p.Stages {
		steps = append(steps, adapipe.ProcessingStep{
			StepType:   stepTypeFor(s.Algorithm),
			Algorithm:  s.Algorithm,
			Parameters: s.Parameters,
			Order:      i,
		})
	}
	return steps
}

func stepTypeFor(algorithm string) adapipe.StepType {
	switch algorithm {
	case "zstd", "gzip", "snappy", "brotli", "lz4":
		return adapipe.StepCompression
	case "aes256gcm", "chacha20poly1305", "xchacha20poly1305":
		return adapipe.StepEncryption
	case "sha256":
		return adapipe.StepChecksum
	default:
		return adapipe.StepPassThrough
	}
}

func runtimeWorkerCount() int {
	if n, err := strconv.Atoi(os.Getenv("ADAPIPE_WORKERS")); err == nil && n > 0 {
		return n
	}
	return 4
}

type noopDebugSink struct{}

func (noopDebugSink) RecordDebugStageBytes(string, uint64, int) {}
func (noopDebugSink) IncrementDebugStageChunks(string)           {}
