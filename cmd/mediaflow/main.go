// Command mediaflow is a thin CLI over the generation engine.
//
// Usage:
//
//	mediaflow generate -type image -model nano-banana -prompt "..."
//	mediaflow generate -type video -model kling-3.0 -prompt "..." -duration 10
//	mediaflow generate -type speech -model gemini-tts -text "..." -voice Kore
//	mediaflow models    # list registered models, providers, and prices
//	mediaflow check     # verify configured credentials
//	mediaflow version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/mediaflow"
	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/gen"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		runGenerate(os.Args[2:])
	case "models":
		runModels()
	case "check":
		runCheck()
	case "version":
		fmt.Printf("mediaflow %s\n", mediaflow.Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: mediaflow <command> [flags]

Commands:
  generate    Run one generation and print the artifact URL
  models      List registered models, providers, and retail prices
  check       Verify configured credentials
  version     Show version`)
}

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	genType := fs.String("type", "image", "Generation type: image, video, speech, talking-head")
	model := fs.String("model", "", "Model name (required)")
	provider := fs.String("provider", "", "Provider override (default: registry default)")
	prompt := fs.String("prompt", "", "Prompt for image/video generation")
	text := fs.String("text", "", "Text for speech synthesis")
	voice := fs.String("voice", "", "Voice name for speech synthesis")
	aspect := fs.String("aspect", "", "Aspect ratio, e.g. 9:16")
	duration := fs.Int("duration", 0, "Video duration in seconds")
	image := fs.String("image", "", "Start frame or face image (path or URL)")
	audio := fs.String("audio", "", "Driving audio URL for talking-head")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	if *model == "" {
		fmt.Fprintln(os.Stderr, "-model is required")
		os.Exit(1)
	}

	logger := initLogger(*verbose)
	defer logger.Sync()

	app := mustApp(logger)
	ctx := context.Background()

	var (
		res *gen.Result
		err error
	)
	switch *genType {
	case "image":
		res, err = app.Engine.GenerateImage(ctx, &gen.ImageRequest{
			Prompt:      *prompt,
			Model:       *model,
			Provider:    *provider,
			AspectRatio: *aspect,
		})
	case "video":
		res, err = app.Engine.GenerateVideo(ctx, &gen.VideoRequest{
			Prompt:      *prompt,
			Model:       *model,
			Provider:    *provider,
			AspectRatio: *aspect,
			Duration:    *duration,
			ImageURL:    *image,
		})
	case "speech":
		res, err = app.Engine.GenerateSpeech(ctx, &gen.SpeechRequest{
			Text:     *text,
			Model:    *model,
			Provider: *provider,
			Voice:    *voice,
		})
	case "talking-head":
		res, err = app.Engine.GenerateTalkingHead(ctx, &gen.TalkingHeadRequest{
			Model:    *model,
			Provider: *provider,
			ImageURL: *image,
			AudioURL: *audio,
			Duration: *duration,
		})
	default:
		fmt.Fprintf(os.Stderr, "Unknown generation type: %s\n", *genType)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Generation failed: %v\n", err)
		os.Exit(1)
	}
	if !res.OK() {
		fmt.Fprintf(os.Stderr, "Job failed: %s\n", res.Error)
		os.Exit(1)
	}
	fmt.Println(res.ResultURL)
}

func runModels() {
	logger := zap.NewNop()
	app := mustApp(logger)

	for _, cap := range []gen.Capability{gen.CapImage, gen.CapVideo, gen.CapTTS, gen.CapTalkingHead} {
		models := app.Registry.Models(cap)
		if len(models) == 0 {
			continue
		}
		fmt.Printf("%s:\n", cap)
		for _, model := range models {
			def := app.Registry.DefaultProvider(cap, model)
			for _, provider := range app.Registry.Providers(cap, model) {
				marker := " "
				if provider == def {
					marker = "*"
				}
				fmt.Printf("  %s %-18s %-12s $%.2f\n", marker, model, provider, app.Pricing.Cost(model, provider))
			}
		}
	}
}

func runCheck() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if missing := cfg.CheckCredentials(); len(missing) > 0 {
		fmt.Fprintln(os.Stderr, "Missing credentials:")
		for _, m := range missing {
			fmt.Fprintf(os.Stderr, "  - %s\n", m)
		}
		os.Exit(1)
	}
	fmt.Println("Credentials OK")
	for name, ok := range map[string]bool{
		"kie":        cfg.HasKie(),
		"google":     cfg.HasGoogle(),
		"wavespeed":  cfg.HasWaveSpeed(),
		"higgsfield": cfg.HasHiggsfield(),
	} {
		status := "not configured"
		if ok {
			status = "configured"
		}
		fmt.Printf("  %-12s %s\n", name, status)
	}
}

func mustApp(logger *zap.Logger) *mediaflow.App {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if missing := cfg.CheckCredentials(); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "Missing credentials: %v\n", missing)
		os.Exit(1)
	}
	app, err := mediaflow.New(cfg, mediaflow.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return app
}

func initLogger(verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}
