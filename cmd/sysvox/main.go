package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"sysvox/internal/assistant"
	"sysvox/internal/audio"
	"sysvox/internal/bus"
	"sysvox/internal/command"
	"sysvox/internal/ipc"
	"sysvox/internal/proxy"
	"sysvox/internal/session"
	"sysvox/internal/system"
	"sysvox/internal/tts"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS proxy address, empty for direct")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	model := cli.StringP("model", "m", "", "Chat model override")
	whisperModel := cli.StringP("whisper", "w", "third_party/whisper.cpp/models/ggml-base.en.bin", "Whisper model path")
	voice := cli.BoolP("voice", "v", false, "Start in voice input mode")
	mute := cli.Bool("mute", false, "Disable speech output")
	busURL := cli.StringP("bus", "b", "", "Hub websocket url, empty to run standalone")
	audioFile := cli.StringP("audio-file", "f", "", "Transcribe this file, run one turn, exit")
	cacheDir := cli.String("tts-cache", "tts_cache", "Directory for synthesized speech clips")
	earcon := cli.String("earcon", "beep.mp3", "Listening earcon path")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if *proxyAddr != "" {
		httpClient, err := proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithHTTPClient(httpClient))
		log.Debug("Loaded proxy")
	}
	client := openai.NewClient(opts...)

	sess := session.New(session.DefaultMaxTurns)
	sess.SetVoiceMode(*voice)

	disp := command.NewDispatcher(system.NewInspector(), sess)
	asst := assistant.New(assistant.NewOpenAI(client, openai.ChatModel(*model)), sess, disp)

	a := &app{
		asst:         asst,
		sess:         sess,
		whisperModel: *whisperModel,
		earcon:       *earcon,
	}

	if !*mute {
		speaker, err := tts.NewSpeaker(client, *cacheDir, audio.NewDucker(30))
		if err != nil {
			log.Error("Failed to init speech output", "err", err)
			os.Exit(1)
		}
		a.speaker = speaker
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *audioFile != "" {
		if err := a.oneShot(ctx, *audioFile); err != nil {
			log.Error("One-shot turn failed", "file", *audioFile, "err", err)
			os.Exit(1)
		}
		return
	}

	if *voice {
		if err := a.ensureVoice(); err != nil {
			log.Error("Failed to init voice input", "err", err)
			os.Exit(1)
		}
	}
	defer a.closeVoice()

	if err := ipc.StartServer(func(msg ipc.ControlMessage) {
		switch msg.Cmd {
		case "trigger":
			a.voiceTurn(ctx)
		default:
			log.Warn("Unknown control command", "cmd", msg.Cmd)
		}
	}); err != nil {
		log.Error("Failed to start ipc server", "err", err)
		os.Exit(1)
	}

	if *busURL != "" {
		b, err := bus.Dial(*busURL)
		if err != nil {
			log.Error("Failed to connect to bus", "url", *busURL, "err", err)
			os.Exit(1)
		}
		defer b.Close()
		go b.Run(ctx, a.handleRemote)
	}

	log.Info("Boot up - successful")
	a.runInteractive(ctx)
}
