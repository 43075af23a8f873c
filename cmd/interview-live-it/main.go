// Command interview-live-it is a manual end-to-end harness for the live
// interview controller: real microphone in (ffmpeg), real speaker out
// (ffplay), real backend, real Gemini Live connection.
//
// Typical run:
//
//	interview-live-it -backend http://localhost:8787 -candidate "Jordan" \
//	    -topic "Backend Engineer" -persona "You are a rigorous interviewer."
//
// Press Ctrl-C once to end the interview (flush + report), twice to abort.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/sergiialekseev/mypitch-saas-sub000/internal/dotenv"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/live"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/providers/genailive"
	mypitch "github.com/sergiialekseev/mypitch-saas-sub000/sdk"
)

type options struct {
	backend   string
	apiKey    string
	sessionID string

	candidate string
	topic     string
	persona   string
	voice     string

	micDevice  string
	micCmd     string
	ffplayPath string
	volume     int
	envFile    string
	debug      bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	var opt options
	flag.StringVar(&opt.backend, "backend", "", "Backend base URL (also reads MYPITCH_BASE_URL)")
	flag.StringVar(&opt.apiKey, "api-key", "", "Backend API key (also reads MYPITCH_API_KEY)")
	flag.StringVar(&opt.sessionID, "session", "", "Existing interview session id; empty creates one")
	flag.StringVar(&opt.candidate, "candidate", "Candidate", "Candidate name for a created session")
	flag.StringVar(&opt.topic, "topic", "Backend Engineer", "Role title for a created session")
	flag.StringVar(&opt.persona, "persona", "You are a rigorous but friendly technical interviewer.", "Interviewer persona for a created session")
	flag.StringVar(&opt.voice, "voice", "", "Synthesis voice (empty selects the default)")
	flag.StringVar(&opt.micDevice, "mic-device", defaultMicDevice(), "Microphone device for ffmpeg")
	flag.StringVar(&opt.micCmd, "mic-cmd", "", "Override mic capture command (runs via /bin/sh -lc)")
	flag.StringVar(&opt.ffplayPath, "ffplay-path", "ffplay", "Path to ffplay executable")
	flag.IntVar(&opt.volume, "volume", 80, "ffplay startup volume 0-100")
	flag.StringVar(&opt.envFile, "env-file", ".env", "Dotenv file for local development")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if err := run(opt); err != nil {
		fmt.Fprintln(os.Stderr, "interview-live-it:", err)
		return 1
	}
	return 0
}

func run(opt options) error {
	if err := dotenv.Load(opt.envFile); err != nil {
		return err
	}

	level := slog.LevelInfo
	if opt.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var clientOpts []mypitch.ClientOption
	if opt.backend != "" {
		clientOpts = append(clientOpts, mypitch.WithBaseURL(opt.backend))
	}
	if opt.apiKey != "" {
		clientOpts = append(clientOpts, mypitch.WithAPIKey(opt.apiKey))
	}
	client := mypitch.NewClient(clientOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := resolveSession(ctx, client, opt)
	if err != nil {
		return err
	}
	fmt.Printf("interview session: %s (%s, candidate %s)\n",
		session.ID, session.Topic.Title, session.CandidateName)

	cfg := live.DefaultConfig()
	mic := newFFmpegMic(opt.micCmd, opt.micDevice, cfg.CaptureSampleRate, cfg.FrameSamples)
	sink, err := newFFplaySink(opt.ffplayPath, cfg.PlaybackSampleRate, opt.volume)
	if err != nil {
		return err
	}

	reportReady := make(chan string, 1)
	controller := live.NewController(cfg, session,
		genailive.NewTransport(genailive.WithLogger(logger)),
		client, mic, sink,
		live.WithLogger(logger),
		live.WithReportReadyFunc(func(sessionID string) { reportReady <- sessionID }),
	)
	defer controller.Close()

	if err := controller.Start(context.Background()); err != nil {
		return err
	}

	// First interrupt ends the interview gracefully; the second aborts.
	go func() {
		<-ctx.Done()
		fmt.Println("\nending interview...")
		controller.End()
	}()

	sessionErr := make(chan string, 1)
	eventsDone := make(chan struct{})
	go func() {
		printEvents(controller, opt.debug, sessionErr)
		close(eventsDone)
	}()

	select {
	case sessionID := <-reportReady:
		controller.Close()
		<-eventsDone
		return printReport(client, sessionID)
	case msg := <-sessionErr:
		controller.Close()
		<-eventsDone
		return fmt.Errorf("session failed: %s", msg)
	}
}

func resolveSession(ctx context.Context, client *mypitch.Client, opt options) (types.Session, error) {
	if opt.sessionID != "" {
		return client.GetInterview(ctx, opt.sessionID)
	}
	return client.CreateInterview(ctx, mypitch.CreateInterviewRequest{
		Topic: types.Topic{
			Title:         opt.topic,
			Persona:       opt.persona,
			OpeningPrompt: "Please greet the candidate and begin the interview.",
			Voice:         opt.voice,
		},
		CandidateName: opt.candidate,
	})
}

// printEvents renders the session event stream until it closes, reporting
// the first terminal error on sessionErr.
func printEvents(controller *live.Controller, debug bool, sessionErr chan<- string) {
	for ev := range controller.Events() {
		switch e := ev.(type) {
		case *live.StatusChangedEvent:
			if e.Message != "" {
				fmt.Printf("[%s] %s\n", e.To, e.Message)
			} else {
				fmt.Printf("[%s]\n", e.To)
			}
		case *live.TranscriptDeltaEvent:
			label := "you"
			if e.Speaker == types.SpeakerAI {
				label = "interviewer"
			}
			fmt.Printf("%s: %s\n", label, strings.TrimSpace(e.Text))
		case *live.TimeWarningEvent:
			fmt.Printf("*** %s ***\n", e.Message)
		case *live.TimerTickEvent:
			if e.RemainingSeconds%60 == 0 {
				fmt.Printf("(%d:%02d remaining)\n", e.RemainingSeconds/60, e.RemainingSeconds%60)
			}
		case *live.SessionErrorEvent:
			fmt.Printf("error: %s\n", e.Message)
			select {
			case sessionErr <- e.Message:
			default:
			}
		case *live.ReportReadyEvent:
			fmt.Println("report ready")
		default:
			if debug {
				slog.Debug("event", "type", ev.EventType())
			}
		}
	}
}

func printReport(client *mypitch.Client, sessionID string) error {
	report, err := client.GetReport(context.Background(), sessionID)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}
	fmt.Printf("\n=== Interview report (score %d/100) ===\n%s\n", report.OverallScore, report.Summary)
	for _, q := range report.Questions {
		fmt.Printf("\n- %s (score %d/10)\n  %s\n", q.Question, q.Score, q.Feedback)
	}
	return nil
}

func defaultMicDevice() string {
	if runtime.GOOS == "darwin" {
		// avfoundation audio device index.
		return "0"
	}
	return "default"
}
