// Package main provides the player CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/podplay/internal/api/connect"
	"github.com/osa030/podplay/internal/api/message"
)

var (
	app       = kingpin.New("podplay-playercli", "podplay player client")
	server    = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	sessionID = app.Flag("session", "Player session ID (or set PODPLAY_SESSION env)").Envar("PODPLAY_SESSION").String()

	// open command
	openCmd = app.Command("open", "Open a player session, or resume --session")

	// state command
	stateCmd = app.Command("state", "Show the player state")

	// play command
	playCmd     = app.Command("play", "Play a single episode")
	playEpisode = playCmd.Arg("episode-id", "Episode ID").Required().String()

	// play-list command
	playListCmd      = app.Command("play-list", "Play a list of episodes")
	playListIndex    = playListCmd.Arg("index", "Index to start at").Required().Int()
	playListEpisodes = playListCmd.Arg("episode-ids", "Episode IDs").Required().Strings()

	// transport commands
	nextCmd     = app.Command("next", "Play the next episode")
	previousCmd = app.Command("previous", "Play the previous episode").Alias("prev")
	toggleCmd   = app.Command("toggle", "Toggle play/pause")
	loopCmd     = app.Command("loop", "Toggle looping")
	shuffleCmd  = app.Command("shuffle", "Toggle shuffling")
	clearCmd    = app.Command("clear", "Clear the queue")
	endedCmd    = app.Command("ended", "Report that the current episode ended")

	// set-playing command
	setPlayingCmd   = app.Command("set-playing", "Set the playing state")
	setPlayingValue = setPlayingCmd.Arg("playing", "true or false").Required().Bool()

	// watch command
	watchCmd = app.Command("watch", "Watch state notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Create client
	client := apiconnect.NewClient(http.DefaultClient, *server)

	ctx := context.Background()

	opened, err := client.Open(ctx, *sessionID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if opened.Created && *sessionID != "" {
		fmt.Printf("Session %s not found, opened a new one\n", *sessionID)
	}

	// Execute command
	var state message.State
	switch command {
	case openCmd.FullCommand():
		fmt.Printf("Session ID: %s\n", opened.SessionID)
		fmt.Printf("Use it with --session or export PODPLAY_SESSION=%s\n", opened.SessionID)
		printState(opened.State)
		return
	case watchCmd.FullCommand():
		watch(ctx, client)
		return
	case stateCmd.FullCommand():
		state, err = client.State(ctx)
	case playCmd.FullCommand():
		state, err = client.Play(ctx, *playEpisode)
	case playListCmd.FullCommand():
		state, err = client.PlayList(ctx, *playListEpisodes, *playListIndex)
	case nextCmd.FullCommand():
		state, err = client.PlayNext(ctx)
	case previousCmd.FullCommand():
		state, err = client.PlayPrevious(ctx)
	case toggleCmd.FullCommand():
		state, err = client.TogglePlay(ctx)
	case loopCmd.FullCommand():
		state, err = client.ToggleLoop(ctx)
	case shuffleCmd.FullCommand():
		state, err = client.ToggleShuffle(ctx)
	case setPlayingCmd.FullCommand():
		state, err = client.SetPlayingState(ctx, *setPlayingValue)
	case clearCmd.FullCommand():
		state, err = client.ClearPlayingState(ctx)
	case endedCmd.FullCommand():
		state, err = client.EpisodeEnded(ctx)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	printState(state)
}

func watch(ctx context.Context, client *apiconnect.Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Printf("Watching session %s. Press Ctrl+C to exit.\n", client.SessionID())

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		cancel()
	}()

	err := client.Subscribe(ctx, func(n *message.Notification) error {
		printNotification(n)
		return nil
	})
	if err != nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printNotification(n *message.Notification) {
	// Print sequence number
	fmt.Printf("\n[Sequence: %d] ", n.SequenceNo)

	// Print event type header
	switch n.Type {
	case "initial_state":
		fmt.Println("=== INITIAL STATE ===")
	case "state_changed":
		fmt.Printf("=== STATE CHANGED (%s) ===\n", n.Event)
	default:
		fmt.Printf("=== UNKNOWN EVENT (%s) ===\n", n.Type)
	}

	printState(n.Snapshot)
}

func printState(s message.State) {
	fmt.Println("\nPlayer:")
	fmt.Printf("  Playing: %v  Looping: %v  Shuffling: %v\n", s.IsPlaying, s.IsLooping, s.IsShuffling)
	fmt.Printf("  Has next: %v  Has previous: %v\n", s.HasNext, s.HasPrevious)

	if s.Current == nil {
		fmt.Println("  Nothing playing")
		fmt.Println()
		return
	}

	fmt.Println("\nCurrent Episode:")
	fmt.Printf("  ID: %s\n", s.Current.ID)
	fmt.Printf("  Title: %s\n", s.Current.Title)
	fmt.Printf("  Members: %s\n", s.Current.Members)
	fmt.Printf("  Duration: %s\n", s.Current.Duration)
	fmt.Printf("  URL: %s\n", s.Current.URL)

	fmt.Printf("\nQueue (%d):\n", len(s.Episodes))
	for i, e := range s.Episodes {
		marker := " "
		if i == s.CurrentIndex {
			marker = ">"
		}
		fmt.Printf("  %s %2d. %s [%s]\n", marker, i, e.Title, e.Duration)
	}
	fmt.Println()
}
