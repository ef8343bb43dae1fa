// Package main provides the Spotify authorization tool. It obtains a refresh
// token, checks that the token can read the configured show and prints the
// matching config/server.yaml blocks.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"

	"github.com/osa030/podplay/internal/domain/episode"
	"github.com/osa030/podplay/internal/infra/config"
	"github.com/osa030/podplay/internal/infra/logger"
	"github.com/osa030/podplay/internal/infra/spotify"
)

const (
	state         = "podplay-auth-state"
	previewCount  = 3
	verifyTimeout = 30 * time.Second
)

var (
	app          = kingpin.New("podplay-auth", "Spotify authorization tool for podplay")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	show         = app.Flag("show", "Show ID, URI or URL to verify and add as a provider").Envar("PODPLAY_SPOTIFY_SHOW").String()
	market       = app.Flag("market", "Market used to read the show").Default("BR").String()
	displayName  = app.Flag("display-name", "Provider display name").Default("Spotify").String()
)

const completePage = `<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>podplay - autorizado</title></head>
<body style="font-family: Inter, sans-serif; background: #f7f8fa; color: #494d4b; text-align: center; padding-top: 20vh">
<h1 style="color: #8257e5">Autorização concluída</h1>
<p>Você já pode fechar esta janela e voltar ao terminal.</p>
</body>
</html>
`

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	if err := run(context.Background()); err != nil {
		zlog.Fatal().Msgf("Authorization failed: %v", err)
	}
}

func run(ctx context.Context) error {
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(spotify.Scopes...),
	)

	token, err := awaitToken(ctx, auth)
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		return errors.New("spotify returned no refresh token")
	}

	creds := config.SpotifyConfig{
		ClientID:     *clientID,
		ClientSecret: *clientSecret,
		RefreshToken: token.RefreshToken,
	}

	var provider *config.ProviderConfig
	if *show != "" {
		episodes, err := verifyShow(ctx, creds, *show, *market)
		if err != nil {
			return err
		}
		printShow(os.Stdout, episodes)
		provider = spotifyProvider(*displayName, *show, *market)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Println("Add this to your config/server.yaml:")
	fmt.Println("")
	if err := writeConfig(os.Stdout, creds, provider); err != nil {
		return err
	}
	fmt.Println("")
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=%q\n", token.RefreshToken)
	return nil
}

// awaitToken serves the OAuth callback until Spotify redirects back with a code.
func awaitToken(ctx context.Context, auth *spotifyauth.Authenticator) (*oauth2.Token, error) {
	tokens := make(chan *oauth2.Token, 1)
	failures := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		if st := r.FormValue("state"); st != state {
			http.Error(w, "State mismatch", http.StatusForbidden)
			zlog.Warn().Msgf("State mismatch: %s != %s", st, state)
			return
		}
		token, err := auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Failed to get token", http.StatusForbidden)
			zlog.Warn().Msgf("Failed to get token: %v", err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, completePage)
		tokens <- token
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failures <- errors.Wrap(err, "failed to start callback server")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Warn().Msgf("Failed to shutdown callback server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize podplay:")
	fmt.Println("")
	fmt.Println(auth.AuthURL(state))
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	select {
	case token := <-tokens:
		return token, nil
	case err := <-failures:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// verifyShow reads the newest episodes of the show with the new credentials.
func verifyShow(ctx context.Context, creds config.SpotifyConfig, show, market string) ([]episode.Episode, error) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RefreshToken: creds.RefreshToken,
		Market:       market,
	})
	if err != nil {
		return nil, err
	}
	episodes, err := client.ShowEpisodes(ctx, show, previewCount)
	if err != nil {
		return nil, errors.Wrapf(err, "token cannot read show %s", spotify.ShowID(show))
	}
	return episodes, nil
}

func printShow(w io.Writer, episodes []episode.Episode) {
	fmt.Fprintln(w, "")
	if len(episodes) == 0 {
		fmt.Fprintln(w, "Show found, but it has no episodes in this market yet.")
		return
	}
	fmt.Fprintf(w, "Show by %s, latest episodes:\n", episodes[0].Members)
	for _, e := range episodes {
		fmt.Fprintf(w, "  %s  %s (%s)\n", e.PublishedAt.Format(time.DateOnly), e.Title, e.DurationString())
	}
}

func spotifyProvider(name, show, market string) *config.ProviderConfig {
	return &config.ProviderConfig{
		Type:        config.ProviderTypeSpotify,
		DisplayName: name,
		Settings: map[string]any{
			"show_id": spotify.ShowID(show),
			"market":  market,
		},
	}
}

// configSnippet mirrors the config/server.yaml blocks this tool fills in.
type configSnippet struct {
	Episodes *config.EpisodesConfig `yaml:"episodes,omitempty"`
	Spotify  config.SpotifyConfig   `yaml:"spotify"`
}

func writeConfig(w io.Writer, creds config.SpotifyConfig, provider *config.ProviderConfig) error {
	snippet := configSnippet{Spotify: creds}
	if provider != nil {
		snippet.Episodes = &config.EpisodesConfig{Providers: []config.ProviderConfig{*provider}}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snippet); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	return enc.Close()
}
