package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/muhmuslimabdulj/goat-chat/internal/config"
	"github.com/muhmuslimabdulj/goat-chat/internal/game"
	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
	"github.com/muhmuslimabdulj/goat-chat/internal/session"
	"github.com/muhmuslimabdulj/goat-chat/internal/transport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.NewConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	url, err := cfg.ConnectionURL()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid server url")
	}

	clock := clockwork.NewRealClock()
	musicPlayer := newHeadlessPlayer("music", clock)
	nobarPlayer := newHeadlessPlayer("nobar", clock)

	sess := session.New(musicPlayer, nobarPlayer, clock, session.Events{
		OnConnected: func() {
			log.Info().Str("room", cfg.Room).Msg("connected")
		},
		OnDisconnected: func() {
			log.Warn().Msg("disconnected")
		},
		OnChat: func(msg protocol.Message) {
			log.Info().Str("from", msg.FromName).Str("text", msg.Chat().Text).Msg("chat")
		},
		OnKicked: func(reason string) {
			log.Warn().Str("reason", reason).Msg("kicked from room")
		},
		OnHostGained: func() {
			log.Info().Msg("you are now the host")
		},
		OnSuitCompleted: func(ch game.Challenge) {
			log.Info().Str("challenge_id", ch.ID).Str("winner", ch.Winner).Msg("suit finished")
		},
		OnRequestAck: func() {
			log.Info().Msg("request sent")
		},
	})

	musicPlayer.attach(sess.Music())
	nobarPlayer.attach(sess.Nobar())

	client := transport.NewClient(url, clock, transport.Handlers{
		OnOpen:    sess.HandleOpen,
		OnMessage: sess.HandleMessage,
		OnClose:   sess.HandleClose,
	})
	sess.Bind(client)

	if err := client.Connect(); err != nil {
		log.Warn().Err(err).Msg("initial connect failed, reconnect scheduled")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	client.Close()
}
