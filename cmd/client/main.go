// Command client joins a color-grid room from the terminal. It speaks the
// same protocol as every other participant: all actions are published on the
// room's channel and take effect through self-delivery.
//
// Commands:
//
//	claim clue|guess    claim a principal role
//	release             revert to spectator
//	pick d12            (clue maker, picking phase) choose the target cell
//	guess d12           (guesser, guessing phase) guess a cell
//	lobby               return the room to the lobby after a result
//	state               print the current state
//	quit                leave the room
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colorgrid/internal/channel"
	"github.com/mcdev12/colorgrid/internal/game"
	"github.com/mcdev12/colorgrid/internal/room"
	"github.com/mcdev12/colorgrid/internal/roomcode"
	"github.com/mcdev12/colorgrid/internal/scores"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	var (
		code     = flag.String("room", "", "room code (empty with -create generates one)")
		nickname = flag.String("nickname", "", "nickname, unique within the room")
		create   = flag.Bool("create", false, "create the room and act as its authority")
	)
	flag.Parse()

	if *nickname == "" {
		fmt.Fprintln(os.Stderr, "-nickname is required")
		os.Exit(1)
	}

	roomCode := roomcode.Normalize(*code)
	if roomCode == "" {
		if !*create {
			fmt.Fprintln(os.Stderr, "-room is required when joining an existing room")
			os.Exit(1)
		}
		generated, err := roomcode.Generate()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate room code")
		}
		roomCode = generated
	}
	if !roomcode.Valid(roomCode) {
		fmt.Fprintln(os.Stderr, "room code must be 6 characters A-Z0-9")
		os.Exit(1)
	}

	natsURL := getEnv("NATS_URL", "nats://localhost:4222")
	nc, err := channel.Connect(natsURL)
	if err != nil {
		log.Fatal().Err(err).Str("nats_url", natsURL).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	sess, err := room.NewSession(room.Config{
		RoomCode:  roomCode,
		Nickname:  *nickname,
		Authority: *create,
		Channel:   channel.NewNATS(nc, roomCode),
		Reporter:  scores.NewReporter(os.Getenv("SCORES_URL")),
		OnChange:  printState,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session")
	}

	ctx, stop := signalContext()
	defer stop()

	if err := sess.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to join room")
	}
	defer sess.Close()

	fmt.Printf("room %s — you are %q", roomCode, *nickname)
	if *create {
		fmt.Print(" (authority)")
	}
	fmt.Println()

	runPrompt(sess)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPrompt(sess *room.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			fmt.Print("> ")
			continue
		}

		var err error
		switch fields[0] {
		case "claim":
			if len(fields) != 2 {
				err = fmt.Errorf("usage: claim clue|guess")
				break
			}
			switch fields[1] {
			case "clue":
				err = sess.ClaimRole(game.RoleClueMaker)
			case "guess":
				err = sess.ClaimRole(game.RoleGuesser)
			default:
				err = fmt.Errorf("usage: claim clue|guess")
			}
		case "release":
			err = sess.ReleaseRole()
		case "pick":
			err = cellCommand(fields, sess.PickTarget)
		case "guess":
			err = cellCommand(fields, sess.MakeGuess)
		case "lobby":
			err = sess.ReturnToLobby()
		case "state":
			printState(sess.Snapshot())
		case "quit", "exit":
			return
		default:
			err = fmt.Errorf("unknown command %q", fields[0])
		}

		if err != nil {
			fmt.Println("!", err)
		}
		fmt.Print("> ")
	}
}

func cellCommand(fields []string, action func(game.Cell) error) error {
	if len(fields) != 2 {
		return fmt.Errorf("usage: %s <cell> (e.g. d12)", fields[0])
	}
	cell, err := game.ParseCell(fields[1])
	if err != nil {
		return err
	}
	return action(cell)
}

func printState(s game.State) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", s.Phase)
	if s.CountdownSeconds != nil {
		fmt.Fprintf(&b, " %ds", *s.CountdownSeconds)
	}
	for _, p := range s.Players {
		fmt.Fprintf(&b, " %s", p.Nickname)
		if p.Role != game.RoleSpectator {
			fmt.Fprintf(&b, "(%s)", p.Role)
		}
	}
	if s.Phase == game.PhaseGuessing {
		fmt.Fprintf(&b, " guess %d/%d:", s.CurrentGuessNumber, game.MaxGuesses)
		for _, g := range s.Guesses {
			fmt.Fprintf(&b, " %s", g.Cell())
		}
	}
	if s.Phase == game.PhaseResult && s.LastRoundResult != nil {
		r := s.LastRoundResult
		if r.Won {
			fmt.Fprintf(&b, " %s found %s on guess %d (+%d points)",
				r.Guesser, r.TargetCell, len(r.Guesses), r.Points)
		} else {
			fmt.Fprintf(&b, " target was %s, no winner", r.TargetCell)
		}
	}
	fmt.Println("\n" + b.String())
	fmt.Print("> ")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
