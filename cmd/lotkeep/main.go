package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lotkeep-dev/lotkeep/internal/commands"
	"github.com/lotkeep-dev/lotkeep/internal/model"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if level, err := zerolog.ParseLevel(os.Getenv("LOTKEEP_LOG")); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := commands.NewRootCommand().Execute(); err != nil {
		// A broken invariant means the ledger no longer matches reality;
		// stop hard so nothing else gets recorded on top of it.
		var invariant *model.InvariantError
		if errors.As(err, &invariant) {
			log.Error().Msg(invariant.Error())
			os.Exit(2)
		}
		log.Error().Msg(err.Error())
		os.Exit(1)
	}
}
