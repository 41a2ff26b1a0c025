package main

import (
	"os"

	"classroom-quiz-service/internal/cli"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("quiz-service failed")
		os.Exit(1)
	}
}
