package store

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// badgerLogger routes Badger's internal logging through zerolog at debug
// level, except errors. Badger is chatty at startup; none of it is
// ledger-relevant.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	log.Error().Msgf("badger: "+strings.TrimSpace(format), args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	log.Debug().Msgf("badger: "+strings.TrimSpace(format), args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	log.Debug().Msgf("badger: "+strings.TrimSpace(format), args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	log.Debug().Msgf("badger: "+strings.TrimSpace(format), args...)
}
