package app

import (
	"github.com/shandysiswandi/mailrelay/internal/relay"
)

func (a *App) initModules() {
	if !a.config.GetBool("modules.relay.enabled") {
		return
	}

	err := relay.New(relay.Dependency{
		Ctx:         a.ctx,
		DBConn:      a.dbConn,
		Messaging:   a.messaging,
		Pool:        a.mailPool,
		Idempotency: a.idemp,
		Config:      a.config,
		Instrument:  a.ins,
		UID:         a.uid,
		UUID:        a.uuid,
		Clock:       a.clock,
		Goroutine:   a.goroutine,
		Validator:   a.validator,
		Router:      a.router,
	})
	if err != nil {
		fatal("failed to init relay module", err)
	}
}
